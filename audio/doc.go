// SPDX-License-Identifier: EPL-2.0

// Package audio provides the streaming primitives the scrubber is built on.
//
//   - Source: pull-based interleaved float32 stream
//   - Registry: decoders keyed by file extension
//   - Resampler: cubic sample-rate conversion
//   - ChannelMixer: rechanneling (mono, stereo, N→M)
//   - Buffer and Planar: in-memory interleaved and channels-first audio
//   - Convert, ConvertBuffer, ReadAll: chain and drain helpers
//
// # Source Interface
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    ReadSamples(dst []float32) (int, error)
//	    BufSize() int
//	    Close() error
//	}
//
// ReadSamples returns the number of float32 values written, always a whole
// number of frames. io.EOF marks the end of the stream and may be returned
// together with the last samples.
//
// # Conversion
//
// Convert assembles the shortest chain that reaches a target layout:
//
//	src := audio.Convert(decoded, 48000, 2)
//	buf, err := audio.ReadAll(src)
//
// The chain is deterministic: the same input always yields the same output,
// which the codec stage relies on for reproducible results.
//
// # Sample Format
//
// Samples are float32 in [-1.0, 1.0]. Integer PCM is scaled on the way in
// and out by the helpers in the utils package.
package audio
