// SPDX-License-Identifier: EPL-2.0

// Package wav reads and writes integer PCM WAV files on top of
// github.com/go-audio/wav.
//
// # Decoding
//
//	src, err := wav.Open("capture.wav")
//	buf := make([]float32, 4096)
//	n, err := src.ReadSamples(buf)
//
// 8, 16, 24 and 32-bit integer PCM are accepted, including the
// WAVE_FORMAT_EXTENSIBLE layout. IEEE float files are rejected with
// ErrUnsupportedEncoding.
//
// # Streaming writes
//
// Writer appends float32 frames as they arrive, which is what the loopback
// capture needs:
//
//	w, err := wav.Create("x_rerecord.wav", audio.Format{SampleRate: 44100, Channels: 2, BitDepth: 24})
//	defer w.Close()
//	err = w.Write(block)
//
// Samples are clamped to [-1, 1] before scaling.
//
// # Whole-file writes
//
// WriteFile stores an audio.Buffer atomically (temporary file + rename).
package wav
