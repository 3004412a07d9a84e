// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"
)

// Convert builds the processing chain that brings src to sampleRate and
// channels: rechannel first when reducing channels, resample, then rechannel
// when adding channels, so the resampler always works on the smaller layout.
// Stages that would be no-ops are left out.
func Convert(src Source, sampleRate, channels int) Source {
	out := src
	if channels < out.Channels() {
		out = NewChannelMixer(out, channels)
	}
	if out.SampleRate() != sampleRate {
		out = NewResampler(out, sampleRate)
	}
	if channels != out.Channels() {
		out = NewChannelMixer(out, channels)
	}
	return out
}

// ReadAll drains src into a Buffer. io.EOF is the normal end of stream and
// is not returned.
func ReadAll(src Source) (*Buffer, error) {
	size := src.BufSize()
	if size <= 0 {
		size = 4096
	}
	size -= size % src.Channels()
	if size == 0 {
		size = src.Channels() * 1024
	}

	out := &Buffer{
		Format: Format{
			SampleRate: src.SampleRate(),
			Channels:   src.Channels(),
			BitDepth:   32,
			Float:      true,
		},
		Data: make([]float32, 0, src.SampleRate()*src.Channels()),
	}
	buf := make([]float32, size)

	for {
		n, err := src.ReadSamples(buf)
		if n > 0 {
			out.Data = append(out.Data, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w", err)
		}
	}

	return out, nil
}

// ConvertBuffer is the in-memory form of Convert. It does not modify b.
func ConvertBuffer(b *Buffer, sampleRate, channels int) (*Buffer, error) {
	if err := b.Format.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if channels <= 0 {
		return nil, ErrInvalidChannels
	}

	if b.Format.SameLayout(Format{SampleRate: sampleRate, Channels: channels}) {
		data := make([]float32, len(b.Data))
		copy(data, b.Data)
		return &Buffer{Format: b.Format, Data: data}, nil
	}
	if len(b.Data) == 0 {
		return &Buffer{Format: Format{SampleRate: sampleRate, Channels: channels, BitDepth: 32, Float: true}}, nil
	}

	return ReadAll(Convert(b.Source(), sampleRate, channels))
}
