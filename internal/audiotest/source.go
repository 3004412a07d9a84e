// SPDX-License-Identifier: EPL-2.0

// Package audiotest provides fakes for the audio pipeline: generated
// sources, a loopback audio device and a scripted decode producer.
package audiotest

import (
	"io"
	"math"

	"github.com/ik5/audscrub/audio"
)

// Waveform returns the sample value for a frame and channel.
type Waveform func(frame, channel int) float32

// Source generates a fixed number of frames from a Waveform.
type Source struct {
	sampleRate int
	channels   int
	frames     int
	pos        int
	wave       Waveform
}

var _ audio.Source = (*Source)(nil)

func NewSource(sampleRate, channels, frames int, wave Waveform) *Source {
	return &Source{
		sampleRate: sampleRate,
		channels:   channels,
		frames:     frames,
		wave:       wave,
	}
}

func NewSilentSource(sampleRate, channels, frames int) *Source {
	return NewSource(sampleRate, channels, frames, func(int, int) float32 { return 0 })
}

// NewSineSource generates a full-scale sine at frequency Hz on every channel.
func NewSineSource(sampleRate, channels, frames int, frequency float64) *Source {
	return NewSource(sampleRate, channels, frames, func(frame, _ int) float32 {
		t := float64(frame) / float64(sampleRate)
		return float32(math.Sin(2 * math.Pi * frequency * t))
	})
}

func NewConstantSource(sampleRate, channels, frames int, value float32) *Source {
	return NewSource(sampleRate, channels, frames, func(int, int) float32 { return value })
}

// NewNoiseSource generates deterministic pseudo-random samples in
// [-amplitude, amplitude].
func NewNoiseSource(sampleRate, channels, frames int, amplitude float32, seed uint32) *Source {
	state := make([]uint32, channels)
	for c := range state {
		state[c] = seed + uint32(c)*0x9E3779B9 + 1
	}
	return NewSource(sampleRate, channels, frames, func(_, channel int) float32 {
		// xorshift32
		x := state[channel]
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		state[channel] = x
		return amplitude * (float32(x)/float32(math.MaxUint32)*2 - 1)
	})
}

func (s *Source) SampleRate() int { return s.sampleRate }
func (s *Source) Channels() int   { return s.channels }
func (s *Source) BufSize() int    { return 4096 }
func (s *Source) Close() error    { return nil }

// Reset rewinds the source. Stateful waveforms such as noise are not
// rewound.
func (s *Source) Reset() {
	s.pos = 0
}

func (s *Source) ReadSamples(dst []float32) (int, error) {
	if s.pos >= s.frames {
		return 0, io.EOF
	}

	frames := min(len(dst)/s.channels, s.frames-s.pos)
	for f := range frames {
		for c := range s.channels {
			dst[f*s.channels+c] = s.wave(s.pos+f, c)
		}
	}
	s.pos += frames

	if s.pos >= s.frames {
		return frames * s.channels, io.EOF
	}
	return frames * s.channels, nil
}

// Buffer drains src into memory; it panics on a read error since generated
// sources never fail.
func Buffer(src audio.Source) *audio.Buffer {
	b, err := audio.ReadAll(src)
	if err != nil {
		panic(err)
	}
	return b
}
