// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"
	"time"
)

// Format describes the layout of an interleaved PCM stream.
type Format struct {
	SampleRate int
	Channels   int
	// BitDepth is the storage depth (16, 24 or 32). Zero means unspecified.
	BitDepth int
	// Float marks IEEE float storage; only meaningful with BitDepth 32.
	Float bool
}

func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if f.Channels <= 0 {
		return ErrInvalidChannels
	}
	return nil
}

// SameLayout reports whether o has the same sample rate and channel count.
// Bit depth is a storage detail and is ignored.
func (f Format) SameLayout(o Format) bool {
	return f.SampleRate == o.SampleRate && f.Channels == o.Channels
}

// Duration converts a frame count into playback time.
func (f Format) Duration(frames int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

func (f Format) String() string {
	kind := "pcm"
	if f.Float {
		kind = "float"
	}
	return fmt.Sprintf("%dHz/%dch/%d-bit %s", f.SampleRate, f.Channels, f.BitDepth, kind)
}

// Buffer is an ordered run of interleaved sample frames.
type Buffer struct {
	Format Format
	Data   []float32
}

// Frames returns the number of complete frames held by b.
func (b *Buffer) Frames() int {
	if b == nil || b.Format.Channels <= 0 {
		return 0
	}
	return len(b.Data) / b.Format.Channels
}

func (b *Buffer) Duration() time.Duration {
	return b.Format.Duration(b.Frames())
}

// Planar returns a channels-first copy of b.
func (b *Buffer) Planar() Planar {
	channels := b.Format.Channels
	frames := b.Frames()

	p := make(Planar, channels)
	for c := range channels {
		p[c] = make([]float32, frames)
	}
	for f := range frames {
		base := f * channels
		for c := range channels {
			p[c][f] = b.Data[base+c]
		}
	}
	return p
}

// Source exposes the buffer as a Source, so it can feed a Resampler or a
// ChannelMixer.
func (b *Buffer) Source() Source {
	return &bufferSource{buf: b}
}

// Planar holds one slice per channel ("channels-first"). All planes must
// have the same length.
type Planar [][]float32

func (p Planar) Channels() int { return len(p) }

func (p Planar) Frames() int {
	if len(p) == 0 {
		return 0
	}
	return len(p[0])
}

// Interleave converts p back to sample-major order.
func (p Planar) Interleave(sampleRate int) *Buffer {
	channels := p.Channels()
	frames := p.Frames()

	data := make([]float32, frames*channels)
	for c, plane := range p {
		for f := 0; f < frames && f < len(plane); f++ {
			data[f*channels+c] = plane[f]
		}
	}
	return &Buffer{
		Format: Format{SampleRate: sampleRate, Channels: channels, BitDepth: 32, Float: true},
		Data:   data,
	}
}

type bufferSource struct {
	buf *Buffer
	pos int
}

func (s *bufferSource) SampleRate() int { return s.buf.Format.SampleRate }
func (s *bufferSource) Channels() int   { return s.buf.Format.Channels }
func (s *bufferSource) BufSize() int    { return 4096 }
func (s *bufferSource) Close() error    { return nil }

func (s *bufferSource) ReadSamples(dst []float32) (int, error) {
	if s.pos >= len(s.buf.Data) {
		return 0, io.EOF
	}
	// Hand out whole frames only.
	want := len(dst) - len(dst)%s.buf.Format.Channels
	n := copy(dst[:want], s.buf.Data[s.pos:])
	s.pos += n
	if s.pos >= len(s.buf.Data) {
		return n, io.EOF
	}
	return n, nil
}
