// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// ChannelMixer rechannels an interleaved stream.
//
// Mapping rules:
//   - same count: pass-through
//   - to mono: average of all input channels
//   - from mono: the single channel is copied to every output channel
//   - otherwise: output channel c takes input channel c when present, and
//     the average of all inputs when the input has fewer channels
type ChannelMixer struct {
	src      Source
	channels int
	tmp      []float32
}

func NewChannelMixer(src Source, channels int) *ChannelMixer {
	return &ChannelMixer{
		src:      src,
		channels: channels,
		tmp:      make([]float32, 4096),
	}
}

// NewMonoMixer converts any stream to a single channel.
func NewMonoMixer(src Source) *ChannelMixer {
	return NewChannelMixer(src, 1)
}

func (m *ChannelMixer) SampleRate() int { return m.src.SampleRate() }
func (m *ChannelMixer) Channels() int   { return m.channels }
func (m *ChannelMixer) BufSize() int    { return m.src.BufSize() }
func (m *ChannelMixer) Close() error {
	if err := m.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

func (m *ChannelMixer) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if len(dst)%m.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	in := m.src.Channels()
	if in == m.channels {
		return m.src.ReadSamples(dst)
	}

	frames := len(dst) / m.channels
	samplesNeeded := frames * in

	// Grow, never shrink.
	if cap(m.tmp) < samplesNeeded {
		m.tmp = make([]float32, max(samplesNeeded, 8192))
	}
	m.tmp = m.tmp[:samplesNeeded]

	n, err := m.src.ReadSamples(m.tmp)
	if n == 0 {
		return 0, err
	}
	got := n / in

	switch {
	case m.channels == 1 && in == 2:
		for f := range got {
			idx := f << 1
			dst[f] = (m.tmp[idx] + m.tmp[idx+1]) * 0.5
		}
	case in == 1:
		for f := range got {
			v := m.tmp[f]
			base := f * m.channels
			for c := range m.channels {
				dst[base+c] = v
			}
		}
	default:
		inv := float32(1.0) / float32(in)
		for f := range got {
			src := m.tmp[f*in : (f+1)*in]
			base := f * m.channels

			var avg float32
			if m.channels == 1 || in < m.channels {
				for _, v := range src {
					avg += v
				}
				avg *= inv
			}
			for c := range m.channels {
				if c < in && m.channels > 1 {
					dst[base+c] = src[c]
				} else {
					dst[base+c] = avg
				}
			}
		}
	}

	return got * m.channels, err
}
