// SPDX-License-Identifier: EPL-2.0

package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ik5/audscrub"
	"github.com/ik5/audscrub/audio"
	"github.com/ik5/audscrub/formats/wav"
)

// Native decodes in-process with the bundled format codecs. It stands in for
// ffmpeg on hosts that do not have it.
type Native struct {
	registry *audio.Registry
}

var (
	_ Starter   = (*Native)(nil)
	_ Converter = (*Native)(nil)
)

// NewNative decodes with reg, or with audscrub.DefaultRegistry when reg is
// nil.
func NewNative(reg *audio.Registry) *Native {
	if reg == nil {
		reg = audscrub.DefaultRegistry()
	}
	return &Native{registry: reg}
}

func (n *Native) open(path string, sampleRate, channels int) (audio.Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputNotFound, err)
	}
	src, err := audscrub.OpenWith(n.registry, path)
	if err != nil {
		return nil, err
	}
	return audio.Convert(src, sampleRate, channels), nil
}

// Start streams the decoded file through a pipe from a goroutine. The
// producer stays running until its output has been consumed.
func (n *Native) Start(_ context.Context, path string, sampleRate, channels int) (Producer, error) {
	src, err := n.open(path, sampleRate, channels)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	p := &nativeProducer{
		out:  pr,
		done: make(chan struct{}),
	}

	go func() {
		err := stream(src, pw)
		_ = src.Close()
		_ = pw.CloseWithError(err)
		p.err = err
		close(p.done)
	}()
	return p, nil
}

func stream(src audio.Source, w io.Writer) error {
	samples := make([]float32, 4096*src.Channels())
	raw := make([]byte, len(samples)*4)

	for {
		n, err := src.ReadSamples(samples)
		if n > 0 {
			PutFloat32(raw, samples[:n])
			if _, werr := w.Write(raw[:n*4]); werr != nil {
				return fmt.Errorf("%w", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w", err)
		}
	}
}

// Convert decodes src in memory and writes it to dst as 24-bit PCM.
func (n *Native) Convert(_ context.Context, src, dst string, sampleRate, channels int) error {
	s, err := n.open(src, sampleRate, channels)
	if err != nil {
		return err
	}
	defer s.Close()

	buf, err := audio.ReadAll(s)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", src, err)
	}
	return wav.WriteFile(dst, buf, 24)
}

type nativeProducer struct {
	out  *io.PipeReader
	done chan struct{}
	err  error
}

func (p *nativeProducer) Output() io.Reader { return p.out }

func (p *nativeProducer) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *nativeProducer) Wait() error {
	<-p.done
	if errors.Is(p.err, ErrClosed) {
		return nil
	}
	return p.err
}

func (p *nativeProducer) Close() error {
	_ = p.out.CloseWithError(ErrClosed)
	<-p.done
	return nil
}
