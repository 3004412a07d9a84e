// SPDX-License-Identifier: EPL-2.0

// Package encodec drives the EnCodec command-line tool as a codec.Model.
//
// The 48 kHz stereo model is used (--hq). Given WAV input and WAV output the
// tool compresses and decompresses in one run:
//
//	encodec --hq -f -b 12 in.wav out.wav
//
// The 48 kHz model supports 3, 6, 12 and 24 kbps.
package encodec

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"

	"github.com/ik5/audscrub/audio"
	"github.com/ik5/audscrub/codec"
	"github.com/ik5/audscrub/formats/wav"
	"github.com/ik5/audscrub/internal/command"
)

const (
	SampleRate = 48000
	Channels   = 2
)

// Bandwidths supported by the 48 kHz model.
var Bandwidths = []codec.Bandwidth{3, 6, 12, 24}

type Options struct {
	// Binary is the encodec executable; "encodec" from PATH when empty.
	Binary string
	// TempDir holds the per-call scratch directories; os.TempDir when empty.
	TempDir string
	Runner  command.Runner
	Logger  *slog.Logger
}

type Model struct {
	bin     string
	tempDir string
	runner  command.Runner
	logger  *slog.Logger
	bw      codec.Bandwidth
}

var _ codec.Model = (*Model)(nil)

func New(opts Options) *Model {
	m := &Model{
		bin:     opts.Binary,
		tempDir: opts.TempDir,
		runner:  opts.Runner,
		logger:  opts.Logger,
		bw:      12,
	}
	if m.bin == "" {
		m.bin = "encodec"
	}
	if m.runner == nil {
		m.runner = command.ExecRunner{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Loader returns a codec.Loader that checks the binary is reachable before
// handing out the model.
func Loader(opts Options) codec.Loader {
	return func(context.Context) (codec.Model, error) {
		m := New(opts)
		if _, ok := m.runner.(command.ExecRunner); ok {
			if _, err := exec.LookPath(m.bin); err != nil {
				return nil, fmt.Errorf("encodec binary %q: %w", m.bin, err)
			}
		}
		return m, nil
	}
}

func (m *Model) SampleRate() int { return SampleRate }
func (m *Model) Channels() int   { return Channels }

func (m *Model) SetTargetBandwidth(bw codec.Bandwidth) error {
	if !slices.Contains(Bandwidths, bw) {
		return fmt.Errorf("%w: %s kbps (48 kHz model)", codec.ErrUnsupportedBandwidth, bw)
	}
	m.bw = bw
	return nil
}

func (m *Model) Process(ctx context.Context, in audio.Planar) (audio.Planar, error) {
	if in.Channels() != Channels {
		return nil, fmt.Errorf("%w: %d channels", codec.ErrBadModelOutput, in.Channels())
	}

	dir, err := os.MkdirTemp(m.tempDir, "encodec-*")
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "in.wav")
	outPath := filepath.Join(dir, "out.wav")

	if err := wav.WriteFile(inPath, in.Interleave(SampleRate), 24); err != nil {
		return nil, err
	}

	log, err := command.Run(ctx, m.runner, "encodec", m.bin, buildArgs(m.bw, inPath, outPath)...)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("encodec finished", "command", log.String())

	buf, err := wav.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("reading encodec output: %w", err)
	}
	buf, err = audio.ConvertBuffer(buf, SampleRate, Channels)
	if err != nil {
		return nil, err
	}

	out := buf.Planar()
	// The codec pads to its frame size; keep the input length.
	if frames := in.Frames(); out.Frames() > frames {
		for c := range out {
			out[c] = out[c][:frames]
		}
	}
	return out, nil
}

func buildArgs(bw codec.Bandwidth, in, out string) []string {
	return []string{"--hq", "-f", "-b", bw.String(), in, out}
}
