// SPDX-License-Identifier: EPL-2.0

package codec

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ik5/audscrub/audio"
	"github.com/ik5/audscrub/formats/wav"
)

// OutputBitDepth is the bit depth of re-encoded files.
const OutputBitDepth = 24

// Reencoder runs WAV files through the codec model.
type Reencoder struct {
	handle *Handle
	logger *slog.Logger
}

func NewReencoder(h *Handle, logger *slog.Logger) *Reencoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reencoder{handle: h, logger: logger}
}

// Reencode reads the WAV at in, runs it through the model at bw and writes
// the result to out at the model's native rate as 24-bit PCM. out is only
// created once the whole result is ready.
func (r *Reencoder) Reencode(ctx context.Context, in, out string, bw Bandwidth) error {
	if !bw.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidBandwidth, bw)
	}
	if !bw.Enabled() {
		return ErrDisabled
	}

	src, err := wav.ReadFile(in)
	if err != nil {
		return fmt.Errorf("reading %s: %w", in, err)
	}

	started := time.Now()
	var result *audio.Buffer
	err = r.handle.With(ctx, func(m Model) error {
		if err := m.SetTargetBandwidth(bw); err != nil {
			return fmt.Errorf("setting bandwidth %s: %w", bw, err)
		}

		native, err := audio.ConvertBuffer(src, m.SampleRate(), m.Channels())
		if err != nil {
			return fmt.Errorf("converting to model layout: %w", err)
		}

		decoded, err := m.Process(ctx, native.Planar())
		if err != nil {
			return fmt.Errorf("codec round trip: %w", err)
		}
		if decoded.Channels() != m.Channels() {
			return fmt.Errorf("%w: %d channels, want %d", ErrBadModelOutput, decoded.Channels(), m.Channels())
		}
		for _, plane := range decoded {
			if len(plane) != decoded.Frames() {
				return fmt.Errorf("%w: ragged channels", ErrBadModelOutput)
			}
		}

		result = decoded.Interleave(m.SampleRate())
		return nil
	})
	if err != nil {
		return err
	}

	if err := wav.WriteFile(out, result, OutputBitDepth); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	r.logger.Debug("re-encoded",
		"input", in,
		"output", out,
		"bandwidth", bw.String(),
		"duration", result.Duration(),
		"elapsed", time.Since(started),
	)
	return nil
}
