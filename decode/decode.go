// SPDX-License-Identifier: EPL-2.0

package decode

import (
	"context"
	"errors"
	"io"

	"github.com/ik5/audscrub/internal/command"
)

// Capture format produced for the loopback stage.
const (
	SampleRate = 44100
	Channels   = 2
)

var (
	ErrInputNotFound = errors.New("input file not found")
	ErrClosed        = errors.New("producer closed")
)

// CommandError is returned when an external decode or convert process
// fails. It carries the command log.
type CommandError = command.Error

// Producer is a running decode of one file into raw interleaved
// little-endian float32 PCM.
type Producer interface {
	// Output must be drained promptly; only the OS pipe buffers it.
	Output() io.Reader
	// Running is a non-blocking liveness probe.
	Running() bool
	// Wait blocks until the producer exits and reports how it ended.
	Wait() error
	// Close stops the producer if it is still running and releases it.
	Close() error
}

// Starter begins decoding path at the given layout.
type Starter interface {
	Start(ctx context.Context, path string, sampleRate, channels int) (Producer, error)
}

// Converter decodes src and writes a 24-bit PCM WAV at dst directly, with no
// device involved.
type Converter interface {
	Convert(ctx context.Context, src, dst string, sampleRate, channels int) error
}
