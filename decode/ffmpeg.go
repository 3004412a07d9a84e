// SPDX-License-Identifier: EPL-2.0

package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/ik5/audscrub/internal/command"
)

// FFmpeg decodes and converts through the ffmpeg binary.
type FFmpeg struct {
	path    string
	runner  command.Runner
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
	stat    func(name string) (os.FileInfo, error)
}

var (
	_ Starter   = (*FFmpeg)(nil)
	_ Converter = (*FFmpeg)(nil)
)

// NewFFmpeg uses the binary at path, or "ffmpeg" from PATH when path is
// empty.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{
		path:    path,
		runner:  command.ExecRunner{},
		command: exec.CommandContext,
		stat:    os.Stat,
	}
}

// Start launches ffmpeg writing raw float32 PCM to its stdout.
func (f *FFmpeg) Start(ctx context.Context, path string, sampleRate, channels int) (Producer, error) {
	if _, err := f.stat(path); err != nil {
		return nil, &CommandError{
			Stage:   "decode",
			Message: "input file is not accessible",
			Err:     fmt.Errorf("%w: %w", ErrInputNotFound, err),
		}
	}

	args := buildDecodeArgs(path, sampleRate, channels)
	cmd := f.command(ctx, f.path, args...)

	// Wait closes pipes it created itself, which may drop unread output, so
	// the pipe is owned here.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	p := &process{
		log:  command.Log{Command: f.path, Args: args},
		out:  pr,
		done: make(chan struct{}),
	}
	cmd.Stdout = pw
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		p.log.ExitCode = -1
		return nil, &CommandError{
			Stage:   "decode",
			Message: "failed to start decoder",
			Log:     p.log,
			Err:     err,
		}
	}
	_ = pw.Close()
	p.cmd = cmd

	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Convert writes a 24-bit PCM WAV at dst straight from src.
func (f *FFmpeg) Convert(ctx context.Context, src, dst string, sampleRate, channels int) error {
	if _, err := f.stat(src); err != nil {
		return &CommandError{
			Stage:   "convert",
			Message: "input file is not accessible",
			Err:     fmt.Errorf("%w: %w", ErrInputNotFound, err),
		}
	}

	if _, err := command.Run(ctx, f.runner, "convert", f.path, buildConvertArgs(src, dst, sampleRate, channels)...); err != nil {
		return err
	}
	return nil
}

// buildDecodeArgs builds args for headerless float32 PCM on stdout.
func buildDecodeArgs(path string, sampleRate, channels int) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", path,
		"-vn",
		"-f", "f32le",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"pipe:1",
	}
}

// buildConvertArgs builds args for a 24-bit PCM WAV file.
func buildConvertArgs(src, dst string, sampleRate, channels int) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", src,
		"-vn",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-c:a", "pcm_s24le",
		dst,
	}
}

type process struct {
	cmd    *exec.Cmd
	log    command.Log
	out    *os.File
	stderr bytes.Buffer

	done    chan struct{}
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

func (p *process) Output() io.Reader { return p.out }

func (p *process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *process) Wait() error {
	<-p.done
	if p.waitErr == nil {
		return nil
	}

	log := p.log
	log.ExitCode = command.ExitCode(p.waitErr)
	log.Stderr = p.stderr.String()
	return &CommandError{
		Stage:   "decode",
		Message: "decoder exited with error",
		Log:     log,
		Err:     p.waitErr,
	}
}

// Close kills the process if it is still running, reaps it, and closes the
// read end of the pipe.
func (p *process) Close() error {
	p.closeOnce.Do(func() {
		if p.Running() {
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				p.closeErr = fmt.Errorf("%w", err)
			}
		}
		<-p.done
		if err := p.out.Close(); err != nil && p.closeErr == nil {
			p.closeErr = fmt.Errorf("%w", err)
		}
	})
	return p.closeErr
}
