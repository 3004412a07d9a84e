// SPDX-License-Identifier: EPL-2.0

package scrub

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/ik5/audscrub/capture"
	"github.com/ik5/audscrub/codec"
	"github.com/ik5/audscrub/decode"
)

// Capturer records a source through the loopback device into dst.
type Capturer interface {
	Capture(ctx context.Context, src, dst, deviceName string) (capture.Stats, error)
}

// Reencoder runs the neural stage from in to out.
type Reencoder interface {
	Reencode(ctx context.Context, in, out string, bw codec.Bandwidth) error
}

// Observer receives every finished job.
type Observer interface {
	Observe(Result)
}

// Result is the outcome of one job.
type Result struct {
	ID     string
	Source string
	// Output is the final path. It exists unless Status is StatusFailed
	// and Degraded is false.
	Output       string
	Status       Status
	FallbackUsed bool
	Scrubbed     bool
	// Degraded marks a failed neural stage whose captured audio was kept
	// as the output.
	Degraded   bool
	CaptureErr error
	ScrubErr   error
	// Err is the error that ended the job, nil on success.
	Err     error
	Stats   capture.Stats
	Elapsed time.Duration
}

// OK reports whether the job produced a usable output.
func (r Result) OK() bool {
	return r.Status != StatusFailed || r.Degraded
}

type Options struct {
	// Device is the capture device name passed to every capture.
	Device    string
	Bandwidth codec.Bandwidth
	Logger    *slog.Logger
	Observer  Observer
}

// Orchestrator runs jobs one at a time. A failed job never stops the batch.
type Orchestrator struct {
	capturer  Capturer
	fallback  decode.Converter
	reencoder Reencoder

	device    string
	bandwidth codec.Bandwidth
	logger    *slog.Logger
	observer  Observer
}

func New(c Capturer, fallback decode.Converter, r Reencoder, opts Options) *Orchestrator {
	o := &Orchestrator{
		capturer:  c,
		fallback:  fallback,
		reencoder: r,
		device:    opts.Device,
		bandwidth: opts.Bandwidth,
		logger:    opts.Logger,
		observer:  opts.Observer,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Run processes files in order. Cancelling ctx stops the batch before the
// next job; the job in flight always runs to a terminal status. Run returns
// ErrNoInputFiles for an empty batch and ctx.Err() when cancelled.
func (o *Orchestrator) Run(ctx context.Context, files []string) ([]Result, error) {
	if len(files) == 0 {
		return nil, ErrNoInputFiles
	}

	results := make([]Result, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("batch interrupted", "done", len(results), "remaining", len(files)-len(results))
			return results, err
		}
		results = append(results, o.Process(ctx, f))
	}
	return results, nil
}

// Process runs a single job to a terminal status.
func (o *Orchestrator) Process(ctx context.Context, source string) Result {
	ctx = context.WithoutCancel(ctx)
	started := time.Now()

	job := NewJob(source)
	log := o.logger.With("job", job.ID, "source", source)
	res := Result{ID: job.ID, Source: source, Output: job.Paths.Final}

	o.acquire(ctx, job, &res, log)
	if job.Status != StatusFailed {
		o.finish(ctx, job, &res, log)
	}

	res.Status = job.Status
	res.Elapsed = time.Since(started)

	switch {
	case res.Status != StatusFailed:
		log.Info("job done", "status", res.Status, "output", res.Output, "elapsed", res.Elapsed)
	case res.Degraded:
		log.Error("job failed, captured audio kept", "output", res.Output, "error", res.Err)
	default:
		log.Error("job failed", "error", res.Err)
	}

	if o.observer != nil {
		o.observer.Observe(res)
	}
	return res
}

// acquire fills the capture path, by loopback or by direct conversion.
func (o *Orchestrator) acquire(ctx context.Context, job *Job, res *Result, log *slog.Logger) {
	log.Info("capturing", "device", o.device)
	stats, err := o.capturer.Capture(ctx, job.Source, job.Paths.Capture, o.device)
	res.Stats = stats
	if err == nil {
		log.Info("captured", "frames", stats.Frames, "overflows", stats.Overflows)
		o.move(job, StatusCaptured, log)
		return
	}

	res.CaptureErr = fmt.Errorf("%w: %w", ErrCapture, err)
	log.Warn("capture failed, converting directly", "error", err)

	if err := o.fallback.Convert(ctx, job.Source, job.Paths.Capture, decode.SampleRate, decode.Channels); err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrFallback, err)
		removeIfExists(job.Paths.Capture, log)
		o.move(job, StatusFailed, log)
		return
	}
	res.FallbackUsed = true
	o.move(job, StatusFallbackUsed, log)
}

// finish turns the capture path into the final output.
func (o *Orchestrator) finish(ctx context.Context, job *Job, res *Result, log *slog.Logger) {
	if !o.bandwidth.Enabled() {
		if err := os.Rename(job.Paths.Capture, job.Paths.Final); err != nil {
			res.Err = fmt.Errorf("promoting capture: %w", err)
			o.move(job, StatusFailed, log)
		}
		return
	}

	log.Info("scrubbing", "bandwidth", o.bandwidth)
	err := o.reencoder.Reencode(ctx, job.Paths.Capture, job.Paths.Final, o.bandwidth)
	if err == nil {
		removeIfExists(job.Paths.Capture, log)
		res.Scrubbed = true
		o.move(job, StatusScrubbed, log)
		return
	}

	res.ScrubErr = fmt.Errorf("%w: %w", ErrScrub, err)
	res.Err = res.ScrubErr
	o.move(job, StatusFailed, log)

	if _, serr := os.Stat(job.Paths.Final); serr == nil {
		log.Warn("scrub failed and output exists, capture left in place",
			"capture", job.Paths.Capture, "output", job.Paths.Final)
		return
	}
	if rerr := os.Rename(job.Paths.Capture, job.Paths.Final); rerr != nil {
		log.Warn("keeping captured audio failed", "error", rerr)
		return
	}
	res.Degraded = true
}

// move applies a transition the orchestrator itself decided; a rejection
// means the job state was corrupted and is only logged.
func (o *Orchestrator) move(job *Job, status Status, log *slog.Logger) {
	if err := job.transition(status); err != nil {
		log.Error("job state", "error", err)
	}
}

func removeIfExists(path string, log *slog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("removing temporary file", "path", path, "error", err)
	}
}
