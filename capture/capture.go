// SPDX-License-Identifier: EPL-2.0

package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ik5/audscrub/audio"
	"github.com/ik5/audscrub/decode"
	"github.com/ik5/audscrub/device"
	"github.com/ik5/audscrub/formats/wav"
)

const (
	SettleDelay = 100 * time.Millisecond
	BlockFrames = 1024
	DrainBlocks = 10
	BitDepth    = 24
)

// Format is the fixed capture layout.
var Format = audio.Format{
	SampleRate: decode.SampleRate,
	Channels:   decode.Channels,
	BitDepth:   BitDepth,
}

// Stats describes one capture run.
type Stats struct {
	// Blocks counts reads while the producer was running.
	Blocks int
	// DrainBlocks counts reads after the producer exited.
	DrainBlocks int
	Frames      int
	Overflows   int
	Played      int
	Elapsed     time.Duration
}

// Duration is the captured audio length.
func (s Stats) Duration() time.Duration {
	return Format.Duration(s.Frames)
}

// Options tune a Capturer. Zero values select the package defaults.
type Options struct {
	PlaybackDevice string
	SettleDelay    time.Duration
	BlockFrames    int
	DrainBlocks    int
	Logger         *slog.Logger
}

// Capturer records a file by playing it through a loopback device.
type Capturer struct {
	starter decode.Starter
	devices device.Opener

	playbackDevice string
	settle         time.Duration
	blockFrames    int
	drainBlocks    int
	logger         *slog.Logger
	sleep          func(time.Duration)
}

func New(starter decode.Starter, devices device.Opener, opts Options) *Capturer {
	c := &Capturer{
		starter:        starter,
		devices:        devices,
		playbackDevice: opts.PlaybackDevice,
		settle:         opts.SettleDelay,
		blockFrames:    opts.BlockFrames,
		drainBlocks:    opts.DrainBlocks,
		logger:         opts.Logger,
		sleep:          time.Sleep,
	}
	if c.settle == 0 {
		c.settle = SettleDelay
	}
	if c.blockFrames <= 0 {
		c.blockFrames = BlockFrames
	}
	if c.drainBlocks <= 0 {
		c.drainBlocks = DrainBlocks
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Capture plays src through the loopback and records deviceName into dst as
// 24-bit PCM. Blocks are appended in read order; overflowed input is dropped,
// never zero-filled. On error dst may be partial or absent.
func (c *Capturer) Capture(ctx context.Context, src, dst, deviceName string) (stats Stats, err error) {
	started := time.Now()
	defer func() { stats.Elapsed = time.Since(started) }()

	producer, err := c.starter.Start(ctx, src, Format.SampleRate, Format.Channels)
	if err != nil {
		return stats, fmt.Errorf("starting decoder: %w", err)
	}
	// Closing the producer first unblocks the feeder.
	defer closeInto(&err, producer, "closing decoder")

	in, err := c.devices.OpenCapture(deviceName, Format, c.blockFrames)
	if err != nil {
		return stats, fmt.Errorf("opening capture device: %w", err)
	}
	defer closeInto(&err, in, "closing capture stream")

	out, err := c.devices.OpenPlayback(c.playbackDevice, Format, c.blockFrames)
	if err != nil {
		return stats, fmt.Errorf("opening playback device: %w", err)
	}

	sink, err := wav.Create(dst, Format)
	if err != nil {
		_ = out.Close()
		return stats, fmt.Errorf("creating %s: %w", dst, err)
	}
	defer closeInto(&err, sink, "closing capture file")

	f := startFeeder(producer.Output(), out, c.blockFrames, Format.Channels)
	defer func() {
		// The producer must stop before the feeder can be joined.
		_ = producer.Close()
		played, ferr := f.wait()
		stats.Played = played / Format.Channels
		if cerr := out.Close(); cerr != nil && ferr == nil {
			ferr = fmt.Errorf("closing playback stream: %w", cerr)
		}
		if ferr != nil && err == nil {
			err = ferr
		}
	}()

	c.logger.Debug("capture started", "source", src, "device", deviceName)
	c.sleep(c.settle)

	block := make([]float32, c.blockFrames*Format.Channels)
	read := func() error {
		n, rerr := in.Read(block)
		if errors.Is(rerr, device.ErrInputOverflowed) {
			stats.Overflows++
		} else if rerr != nil {
			return fmt.Errorf("reading capture stream: %w", rerr)
		}
		if n == 0 {
			return nil
		}
		if werr := sink.Write(block[:n]); werr != nil {
			return fmt.Errorf("writing %s: %w", dst, werr)
		}
		stats.Frames += n / Format.Channels
		return nil
	}

	for producer.Running() {
		if ferr := f.failed(); ferr != nil {
			return stats, ferr
		}
		if err := read(); err != nil {
			return stats, err
		}
		stats.Blocks++
	}

	// Flush what is still in the device latency buffer.
	for range c.drainBlocks {
		if err := read(); err != nil {
			return stats, err
		}
		stats.DrainBlocks++
	}

	if werr := producer.Wait(); werr != nil {
		return stats, fmt.Errorf("decoder: %w", werr)
	}

	if stats.Overflows > 0 {
		c.logger.Warn("capture input overflowed", "source", src, "overflows", stats.Overflows)
	}
	c.logger.Debug("capture finished", "source", src, "frames", stats.Frames, "blocks", stats.Blocks)
	return stats, nil
}

func closeInto(err *error, c io.Closer, what string) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("%s: %w", what, cerr)
	}
}

// feeder copies decoder output to the playback stream in whole blocks. Only
// the last block may be short, and it is cut to whole frames.
type feeder struct {
	done   chan struct{}
	mtx    sync.Mutex
	err    error
	played int
}

func startFeeder(r io.Reader, out device.PlaybackStream, blockFrames, channels int) *feeder {
	f := &feeder{done: make(chan struct{})}

	go func() {
		defer close(f.done)

		pcm := decode.NewPCMReader(r)
		buf := make([]float32, blockFrames*channels)
		for {
			n, err := pcm.ReadFull(buf)
			n -= n % channels
			if n > 0 {
				if werr := out.Write(buf[:n]); werr != nil {
					f.fail(fmt.Errorf("writing playback stream: %w", werr))
					// Keep draining so the decoder never blocks on a full pipe.
					_, _ = io.Copy(io.Discard, r)
					return
				}
				f.mtx.Lock()
				f.played += n
				f.mtx.Unlock()
			}
			if err != nil {
				// io.EOF and io.ErrUnexpectedEOF end the stream. Closing the
				// producer ends it with an error; the decoder's own status
				// is reported through Wait.
				return
			}
		}
	}()
	return f
}

func (f *feeder) fail(err error) {
	f.mtx.Lock()
	f.err = err
	f.mtx.Unlock()
}

func (f *feeder) failed() error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.err
}

func (f *feeder) wait() (int, error) {
	<-f.done
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.played, f.err
}
