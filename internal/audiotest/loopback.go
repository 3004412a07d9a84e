// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"sync"
	"time"

	"github.com/ik5/audscrub/audio"
	"github.com/ik5/audscrub/device"
)

// LoopbackName is the device name NewLoopback registers.
const LoopbackName = "Loopback Audio"

// Loopback is an in-memory loopback device: whatever is written to a
// playback stream comes back out of the capture stream, in order.
type Loopback struct {
	// DeviceList is what Devices reports and what names resolve against.
	DeviceList []device.Info

	OpenCaptureErr  error
	OpenPlaybackErr error

	// ReadErr is returned by every capture read after the first
	// ReadErrAfter reads.
	ReadErr      error
	ReadErrAfter int

	// Every OverflowEvery-th read drops OverflowDrop queued samples and
	// reports device.ErrInputOverflowed.
	OverflowEvery int
	OverflowDrop  int

	// ReadWait bounds how long a read waits for played samples before
	// returning an empty block.
	ReadWait time.Duration

	mtx   sync.Mutex
	queue []float32
	stats LoopbackStats
}

// LoopbackStats counts what the device saw.
type LoopbackStats struct {
	CaptureOpens   int
	CaptureCloses  int
	PlaybackOpens  int
	PlaybackCloses int
	Reads          int
	Overflows      int
	Played         int
	Dropped        int
}

var _ device.System = (*Loopback)(nil)

func NewLoopback() *Loopback {
	return &Loopback{
		DeviceList: []device.Info{{
			ID:                0,
			Name:              LoopbackName,
			MaxInputChannels:  2,
			MaxOutputChannels: 2,
			DefaultSampleRate: 44100,
			DefaultInput:      true,
			DefaultOutput:     true,
		}},
		ReadWait: 20 * time.Millisecond,
	}
}

func (l *Loopback) Stats() LoopbackStats {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.stats
}

func (l *Loopback) Devices() ([]device.Info, error) {
	return append([]device.Info(nil), l.DeviceList...), nil
}

func (l *Loopback) OpenCapture(name string, format audio.Format, _ int) (device.CaptureStream, error) {
	if _, err := device.Resolve(l.DeviceList, name, device.Input, format.Channels); err != nil {
		return nil, err
	}
	if l.OpenCaptureErr != nil {
		return nil, l.OpenCaptureErr
	}

	l.mtx.Lock()
	l.stats.CaptureOpens++
	l.mtx.Unlock()
	return &loopbackCapture{l: l, channels: format.Channels}, nil
}

func (l *Loopback) OpenPlayback(name string, format audio.Format, _ int) (device.PlaybackStream, error) {
	if _, err := device.Resolve(l.DeviceList, name, device.Output, format.Channels); err != nil {
		return nil, err
	}
	if l.OpenPlaybackErr != nil {
		return nil, l.OpenPlaybackErr
	}

	l.mtx.Lock()
	l.stats.PlaybackOpens++
	l.mtx.Unlock()
	return &loopbackPlayback{l: l}, nil
}

type loopbackCapture struct {
	l        *Loopback
	channels int
	closed   bool
}

func (c *loopbackCapture) Read(dst []float32) (int, error) {
	if c.closed {
		return 0, device.ErrStreamClosed
	}
	l := c.l

	l.mtx.Lock()
	defer l.mtx.Unlock()

	l.stats.Reads++
	if l.ReadErr != nil && l.stats.Reads > l.ReadErrAfter {
		return 0, l.ReadErr
	}

	deadline := time.Now().Add(l.ReadWait)
	for len(l.queue) == 0 && time.Now().Before(deadline) {
		l.mtx.Unlock()
		time.Sleep(time.Millisecond)
		l.mtx.Lock()
	}

	overflow := l.OverflowEvery > 0 && l.stats.Reads%l.OverflowEvery == 0
	if overflow {
		drop := min(l.OverflowDrop, len(l.queue))
		drop -= drop % c.channels
		l.queue = l.queue[drop:]
		l.stats.Dropped += drop
		l.stats.Overflows++
	}

	want := len(dst) - len(dst)%c.channels
	n := copy(dst[:want], l.queue)
	n -= n % c.channels
	l.queue = l.queue[n:]

	if overflow {
		return n, device.ErrInputOverflowed
	}
	return n, nil
}

func (c *loopbackCapture) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	c.l.mtx.Lock()
	c.l.stats.CaptureCloses++
	c.l.mtx.Unlock()
	return nil
}

type loopbackPlayback struct {
	l      *Loopback
	closed bool
}

func (p *loopbackPlayback) Write(samples []float32) error {
	if p.closed {
		return device.ErrStreamClosed
	}

	p.l.mtx.Lock()
	defer p.l.mtx.Unlock()

	p.l.queue = append(p.l.queue, samples...)
	p.l.stats.Played += len(samples)
	return nil
}

func (p *loopbackPlayback) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	p.l.mtx.Lock()
	p.l.stats.PlaybackCloses++
	p.l.mtx.Unlock()
	return nil
}
