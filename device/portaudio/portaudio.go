// SPDX-License-Identifier: EPL-2.0

// Package portaudio binds the device interfaces to PortAudio through
// github.com/gordonklaus/portaudio.
package portaudio

import (
	"errors"
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/ik5/audscrub/audio"
	"github.com/ik5/audscrub/device"
)

// System is a PortAudio session. It must be closed to release the library.
type System struct {
	mtx    sync.Mutex
	closed bool
}

var _ device.System = (*System)(nil)

// Open initializes PortAudio.
func Open() (*System, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	return &System{}, nil
}

func (s *System) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

func (s *System) Devices() ([]device.Info, error) {
	infos, _, err := s.devices()
	return infos, err
}

// devices returns the backend list and the matching device.Info values, in
// the same order.
func (s *System) devices() ([]device.Info, []*pa.DeviceInfo, error) {
	raw, err := pa.Devices()
	if err != nil {
		return nil, nil, fmt.Errorf("listing devices: %w", err)
	}

	// A missing default is not an error; the lookup just fails later.
	defIn, _ := pa.DefaultInputDevice()
	defOut, _ := pa.DefaultOutputDevice()

	infos := make([]device.Info, len(raw))
	for i, d := range raw {
		info := device.Info{
			ID:                i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			DefaultInput:      sameDevice(d, defIn),
			DefaultOutput:     sameDevice(d, defOut),
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		infos[i] = info
	}
	return infos, raw, nil
}

func sameDevice(a, b *pa.DeviceInfo) bool {
	if a == nil || b == nil {
		return false
	}
	if a == b {
		return true
	}
	if a.Name != b.Name {
		return false
	}
	if a.HostApi == nil || b.HostApi == nil {
		return a.HostApi == b.HostApi
	}
	return a.HostApi.Name == b.HostApi.Name
}

func (s *System) resolve(name string, dir device.Direction, channels int) (*pa.DeviceInfo, error) {
	infos, raw, err := s.devices()
	if err != nil {
		return nil, err
	}
	info, err := device.Resolve(infos, name, dir, channels)
	if err != nil {
		return nil, err
	}
	return raw[info.ID], nil
}

func (s *System) OpenCapture(name string, format audio.Format, blockFrames int) (device.CaptureStream, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	dev, err := s.resolve(name, device.Input, format.Channels)
	if err != nil {
		return nil, err
	}

	buf := make([]float32, blockFrames*format.Channels)
	stream, err := pa.OpenStream(pa.StreamParameters{
		Input: pa.StreamDeviceParameters{
			Device:   dev,
			Channels: format.Channels,
			Latency:  dev.DefaultHighInputLatency,
		},
		SampleRate:      float64(format.SampleRate),
		FramesPerBuffer: blockFrames,
	}, buf)
	if err != nil {
		return nil, fmt.Errorf("opening capture on %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("starting capture on %q: %w", dev.Name, err)
	}

	return &captureStream{stream: stream, buf: buf}, nil
}

func (s *System) OpenPlayback(name string, format audio.Format, blockFrames int) (device.PlaybackStream, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	dev, err := s.resolve(name, device.Output, format.Channels)
	if err != nil {
		return nil, err
	}

	buf := make([]float32, blockFrames*format.Channels)
	stream, err := pa.OpenStream(pa.StreamParameters{
		Output: pa.StreamDeviceParameters{
			Device:   dev,
			Channels: format.Channels,
			Latency:  dev.DefaultHighOutputLatency,
		},
		SampleRate:      float64(format.SampleRate),
		FramesPerBuffer: blockFrames,
	}, buf)
	if err != nil {
		return nil, fmt.Errorf("opening playback on %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("starting playback on %q: %w", dev.Name, err)
	}

	return &playbackStream{stream: stream, buf: buf}, nil
}

// paStream is the part of *pa.Stream the wrappers use.
type paStream interface {
	Read() error
	Write() error
	Stop() error
	Close() error
}

type captureStream struct {
	stream paStream
	buf    []float32
	closed bool
}

func (c *captureStream) Read(dst []float32) (int, error) {
	if c.closed {
		return 0, device.ErrStreamClosed
	}

	err := c.stream.Read()
	if err != nil && !errors.Is(err, pa.InputOverflowed) {
		return 0, fmt.Errorf("%w", err)
	}

	n := copy(dst, c.buf)
	if err != nil {
		return n, device.ErrInputOverflowed
	}
	return n, nil
}

func (c *captureStream) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return closeStream(c.stream)
}

type playbackStream struct {
	stream paStream
	buf    []float32
	// fill is the number of samples waiting in buf.
	fill   int
	closed bool
}

// Write plays samples in device-buffer sized chunks. A partial chunk waits in
// the buffer for the next Write; Close pads and plays it.
func (p *playbackStream) Write(samples []float32) error {
	if p.closed {
		return device.ErrStreamClosed
	}

	for len(samples) > 0 {
		n := copy(p.buf[p.fill:], samples)
		p.fill += n
		samples = samples[n:]

		if p.fill < len(p.buf) {
			return nil
		}
		if err := p.flush(); err != nil {
			return err
		}
	}
	return nil
}

func (p *playbackStream) flush() error {
	p.fill = 0
	// Underflow only means the device ran dry for a moment.
	if err := p.stream.Write(); err != nil && !errors.Is(err, pa.OutputUnderflowed) {
		return fmt.Errorf("%w", err)
	}
	return nil
}

func (p *playbackStream) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var flushErr error
	if p.fill > 0 {
		clear(p.buf[p.fill:])
		flushErr = p.flush()
	}
	if err := closeStream(p.stream); err != nil {
		return err
	}
	return flushErr
}

func closeStream(s paStream) error {
	stopErr := s.Stop()
	closeErr := s.Close()
	if err := errors.Join(stopErr, closeErr); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}
