// SPDX-License-Identifier: EPL-2.0

package device

import (
	"fmt"
	"strings"

	"github.com/ik5/audscrub/audio"
)

type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// Info describes one endpoint as reported by the audio backend.
type Info struct {
	// ID is the backend's index for the device.
	ID                int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	DefaultInput      bool
	DefaultOutput     bool
}

func (i Info) channels(dir Direction) int {
	if dir == Output {
		return i.MaxOutputChannels
	}
	return i.MaxInputChannels
}

func (i Info) isDefault(dir Direction) bool {
	if dir == Output {
		return i.DefaultOutput
	}
	return i.DefaultInput
}

// CaptureStream delivers interleaved float32 frames recorded by a device.
type CaptureStream interface {
	// Read blocks until a block is available and copies it into dst,
	// returning the number of samples written. When the device dropped
	// samples since the previous read, the block is still returned together
	// with ErrInputOverflowed.
	Read(dst []float32) (int, error)
	Close() error
}

// PlaybackStream plays interleaved float32 frames. Write blocks while the
// device buffer is full.
type PlaybackStream interface {
	Write(samples []float32) error
	Close() error
}

// Opener opens streams by device name. An empty name selects the platform
// default. Names are resolved on every call.
type Opener interface {
	OpenCapture(name string, format audio.Format, blockFrames int) (CaptureStream, error)
	OpenPlayback(name string, format audio.Format, blockFrames int) (PlaybackStream, error)
}

type Lister interface {
	Devices() ([]Info, error)
}

// System is an audio backend that can both enumerate and open devices.
type System interface {
	Opener
	Lister
}

// Resolve picks the device called name for dir from infos.
//
// An empty name (or "default") selects the backend default. Otherwise an
// exact, case-insensitive name match wins; failing that, a single device
// whose name contains name is used. Devices without enough channels for dir
// are never selected.
func Resolve(infos []Info, name string, dir Direction, channels int) (Info, error) {
	want := strings.ToLower(strings.TrimSpace(name))

	if want == "" || want == "default" {
		for _, info := range infos {
			if info.isDefault(dir) {
				return checkChannels(info, dir, channels)
			}
		}
		return Info{}, fmt.Errorf("%w: no default %s device", ErrDeviceNotFound, dir)
	}

	var partial []Info
	for _, info := range infos {
		if info.channels(dir) == 0 {
			continue
		}
		got := strings.ToLower(info.Name)
		if got == want {
			return checkChannels(info, dir, channels)
		}
		if strings.Contains(got, want) {
			partial = append(partial, info)
		}
	}

	switch len(partial) {
	case 0:
		return Info{}, fmt.Errorf("%w: %s device %q", ErrDeviceNotFound, dir, name)
	case 1:
		return checkChannels(partial[0], dir, channels)
	default:
		names := make([]string, len(partial))
		for i, p := range partial {
			names[i] = p.Name
		}
		return Info{}, fmt.Errorf("%w: %q matches %s", ErrAmbiguousDevice, name, strings.Join(names, ", "))
	}
}

func checkChannels(info Info, dir Direction, channels int) (Info, error) {
	if info.channels(dir) < channels {
		return Info{}, fmt.Errorf("%w: %q has %d %s channels, need %d",
			ErrUnsupportedChannels, info.Name, info.channels(dir), dir, channels)
	}
	return info, nil
}
