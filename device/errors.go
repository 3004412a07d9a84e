// SPDX-License-Identifier: EPL-2.0

package device

import "errors"

var (
	ErrDeviceNotFound = errors.New("audio device not found")

	// ErrAmbiguousDevice is returned when a partial name matches more than
	// one device.
	ErrAmbiguousDevice = errors.New("audio device name is ambiguous")

	ErrUnsupportedChannels = errors.New("device does not support the channel count")

	// ErrInputOverflowed reports that the device dropped input samples
	// before they could be read. The samples returned with it are valid.
	ErrInputOverflowed = errors.New("input overflowed")

	ErrStreamClosed = errors.New("stream is closed")
)
