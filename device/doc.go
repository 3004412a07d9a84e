// SPDX-License-Identifier: EPL-2.0

// Package device abstracts the OS audio subsystem: capture and playback
// streams opened by device name, and device enumeration.
//
// The production backend lives in device/portaudio. Tests use the loopback
// fake in internal/audiotest.
//
// Overflow on a capture stream is not fatal. Read returns the block it has
// together with ErrInputOverflowed and the caller decides what to do:
//
//	n, err := stream.Read(block)
//	if errors.Is(err, device.ErrInputOverflowed) {
//	    overflows++
//	} else if err != nil {
//	    return err
//	}
package device
