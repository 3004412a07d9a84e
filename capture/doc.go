// SPDX-License-Identifier: EPL-2.0

// Package capture records a file by playing it through an audio loopback.
//
// A Capturer starts the decoder, opens the capture stream on the loopback
// device and a playback stream, waits SettleDelay, then reads BlockFrames
// sized blocks for as long as the decoder runs. After the decoder exits it
// reads DrainBlocks more blocks to pick up audio still in the device
// latency buffer. Every block is appended to a 24-bit WAV in read order.
//
// Input overflow is counted and otherwise ignored, so the recording may be
// shorter than the source. It is never longer.
package capture
