// SPDX-License-Identifier: EPL-2.0

// Package audscrub launders compressed audio through a loopback recording
// and a neural codec round trip.
//
// The root package only carries the file-level helpers shared by the
// pipeline stages. The stages themselves live in subpackages:
//
//   - decode: ffmpeg (or in-process) decoding to raw float32 PCM, and the
//     direct fallback conversion
//   - device, device/portaudio: capture and playback streams
//   - capture: the loopback capture loop
//   - codec, codec/encodec: the neural re-encoder
//   - internal/scrub: the batch orchestrator
//
// # Opening Files
//
// Open picks a decoder from the file extension:
//
//	src, err := audscrub.Open("song.mp3")
//	defer src.Close()
//
// Load additionally converts the whole file to a target layout:
//
//	buf, err := audscrub.Load("song.ogg", 44100, 2)
//
// # Supported Formats
//
//   - WAV (integer PCM, 8/16/24/32-bit) via formats/wav
//   - MP3 via formats/mp3
//   - Ogg Vorbis via formats/vorbis
//   - AIFF (integer PCM) via formats/aiff
package audscrub
