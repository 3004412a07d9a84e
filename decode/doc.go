// SPDX-License-Identifier: EPL-2.0

// Package decode turns compressed input files into raw PCM.
//
// Two capabilities are exposed, each with an ffmpeg-backed and an
// in-process implementation:
//
//   - Starter: a running Producer streaming headerless little-endian
//     float32 PCM, used to feed the loopback playback
//   - Converter: a direct conversion to a 24-bit PCM WAV file, used as the
//     fallback when loopback capture fails
//
// The ffmpeg decode command is
//
//	ffmpeg -hide_banner -nostdin -loglevel error -y -i IN -vn -f f32le -ac 2 -ar 44100 pipe:1
//
// and the conversion command is
//
//	ffmpeg -hide_banner -nostdin -y -i IN -vn -ar 44100 -ac 2 -c:a pcm_s24le OUT
//
// Process failures come back as *CommandError with the command log.
package decode
