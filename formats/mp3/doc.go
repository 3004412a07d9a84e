// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MP3 files in-process with github.com/hajimehoshi/go-mp3.
//
// The decoder always yields 16-bit stereo, so mono files come out with the
// channel duplicated. It backs the native decode path, which is used when no
// ffmpeg binary is available.
package mp3
