// SPDX-License-Identifier: EPL-2.0

// Package vorbis decodes Ogg Vorbis files with github.com/jfreymuth/oggvorbis.
// Samples arrive as float32 already, so no scaling is applied.
package vorbis
