// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes AIFF files with github.com/go-audio/aiff.
//
// Integer PCM of 8, 16, 24 and 32 bits is scaled to float32 in [-1, 1).
// AIFF-C compressed variants are not handled.
package aiff
