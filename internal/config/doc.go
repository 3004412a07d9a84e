// SPDX-License-Identifier: EPL-2.0

// Package config loads the scrubber configuration.
//
// Settings come from three layers, later ones winning: the built-in
// defaults, an optional YAML file, and environment variables:
//
//	VIRTUAL_DEVICE     capture.device
//	AUDSCRUB_BITRATE   codec.bitrate
//	AUDSCRUB_FFMPEG    decoder.ffmpeg
//	AUDSCRUB_ENCODEC   codec.binary
//
// Command-line flags are applied on top by the caller.
//
// Example file:
//
//	capture:
//	  device: "BlackHole 2ch"
//	  settle_delay: 100ms
//	codec:
//	  bitrate: 12
//	decoder:
//	  backend: ffmpeg
//	input:
//	  extensions: [".mp3", ".ogg"]
//	logging:
//	  level: info
//	  format: json
package config
