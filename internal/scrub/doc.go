// SPDX-License-Identifier: EPL-2.0

// Package scrub drives a batch of files through capture, fallback and the
// neural stage.
//
// Every job moves through
//
//	pending -> captured | fallback_used | failed
//	captured | fallback_used -> scrubbed | failed
//
// and owns two files next to its source: X_rerecord.wav while it runs and
// X_clean.wav when it is done. With the neural stage disabled the job ends
// in captured or fallback_used and the recording is renamed into place.
package scrub
