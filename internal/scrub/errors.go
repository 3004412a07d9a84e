// SPDX-License-Identifier: EPL-2.0

package scrub

import "errors"

var (
	// ErrNoInputFiles is returned by Run when there is nothing to process.
	ErrNoInputFiles = errors.New("no input files")

	// ErrCapture wraps a loopback capture failure. The job recovers through
	// direct conversion.
	ErrCapture = errors.New("capture failed")

	// ErrFallback wraps a direct conversion failure. The job fails.
	ErrFallback = errors.New("direct conversion failed")

	// ErrScrub wraps a re-encoder failure. The captured audio is kept as
	// the output when possible.
	ErrScrub = errors.New("scrub failed")

	ErrInvalidTransition = errors.New("invalid job transition")
)
