// SPDX-License-Identifier: EPL-2.0

package codec

import "errors"

var (
	// ErrInvalidBandwidth is returned for a value outside 0, 1.5, 3, 6, 12
	// and 24.
	ErrInvalidBandwidth = errors.New("invalid codec bandwidth")

	ErrDisabled = errors.New("codec stage is disabled")

	// ErrUnsupportedBandwidth is returned by a model that cannot run at a
	// valid bandwidth.
	ErrUnsupportedBandwidth = errors.New("bandwidth not supported by model")

	ErrBadModelOutput = errors.New("model returned an unexpected layout")
)
