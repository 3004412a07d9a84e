// SPDX-License-Identifier: EPL-2.0

package codec

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Bandwidth is the codec target bandwidth in kbps. Zero disables the neural
// stage.
type Bandwidth float64

const Disabled Bandwidth = 0

// Bandwidths lists the enabled values in ascending order.
var Bandwidths = []Bandwidth{1.5, 3, 6, 12, 24}

// ParseBandwidth accepts "0", "off", "none" and the enabled values, with or
// without a "kbps" suffix.
func ParseBandwidth(s string) (Bandwidth, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSpace(strings.TrimSuffix(v, "kbps"))

	switch v {
	case "off", "none", "":
		return Disabled, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBandwidth, s)
	}
	b := Bandwidth(f)
	if !b.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBandwidth, s)
	}
	return b, nil
}

// Valid reports whether b is Disabled or one of Bandwidths.
func (b Bandwidth) Valid() bool {
	return b == Disabled || slices.Contains(Bandwidths, b)
}

func (b Bandwidth) Enabled() bool { return b != Disabled }

func (b Bandwidth) String() string {
	return strconv.FormatFloat(float64(b), 'f', -1, 64)
}

// Set implements flag.Value.
func (b *Bandwidth) Set(s string) error {
	v, err := ParseBandwidth(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}
