// SPDX-License-Identifier: EPL-2.0

package codec

import (
	"errors"
	"flag"
	"testing"
)

func TestParseBandwidth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Bandwidth
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "off", want: 0},
		{in: "1.5", want: 1.5},
		{in: "3", want: 3},
		{in: "6.0", want: 6},
		{in: " 12kbps ", want: 12},
		{in: "24", want: 24},
		{in: "48", wantErr: true},
		{in: "-3", wantErr: true},
		{in: "loud", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseBandwidth(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidBandwidth) {
				t.Errorf("ParseBandwidth(%q) error = %v, want %v", tt.in, err, ErrInvalidBandwidth)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseBandwidth(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestBandwidth_String(t *testing.T) {
	t.Parallel()

	if got := Bandwidth(1.5).String(); got != "1.5" {
		t.Errorf("String() = %q", got)
	}
	if got := Bandwidth(24).String(); got != "24" {
		t.Errorf("String() = %q", got)
	}
}

func TestBandwidth_FlagValue(t *testing.T) {
	t.Parallel()

	var bw Bandwidth = 12
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&bw, "bitrate", "")

	if err := fs.Parse([]string{"-bitrate", "3"}); err != nil {
		t.Fatal(err)
	}
	if bw != 3 {
		t.Errorf("bw = %v, want 3", bw)
	}
}
