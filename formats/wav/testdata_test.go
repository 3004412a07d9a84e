// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/ik5/audscrub/audio"
)

func sineBuffer(rate, channels, frames int) *audio.Buffer {
	data := make([]float32, frames*channels)
	for f := range frames {
		v := float32(0.8 * math.Sin(2*math.Pi*440*float64(f)/float64(rate)))
		for c := range channels {
			data[f*channels+c] = v
		}
	}
	return &audio.Buffer{
		Format: audio.Format{SampleRate: rate, Channels: channels, BitDepth: 32, Float: true},
		Data:   data,
	}
}

func writeTemp(t *testing.T, b *audio.Buffer, depth int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := WriteFile(path, b, depth); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
