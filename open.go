// SPDX-License-Identifier: EPL-2.0

package audscrub

import (
	"fmt"
	"os"

	"github.com/ik5/audscrub/audio"
	"github.com/ik5/audscrub/formats/aiff"
	"github.com/ik5/audscrub/formats/mp3"
	"github.com/ik5/audscrub/formats/vorbis"
	"github.com/ik5/audscrub/formats/wav"
)

// DefaultRegistry returns a registry with every bundled decoder.
func DefaultRegistry() *audio.Registry {
	r := audio.NewRegistry()
	r.Register("wav", wav.Decoder{})
	r.Register("mp3", mp3.Decoder{})
	r.Register("ogg", vorbis.Decoder{})
	r.Register("oga", vorbis.Decoder{})
	r.Register("aiff", aiff.Decoder{})
	r.Register("aif", aiff.Decoder{})
	return r
}

// Open decodes path with the decoder registered for its extension.
// Closing the source closes the file.
func Open(path string) (audio.Source, error) {
	return OpenWith(DefaultRegistry(), path)
}

// OpenWith is Open with a caller-supplied registry.
func OpenWith(reg *audio.Registry, path string) (audio.Source, error) {
	dec, err := reg.Lookup(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	src, err := dec.Decode(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return src, nil
}

// Load decodes the whole file at path and converts it to sampleRate and
// channels.
func Load(path string, sampleRate, channels int) (*audio.Buffer, error) {
	src, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return audio.ReadAll(audio.Convert(src, sampleRate, channels))
}
