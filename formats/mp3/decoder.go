// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"errors"
	"fmt"
	"io"
	"os"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/ik5/audscrub/audio"
)

// ErrNotMP3File is returned when go-mp3 cannot find a valid frame header.
var ErrNotMP3File = errors.New("not an MP3 file")

// go-mp3 always produces 16-bit little-endian stereo.
const (
	channels      = 2
	bytesPerFrame = channels * 2
)

// pcmReader is the part of gomp3.Decoder the source needs; tests swap it.
type pcmReader interface {
	Read([]byte) (int, error)
	SampleRate() int
}

type source struct {
	dec        pcmReader
	closer     io.Closer
	sampleRate int
	buf        []byte
	// carry holds bytes of an incomplete frame from the previous read.
	carry []byte
	eof   bool
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return channels }
func (s *source) BufSize() int    { return cap(s.buf) / 2 }

func (s *source) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

func (s *source) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if len(dst)%channels != 0 {
		return 0, audio.ErrInvalidDstSize
	}
	if s.eof && len(s.carry) == 0 {
		return 0, io.EOF
	}

	want := len(dst) * 2
	if cap(s.buf) < want {
		s.buf = make([]byte, want)
	}
	s.buf = s.buf[:want]

	have := copy(s.buf, s.carry)
	s.carry = s.carry[:0]

	for !s.eof && have < want {
		n, err := s.dec.Read(s.buf[have:])
		have += n
		if errors.Is(err, io.EOF) {
			s.eof = true
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%w", err)
		}
		if n == 0 {
			break
		}
	}

	whole := have - have%bytesPerFrame
	s.carry = append(s.carry, s.buf[whole:have]...)
	if s.eof {
		// A trailing partial frame is dropped.
		s.carry = s.carry[:0]
	}

	n := whole / 2
	for i := range n {
		v := int16(uint16(s.buf[2*i]) | uint16(s.buf[2*i+1])<<8)
		dst[i] = float32(v) / 32768.0
	}

	if s.eof {
		return n, io.EOF
	}
	return n, nil
}

type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotMP3File, err)
	}

	src := &source{
		dec:        dec,
		sampleRate: dec.SampleRate(),
		buf:        make([]byte, 8192),
	}
	if c, ok := r.(io.Closer); ok {
		src.closer = c
	}
	return src, nil
}

// Open decodes the MP3 file at path. Closing the returned source closes the
// file.
func Open(path string) (audio.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	src, err := Decoder{}.Decode(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return src, nil
}
