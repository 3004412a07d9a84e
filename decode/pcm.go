// SPDX-License-Identifier: EPL-2.0

package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// PCMReader turns a raw little-endian float32 byte stream into samples.
type PCMReader struct {
	r     io.Reader
	buf   []byte
	carry int
}

func NewPCMReader(r io.Reader) *PCMReader {
	return &PCMReader{r: r}
}

// Read fills dst with as many whole samples as one read of the underlying
// stream yields. It returns io.EOF once the stream ends; a trailing partial
// sample is dropped.
func (p *PCMReader) Read(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	want := len(dst) * 4
	if cap(p.buf) < want {
		buf := make([]byte, want)
		copy(buf, p.buf[:p.carry])
		p.buf = buf
	}
	p.buf = p.buf[:want]

	n, err := p.r.Read(p.buf[p.carry:])
	have := p.carry + n

	samples := have / 4
	for i := range samples {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(p.buf[i*4:]))
	}
	p.carry = copy(p.buf, p.buf[samples*4:have])

	if errors.Is(err, io.EOF) {
		p.carry = 0
		return samples, io.EOF
	}
	if err != nil {
		return samples, fmt.Errorf("%w", err)
	}
	return samples, nil
}

// ReadFull reads exactly len(dst) samples, like io.ReadFull. A stream that
// ends early returns the samples read with io.ErrUnexpectedEOF; an exhausted
// stream returns 0 and io.EOF.
func (p *PCMReader) ReadFull(dst []float32) (int, error) {
	n := 0
	for n < len(dst) {
		m, err := p.Read(dst[n:])
		n += m
		if errors.Is(err, io.EOF) {
			switch {
			case n == len(dst):
				return n, nil
			case n > 0:
				return n, io.ErrUnexpectedEOF
			}
			return 0, io.EOF
		}
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// PutFloat32 encodes src into dst as little-endian float32. dst must hold
// 4*len(src) bytes.
func PutFloat32(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}
