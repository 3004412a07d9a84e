// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
)

var ErrProducerClosed = errors.New("audiotest: producer closed")

// Producer serves a fixed PCM payload the way a decode process would: it
// reports running until the payload has been read in full.
type Producer struct {
	data    []byte
	off     atomic.Int64
	closed  atomic.Bool
	waitErr error

	closeOnce sync.Once
}

// NewProducer encodes samples as little-endian float32.
func NewProducer(samples []float32) *Producer {
	data := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return &Producer{data: data}
}

// WithWaitError makes Wait report err once the payload is consumed.
func (p *Producer) WithWaitError(err error) *Producer {
	p.waitErr = err
	return p
}

func (p *Producer) Output() io.Reader { return (*producerReader)(p) }

func (p *Producer) Running() bool {
	return !p.closed.Load() && p.off.Load() < int64(len(p.data))
}

func (p *Producer) Wait() error {
	return p.waitErr
}

func (p *Producer) Close() error {
	p.closeOnce.Do(func() { p.closed.Store(true) })
	return nil
}

// Closed reports whether Close was called.
func (p *Producer) Closed() bool { return p.closed.Load() }

type producerReader Producer

func (r *producerReader) Read(b []byte) (int, error) {
	p := (*Producer)(r)
	if p.closed.Load() {
		return 0, ErrProducerClosed
	}
	off := p.off.Load()
	if off >= int64(len(p.data)) {
		return 0, io.EOF
	}
	n := copy(b, p.data[off:])
	p.off.Add(int64(n))
	return n, nil
}
