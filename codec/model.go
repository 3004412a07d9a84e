// SPDX-License-Identifier: EPL-2.0

package codec

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ik5/audscrub/audio"
)

// Model is a neural audio codec with a fixed native layout.
type Model interface {
	SampleRate() int
	Channels() int
	// SetTargetBandwidth changes a model-wide setting. It must be called
	// right before Process, under the same Handle lock.
	SetTargetBandwidth(bw Bandwidth) error
	// Process encodes and immediately decodes the whole waveform, given
	// channels-first at the native layout.
	Process(ctx context.Context, in audio.Planar) (audio.Planar, error)
}

// Loader builds a Model. It may be slow.
type Loader func(ctx context.Context) (Model, error)

// Handle owns the process-wide model. The model is loaded on first use; a
// failed load is retried by the next caller.
type Handle struct {
	load Loader

	mtx   sync.Mutex
	model Model
	loads int
}

func NewHandle(load Loader) *Handle {
	return &Handle{load: load}
}

// With runs fn with exclusive access to the model, loading it if needed.
func (h *Handle) With(ctx context.Context, fn func(Model) error) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.model == nil {
		h.loads++
		m, err := h.load(ctx)
		if err != nil {
			return fmt.Errorf("loading codec model: %w", err)
		}
		h.model = m
	}
	return fn(h.model)
}

// Loads reports how many times the loader has been called.
func (h *Handle) Loads() int {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.loads
}

// Close releases the model if it holds resources.
func (h *Handle) Close() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	c, ok := h.model.(io.Closer)
	h.model = nil
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}
