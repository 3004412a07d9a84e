// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/ik5/audscrub/audio"
	"github.com/ik5/audscrub/utils"
)

// Writer appends interleaved float32 frames to an integer PCM WAV stream.
// The RIFF sizes are patched on Close, so the destination must be seekable.
type Writer struct {
	enc    *gowav.Encoder
	file   io.Closer
	format audio.Format
	intBuf *goaudio.IntBuffer
	frames int
	closed bool
}

// NewWriter starts a WAV stream on ws. format.BitDepth must be 16, 24 or 32.
func NewWriter(ws io.WriteSeeker, format audio.Format) (*Writer, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	switch format.BitDepth {
	case 16, 24, 32:
	default:
		return nil, ErrUnsupportedBitDepth
	}

	return &Writer{
		enc:    gowav.NewEncoder(ws, format.SampleRate, format.BitDepth, format.Channels, formatPCM),
		format: format,
		intBuf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
			SourceBitDepth: format.BitDepth,
		},
	}, nil
}

// Create truncates or creates path and returns a Writer that owns the file.
func Create(path string, format audio.Format) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	w, err := NewWriter(f, format)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	w.file = f
	return w, nil
}

func (w *Writer) Format() audio.Format { return w.format }

// Frames is the number of frames written so far.
func (w *Writer) Frames() int { return w.frames }

// Write appends interleaved samples. len(samples) must be a whole number of
// frames.
func (w *Writer) Write(samples []float32) error {
	if w.closed {
		return ErrWriterClosed
	}
	if len(samples)%w.format.Channels != 0 {
		return audio.ErrInvalidDstSize
	}
	if len(samples) == 0 {
		return nil
	}

	if cap(w.intBuf.Data) < len(samples) {
		w.intBuf.Data = make([]int, len(samples))
	}
	w.intBuf.Data = w.intBuf.Data[:len(samples)]
	for i, s := range samples {
		w.intBuf.Data[i] = utils.FloatToPCM(s, w.format.BitDepth)
	}

	if err := w.enc.Write(w.intBuf); err != nil {
		return fmt.Errorf("%w", err)
	}
	w.frames += len(samples) / w.format.Channels
	return nil
}

// WriteBuffer appends b after checking it matches the writer's layout.
// A mismatch is a caller bug and nothing is written.
func (w *Writer) WriteBuffer(b *audio.Buffer) error {
	if !w.format.SameLayout(b.Format) {
		return fmt.Errorf("%w: got %s, want %s", audio.ErrFormatMismatch, b.Format, w.format)
	}
	return w.Write(b.Data)
}

// Close finalizes the header and closes the underlying file when the writer
// owns it. Calling Close twice is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var err error
	if w.frames == 0 {
		// The encoder emits its header on first write only.
		w.intBuf.Data = w.intBuf.Data[:0]
		err = w.enc.Write(w.intBuf)
	}
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// WriteFile stores b at path with the given integer bit depth. The data goes
// to a sibling temporary file first and is renamed into place, so a failed
// write never leaves a truncated path behind.
func WriteFile(path string, b *audio.Buffer, bitDepth int) (err error) {
	format := b.Format
	format.BitDepth = bitDepth
	format.Float = false

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".part-*")
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	w, err := NewWriter(tmp, format)
	if err != nil {
		_ = tmp.Close()
		return err
	}
	w.file = tmp

	if err := w.Write(b.Data); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}
