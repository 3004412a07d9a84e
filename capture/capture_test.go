// SPDX-License-Identifier: EPL-2.0

package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ik5/audscrub/audio"
	"github.com/ik5/audscrub/decode"
	"github.com/ik5/audscrub/device"
	"github.com/ik5/audscrub/formats/wav"
	"github.com/ik5/audscrub/internal/audiotest"
)

type fakeStarter struct {
	producer *audiotest.Producer
	err      error
	calls    int
}

func (f *fakeStarter) Start(_ context.Context, _ string, sampleRate, channels int) (decode.Producer, error) {
	f.calls++
	if sampleRate != 44100 || channels != 2 {
		return nil, errors.New("unexpected layout")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.producer, nil
}

type failingPlayback struct {
	*audiotest.Loopback
}

func (f failingPlayback) OpenPlayback(name string, format audio.Format, frames int) (device.PlaybackStream, error) {
	s, err := f.Loopback.OpenPlayback(name, format, frames)
	if err != nil {
		return nil, err
	}
	return brokenStream{s}, nil
}

type brokenStream struct{ device.PlaybackStream }

func (brokenStream) Write([]float32) error { return errors.New("device unplugged") }

// chunkedProducer hands out its payload twelve bytes at a time, so reads
// end in the middle of frames.
type chunkedProducer struct {
	*audiotest.Producer
}

func (p chunkedProducer) Output() io.Reader {
	return &chunkReader{r: p.Producer.Output(), size: 12}
}

type chunkReader struct {
	r    io.Reader
	size int
}

func (c *chunkReader) Read(b []byte) (int, error) {
	if len(b) > c.size {
		b = b[:c.size]
	}
	return c.r.Read(b)
}

// recordingPlayback keeps a copy of every playback write.
type recordingPlayback struct {
	*audiotest.Loopback
	mtx    sync.Mutex
	writes [][]float32
}

func (r *recordingPlayback) OpenPlayback(name string, format audio.Format, frames int) (device.PlaybackStream, error) {
	s, err := r.Loopback.OpenPlayback(name, format, frames)
	if err != nil {
		return nil, err
	}
	return recordedStream{PlaybackStream: s, rec: r}, nil
}

type recordedStream struct {
	device.PlaybackStream
	rec *recordingPlayback
}

func (s recordedStream) Write(samples []float32) error {
	s.rec.mtx.Lock()
	s.rec.writes = append(s.rec.writes, append([]float32(nil), samples...))
	s.rec.mtx.Unlock()
	return s.PlaybackStream.Write(samples)
}

func newTestCapturer(starter decode.Starter, devices device.Opener) (*Capturer, *[]time.Duration) {
	var slept []time.Duration
	c := New(starter, devices, Options{})
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	return c, &slept
}

func toneSamples(frames int) []float32 {
	return audiotest.Buffer(audiotest.NewSineSource(44100, 2, frames, 440)).Data
}

func TestCapture_RecordsPlayedAudio(t *testing.T) {
	t.Parallel()

	dst := filepath.Join(t.TempDir(), "a_rerecord.wav")
	in := toneSamples(8000)
	loop := audiotest.NewLoopback()
	starter := &fakeStarter{producer: audiotest.NewProducer(in)}

	c, slept := newTestCapturer(starter, loop)
	stats, err := c.Capture(context.Background(), "a.mp3", dst, "")
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if len(*slept) != 1 || (*slept)[0] != SettleDelay {
		t.Errorf("settle sleeps = %v, want [%v]", *slept, SettleDelay)
	}
	if stats.DrainBlocks != DrainBlocks {
		t.Errorf("DrainBlocks = %d, want %d", stats.DrainBlocks, DrainBlocks)
	}
	if stats.Played != 8000 {
		t.Errorf("Played = %d, want 8000", stats.Played)
	}

	got, err := wav.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got.Format.BitDepth != 24 || got.Format.SampleRate != 44100 || got.Format.Channels != 2 {
		t.Fatalf("format = %v", got.Format)
	}
	if got.Frames() != stats.Frames {
		t.Errorf("file frames = %d, stats frames = %d", got.Frames(), stats.Frames)
	}
	if got.Frames() == 0 || got.Frames() > 8000 {
		t.Fatalf("captured %d frames, want 1..8000", got.Frames())
	}
	// Whatever arrived is a prefix of the source, in order.
	for i := range got.Data {
		if d := got.Data[i] - in[i]; d > 1e-6 || d < -1e-6 {
			t.Fatalf("sample %d = %v, want %v", i, got.Data[i], in[i])
		}
	}

	s := loop.Stats()
	if s.CaptureCloses != 1 || s.PlaybackCloses != 1 {
		t.Errorf("streams not closed: %+v", s)
	}
	if !starter.producer.Closed() {
		t.Error("producer not closed")
	}
}

func TestCapture_OverflowDropsSamples(t *testing.T) {
	t.Parallel()

	dst := filepath.Join(t.TempDir(), "a_rerecord.wav")
	loop := audiotest.NewLoopback()
	loop.OverflowEvery = 2
	loop.OverflowDrop = 256

	c, _ := newTestCapturer(&fakeStarter{producer: audiotest.NewProducer(toneSamples(20000))}, loop)
	stats, err := c.Capture(context.Background(), "a.mp3", dst, audiotest.LoopbackName)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	s := loop.Stats()
	if stats.Overflows != s.Overflows || stats.Overflows == 0 {
		t.Fatalf("Overflows = %d, device saw %d", stats.Overflows, s.Overflows)
	}
	if stats.Frames > 20000-s.Dropped/2 {
		t.Errorf("Frames = %d exceeds played minus dropped", stats.Frames)
	}
}

func TestCapture_DeviceMissing(t *testing.T) {
	t.Parallel()

	dst := filepath.Join(t.TempDir(), "a_rerecord.wav")
	starter := &fakeStarter{producer: audiotest.NewProducer(toneSamples(100))}

	c, _ := newTestCapturer(starter, audiotest.NewLoopback())
	_, err := c.Capture(context.Background(), "a.mp3", dst, "No Such Device")
	if !errors.Is(err, device.ErrDeviceNotFound) {
		t.Fatalf("Capture() error = %v, want %v", err, device.ErrDeviceNotFound)
	}
	if !starter.producer.Closed() {
		t.Error("producer left running")
	}
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("capture file created: %v", err)
	}
}

func TestCapture_StartFailure(t *testing.T) {
	t.Parallel()

	loop := audiotest.NewLoopback()
	c, _ := newTestCapturer(&fakeStarter{err: decode.ErrInputNotFound}, loop)

	_, err := c.Capture(context.Background(), "a.mp3", filepath.Join(t.TempDir(), "x.wav"), "")
	if !errors.Is(err, decode.ErrInputNotFound) {
		t.Fatalf("Capture() error = %v", err)
	}
	if s := loop.Stats(); s.CaptureOpens != 0 {
		t.Errorf("device opened after start failure: %+v", s)
	}
}

func TestCapture_ReadErrorClosesEverything(t *testing.T) {
	t.Parallel()

	loop := audiotest.NewLoopback()
	loop.ReadErr = errors.New("device busy")
	loop.ReadErrAfter = 2
	starter := &fakeStarter{producer: audiotest.NewProducer(toneSamples(50000))}

	c, _ := newTestCapturer(starter, loop)
	_, err := c.Capture(context.Background(), "a.mp3", filepath.Join(t.TempDir(), "x.wav"), "")
	if !errors.Is(err, loop.ReadErr) {
		t.Fatalf("Capture() error = %v", err)
	}

	s := loop.Stats()
	if s.CaptureCloses != 1 || s.PlaybackCloses != 1 {
		t.Errorf("streams not closed: %+v", s)
	}
	if !starter.producer.Closed() {
		t.Error("producer not closed")
	}
}

func TestCapture_PlaybackFailure(t *testing.T) {
	t.Parallel()

	loop := audiotest.NewLoopback()
	starter := &fakeStarter{producer: audiotest.NewProducer(toneSamples(50000))}

	c, _ := newTestCapturer(starter, failingPlayback{loop})
	_, err := c.Capture(context.Background(), "a.mp3", filepath.Join(t.TempDir(), "x.wav"), "")
	if err == nil {
		t.Fatal("Capture() succeeded with a broken playback stream")
	}
}

func TestCapture_DecoderFailure(t *testing.T) {
	t.Parallel()

	decErr := errors.New("corrupt frame")
	starter := &fakeStarter{producer: audiotest.NewProducer(toneSamples(100)).WithWaitError(decErr)}

	c, _ := newTestCapturer(starter, audiotest.NewLoopback())
	_, err := c.Capture(context.Background(), "a.mp3", filepath.Join(t.TempDir(), "x.wav"), "")
	if !errors.Is(err, decErr) {
		t.Fatalf("Capture() error = %v, want %v", err, decErr)
	}
}

func TestCapture_ShortReadsPlayWholeBlocks(t *testing.T) {
	t.Parallel()

	const frames = 5000
	in := toneSamples(frames)
	devices := &recordingPlayback{Loopback: audiotest.NewLoopback()}
	c, _ := newTestCapturer(starterFunc(func() decode.Producer {
		return chunkedProducer{audiotest.NewProducer(in)}
	}), devices)

	stats, err := c.Capture(context.Background(), "a.mp3", filepath.Join(t.TempDir(), "a.wav"), "")
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if stats.Played != frames {
		t.Errorf("Played = %d, want %d", stats.Played, frames)
	}

	block := BlockFrames * Format.Channels
	var played []float32
	for i, w := range devices.writes {
		if len(w)%Format.Channels != 0 {
			t.Fatalf("write %d has %d samples, splitting a frame", i, len(w))
		}
		if i < len(devices.writes)-1 && len(w) != block {
			t.Fatalf("write %d has %d samples, want a full block of %d", i, len(w), block)
		}
		played = append(played, w...)
	}
	if !slices.Equal(played, in) {
		t.Fatalf("played %d samples, not the source in order", len(played))
	}
}

type starterFunc func() decode.Producer

func (f starterFunc) Start(context.Context, string, int, int) (decode.Producer, error) {
	return f(), nil
}
