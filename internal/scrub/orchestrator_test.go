// SPDX-License-Identifier: EPL-2.0

package scrub

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/ik5/audscrub/audio"
	"github.com/ik5/audscrub/capture"
	"github.com/ik5/audscrub/codec"
	"github.com/ik5/audscrub/decode"
	"github.com/ik5/audscrub/device"
	"github.com/ik5/audscrub/formats/wav"
	"github.com/ik5/audscrub/internal/audiotest"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func tone(frames int, freq float64) *audio.Buffer {
	return audiotest.Buffer(audiotest.NewSineSource(decode.SampleRate, decode.Channels, frames, freq))
}

// fakeCapturer writes its buffer as the capture, or fails.
type fakeCapturer struct {
	buf     *audio.Buffer
	err     error
	partial bool
	calls   []string
	onCall  func()
}

func (f *fakeCapturer) Capture(ctx context.Context, src, dst, deviceName string) (capture.Stats, error) {
	f.calls = append(f.calls, src)
	if f.onCall != nil {
		f.onCall()
	}
	if ctx.Err() != nil {
		return capture.Stats{}, ctx.Err()
	}
	if f.err != nil {
		if f.partial {
			_ = os.WriteFile(dst, []byte("RIFF"), 0o600)
		}
		return capture.Stats{Blocks: 1}, f.err
	}
	if err := wav.WriteFile(dst, f.buf, capture.BitDepth); err != nil {
		return capture.Stats{}, err
	}
	return capture.Stats{Blocks: 4, Frames: f.buf.Frames()}, nil
}

// fakeConverter writes its buffer as the direct conversion, or fails.
type fakeConverter struct {
	buf   *audio.Buffer
	err   error
	fail  map[string]bool
	calls int
}

func (f *fakeConverter) Convert(_ context.Context, src, dst string, sampleRate, channels int) error {
	f.calls++
	if f.err != nil || f.fail[src] {
		return errors.Join(f.err, errors.New("conversion refused"))
	}
	if sampleRate != decode.SampleRate || channels != decode.Channels {
		return errors.New("unexpected layout")
	}
	return wav.WriteFile(dst, f.buf, 24)
}

// fakeReencoder copies in to out, or fails.
type fakeReencoder struct {
	err   error
	calls int
	bw    codec.Bandwidth
}

func (f *fakeReencoder) Reencode(_ context.Context, in, out string, bw codec.Bandwidth) error {
	f.calls++
	f.bw = bw
	if f.err != nil {
		return f.err
	}
	b, err := wav.ReadFile(in)
	if err != nil {
		return err
	}
	return wav.WriteFile(out, b, codec.OutputBitDepth)
}

type recorder struct{ results []Result }

func (r *recorder) Observe(res Result) { r.results = append(r.results, res) }

func sourceIn(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "song.mp3")
	if err := os.WriteFile(path, []byte("ID3"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func mustRead(t *testing.T, path string) *audio.Buffer {
	t.Helper()
	b, err := wav.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return b
}

func TestProcess_CaptureAndScrub(t *testing.T) {
	t.Parallel()

	src := sourceIn(t, t.TempDir())
	capt := &fakeCapturer{buf: tone(4410, 440)}
	re := &fakeReencoder{}
	rec := &recorder{}
	o := New(capt, &fakeConverter{}, re, Options{Device: "Loopback", Bandwidth: 12, Logger: quiet, Observer: rec})

	res := o.Process(context.Background(), src)

	if res.Status != StatusScrubbed || !res.Scrubbed || res.Err != nil {
		t.Fatalf("Process() = %+v", res)
	}
	if res.FallbackUsed || res.Degraded || !res.OK() {
		t.Errorf("flags = %+v", res)
	}
	paths := PathsFor(src)
	if exists(paths.Capture) {
		t.Error("capture file left behind")
	}
	if !exists(paths.Final) || res.Output != paths.Final {
		t.Errorf("final output missing at %s", res.Output)
	}
	if re.bw != 12 {
		t.Errorf("reencoder bandwidth = %s", re.bw)
	}
	if res.Stats.Frames != 4410 {
		t.Errorf("Stats.Frames = %d", res.Stats.Frames)
	}
	if len(rec.results) != 1 || rec.results[0].ID != res.ID {
		t.Errorf("observer saw %d results", len(rec.results))
	}
}

func TestProcess_CaptureFailureUsesFallback(t *testing.T) {
	t.Parallel()

	src := sourceIn(t, t.TempDir())
	fallback := tone(2205, 330)
	captureErr := errors.New("device gone")
	conv := &fakeConverter{buf: fallback}
	o := New(&fakeCapturer{err: captureErr, partial: true}, conv, &fakeReencoder{}, Options{Logger: quiet})

	res := o.Process(context.Background(), src)

	if res.Status != StatusFallbackUsed || !res.FallbackUsed {
		t.Fatalf("Process() = %+v", res)
	}
	if !errors.Is(res.CaptureErr, ErrCapture) || !errors.Is(res.CaptureErr, captureErr) {
		t.Errorf("CaptureErr = %v", res.CaptureErr)
	}
	if conv.calls != 1 {
		t.Errorf("converter calls = %d", conv.calls)
	}

	want := stored(t, fallback)
	got := mustRead(t, res.Output)
	if !slices.Equal(got.Data, want.Data) {
		t.Error("output differs from direct conversion")
	}
}

func TestProcess_FallbackFailure(t *testing.T) {
	t.Parallel()

	src := sourceIn(t, t.TempDir())
	re := &fakeReencoder{}
	o := New(&fakeCapturer{err: errors.New("no device"), partial: true},
		&fakeConverter{err: errors.New("ffmpeg missing")}, re, Options{Bandwidth: 6, Logger: quiet})

	res := o.Process(context.Background(), src)

	if res.Status != StatusFailed || res.OK() {
		t.Fatalf("Process() = %+v", res)
	}
	if !errors.Is(res.Err, ErrFallback) {
		t.Errorf("Err = %v, want ErrFallback", res.Err)
	}
	if re.calls != 0 {
		t.Errorf("reencoder ran %d times after a failed job", re.calls)
	}
	paths := PathsFor(src)
	if exists(paths.Capture) || exists(paths.Final) {
		t.Error("failed job left files behind")
	}
}

func TestProcess_ScrubFailurePromotesCapture(t *testing.T) {
	t.Parallel()

	src := sourceIn(t, t.TempDir())
	captured := tone(4410, 880)
	scrubErr := errors.New("model crashed")
	o := New(&fakeCapturer{buf: captured}, &fakeConverter{}, &fakeReencoder{err: scrubErr},
		Options{Bandwidth: 24, Logger: quiet})

	res := o.Process(context.Background(), src)

	if res.Status != StatusFailed || !res.Degraded || !res.OK() {
		t.Fatalf("Process() = %+v", res)
	}
	if !errors.Is(res.ScrubErr, ErrScrub) || !errors.Is(res.Err, scrubErr) {
		t.Errorf("ScrubErr = %v, Err = %v", res.ScrubErr, res.Err)
	}
	if exists(PathsFor(src).Capture) {
		t.Error("capture file not promoted")
	}

	got := mustRead(t, res.Output)
	if !slices.Equal(got.Data, stored(t, captured).Data) {
		t.Error("output differs from the captured waveform")
	}
}

func TestProcess_ScrubFailureKeepsExistingOutput(t *testing.T) {
	t.Parallel()

	src := sourceIn(t, t.TempDir())
	paths := PathsFor(src)
	previous := []byte("previous run")
	if err := os.WriteFile(paths.Final, previous, 0o600); err != nil {
		t.Fatal(err)
	}

	o := New(&fakeCapturer{buf: tone(441, 440)}, &fakeConverter{}, &fakeReencoder{err: errors.New("boom")},
		Options{Bandwidth: 3, Logger: quiet})
	res := o.Process(context.Background(), src)

	if res.Status != StatusFailed || res.Degraded {
		t.Fatalf("Process() = %+v", res)
	}
	if !exists(paths.Capture) {
		t.Error("capture file removed")
	}
	data, err := os.ReadFile(paths.Final)
	if err != nil || !bytes.Equal(data, previous) {
		t.Errorf("existing output changed: %q, %v", data, err)
	}
}

func TestProcess_BitrateZeroSkipsCodec(t *testing.T) {
	t.Parallel()

	src := sourceIn(t, t.TempDir())
	captured := tone(4410, 440)
	re := &fakeReencoder{}
	o := New(&fakeCapturer{buf: captured}, &fakeConverter{}, re, Options{Bandwidth: codec.Disabled, Logger: quiet})

	res := o.Process(context.Background(), src)

	if res.Status != StatusCaptured || res.Scrubbed || res.Err != nil {
		t.Fatalf("Process() = %+v", res)
	}
	if re.calls != 0 {
		t.Errorf("reencoder calls = %d, want 0", re.calls)
	}
	if exists(PathsFor(src).Capture) {
		t.Error("capture file not promoted")
	}
	got := mustRead(t, res.Output)
	if got.Format.SampleRate != decode.SampleRate || !slices.Equal(got.Data, stored(t, captured).Data) {
		t.Error("output is not the captured waveform")
	}
}

func TestProcess_ContextCancelledDuringJob(t *testing.T) {
	t.Parallel()

	src := sourceIn(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	capt := &fakeCapturer{buf: tone(441, 440), onCall: cancel}

	res := New(capt, &fakeConverter{}, &fakeReencoder{}, Options{Bandwidth: 12, Logger: quiet}).Process(ctx, src)

	if res.Status != StatusScrubbed {
		t.Fatalf("job in flight did not finish: %+v", res)
	}
}

func TestRun_NoFiles(t *testing.T) {
	t.Parallel()

	o := New(&fakeCapturer{}, &fakeConverter{}, &fakeReencoder{}, Options{Logger: quiet})
	results, err := o.Run(context.Background(), nil)
	if !errors.Is(err, ErrNoInputFiles) || results != nil {
		t.Fatalf("Run() = %v, %v", results, err)
	}
}

func TestRun_FailureDoesNotStopBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var files []string
	for _, name := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			t.Fatal(err)
		}
		files = append(files, path)
	}

	capt := &fakeCapturer{err: errors.New("no device")}
	conv := &fakeConverter{buf: tone(441, 440), fail: map[string]bool{files[1]: true}}
	rec := &recorder{}
	o := New(capt, conv, &fakeReencoder{}, Options{Bandwidth: 6, Logger: quiet, Observer: rec})

	results, err := o.Run(context.Background(), files)
	if err != nil {
		t.Fatal(err)
	}

	want := []Status{StatusScrubbed, StatusFailed, StatusScrubbed}
	for i, r := range results {
		if r.Status != want[i] || r.Source != files[i] {
			t.Errorf("results[%d] = %s %s, want %s", i, r.Source, r.Status, want[i])
		}
	}
	if len(results) != 3 || len(rec.results) != 3 {
		t.Errorf("got %d results, observer saw %d", len(results), len(rec.results))
	}
}

func TestRun_CancelBetweenJobs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := []string{filepath.Join(dir, "a.mp3"), filepath.Join(dir, "b.mp3")}
	ctx, cancel := context.WithCancel(context.Background())
	capt := &fakeCapturer{buf: tone(441, 440), onCall: cancel}

	results, err := New(capt, &fakeConverter{}, &fakeReencoder{}, Options{Logger: quiet}).Run(ctx, files)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 || results[0].Status != StatusCaptured {
		t.Fatalf("results = %+v", results)
	}
	if len(capt.calls) != 1 {
		t.Errorf("capture calls = %d", len(capt.calls))
	}
}

// grid snaps samples to a bandwidth dependent grid, like a lossy codec.
type grid struct {
	bw    codec.Bandwidth
	calls int
}

func (g *grid) SampleRate() int { return 48000 }
func (g *grid) Channels() int   { return 2 }

func (g *grid) SetTargetBandwidth(bw codec.Bandwidth) error {
	g.bw = bw
	return nil
}

func (g *grid) Process(_ context.Context, in audio.Planar) (audio.Planar, error) {
	g.calls++
	levels := float64(g.bw) * 32
	out := make(audio.Planar, len(in))
	for c, plane := range in {
		out[c] = make([]float32, len(plane))
		for i, v := range plane {
			out[c][i] = float32(math.Round(float64(v)*levels) / levels)
		}
	}
	return out, nil
}

func writeSource(t *testing.T, dir string, frames int) string {
	t.Helper()
	path := filepath.Join(dir, "take.wav")
	if err := wav.WriteFile(path, tone(frames, 440), 16); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcess_LoopbackEndToEnd(t *testing.T) {
	t.Parallel()

	const frames = 22050
	src := writeSource(t, t.TempDir(), frames)

	native := decode.NewNative(nil)
	loop := audiotest.NewLoopback()
	model := &grid{}
	handle := codec.NewHandle(func(context.Context) (codec.Model, error) { return model, nil })

	o := New(
		capture.New(native, loop, capture.Options{Logger: quiet}),
		native,
		codec.NewReencoder(handle, quiet),
		Options{Device: audiotest.LoopbackName, Bandwidth: 12, Logger: quiet},
	)

	res := o.Process(context.Background(), src)
	if res.Status != StatusScrubbed || res.FallbackUsed {
		t.Fatalf("Process() = %+v", res)
	}
	if exists(PathsFor(src).Capture) {
		t.Error("capture file left behind")
	}

	out := mustRead(t, res.Output)
	if out.Format.SampleRate != 48000 || out.Format.Channels != 2 {
		t.Errorf("output format = %s", out.Format)
	}
	srcDur := time.Duration(frames) * time.Second / decode.SampleRate
	if out.Duration() > srcDur+time.Millisecond {
		t.Errorf("output lasts %s, source %s", out.Duration(), srcDur)
	}
	if st := loop.Stats(); st.CaptureOpens != 1 || st.CaptureCloses != 1 || st.PlaybackCloses != 1 {
		t.Errorf("device stats = %+v", st)
	}
	if model.calls != 1 {
		t.Errorf("model calls = %d", model.calls)
	}
}

func TestProcess_UnreachableDeviceFallsBack(t *testing.T) {
	t.Parallel()

	src := writeSource(t, t.TempDir(), 4410)
	native := decode.NewNative(nil)
	loop := audiotest.NewLoopback()

	o := New(
		capture.New(native, loop, capture.Options{Logger: quiet}),
		native,
		&fakeReencoder{},
		Options{Device: "No Such Device", Bandwidth: codec.Disabled, Logger: quiet},
	)

	res := o.Process(context.Background(), src)
	if res.Status != StatusFallbackUsed {
		t.Fatalf("Process() = %+v", res)
	}
	if !errors.Is(res.CaptureErr, device.ErrDeviceNotFound) {
		t.Errorf("CaptureErr = %v", res.CaptureErr)
	}

	direct := filepath.Join(t.TempDir(), "direct.wav")
	if err := native.Convert(context.Background(), src, direct, decode.SampleRate, decode.Channels); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(mustRead(t, res.Output).Data, mustRead(t, direct).Data) {
		t.Error("output differs from direct conversion")
	}
}

func TestProcess_RepeatableOutput(t *testing.T) {
	t.Parallel()

	captured := tone(8820, 523.25)
	model := &grid{}
	handle := codec.NewHandle(func(context.Context) (codec.Model, error) { return model, nil })
	o := New(&fakeCapturer{buf: captured}, &fakeConverter{}, codec.NewReencoder(handle, quiet),
		Options{Bandwidth: 6, Logger: quiet})

	var outputs [][]byte
	for range 2 {
		res := o.Process(context.Background(), sourceIn(t, t.TempDir()))
		if res.Status != StatusScrubbed {
			t.Fatalf("Process() = %+v", res)
		}
		data, err := os.ReadFile(res.Output)
		if err != nil {
			t.Fatal(err)
		}
		outputs = append(outputs, data)
	}

	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("two runs produced different files")
	}
	if handle.Loads() != 1 {
		t.Errorf("model loaded %d times", handle.Loads())
	}
}

// stored returns b as it reads back from a 24-bit file.
func stored(t *testing.T, b *audio.Buffer) *audio.Buffer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stored.wav")
	if err := wav.WriteFile(path, b, 24); err != nil {
		t.Fatal(err)
	}
	return mustRead(t, path)
}
