// SPDX-License-Identifier: EPL-2.0

// Command audscrub plays compressed audio files through a loopback device,
// records them back and runs the recording through a neural codec.
//
//	audscrub [flags] [files...]
//
// Without file arguments every file in the input directory with a configured
// extension is processed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/ik5/audscrub/audio"
	"github.com/ik5/audscrub/capture"
	"github.com/ik5/audscrub/codec"
	"github.com/ik5/audscrub/codec/encodec"
	"github.com/ik5/audscrub/decode"
	"github.com/ik5/audscrub/device"
	"github.com/ik5/audscrub/device/portaudio"
	"github.com/ik5/audscrub/internal/config"
	"github.com/ik5/audscrub/internal/metrics"
	"github.com/ik5/audscrub/internal/scrub"
)

// audioSystem is a device backend that must be released at exit.
type audioSystem interface {
	device.System
	io.Closer
}

type env struct {
	stdout, stderr io.Writer
	openDevices    func() (audioSystem, error)
}

func main() {
	ctx, stop := notifyContext(context.Background())
	code := run(ctx, os.Args[1:], env{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		openDevices: func() (audioSystem, error) { return portaudio.Open() },
	})
	stop()
	os.Exit(code)
}

// notifyContext is cancelled by the first SIGINT or SIGTERM. The batch then
// stops at the next job boundary; a second signal gets the default handling
// and kills the process.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

type flags struct {
	config         string
	device         string
	playbackDevice string
	bitrate        codec.Bandwidth
	decoder        string
	listDevices    bool
	logLevel       string
	logFormat      string
	metricsFile    string
}

func parseFlags(args []string, stderr io.Writer) (*flags, *flag.FlagSet, error) {
	f := &flags{}
	fs := flag.NewFlagSet("audscrub", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: audscrub [flags] [files...]")
		fs.PrintDefaults()
	}

	fs.StringVar(&f.config, "config", "", "path to a YAML config file")
	fs.StringVar(&f.device, "device", "", "capture (loopback) device name")
	fs.StringVar(&f.playbackDevice, "playback-device", "", "playback device name")
	fs.Var(&f.bitrate, "bitrate", "codec bandwidth in kbps: 0 (off), 1.5, 3, 6, 12 or 24")
	fs.StringVar(&f.decoder, "decoder", "", "decoder backend: ffmpeg or native")
	fs.BoolVar(&f.listDevices, "list-devices", false, "list audio devices and exit")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: text or json")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this file at exit")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs, nil
}

// apply copies the flags that were set on the command line over cfg.
func (f *flags) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "device":
			cfg.Capture.Device = f.device
		case "playback-device":
			cfg.Capture.PlaybackDevice = f.playbackDevice
		case "bitrate":
			cfg.Codec.SetBitrate(f.bitrate)
		case "decoder":
			cfg.Decoder.Backend = f.decoder
		case "log-level":
			cfg.Logging.Level = f.logLevel
		case "log-format":
			cfg.Logging.Format = f.logFormat
		case "metrics-file":
			cfg.Metrics.File = f.metricsFile
		}
	})
}

func run(ctx context.Context, args []string, e env) int {
	f, fs, err := parseFlags(args, e.stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	cfg, err := config.Read(f.config)
	if err != nil {
		fmt.Fprintf(e.stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	f.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(e.stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	logger, closeLog := initLogger(cfg.Logging, e.stdout, e.stderr)
	defer closeLog()

	if f.listDevices {
		return listDevices(e, logger)
	}

	files, err := scrub.Discover(cfg.Input.Dir, fs.Args(), cfg.Input.Extensions)
	if err != nil {
		logger.Error("Failed to find input files", slog.Any("error", err))
		return 1
	}
	if len(files) == 0 {
		logger.Error("No input files",
			slog.String("dir", cfg.Input.Dir),
			slog.Any("extensions", cfg.Input.Extensions))
		return 1
	}

	devices, err := e.openDevices()
	if err != nil {
		logger.Warn("Audio devices unavailable, every file will be converted directly",
			slog.Any("error", err))
		devices = unavailable{err: err}
	}
	defer func() {
		if err := devices.Close(); err != nil {
			logger.Warn("Failed to release audio devices", slog.Any("error", err))
		}
	}()

	var dec interface {
		decode.Starter
		decode.Converter
	}
	switch cfg.Decoder.Backend {
	case "native":
		dec = decode.NewNative(nil)
	default:
		dec = decode.NewFFmpeg(cfg.Decoder.FFmpeg)
	}

	handle := codec.NewHandle(encodec.Loader(encodec.Options{
		Binary:  cfg.Codec.Binary,
		TempDir: cfg.Codec.TempDir,
		Logger:  logger,
	}))
	defer func() {
		if err := handle.Close(); err != nil {
			logger.Warn("Failed to release codec model", slog.Any("error", err))
		}
	}()

	m := metrics.New()
	orch := scrub.New(
		capture.New(dec, devices, capture.Options{
			PlaybackDevice: cfg.Capture.PlaybackDevice,
			SettleDelay:    cfg.Capture.SettleDelay,
			BlockFrames:    cfg.Capture.BlockFrames,
			DrainBlocks:    cfg.Capture.DrainBlocks,
			Logger:         logger,
		}),
		dec,
		codec.NewReencoder(handle, logger),
		scrub.Options{
			Device:    cfg.Capture.Device,
			Bandwidth: cfg.Codec.Bandwidth(),
			Logger:    logger,
			Observer:  m,
		},
	)

	logger.Info("Starting batch",
		slog.Int("files", len(files)),
		slog.String("device", cfg.Capture.Device),
		slog.String("bitrate", cfg.Codec.Bandwidth().String()),
		slog.String("decoder", cfg.Decoder.Backend))

	results, err := orch.Run(ctx, files)
	if err != nil {
		logger.Warn("Batch stopped early", slog.Any("error", err))
	}
	summarize(logger, results)

	if cfg.Metrics.File != "" {
		if err := m.WriteFile(cfg.Metrics.File); err != nil {
			logger.Error("Failed to write metrics", slog.Any("error", err))
		}
	}
	return 0
}

func summarize(logger *slog.Logger, results []scrub.Result) {
	var ok, degraded, failed, fallbacks int
	for _, r := range results {
		switch {
		case r.Degraded:
			degraded++
		case r.OK():
			ok++
		default:
			failed++
		}
		if r.FallbackUsed {
			fallbacks++
		}
	}
	logger.Info("Batch finished",
		slog.Int("ok", ok),
		slog.Int("degraded", degraded),
		slog.Int("failed", failed),
		slog.Int("fallbacks", fallbacks))
}

func listDevices(e env, logger *slog.Logger) int {
	devices, err := e.openDevices()
	if err != nil {
		logger.Error("Failed to open audio devices", slog.Any("error", err))
		return 1
	}
	defer devices.Close()

	infos, err := devices.Devices()
	if err != nil {
		logger.Error("Failed to list audio devices", slog.Any("error", err))
		return 1
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tHOST API\tIN\tOUT\tRATE\tDEFAULT")
	for _, d := range infos {
		def := ""
		switch {
		case d.DefaultInput && d.DefaultOutput:
			def = "in,out"
		case d.DefaultInput:
			def = "in"
		case d.DefaultOutput:
			def = "out"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.0f\t%s\n",
			d.Name, d.HostAPI, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, def)
	}
	if err := tw.Flush(); err != nil {
		return 1
	}
	return 0
}

// unavailable stands in for an audio backend that failed to start. Every
// open fails, which sends each job to direct conversion.
type unavailable struct{ err error }

func (u unavailable) Devices() ([]device.Info, error) { return nil, u.err }
func (u unavailable) Close() error                    { return nil }

func (u unavailable) OpenCapture(string, audio.Format, int) (device.CaptureStream, error) {
	return nil, u.err
}

func (u unavailable) OpenPlayback(string, audio.Format, int) (device.PlaybackStream, error) {
	return nil, u.err
}

// initLogger builds the process logger. A log file that cannot be opened
// falls back to stdout.
func initLogger(cfg config.LoggingConfig, stdout, stderr io.Writer) (*slog.Logger, func()) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	output := stdout
	closeFn := func() {}
	switch cfg.Output {
	case "stderr":
		output = stderr
	case "stdout", "":
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
		} else {
			output = file
			closeFn = func() { _ = file.Close() }
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closeFn
}
