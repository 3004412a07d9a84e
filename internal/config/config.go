// SPDX-License-Identifier: EPL-2.0

package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ik5/audscrub/codec"
)

// Config represents the complete scrubber configuration.
type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Codec   CodecConfig   `yaml:"codec"`
	Decoder DecoderConfig `yaml:"decoder"`
	Input   InputConfig   `yaml:"input"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// CaptureConfig selects the loopback devices and tunes the read loop.
type CaptureConfig struct {
	// Device is the capture (loopback) device name; empty means the
	// platform default.
	Device         string        `yaml:"device"`
	PlaybackDevice string        `yaml:"playback_device"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	BlockFrames    int           `yaml:"block_frames"`
	DrainBlocks    int           `yaml:"drain_blocks"`
}

// CodecConfig controls the neural stage.
type CodecConfig struct {
	// Bitrate is the target bandwidth in kbps; 0 skips the stage.
	Bitrate float64 `yaml:"bitrate"`
	Binary  string  `yaml:"binary"`
	TempDir string  `yaml:"temp_dir"`

	// bitrateErr holds an unparsable AUDSCRUB_BITRATE until Validate, so a
	// later SetBitrate can still replace it.
	bitrateErr error
}

type DecoderConfig struct {
	// Backend is "ffmpeg" or "native".
	Backend string `yaml:"backend"`
	FFmpeg  string `yaml:"ffmpeg"`
}

// InputConfig controls input discovery when no files are given.
type InputConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type MetricsConfig struct {
	// File receives the Prometheus text exposition at exit; empty disables.
	File string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			SettleDelay: 100 * time.Millisecond,
			BlockFrames: 1024,
			DrainBlocks: 10,
		},
		Codec: CodecConfig{
			Bitrate: 12,
			Binary:  "encodec",
		},
		Decoder: DecoderConfig{
			Backend: "ffmpeg",
			FFmpeg:  "ffmpeg",
		},
		Input: InputConfig{
			Dir:        ".",
			Extensions: []string{".mp3"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the configuration like Read and validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Read loads the YAML file at path over the defaults and applies environment
// overrides without validating, so callers can layer flags on top first. An
// empty path skips the file.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyEnv overrides settings from VIRTUAL_DEVICE, AUDSCRUB_BITRATE,
// AUDSCRUB_FFMPEG and AUDSCRUB_ENCODEC. An invalid bitrate is reported by
// Validate.
func (c *Config) ApplyEnv(getenv func(string) string) {
	c.Capture.Device = envStr(getenv, "VIRTUAL_DEVICE", c.Capture.Device)
	c.Decoder.FFmpeg = envStr(getenv, "AUDSCRUB_FFMPEG", c.Decoder.FFmpeg)
	c.Codec.Binary = envStr(getenv, "AUDSCRUB_ENCODEC", c.Codec.Binary)

	if v := getenv("AUDSCRUB_BITRATE"); v != "" {
		bw, err := codec.ParseBandwidth(v)
		if err != nil {
			c.Codec.bitrateErr = fmt.Errorf("AUDSCRUB_BITRATE: %w", err)
			return
		}
		c.Codec.SetBitrate(bw)
	}
}

func envStr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

// SetBitrate overrides the bitrate, replacing any invalid earlier value.
func (c *CodecConfig) SetBitrate(bw codec.Bandwidth) {
	c.Bitrate = float64(bw)
	c.bitrateErr = nil
}

// Bandwidth returns the codec bitrate as a codec.Bandwidth.
func (c *CodecConfig) Bandwidth() codec.Bandwidth {
	return codec.Bandwidth(c.Bitrate)
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}
	if err := c.Codec.Validate(); err != nil {
		return fmt.Errorf("codec config: %w", err)
	}
	if err := c.Decoder.Validate(); err != nil {
		return fmt.Errorf("decoder config: %w", err)
	}
	if err := c.Input.Validate(); err != nil {
		return fmt.Errorf("input config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (c *CaptureConfig) Validate() error {
	if c.SettleDelay <= 0 {
		return fmt.Errorf("settle_delay must be positive, got %s", c.SettleDelay)
	}
	if c.BlockFrames < 64 || c.BlockFrames > 65536 {
		return fmt.Errorf("block_frames must be between 64 and 65536, got %d", c.BlockFrames)
	}
	if c.DrainBlocks < 1 {
		return fmt.Errorf("drain_blocks must be at least 1, got %d", c.DrainBlocks)
	}
	return nil
}

func (c *CodecConfig) Validate() error {
	if c.bitrateErr != nil {
		return c.bitrateErr
	}
	if !c.Bandwidth().Valid() {
		return fmt.Errorf("bitrate must be one of [0, 1.5, 3, 6, 12, 24], got %g", c.Bitrate)
	}
	if c.Bandwidth().Enabled() && c.Binary == "" {
		return fmt.Errorf("binary cannot be empty when the codec is enabled")
	}
	return nil
}

func (d *DecoderConfig) Validate() error {
	switch d.Backend {
	case "ffmpeg":
		if d.FFmpeg == "" {
			return fmt.Errorf("ffmpeg cannot be empty for the ffmpeg backend")
		}
	case "native":
	default:
		return fmt.Errorf("backend must be 'ffmpeg' or 'native', got '%s'", d.Backend)
	}
	return nil
}

// Validate checks the extension list and normalizes every entry to a
// lower-case ".ext" form. An empty Dir means the working directory.
func (i *InputConfig) Validate() error {
	if i.Dir == "" {
		i.Dir = "."
	}
	if len(i.Extensions) == 0 {
		return fmt.Errorf("extensions cannot be empty")
	}
	for n, ext := range i.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" || ext == "." {
			return fmt.Errorf("extensions[%d] is empty", n)
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		i.Extensions[n] = ext
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, l.Level) {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}
	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}
	return nil
}
