// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds the runtime settings shared by the commands.
type Config struct {
	SampleRate   float64 // Hz, mixer and render rate
	BufferFrames int     // render block size
	StoreDir     string  // source blob directory; empty keeps blobs in memory
	LogLevel     string  // debug, info, warn or error
	MaxTracks    int
}

// Load reads the MIXER_* variables, falling back to defaults for unset
// or unparsable values.
func Load() Config {
	return Config{
		SampleRate:   envFloat("MIXER_SAMPLE_RATE", 48000),
		BufferFrames: envInt("MIXER_BUFFER_FRAMES", 1024),
		StoreDir:     envStr("MIXER_STORE_DIR", ""),
		LogLevel:     envStr("MIXER_LOG_LEVEL", "info"),
		MaxTracks:    envInt("MIXER_MAX_TRACKS", 30),
	}
}

// Validate reports every out-of-range setting.
func (c Config) Validate() error {
	var errs []error

	if c.SampleRate < 8000 || c.SampleRate > 384000 {
		errs = append(errs, fmt.Errorf("config: sample rate %v outside [8000, 384000]", c.SampleRate))
	}

	if c.BufferFrames < 16 || c.BufferFrames > 16384 {
		errs = append(errs, fmt.Errorf("config: buffer frames %d outside [16, 16384]", c.BufferFrames))
	}

	if c.MaxTracks < 1 {
		errs = append(errs, fmt.Errorf("config: max tracks must be positive: %d", c.MaxTracks))
	}

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: log level %q: %w", c.LogLevel, err)
	}

	return l, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}

	return fallback
}
