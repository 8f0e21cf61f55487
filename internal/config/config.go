// Package config loads strictpatch options from the environment, an optional
// .env file and command line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/asynkron/strictpatch/internal/logging"
)

// Environment variables consulted by FromEnv.
const (
	EnvLogLevel     = "STRICTPATCH_LOG_LEVEL"
	EnvLogFile      = "STRICTPATCH_LOG_FILE"
	EnvStream       = "STRICTPATCH_STREAM"
	EnvWorkers      = "STRICTPATCH_WORKERS"
	EnvOutputSuffix = "STRICTPATCH_OUTPUT_SUFFIX"
	EnvColor        = "STRICTPATCH_COLOR"
)

// ColorMode selects how the viewer and summaries use colour.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Options holds the settings shared by every subcommand.
type Options struct {
	LogLevel string
	// LogFile receives log output. Empty means stderr.
	LogFile string
	// Stream applies file patches through the line pipeline instead of
	// loading the whole original into memory.
	Stream bool
	// Workers bounds how many batch jobs run at once.
	Workers int
	// OutputSuffix writes results next to originals instead of replacing them.
	OutputSuffix string
	Color        ColorMode
}

// SetDefaults fills unset fields.
func (o *Options) SetDefaults() {
	if strings.TrimSpace(o.LogLevel) == "" {
		o.LogLevel = string(logging.LevelWarn)
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Color == "" {
		o.Color = ColorAuto
	}
}

// Validate reports the first invalid setting.
func (o *Options) Validate() error {
	if _, err := logging.ParseLevel(o.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if o.Workers < 1 {
		return errors.New("config: workers must be at least 1")
	}
	switch o.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("config: unknown color mode %q", o.Color)
	}
	if strings.ContainsAny(o.OutputSuffix, `/\`) {
		return fmt.Errorf("config: output suffix %q must not contain path separators", o.OutputSuffix)
	}
	return nil
}

// Level returns the parsed log level. Call Validate first.
func (o *Options) Level() logging.Level {
	level, err := logging.ParseLevel(o.LogLevel)
	if err != nil {
		return logging.LevelWarn
	}
	return level
}

// LoadDotEnv reads .env files into the process environment. A missing file is
// not an error; variables already set are left alone.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return nil
		}
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// FromEnv builds Options from lookup, typically os.LookupEnv. Defaults are
// not applied.
func FromEnv(lookup func(string) (string, bool)) (Options, error) {
	var opts Options
	if v, ok := lookup(EnvLogLevel); ok {
		opts.LogLevel = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogFile); ok {
		opts.LogFile = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvOutputSuffix); ok {
		opts.OutputSuffix = v
	}
	if v, ok := lookup(EnvColor); ok {
		opts.Color = ColorMode(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup(EnvStream); ok && strings.TrimSpace(v) != "" {
		stream, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Options{}, fmt.Errorf("config: %s: %w", EnvStream, err)
		}
		opts.Stream = stream
	}
	if v, ok := lookup(EnvWorkers); ok && strings.TrimSpace(v) != "" {
		workers, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Options{}, fmt.Errorf("config: %s: %w", EnvWorkers, err)
		}
		opts.Workers = workers
	}
	return opts, nil
}

// Load reads the .env file in the working directory, then the environment,
// and applies defaults.
func Load() (Options, error) {
	if err := LoadDotEnv(); err != nil {
		return Options{}, err
	}
	opts, err := FromEnv(os.LookupEnv)
	if err != nil {
		return Options{}, err
	}
	opts.SetDefaults()
	return opts, nil
}
