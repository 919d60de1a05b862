// Package config loads tagdeck's settings from command-line flags and
// TAGDECK_* environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Run modes.
const (
	ModeTUI      = "tui"
	ModeREPL     = "repl"
	ModeHeadless = "headless"
)

const envPrefix = "TAGDECK_"

// Config holds the application configuration.
type Config struct {
	Mode     string `validate:"oneof=tui repl headless"`
	Log      LogConfig
	Playback PlaybackConfig
	Extract  ExtractConfig
	// WatchDir is a folder whose new audio files are appended while running.
	WatchDir string `validate:"omitempty,dir"`
	// Paths are the files, folders and playlists given on the command line.
	Paths []string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn warning error"`
	Format string `validate:"oneof=pretty json"`
	// File is where logs go; empty means stderr.
	File string
}

// PlaybackConfig holds playback configuration.
type PlaybackConfig struct {
	Volume     float64       `validate:"gte=0,lte=1"`
	Tick       time.Duration `validate:"gte=50ms,lte=2s"`
	StartIndex int           `validate:"gte=0"`
}

// ExtractConfig holds tag extraction configuration.
type ExtractConfig struct {
	Concurrency int `validate:"gte=1,lte=64"`
}

// Load builds a Config with precedence flags > environment > defaults.
// args excludes the program name. getenv is usually os.Getenv.
func Load(args []string, getenv func(string) string, usage io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("tagdeck", flag.ContinueOnError)
	fs.SetOutput(usage)
	fs.Usage = func() {
		fmt.Fprintf(usage, "Usage: tagdeck [flags] [file|folder|playlist ...]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	mode := fs.String("mode", "", "Run mode: tui, repl or headless (default: tui)")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error (default: info)")
	logFormat := fs.String("log-format", "", "Log format: pretty or json (default: pretty)")
	logFile := fs.String("log-file", "", "Log file (default: state dir in tui mode, stderr otherwise)")
	volume := fs.String("volume", "", "Initial volume 0.0-1.0 (default: 0.8)")
	tick := fs.String("tick", "", "Progress update interval (default: 250ms)")
	concurrency := fs.String("concurrency", "", "Parallel tag extractions (default: 4)")
	watch := fs.String("watch", "", "Folder to watch for new audio files")
	start := fs.String("start", "", "1-based index of the track to start with (default: 1)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	get := func(flagValue, key, def string) string {
		return getConfigValue(flagValue, getenv(envPrefix+key), def)
	}

	cfg := &Config{
		Mode: strings.ToLower(get(*mode, "MODE", ModeTUI)),
		Log: LogConfig{
			Level:  strings.ToLower(get(*logLevel, "LOG_LEVEL", "info")),
			Format: strings.ToLower(get(*logFormat, "LOG_FORMAT", "pretty")),
			File:   get(*logFile, "LOG_FILE", ""),
		},
		WatchDir: get(*watch, "WATCH_DIR", ""),
		Paths:    fs.Args(),
	}

	var err error
	if cfg.Playback.Volume, err = strconv.ParseFloat(get(*volume, "VOLUME", "0.8"), 64); err != nil {
		return nil, fmt.Errorf("invalid volume: %w", err)
	}
	if cfg.Playback.Tick, err = time.ParseDuration(get(*tick, "TICK", "250ms")); err != nil {
		return nil, fmt.Errorf("invalid tick interval: %w", err)
	}
	if cfg.Extract.Concurrency, err = strconv.Atoi(get(*concurrency, "CONCURRENCY", "4")); err != nil {
		return nil, fmt.Errorf("invalid concurrency: %w", err)
	}
	startIdx, err := strconv.Atoi(get(*start, "START", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid start index: %w", err)
	}
	cfg.Playback.StartIndex = startIdx - 1

	if cfg.WatchDir != "" {
		if cfg.WatchDir, err = expandPath(cfg.WatchDir); err != nil {
			return nil, fmt.Errorf("invalid watch dir: %w", err)
		}
	}
	if cfg.Log.File == "" && cfg.Mode == ModeTUI {
		cfg.Log.File = DefaultLogFile(getenv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, e.Namespace()+" "+friendlyMessage(e))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "dir":
		return "must be an existing directory"
	default:
		return "is invalid"
	}
}

// DefaultLogFile is $XDG_STATE_HOME/tagdeck/tagdeck.log, falling back to
// ~/.local/state and then the temp dir.
func DefaultLogFile(getenv func(string) string) string {
	dir := getenv("XDG_STATE_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "state")
		} else {
			dir = os.TempDir()
		}
	}
	return filepath.Join(dir, "tagdeck", "tagdeck.log")
}

// getConfigValue returns the first non-empty value of flag, env or default.
func getConfigValue(flagValue, envValue, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue != "" {
		return envValue
	}
	return defaultValue
}

// expandPath expands ~ and makes the path absolute.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}
