package config

import (
	"errors"
	"flag"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, env(map[string]string{"XDG_STATE_HOME": "/state"}), io.Discard)
	require.NoError(t, err)

	assert.Equal(t, ModeTUI, cfg.Mode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "pretty", cfg.Log.Format)
	assert.Equal(t, filepath.Join("/state", "tagdeck", "tagdeck.log"), cfg.Log.File)
	assert.InDelta(t, 0.8, cfg.Playback.Volume, 1e-9)
	assert.Equal(t, 250*time.Millisecond, cfg.Playback.Tick)
	assert.Equal(t, 0, cfg.Playback.StartIndex)
	assert.Equal(t, 4, cfg.Extract.Concurrency)
	assert.Empty(t, cfg.Paths)
}

func TestLoad_Precedence(t *testing.T) {
	e := env(map[string]string{
		"TAGDECK_MODE":        "repl",
		"TAGDECK_LOG_LEVEL":   "DEBUG",
		"TAGDECK_CONCURRENCY": "8",
		"TAGDECK_VOLUME":      "0.3",
	})
	cfg, err := Load([]string{"-concurrency", "2", "-start", "3", "a.mp3", "b.flac"}, e, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, ModeREPL, cfg.Mode)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Extract.Concurrency, "flag beats env")
	assert.InDelta(t, 0.3, cfg.Playback.Volume, 1e-9)
	assert.Equal(t, 2, cfg.Playback.StartIndex)
	assert.Equal(t, []string{"a.mp3", "b.flac"}, cfg.Paths)
	assert.Empty(t, cfg.Log.File, "non-tui modes log to stderr by default")
}

func TestLoad_WatchDir(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load([]string{"-mode", "headless", "-watch", dir}, env(nil), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.WatchDir)

	_, err = Load([]string{"-watch", dir + "/missing"}, env(nil), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WatchDir must be an existing directory")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"mode", []string{"-mode", "gui"}, "Mode must be one of"},
		{"volume range", []string{"-volume", "1.5"}, "Volume must be less than or equal to 1"},
		{"volume parse", []string{"-volume", "loud"}, "invalid volume"},
		{"tick too fast", []string{"-tick", "10ms"}, "Tick must be greater than or equal to"},
		{"tick parse", []string{"-tick", "soon"}, "invalid tick interval"},
		{"concurrency", []string{"-concurrency", "0"}, "Concurrency must be greater than or equal to 1"},
		{"start", []string{"-start", "0"}, "StartIndex must be greater than or equal to 0"},
		{"log format", []string{"-log-format", "xml"}, "Format must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args, env(nil), io.Discard)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_Help(t *testing.T) {
	_, err := Load([]string{"-h"}, env(nil), io.Discard)
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func TestDefaultLogFileFallsBack(t *testing.T) {
	got := DefaultLogFile(env(nil))
	assert.Contains(t, got, filepath.Join("tagdeck", "tagdeck.log"))
}
