package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "json", Level: slog.LevelInfo})
	log.Info("test message", "track_id", "trk-1")

	assert.Contains(t, buf.String(), `"msg":"test message"`)
	assert.Contains(t, buf.String(), `"track_id":"trk-1"`)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
}

func TestNew_PrettyWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Level: slog.LevelDebug, NoColor: true})
	log.With("component", "session").WithGroup("load").Debug("loading", "name", "My Song.mp3", "after", 2*time.Second)

	line := buf.String()
	assert.NotContains(t, line, "\033[")
	assert.Contains(t, line, "DBG loading")
	assert.Contains(t, line, `load.component=session`)
	assert.Contains(t, line, `load.name="My Song.mp3"`)
	assert.Contains(t, line, "load.after=2s")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Level: slog.LevelWarn})
	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "json"})
	log.WithError(errors.New("boom")).Error("failed")
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestOpenFileCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tagdeck.log")
	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	New(Config{Writer: f, Format: "json"}).Info("to file")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
