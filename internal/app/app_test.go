package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivier-w/tagdeck/internal/config"
	"github.com/olivier-w/tagdeck/internal/cover"
	"github.com/olivier-w/tagdeck/internal/media"
	"github.com/olivier-w/tagdeck/internal/metadata"
	"github.com/olivier-w/tagdeck/internal/playback"
	"github.com/olivier-w/tagdeck/internal/playlist"
	"github.com/olivier-w/tagdeck/internal/session"
)

// autoHost finishes every load on its own: refs ending in "bad" fail, the
// rest become ready and then end.
type autoHost struct {
	events chan playback.Event

	mu     sync.Mutex
	loaded []string
}

func newAutoHost() *autoHost {
	return &autoHost{events: make(chan playback.Event, 16)}
}

func (h *autoHost) Load(token uint64, ref string) {
	h.mu.Lock()
	h.loaded = append(h.loaded, ref)
	h.mu.Unlock()
	go func() {
		if filepath.Base(ref) == "bad" {
			h.events <- playback.Event{Kind: playback.EventFailed, Token: token, Err: errors.New("undecodable")}
			return
		}
		h.events <- playback.Event{Kind: playback.EventReady, Token: token, Duration: time.Second}
		h.events <- playback.Event{Kind: playback.EventEnded, Token: token}
	}()
}

func (h *autoHost) Play()                         {}
func (h *autoHost) Pause()                        {}
func (h *autoHost) Events() <-chan playback.Event { return h.events }

func (h *autoHost) refs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.loaded...)
}

type nameExtractor struct{}

func (nameExtractor) ExtractAll(_ context.Context, srcs []media.Source) (metadata.Batch, error) {
	var b metadata.Batch
	for i, src := range srcs {
		b.Tracks = append(b.Tracks, playlist.Track{
			ID:     fmt.Sprintf("trk-%s-%d", src.Name(), i),
			Title:  src.Name(),
			Artist: playlist.UnknownArtist,
			Source: src,
		})
	}
	return b, nil
}

func startSession(t *testing.T, host playback.Host) *session.Session {
	t.Helper()
	s := session.New(nameExtractor{}, cover.NewCache(nil), host, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return s
}

func memSources(names ...string) []media.Source {
	out := make([]media.Source, len(names))
	for i, n := range names {
		out[i] = media.NewMemorySource(n, []byte(n), "/music/"+n)
	}
	return out
}

func TestPlayThroughPlaysEveryTrackAndSkipsFailures(t *testing.T) {
	host := newAutoHost()
	s := startSession(t, host)

	_, err := s.Append(context.Background(), memSources("one", "bad", "two"))
	require.NoError(t, err)
	require.NoError(t, s.PlayIndex(0))

	done := make(chan error, 1)
	go func() { done <- playThrough(context.Background(), s, slog.Default(), false) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("playThrough did not finish")
	}
	assert.Equal(t, []string{"/music/one", "/music/bad", "/music/two"}, host.refs())

	snap := s.Snapshot()
	assert.Equal(t, playback.Idle, snap.State.Run)
	assert.Equal(t, snap.Tracks[2].ID, snap.State.SelectedID)
}

func TestPlayThroughEmptyPlaylist(t *testing.T) {
	s := startSession(t, newAutoHost())
	assert.Error(t, playThrough(context.Background(), s, slog.Default(), false))
}

func TestPlayThroughWatchingWaitsForTracks(t *testing.T) {
	host := newAutoHost()
	s := startSession(t, host)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- playThrough(ctx, s, slog.Default(), true) }()

	_, err := s.Append(context.Background(), memSources("late"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(host.refs()) == 1 }, time.Second, 5*time.Millisecond)

	select {
	case <-done:
		t.Fatal("playThrough returned while watching")
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	require.NoError(t, <-done)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Mode: config.ModeHeadless,
		Log: config.LogConfig{
			Level:  "debug",
			Format: "json",
			File:   filepath.Join(t.TempDir(), "logs", "tagdeck.log"),
		},
		Playback: config.PlaybackConfig{Volume: 0.5, Tick: 100 * time.Millisecond},
		Extract:  config.ExtractConfig{Concurrency: 2},
	}
}

func TestContainerStartsAndStops(t *testing.T) {
	cfg := testConfig(t)
	cfg.WatchDir = t.TempDir()

	a, err := New(cfg)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, a.engine.Volume(), 1e-9)
	assert.Empty(t, a.session.Snapshot().Tracks)
	a.Shutdown()

	select {
	case <-a.session.Done():
	default:
		t.Fatal("expected session to be stopped")
	}

	data, err := os.ReadFile(cfg.Log.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Starting tagdeck")
}

func TestRunHeadlessErrors(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Shutdown()
	assert.EqualError(t, a.Run(context.Background()), "nothing to play")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	a.cfg.Paths = []string{filepath.Join(dir, "notes.txt")}
	assert.ErrorContains(t, a.Run(context.Background()), "no playable files found")

	a.cfg.Paths = []string{filepath.Join(dir, "missing.mp3")}
	assert.Error(t, a.Run(context.Background()))
}
