// Package session owns the playlist, the playback controller and the
// progress reporter, and serialises every change to them through one loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/olivier-w/tagdeck/internal/cover"
	"github.com/olivier-w/tagdeck/internal/media"
	"github.com/olivier-w/tagdeck/internal/metadata"
	"github.com/olivier-w/tagdeck/internal/playback"
	"github.com/olivier-w/tagdeck/internal/playlist"
	"github.com/olivier-w/tagdeck/internal/progress"
)

// ErrClosed is returned by calls made after the session loop has stopped.
var ErrClosed = errors.New("session closed")

// Extractor turns sources into tracks.
type Extractor interface {
	ExtractAll(ctx context.Context, srcs []media.Source) (metadata.Batch, error)
}

// Covers resolves and releases cover references.
type Covers interface {
	Resolve(ref string) (cover.Image, bool)
	Release(ref string)
}

// Snapshot is what presentation layers render.
type Snapshot struct {
	Tracks   []playlist.Track
	State    playback.State
	Progress progress.Snapshot
}

// Selected returns the selected track and its index.
func (s Snapshot) Selected() (playlist.Track, int, bool) {
	for i, t := range s.Tracks {
		if t.ID == s.State.SelectedID {
			return t, i, true
		}
	}
	return playlist.Track{}, -1, false
}

// AppendResult reports one Append call.
type AppendResult struct {
	Added    []playlist.Track
	Failures []*metadata.DecodeError
	// Skipped counts unsupported entries dropped by AppendPaths.
	Skipped int
}

// Session is safe for concurrent use. Run must be called for commands to be
// processed.
type Session struct {
	logger    *slog.Logger
	extractor Extractor
	covers    Covers
	host      playback.Host

	store    *playlist.Store
	ctl      *playback.Controller
	reporter *progress.Reporter

	cmds    chan func()
	updates chan struct{}
	done    chan struct{}

	mu   sync.RWMutex
	snap Snapshot
}

// New wires a session around host. Nothing runs until Run is called.
func New(extractor Extractor, covers Covers, host playback.Host, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	store := playlist.New(covers)
	return &Session{
		logger:    logger,
		extractor: extractor,
		covers:    covers,
		host:      host,
		store:     store,
		ctl:       playback.NewController(store, host, logger),
		reporter:  progress.NewReporter(),
		cmds:      make(chan func()),
		updates:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Run processes commands and host events until ctx is done, then releases
// every track.
func (s *Session) Run(ctx context.Context) error {
	defer s.shutdown()
	events := s.host.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-s.cmds:
			fn()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.handleEvent(ev)
		}
	}
}

// Done is closed once Run has returned and the playlist is released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) shutdown() {
	s.reporter.Detach()
	if err := s.store.Close(); err != nil {
		s.logger.Warn("releasing playlist", "error", err)
	}
	close(s.done)
	s.logger.Debug("session closed")
}

func (s *Session) handleEvent(ev playback.Event) {
	if ev.Kind == playback.EventTimeUpdate {
		s.reporter.Tick(ev.Token, ev.Current, ev.Duration)
		return
	}
	if !s.ctl.HandleEvent(ev) {
		return
	}
	if ev.Kind == playback.EventReady {
		s.reporter.Tick(ev.Token, 0, ev.Duration)
	}
	s.sync()
}

// sync keeps the progress stream on the current load and publishes a new
// snapshot. Loop goroutine only.
func (s *Session) sync() {
	st := s.ctl.State()
	token, attached := s.reporter.Attached()
	active := st.Loading || st.Run != playback.Idle
	switch {
	case active && (!attached || token != s.ctl.Token()):
		s.reporter.Attach(st.SelectedID, s.ctl.Token())
	case !active && attached:
		s.reporter.Detach()
	}

	s.mu.Lock()
	changed := st != s.snap.State || s.store.Len() != len(s.snap.Tracks)
	s.snap.State = st
	if s.store.Len() != len(s.snap.Tracks) {
		s.snap.Tracks = s.store.Tracks()
	}
	s.mu.Unlock()

	if changed {
		select {
		case s.updates <- struct{}{}:
		default:
		}
	}
}

// call runs fn on the loop goroutine and waits until the resulting snapshot
// is published.
func (s *Session) call(fn func()) error {
	finished := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); s.sync(); close(finished) }:
	case <-s.done:
		return ErrClosed
	}
	<-finished
	return nil
}

// Append extracts tags from srcs and appends the decoded tracks in the given
// order once every extraction has settled. Files that fail to decode are
// skipped and reported. The session takes ownership of srcs.
func (s *Session) Append(ctx context.Context, srcs []media.Source) (AppendResult, error) {
	batch, err := s.extractor.ExtractAll(ctx, srcs)
	if err != nil {
		return AppendResult{}, err
	}

	var appendErr error
	err = s.call(func() {
		appendErr = s.store.Append(batch.Tracks...)
	})
	if err == nil {
		err = appendErr
	}
	if err != nil {
		s.discard(batch.Tracks)
		return AppendResult{Failures: batch.Failures}, err
	}

	s.logger.Info("appended tracks", "added", len(batch.Tracks), "failed", len(batch.Failures))
	return AppendResult{Added: batch.Tracks, Failures: batch.Failures}, nil
}

// AppendPaths expands files, folders and local playlists into sources and
// appends them.
func (s *Session) AppendPaths(ctx context.Context, args []string) (AppendResult, error) {
	paths, skipped, err := media.ExpandPaths(args)
	if err != nil {
		return AppendResult{}, err
	}
	if len(paths) == 0 {
		return AppendResult{Skipped: skipped}, nil
	}
	srcs, err := media.OpenFiles(paths)
	if err != nil {
		return AppendResult{Skipped: skipped}, err
	}
	res, err := s.Append(ctx, srcs)
	res.Skipped = skipped
	return res, err
}

func (s *Session) discard(tracks []playlist.Track) {
	for _, t := range tracks {
		if s.covers != nil {
			s.covers.Release(t.Cover)
		}
		if t.Source != nil {
			t.Source.Close()
		}
	}
}

// PlayTrack selects and plays the track with the given ID.
func (s *Session) PlayTrack(id string) error {
	var playErr error
	if err := s.call(func() { playErr = s.ctl.PlayTrack(id) }); err != nil {
		return err
	}
	return playErr
}

// PlayIndex plays the track at position i.
func (s *Session) PlayIndex(i int) error {
	var playErr error
	err := s.call(func() {
		t, ok := s.store.At(i)
		if !ok {
			playErr = fmt.Errorf("no track at position %d: %w", i+1, playback.ErrTrackNotFound)
			return
		}
		playErr = s.ctl.PlayTrack(t.ID)
	})
	if err != nil {
		return err
	}
	return playErr
}

// Pause pauses playback.
func (s *Session) Pause() error { return s.call(s.ctl.Pause) }

// Resume resumes paused playback.
func (s *Session) Resume() error { return s.call(s.ctl.Resume) }

// TogglePause flips between playing and paused.
func (s *Session) TogglePause() error { return s.call(s.ctl.TogglePause) }

// Next moves to the following track.
func (s *Session) Next() playback.Outcome {
	out := playback.Unchanged
	_ = s.call(func() { out = s.ctl.Next() })
	return out
}

// Previous moves to the preceding track.
func (s *Session) Previous() playback.Outcome {
	out := playback.Unchanged
	_ = s.call(func() { out = s.ctl.Previous() })
	return out
}

// Snapshot returns the latest published state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if p, ok := s.reporter.Latest(); ok && p.TrackID == snap.State.SelectedID {
		snap.Progress = p
	}
	return snap
}

// Updates signals after state or playlist changes. Signals coalesce.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// Progress streams the playback position until ctx is done.
func (s *Session) Progress(ctx context.Context) iter.Seq[progress.Snapshot] {
	return s.reporter.Observe(ctx)
}

// Cover resolves a track's cover reference.
func (s *Session) Cover(ref string) (cover.Image, bool) {
	if s.covers == nil || ref == "" {
		return cover.Image{}, false
	}
	return s.covers.Resolve(ref)
}
