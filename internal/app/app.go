// Package app wires tagdeck's components together and runs one of the front
// ends: the full-screen UI, the REPL or headless playback.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/do/v2"

	"github.com/olivier-w/tagdeck/internal/config"
	"github.com/olivier-w/tagdeck/internal/media"
	"github.com/olivier-w/tagdeck/internal/playback"
	"github.com/olivier-w/tagdeck/internal/repl"
	"github.com/olivier-w/tagdeck/internal/session"
	"github.com/olivier-w/tagdeck/internal/ui"
)

// App is a bootstrapped container.
type App struct {
	injector *do.RootScope
	cfg      *config.Config
	log      *LoggerHandle
	session  *SessionHandle
	engine   *EngineHandle
}

// New builds the container and starts the session and the watcher.
func New(cfg *config.Config) (*App, error) {
	injector := NewContainer(cfg)

	a := &App{injector: injector, cfg: cfg}
	var err error
	if a.log, err = do.Invoke[*LoggerHandle](injector); err != nil {
		return nil, err
	}
	if a.engine, err = do.Invoke[*EngineHandle](injector); err != nil {
		a.Shutdown()
		return nil, err
	}
	if a.session, err = do.Invoke[*SessionHandle](injector); err != nil {
		a.Shutdown()
		return nil, err
	}
	if _, err = do.Invoke[*WatcherHandle](injector); err != nil {
		a.Shutdown()
		return nil, err
	}
	return a, nil
}

// Shutdown stops every service in reverse dependency order.
func (a *App) Shutdown() {
	if err := a.injector.Shutdown(); err != nil && a.log != nil {
		a.log.Debug("shutdown report", "report", err)
	}
}

// Run loads the command line paths and hands control to the configured
// front end until it exits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.load(ctx); err != nil {
		return err
	}

	switch a.cfg.Mode {
	case config.ModeREPL:
		return repl.New(a.session.Session, a.engine.Engine, os.Stdout, a.log.Logger.Logger).Run(ctx)
	case config.ModeHeadless:
		return playThrough(ctx, a.session.Session, a.log.Logger.Logger, a.cfg.WatchDir != "")
	default:
		return a.runTUI(ctx)
	}
}

// load appends the command line paths and starts the requested track.
func (a *App) load(ctx context.Context) error {
	if len(a.cfg.Paths) == 0 {
		return nil
	}
	res, err := a.session.AppendPaths(ctx, a.cfg.Paths)
	if err != nil {
		return err
	}
	for _, f := range res.Failures {
		a.log.Warn("skipping unreadable file", "file", f.Name, "error", f.Err)
	}
	if len(res.Added) == 0 {
		if res.Skipped > 0 {
			return fmt.Errorf("no playable files found (supported formats: %s)", media.SupportedExtsList())
		}
		return errors.New("no playable files found")
	}
	start := a.cfg.Playback.StartIndex
	if start >= len(res.Added) {
		return fmt.Errorf("start index %d out of range (1-%d)", start+1, len(res.Added))
	}
	return a.session.PlayTrack(res.Added[start].ID)
}

func (a *App) runTUI(ctx context.Context) error {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	model := ui.New(a.session.Session, a.engine.Engine, wd)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		if ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	}
	return nil
}

// headlessPlayer is what headless playback drives.
type headlessPlayer interface {
	Snapshot() session.Snapshot
	Updates() <-chan struct{}
	Done() <-chan struct{}
	PlayIndex(i int) error
	Next() playback.Outcome
}

// playThrough plays the playlist to its end, skipping tracks that fail to
// load. With watching set it keeps waiting for new tracks instead of
// returning at the end.
func playThrough(ctx context.Context, p headlessPlayer, log *slog.Logger, watching bool) error {
	snap := p.Snapshot()
	if len(snap.Tracks) == 0 && !watching {
		return errors.New("nothing to play")
	}

	var lastID string
	for {
		snap := p.Snapshot()
		if t, i, ok := snap.Selected(); ok && t.ID != lastID {
			lastID = t.ID
			log.Info("Now playing", "position", i+1, "title", t.DisplayTitle(), "artist", t.Artist, "album", t.Album)
		}

		if snap.State.Run == playback.Idle && !snap.State.Loading && len(snap.Tracks) > 0 {
			switch p.Next() {
			case playback.Moved:
				continue
			case playback.NoSelection:
				if err := p.PlayIndex(0); err != nil {
					return err
				}
				continue
			default:
				if !watching {
					log.Info("End of playlist")
					return nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-p.Done():
			return session.ErrClosed
		case <-p.Updates():
		}
	}
}
