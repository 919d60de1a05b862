package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/samber/do/v2"

	"github.com/olivier-w/tagdeck/internal/config"
	"github.com/olivier-w/tagdeck/internal/cover"
	"github.com/olivier-w/tagdeck/internal/logger"
	"github.com/olivier-w/tagdeck/internal/metadata"
	"github.com/olivier-w/tagdeck/internal/player"
	"github.com/olivier-w/tagdeck/internal/session"
	"github.com/olivier-w/tagdeck/internal/watcher"
)

// NewContainer registers every provider. Services start lazily on first
// invoke.
func NewContainer(cfg *config.Config) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.Provide(injector, ProvideLogger)
	do.Provide(injector, ProvideCoverCache)
	do.Provide(injector, ProvideExtractor)
	do.Provide(injector, ProvideEngine)
	do.Provide(injector, ProvideSession)
	do.Provide(injector, ProvideWatcher)

	return injector
}

// LoggerHandle owns the log file, if any.
type LoggerHandle struct {
	*logger.Logger
	file io.Closer
}

// Shutdown implements do.Shutdownable.
func (h *LoggerHandle) Shutdown() error {
	if h.file == nil {
		return nil
	}
	return h.file.Close()
}

// ProvideLogger provides the structured logger, writing to the configured
// file or stderr.
func ProvideLogger(i do.Injector) (*LoggerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	h := &LoggerHandle{}
	var w io.Writer = os.Stderr
	if cfg.Log.File != "" {
		f, err := logger.OpenFile(cfg.Log.File)
		if err != nil {
			return nil, err
		}
		w, h.file = f, f
	}
	h.Logger = logger.New(logger.Config{
		Writer:    w,
		Format:    cfg.Log.Format,
		Level:     logger.ParseLevel(cfg.Log.Level),
		AddSource: cfg.Log.Level == "debug",
		NoColor:   cfg.Log.File != "",
	})

	h.Info("Starting tagdeck",
		"mode", cfg.Mode,
		"log_level", cfg.Log.Level,
		"concurrency", cfg.Extract.Concurrency,
		"watch_dir", cfg.WatchDir,
	)
	return h, nil
}

// ProvideCoverCache provides the shared artwork cache.
func ProvideCoverCache(i do.Injector) (*cover.Cache, error) {
	log := do.MustInvoke[*LoggerHandle](i)
	return cover.NewCache(log.With("component", "covers")), nil
}

// ProvideExtractor provides the tag extractor.
func ProvideExtractor(i do.Injector) (*metadata.Extractor, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)
	covers := do.MustInvoke[*cover.Cache](i)

	return metadata.New(covers, metadata.Options{
		Concurrency: cfg.Extract.Concurrency,
		Logger:      log.With("component", "metadata"),
	}), nil
}

// EngineHandle wraps the audio engine with shutdown capability.
type EngineHandle struct {
	*player.Engine
}

// Shutdown implements do.Shutdownable.
func (h *EngineHandle) Shutdown() error {
	h.Engine.Close()
	return nil
}

// ProvideEngine provides the audio engine. The output device opens on the
// first load.
func ProvideEngine(i do.Injector) (*EngineHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	engine := player.New(player.Options{
		Logger: log.With("component", "player"),
		Tick:   cfg.Playback.Tick,
	})
	// Options treats 0 as unset; a muted start is allowed here.
	engine.SetVolume(cfg.Playback.Volume)
	return &EngineHandle{Engine: engine}, nil
}

// SessionHandle runs the session loop until shutdown.
type SessionHandle struct {
	*session.Session
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable. It waits until every track is released.
func (h *SessionHandle) Shutdown() error {
	h.cancel()
	<-h.Done()
	return nil
}

// ProvideSession provides the running session.
func ProvideSession(i do.Injector) (*SessionHandle, error) {
	log := do.MustInvoke[*LoggerHandle](i)
	extractor := do.MustInvoke[*metadata.Extractor](i)
	covers := do.MustInvoke[*cover.Cache](i)
	engine := do.MustInvoke[*EngineHandle](i)

	sess := session.New(extractor, covers, engine.Engine, log.With("component", "session"))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := sess.Run(ctx); err != nil {
			log.Error("session stopped", "error", err)
		}
	}()

	return &SessionHandle{Session: sess, cancel: cancel}, nil
}

// WatcherHandle appends files that appear in the watched folder.
type WatcherHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *WatcherHandle) Shutdown() error {
	h.cancel()
	<-h.done
	return nil
}

// ProvideWatcher provides the folder watcher. It is a no-op without a watch dir.
func ProvideWatcher(i do.Injector) (*WatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)
	sess := do.MustInvoke[*SessionHandle](i)

	ctx, cancel := context.WithCancel(context.Background())
	h := &WatcherHandle{cancel: cancel, done: make(chan struct{})}
	if cfg.WatchDir == "" {
		close(h.done)
		return h, nil
	}

	wlog := log.With("component", "watcher")
	w, err := watcher.New(cfg.WatchDir, wlog, watcher.Options{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watching %s: %w", cfg.WatchDir, err)
	}

	go func() {
		defer close(h.done)
		err := w.Run(ctx, func(paths []string) {
			res, err := sess.AppendPaths(ctx, paths)
			if err != nil {
				wlog.Warn("appending watched files", "error", err)
				return
			}
			wlog.Info("appended watched files", "added", len(res.Added), "failed", len(res.Failures))
		})
		if err != nil {
			wlog.Error("watcher stopped", "error", err)
		}
	}()

	log.Info("Watching folder", "dir", cfg.WatchDir)
	return h, nil
}
