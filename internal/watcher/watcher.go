// Package watcher reports audio files that appear in a folder once they have
// stopped changing.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Options configures the watcher.
type Options struct {
	// SettleDelay is how long a file's size and mtime must stay unchanged.
	SettleDelay time.Duration
	// BatchDelay groups files settling close together into one batch.
	BatchDelay time.Duration
	// Accept filters paths; nil accepts everything not hidden.
	Accept func(path string) bool
}

func (o *Options) setDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = 500 * time.Millisecond
	}
	if o.BatchDelay <= 0 {
		o.BatchDelay = 250 * time.Millisecond
	}
	if o.Accept == nil {
		o.Accept = func(string) bool { return true }
	}
}

type pendingFile struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// Watcher watches one directory tree.
type Watcher struct {
	logger  *slog.Logger
	opts    Options
	root    string
	fsw     *fsnotify.Watcher
	settled chan string
	done    chan struct{}

	mu      sync.Mutex
	pending map[string]*pendingFile
	seen    map[string]bool
}

// New starts watching dir and every directory below it.
func New(dir string, logger *slog.Logger, opts Options) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts.setDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		logger:  logger,
		opts:    opts,
		root:    filepath.Clean(dir),
		fsw:     fsw,
		settled: make(chan string, 64),
		done:    make(chan struct{}),
		pending: make(map[string]*pendingFile),
		seen:    make(map[string]bool),
	}
	if err := w.watchDir(w.root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) watchDir(dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			w.logger.Warn("failed to access path", "path", p, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		w.logger.Debug("added watch", "path", p)
		return nil
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Run delivers settled files to onBatch until ctx is done, then stops the
// watcher. onBatch runs on the Run goroutine with paths sorted by name.
func (w *Watcher) Run(ctx context.Context, onBatch func(paths []string)) error {
	defer w.stop()

	var batch []string
	flush := time.NewTimer(time.Hour)
	flush.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case p := <-w.settled:
			batch = append(batch, p)
			flush.Reset(w.opts.BatchDelay)
		case <-flush.C:
			if len(batch) == 0 {
				continue
			}
			sort.Slice(batch, func(i, j int) bool {
				return strings.ToLower(batch[i]) < strings.ToLower(batch[j])
			})
			w.logger.Info("new files in watched folder", "count", len(batch))
			onBatch(batch)
			batch = nil
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := ev.Name
	if isHidden(filepath.Base(path)) {
		return
	}
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.watchDir(path); err != nil {
				w.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
			return
		}
	}
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		w.cancel(path)
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && w.opts.Accept(path) {
		w.startSettling(path)
	}
}

func (w *Watcher) startSettling(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[path] {
		return
	}
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
	}
	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		return
	}
	p := &pendingFile{size: info.Size(), modTime: info.ModTime()}
	p.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) })
	w.pending[path] = p
}

func (w *Watcher) checkSettled(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if !ok {
		w.mu.Unlock()
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		w.mu.Unlock()
		return
	}
	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		p.size = info.Size()
		p.modTime = info.ModTime()
		p.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) })
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.seen[path] = true
	w.mu.Unlock()

	select {
	case w.settled <- path:
	case <-w.done:
	}
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) stop() {
	close(w.done)
	w.mu.Lock()
	for _, p := range w.pending {
		p.timer.Stop()
	}
	clear(w.pending)
	w.mu.Unlock()
	w.fsw.Close()
}
