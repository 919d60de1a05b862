// Package metadata reads embedded tags from audio files and turns each file
// into a playlist track.
package metadata

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/olivier-w/tagdeck/internal/id"
	"github.com/olivier-w/tagdeck/internal/media"
	"github.com/olivier-w/tagdeck/internal/playlist"
)

// DefaultConcurrency bounds parallel extractions in a batch.
const DefaultConcurrency = 4

// Covers takes and drops references on extracted artwork.
type Covers interface {
	Acquire(data []byte, mime string) string
	Release(ref string)
}

// Options configures an Extractor.
type Options struct {
	Concurrency int
	Logger      *slog.Logger
	// NewID overrides track ID generation.
	NewID func() (string, error)
}

// Extractor decodes tags from sources. Extract may be called concurrently.
type Extractor struct {
	covers      Covers
	logger      *slog.Logger
	concurrency int
	newID       func() (string, error)
}

// Batch is the result of ExtractAll. Both slices follow submission order.
type Batch struct {
	Tracks   []playlist.Track
	Failures []*DecodeError
}

// New creates an Extractor storing artwork in covers.
func New(covers Covers, opts Options) *Extractor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = func() (string, error) { return id.Generate(id.TrackPrefix) }
	}
	return &Extractor{
		covers:      covers,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
		newID:       opts.NewID,
	}
}

// Extract reads title, artist, album and picture from src and returns a new
// track owning src. Missing artist becomes "Unknown", missing title and
// album become "". A container that cannot be parsed fails with *DecodeError;
// src is left open for the caller in that case.
func (e *Extractor) Extract(ctx context.Context, src media.Source) (playlist.Track, error) {
	if err := ctx.Err(); err != nil {
		return playlist.Track{}, err
	}

	r, err := src.Open()
	if err != nil {
		return playlist.Track{}, &DecodeError{Name: src.Name(), Err: err}
	}
	defer r.Close()

	raw, err := decode(r, src.Size(), src.Name())
	if err != nil {
		return playlist.Track{}, &DecodeError{Name: src.Name(), Err: err}
	}

	trackID, err := e.newID()
	if err != nil {
		return playlist.Track{}, err
	}

	t := playlist.Track{
		ID:     trackID,
		Title:  cleanTag(raw.title),
		Artist: cleanTag(raw.artist),
		Album:  cleanTag(raw.album),
		Format: raw.format,
		Source: src,
	}
	if t.Artist == "" {
		t.Artist = playlist.UnknownArtist
	}
	if e.covers != nil {
		t.Cover = e.covers.Acquire(raw.picture, raw.mime)
	}

	e.logger.Debug("extracted tags",
		"name", src.Name(),
		"id", t.ID,
		"format", t.Format,
		"has_cover", t.Cover != "",
	)
	return t, nil
}

// ExtractAll extracts every source concurrently and returns once all of them
// have settled. Tracks come back in the order of srcs, whatever order the
// extractions finished in. A failing file is reported in Failures and does not
// stop the others.
//
// ExtractAll owns srcs: successful ones move into the returned tracks, failed
// ones are closed. If ctx ends first, every source and acquired cover is
// released and ctx's error is returned.
func (e *Extractor) ExtractAll(ctx context.Context, srcs []media.Source) (Batch, error) {
	type result struct {
		track playlist.Track
		err   error
	}
	results := make([]result, len(srcs))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, src := range srcs {
		g.Go(func() error {
			t, err := e.Extract(ctx, src)
			results[i] = result{track: t, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		for i, res := range results {
			if res.err == nil {
				e.release(res.track)
			}
			_ = srcs[i].Close()
		}
		return Batch{}, err
	}

	var b Batch
	for i, res := range results {
		if res.err == nil {
			b.Tracks = append(b.Tracks, res.track)
			continue
		}
		var de *DecodeError
		if !errors.As(res.err, &de) {
			de = &DecodeError{Name: srcs[i].Name(), Err: res.err}
		}
		e.logger.Warn("skipping file", "name", de.Name, "error", de.Err)
		b.Failures = append(b.Failures, de)
		_ = srcs[i].Close()
	}
	return b, nil
}

// cleanTag strips padding left by fixed-width and NUL-terminated tag fields.
func cleanTag(s string) string {
	return strings.Trim(s, " \t\r\n\x00")
}

func (e *Extractor) release(t playlist.Track) {
	if e.covers != nil {
		e.covers.Release(t.Cover)
	}
}
