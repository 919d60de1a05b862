// Package playlist holds the ordered, append-only list of tracks for a session.
package playlist

import (
	"errors"
	"fmt"

	"github.com/olivier-w/tagdeck/internal/media"
)

// ErrDuplicateID is returned by Append when a track ID is already present
// or repeated within the appended batch.
var ErrDuplicateID = errors.New("duplicate track id")

// CoverReleaser drops a cover reference held by a track.
type CoverReleaser interface {
	Release(ref string)
}

// Store is the ordered track list. Insertion order defines next/previous
// adjacency. It is only mutated from the session's event loop.
type Store struct {
	tracks []Track
	index  map[string]int
	covers CoverReleaser
	closed bool
}

// New creates an empty Store. covers may be nil when tracks carry no
// cover references.
func New(covers CoverReleaser) *Store {
	return &Store{
		index:  make(map[string]int),
		covers: covers,
	}
}

// Append adds tracks to the end in the given order. The whole batch is
// rejected, leaving the store untouched, if any ID is empty or collides.
func (s *Store) Append(tracks ...Track) error {
	if s.closed {
		return errors.New("playlist closed")
	}
	seen := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		if t.ID == "" {
			return fmt.Errorf("%w: empty id", ErrDuplicateID)
		}
		if _, ok := s.index[t.ID]; ok || seen[t.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
		}
		seen[t.ID] = true
	}
	for _, t := range tracks {
		s.index[t.ID] = len(s.tracks)
		s.tracks = append(s.tracks, t)
	}
	return nil
}

// Find returns the track with the given ID.
func (s *Store) Find(id string) (Track, bool) {
	i, ok := s.index[id]
	if !ok {
		return Track{}, false
	}
	return s.tracks[i], true
}

// IndexOf returns the zero-based position of the track with the given ID.
func (s *Store) IndexOf(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// At returns the track at position i.
func (s *Store) At(i int) (Track, bool) {
	if i < 0 || i >= len(s.tracks) {
		return Track{}, false
	}
	return s.tracks[i], true
}

// Len returns the total number of tracks.
func (s *Store) Len() int {
	return len(s.tracks)
}

// Tracks returns a copy of the tracks in order.
func (s *Store) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// Close ends the session: every track's cover reference and source is
// released. Close is idempotent.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	srcs := make([]media.Source, 0, len(s.tracks))
	for _, t := range s.tracks {
		if s.covers != nil {
			s.covers.Release(t.Cover)
		}
		if t.Source != nil {
			srcs = append(srcs, t.Source)
		}
	}
	return media.CloseAll(srcs)
}
