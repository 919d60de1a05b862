// Package progress publishes the playback position of the current track to
// any number of observers.
package progress

import (
	"context"
	"iter"
	"sync"
	"time"
)

// Snapshot is one position sample. Fraction is Current/Duration clamped to
// [0,1], or 0 when the duration is not known.
type Snapshot struct {
	TrackID  string
	Current  time.Duration
	Duration time.Duration
	Fraction float64
}

// Reporter holds the latest position of the attached track. Observers only
// ever see the newest sample; intermediate ones are overwritten.
type Reporter struct {
	mu       sync.Mutex
	attached bool
	trackID  string
	token    uint64
	latest   Snapshot
	version  uint64
	subs     map[chan struct{}]struct{}
}

// NewReporter creates a detached reporter.
func NewReporter() *Reporter {
	return &Reporter{subs: make(map[chan struct{}]struct{})}
}

// Attach starts the stream for trackID. Only ticks carrying token are
// published until the next Attach or Detach.
func (r *Reporter) Attach(trackID string, token uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = true
	r.trackID = trackID
	r.token = token
	r.publishLocked(Snapshot{TrackID: trackID})
}

// Detach stops the stream. Ticks are ignored until the next Attach.
func (r *Reporter) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = false
	r.token = 0
}

// Attached reports whether a stream is running, and for which token.
func (r *Reporter) Attached() (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token, r.attached
}

// Tick publishes a position for the attached track. It reports false and
// publishes nothing when token is not the attached one.
func (r *Reporter) Tick(token uint64, current, duration time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.attached || token != r.token {
		return false
	}
	r.publishLocked(Snapshot{
		TrackID:  r.trackID,
		Current:  current,
		Duration: duration,
		Fraction: Fraction(current, duration),
	})
	return true
}

func (r *Reporter) publishLocked(s Snapshot) {
	r.latest = s
	r.version++
	for ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Latest returns the most recent snapshot, if a track was ever attached.
func (r *Reporter) Latest() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.version > 0
}

// Observe returns a sequence of snapshots that runs until ctx is done or the
// consumer stops. Each call subscribes independently. While a track is
// attached it starts with the latest snapshot; while detached it stays silent
// until the next Attach.
func (r *Reporter) Observe(ctx context.Context) iter.Seq[Snapshot] {
	return func(yield func(Snapshot) bool) {
		ch := make(chan struct{}, 1)
		var seen uint64
		r.mu.Lock()
		r.subs[ch] = struct{}{}
		if !r.attached {
			seen = r.version
		}
		r.mu.Unlock()
		defer func() {
			r.mu.Lock()
			delete(r.subs, ch)
			r.mu.Unlock()
		}()

		for {
			if ctx.Err() != nil {
				return
			}
			if s, v, ok := r.since(seen); ok {
				seen = v
				if !yield(s) {
					return
				}
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-ch:
			}
		}
	}
}

func (r *Reporter) since(seen uint64) (Snapshot, uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.version <= seen {
		return Snapshot{}, seen, false
	}
	return r.latest, r.version, true
}

// Fraction returns current/duration clamped to [0,1]; 0 for unknown duration.
func Fraction(current, duration time.Duration) float64 {
	if duration <= 0 || current <= 0 {
		return 0
	}
	f := float64(current) / float64(duration)
	if f > 1 {
		return 1
	}
	return f
}
