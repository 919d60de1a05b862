// Package playback holds the transport state machine: which track is
// selected, whether it is playing, and how ready/ended events from the audio
// host move that state forward.
package playback

import (
	"log/slog"

	"github.com/olivier-w/tagdeck/internal/playlist"
)

// Playlist is the read side of the playlist the controller navigates.
type Playlist interface {
	Find(id string) (playlist.Track, bool)
	IndexOf(id string) (int, bool)
	At(i int) (playlist.Track, bool)
	Len() int
}

// Controller is the only writer of playback State. It is not safe for
// concurrent use; the session loop owns it.
type Controller struct {
	tracks Playlist
	host   Host
	logger *slog.Logger

	state State
	token uint64
	// pausePending records a pause requested while loading.
	pausePending bool
}

// NewController creates an idle controller with no selection.
func NewController(tracks Playlist, host Host, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{tracks: tracks, host: host, logger: logger}
}

// State returns the current snapshot.
func (c *Controller) State() State { return c.state }

// Token returns the token of the most recent load, 0 before the first.
func (c *Controller) Token() uint64 { return c.token }

// Current reports whether token belongs to the most recent load.
func (c *Controller) Current(token uint64) bool {
	return token != 0 && token == c.token
}

// PlayTrack selects id and asks the host to load it. Re-selecting the track
// that is already playing or loading does nothing; a paused or stopped
// selection restarts from the beginning.
func (c *Controller) PlayTrack(id string) error {
	t, ok := c.tracks.Find(id)
	if !ok {
		return &TrackNotFoundError{ID: id}
	}
	if c.state.SelectedID == id && (c.state.Run == Playing || c.state.Loading) {
		return nil
	}
	c.load(t)
	return nil
}

func (c *Controller) load(t playlist.Track) {
	if c.state.Loading {
		c.logger.Debug("superseding load", "track_id", c.state.SelectedID, "token", c.token)
	}
	c.token++
	c.state = State{SelectedID: t.ID, Run: Idle, Loading: true}
	c.pausePending = false

	var ref string
	if t.Source != nil {
		ref = t.Source.MediaRef()
	}
	c.logger.Debug("loading track", "track_id", t.ID, "token", c.token)
	c.host.Load(c.token, ref)
}

// Pause pauses a playing track. While loading, the pause is applied once the
// track is ready.
func (c *Controller) Pause() {
	if c.state.Loading {
		c.pausePending = true
		return
	}
	if c.state.Run != Playing {
		return
	}
	c.state.Run = Paused
	c.host.Pause()
}

// Resume continues a paused track. While loading, it cancels a pending pause.
func (c *Controller) Resume() {
	if c.state.Loading {
		c.pausePending = false
		return
	}
	if c.state.Run != Paused {
		return
	}
	c.state.Run = Playing
	c.host.Play()
}

// TogglePause flips between playing and paused. With a stopped selection it
// restarts that track; with nothing selected it starts the first track.
func (c *Controller) TogglePause() {
	switch {
	case c.state.Loading:
		c.pausePending = !c.pausePending
	case c.state.Run == Playing:
		c.Pause()
	case c.state.Run == Paused:
		c.Resume()
	case c.state.HasSelection():
		if t, ok := c.tracks.Find(c.state.SelectedID); ok {
			c.load(t)
		}
	default:
		if t, ok := c.tracks.At(0); ok {
			c.load(t)
		}
	}
}

// Next moves to the track after the selection.
func (c *Controller) Next() Outcome {
	return c.step(1)
}

// Previous moves to the track before the selection.
func (c *Controller) Previous() Outcome {
	return c.step(-1)
}

func (c *Controller) step(delta int) Outcome {
	if !c.state.HasSelection() {
		return NoSelection
	}
	i, ok := c.tracks.IndexOf(c.state.SelectedID)
	if !ok {
		return NoSelection
	}
	j := i + delta
	if j > c.tracks.Len()-1 {
		return EndOfPlaylist
	}
	if j < 0 {
		return StartOfPlaylist
	}
	t, ok := c.tracks.At(j)
	if !ok {
		return Unchanged
	}
	c.load(t)
	return Moved
}

// HandleEvent applies a host event and reports whether State changed.
// Events for any load other than the latest are dropped.
func (c *Controller) HandleEvent(ev Event) bool {
	if !c.Current(ev.Token) {
		if ev.Kind != EventTimeUpdate {
			c.logger.Debug("dropping stale event", "kind", ev.Kind, "token", ev.Token, "current", c.token)
		}
		return false
	}

	switch ev.Kind {
	case EventReady:
		if !c.state.Loading {
			return false
		}
		c.state.Loading = false
		if c.pausePending {
			c.pausePending = false
			c.state.Run = Paused
			return true
		}
		c.state.Run = Playing
		c.host.Play()
		return true

	case EventEnded:
		if c.state.Run != Playing {
			return false
		}
		if out := c.Next(); out != Moved {
			c.logger.Debug("playlist finished", "track_id", c.state.SelectedID, "outcome", out)
			c.state.Run = Idle
		}
		return true

	case EventFailed:
		if !c.state.Loading && c.state.Run == Idle {
			return false
		}
		c.logger.Warn("playback failed", "track_id", c.state.SelectedID, "error", ev.Err)
		c.state.Run = Idle
		c.state.Loading = false
		c.pausePending = false
		return true
	}
	return false
}
