package playback

import "time"

// Host renders audio for the controller. Calls must not block on playback and
// events must be delivered asynchronously on Events, tagged with the token of
// the Load they belong to.
type Host interface {
	// Load stops whatever is playing and starts preparing ref. Ready or
	// Failed follows on Events.
	Load(token uint64, ref string)
	Play()
	Pause()
	Events() <-chan Event
}

// EventKind identifies a host notification.
type EventKind int

const (
	// EventReady means the loaded media can start.
	EventReady EventKind = iota + 1
	// EventEnded means playback reached the end of the media.
	EventEnded
	// EventTimeUpdate carries the playback position.
	EventTimeUpdate
	// EventFailed means the media could not be loaded or decoded.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventEnded:
		return "ended"
	case EventTimeUpdate:
		return "time_update"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is a host notification for the load identified by Token.
type Event struct {
	Kind     EventKind
	Token    uint64
	Current  time.Duration
	Duration time.Duration
	Err      error
}
