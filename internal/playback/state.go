package playback

// RunState is the transport state of the controller.
type RunState int

const (
	Idle RunState = iota
	Playing
	Paused
)

func (s RunState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// State is a snapshot of the controller. Run is Idle while Loading.
type State struct {
	SelectedID string
	Run        RunState
	Loading    bool
}

// HasSelection reports whether a track is selected.
func (s State) HasSelection() bool { return s.SelectedID != "" }

// Outcome reports what a navigation request did. Boundaries are not errors.
type Outcome int

const (
	Unchanged Outcome = iota
	Moved
	EndOfPlaylist
	StartOfPlaylist
	NoSelection
)

func (o Outcome) String() string {
	switch o {
	case Moved:
		return "moved"
	case EndOfPlaylist:
		return "end of playlist"
	case StartOfPlaylist:
		return "start of playlist"
	case NoSelection:
		return "no selection"
	default:
		return "unchanged"
	}
}
