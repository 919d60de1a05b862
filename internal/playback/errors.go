package playback

import (
	"errors"
	"fmt"
)

// ErrTrackNotFound matches any *TrackNotFoundError with errors.Is.
var ErrTrackNotFound = errors.New("track not found")

// TrackNotFoundError is returned when a requested track ID is not in the playlist.
type TrackNotFoundError struct {
	ID string
}

func (e *TrackNotFoundError) Error() string {
	return fmt.Sprintf("track %q not found", e.ID)
}

func (e *TrackNotFoundError) Is(target error) bool {
	return target == ErrTrackNotFound
}
