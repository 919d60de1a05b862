package playlist

import "github.com/olivier-w/tagdeck/internal/media"

// UnknownArtist is shown when a file carries no artist tag.
const UnknownArtist = "Unknown"

// Track represents a single playable item in the playlist.
type Track struct {
	ID     string
	Title  string
	Artist string
	Album  string
	// Cover is a cover.Cache reference, empty when the file has no picture.
	Cover string
	// Format is the detected container, e.g. "MP3" or "FLAC".
	Format string
	Source media.Source
}

// DisplayTitle returns the title, falling back to the source name.
func (t Track) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	if t.Source != nil {
		return t.Source.Name()
	}
	return t.ID
}
