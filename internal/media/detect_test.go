package media

import "testing"

func TestIsSupportedExtIsCaseInsensitive(t *testing.T) {
	for _, ext := range []string{".mp3", ".MP3", ".Flac", ".m4b"} {
		if !IsSupportedExt(ext) {
			t.Fatalf("expected %s to be supported", ext)
		}
	}
	if IsSupportedExt(".txt") {
		t.Fatal("expected .txt to be unsupported")
	}
}

func TestM4AIsListedButNotPlayable(t *testing.T) {
	if !IsSupportedExt(".m4a") {
		t.Fatal("expected .m4a to be supported for tag reading")
	}
	if IsPlayableExt(".m4a") {
		t.Fatal("expected .m4a to be unplayable")
	}
}

func TestIsPlaylistExt(t *testing.T) {
	if !IsPlaylistExt(".M3U8") {
		t.Fatal("expected .M3U8 to be a playlist extension")
	}
	if IsPlaylistExt(".mp3") {
		t.Fatal("expected .mp3 not to be a playlist extension")
	}
}
