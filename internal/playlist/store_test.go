package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olivier-w/tagdeck/internal/media"
)

type recordingReleaser struct {
	released []string
}

func (r *recordingReleaser) Release(ref string) { r.released = append(r.released, ref) }

func tracks(ids ...string) []Track {
	out := make([]Track, len(ids))
	for i, id := range ids {
		out[i] = Track{ID: id, Title: id}
	}
	return out
}

func TestAppendPreservesOrder(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Append(tracks("a", "b")...))
	require.NoError(t, s.Append(tracks("c")...))

	require.Equal(t, 3, s.Len())
	for i, want := range []string{"a", "b", "c"} {
		got, ok := s.At(i)
		require.True(t, ok)
		assert.Equal(t, want, got.ID)
		idx, ok := s.IndexOf(want)
		require.True(t, ok)
		assert.Equal(t, i, idx)
	}
}

func TestFindUnknown(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Append(tracks("a")...))

	_, ok := s.Find("zzz")
	assert.False(t, ok)
	_, ok = s.IndexOf("zzz")
	assert.False(t, ok)
	_, ok = s.At(1)
	assert.False(t, ok)
	_, ok = s.At(-1)
	assert.False(t, ok)
}

func TestAppendRejectsDuplicatesAtomically(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Append(tracks("a")...))

	err := s.Append(tracks("b", "a")...)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, s.Len())

	err = s.Append(tracks("c", "c")...)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, s.Len())

	err = s.Append(Track{})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestTracksReturnsCopy(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Append(tracks("a")...))

	snap := s.Tracks()
	snap[0].Title = "changed"

	got, _ := s.Find("a")
	assert.Equal(t, "a", got.Title)
}

func TestCloseReleasesCoversAndSources(t *testing.T) {
	rel := &recordingReleaser{}
	s := New(rel)
	src := media.NewMemorySource("a.mp3", []byte("x"), "")
	require.NoError(t, s.Append(
		Track{ID: "a", Cover: "cover:1", Source: src},
		Track{ID: "b", Cover: "cover:1"},
		Track{ID: "c"},
	))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"cover:1", "cover:1", ""}, rel.released)
	assert.True(t, src.Closed())
	assert.Error(t, s.Append(tracks("d")...))
}

func TestDisplayTitleFallsBack(t *testing.T) {
	assert.Equal(t, "Song", Track{ID: "x", Title: "Song"}.DisplayTitle())
	assert.Equal(t, "file.mp3", Track{ID: "x", Source: media.NewMemorySource("file.mp3", nil, "")}.DisplayTitle())
	assert.Equal(t, "x", Track{ID: "x"}.DisplayTitle())
}
