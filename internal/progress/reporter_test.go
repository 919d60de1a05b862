package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFraction(t *testing.T) {
	cases := []struct {
		cur, dur time.Duration
		want     float64
	}{
		{0, 0, 0},
		{time.Second, 0, 0},
		{time.Second, -time.Second, 0},
		{-time.Second, 4 * time.Second, 0},
		{time.Second, 4 * time.Second, 0.25},
		{5 * time.Second, 4 * time.Second, 1},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, Fraction(tc.cur, tc.dur), 1e-9, "cur=%v dur=%v", tc.cur, tc.dur)
	}
}

func TestTickRequiresAttachedToken(t *testing.T) {
	r := NewReporter()
	assert.False(t, r.Tick(1, time.Second, time.Minute))
	_, ok := r.Latest()
	assert.False(t, ok)

	r.Attach("trk-a", 2)
	assert.False(t, r.Tick(1, time.Second, time.Minute))
	assert.True(t, r.Tick(2, 30*time.Second, time.Minute))

	s, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, Snapshot{TrackID: "trk-a", Current: 30 * time.Second, Duration: time.Minute, Fraction: 0.5}, s)

	r.Detach()
	assert.False(t, r.Tick(2, 40*time.Second, time.Minute))
	s, _ = r.Latest()
	assert.Equal(t, 30*time.Second, s.Current)
}

func TestAttachResetsPosition(t *testing.T) {
	r := NewReporter()
	r.Attach("trk-a", 1)
	r.Tick(1, 10*time.Second, time.Minute)
	r.Attach("trk-b", 2)

	s, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, Snapshot{TrackID: "trk-b"}, s)
	token, attached := r.Attached()
	assert.True(t, attached)
	assert.Equal(t, uint64(2), token)
}

func TestObserveDeliversLatest(t *testing.T) {
	r := NewReporter()
	r.Attach("trk-a", 1)
	for i := 1; i <= 5; i++ {
		r.Tick(1, time.Duration(i)*time.Second, 10*time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for s := range r.Observe(ctx) {
		assert.Equal(t, 5*time.Second, s.Current, "slow consumer sees only the newest sample")
		break
	}
}

func TestObserveFollowsUpdatesAndStopsOnCancel(t *testing.T) {
	r := NewReporter()
	r.Attach("trk-a", 1)

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Snapshot, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for s := range r.Observe(ctx) {
			got <- s
		}
	}()

	first := <-got
	assert.Equal(t, "trk-a", first.TrackID)

	r.Tick(1, 3*time.Second, 6*time.Second)
	assert.Eventually(t, func() bool {
		select {
		case s := <-got:
			return s.Current == 3*time.Second
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observer did not stop after cancel")
	}
}

func TestObserveIsRestartable(t *testing.T) {
	r := NewReporter()
	r.Attach("trk-a", 7)
	r.Tick(7, time.Second, 2*time.Second)
	ctx := context.Background()

	for range 2 {
		var n int
		for s := range r.Observe(ctx) {
			assert.InDelta(t, 0.5, s.Fraction, 1e-9)
			n++
			break
		}
		assert.Equal(t, 1, n)
	}
	r.mu.Lock()
	assert.Empty(t, r.subs)
	r.mu.Unlock()
}

func TestStaleTickNeverReachesObservers(t *testing.T) {
	r := NewReporter()
	r.Attach("trk-a", 1)
	r.Attach("trk-b", 2)
	r.Tick(1, 9*time.Second, 10*time.Second)

	for s := range r.Observe(context.Background()) {
		assert.Equal(t, Snapshot{TrackID: "trk-b"}, s)
		break
	}
}

func TestObserveSilentWhileDetached(t *testing.T) {
	r := NewReporter()
	r.Attach("trk-old", 1)
	r.Tick(1, time.Second, 2*time.Second)
	r.Detach()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Snapshot, 4)
	go func() {
		for s := range r.Observe(ctx) {
			got <- s
		}
	}()

	select {
	case s := <-got:
		t.Fatalf("expected no snapshot while detached, got %+v", s)
	case <-time.After(50 * time.Millisecond):
	}

	r.Attach("trk-new", 2)
	select {
	case s := <-got:
		assert.Equal(t, Snapshot{TrackID: "trk-new"}, s)
	case <-time.After(time.Second):
		t.Fatal("expected the new track after Attach")
	}
}
