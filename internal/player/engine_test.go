package player

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/olivier-w/tagdeck/internal/playback"
)

type fakeOutput struct {
	mu      sync.Mutex
	r       io.Reader
	playing bool
	volume  float64
}

// Play drains the whole source at once, so the track ends on the next tick.
func (o *fakeOutput) Play() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.playing = true
	io.Copy(io.Discard, o.r)
	o.playing = false
}

func (o *fakeOutput) Pause()              { o.mu.Lock(); o.playing = false; o.mu.Unlock() }
func (o *fakeOutput) IsPlaying() bool     { o.mu.Lock(); defer o.mu.Unlock(); return o.playing }
func (o *fakeOutput) SetVolume(v float64) { o.mu.Lock(); o.volume = v; o.mu.Unlock() }
func (o *fakeOutput) Volume() float64     { o.mu.Lock(); defer o.mu.Unlock(); return o.volume }

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newTestEngine(open func(string) (pcmStream, io.Closer, error)) (*Engine, *[]*fakeOutput) {
	var mu sync.Mutex
	outputs := []*fakeOutput{}
	e := New(Options{Tick: 5 * time.Millisecond})
	e.open = open
	e.newOutput = func(r io.Reader) (output, error) {
		mu.Lock()
		defer mu.Unlock()
		o := &fakeOutput{r: r}
		outputs = append(outputs, o)
		return o, nil
	}
	return e, &outputs
}

// oneSecond is one second of silent 48 kHz stereo PCM.
func oneSecond(string) (pcmStream, io.Closer, error) {
	return &stubPCM{
		data:       make([]byte, playbackBytesPerSec),
		sampleRate: playbackSampleRate,
		channels:   playbackChannels,
	}, nopCloser{}, nil
}

func nextEvent(t *testing.T, e *Engine, kind playback.EventKind) playback.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-e.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("expected %s event, got none", kind)
		}
	}
}

func TestEngineLoadPlayEnd(t *testing.T) {
	e, _ := newTestEngine(oneSecond)
	defer e.Close()

	e.Load(1, "/music/a.wav")
	ready := nextEvent(t, e, playback.EventReady)
	if ready.Token != 1 {
		t.Fatalf("expected ready for token 1, got %d", ready.Token)
	}
	if ready.Duration != time.Second {
		t.Fatalf("expected duration 1s, got %v", ready.Duration)
	}

	e.Play()
	ended := nextEvent(t, e, playback.EventEnded)
	if ended.Token != 1 {
		t.Fatalf("expected ended for token 1, got %d", ended.Token)
	}
}

func TestEngineSupersededLoadNeverReady(t *testing.T) {
	release := make(chan struct{})
	e, _ := newTestEngine(func(ref string) (pcmStream, io.Closer, error) {
		if ref == "slow" {
			<-release
		}
		return oneSecond(ref)
	})
	defer e.Close()

	e.Load(1, "slow")
	e.Load(2, "fast")
	ready := nextEvent(t, e, playback.EventReady)
	if ready.Token != 2 {
		t.Fatalf("expected ready for token 2, got %d", ready.Token)
	}
	close(release)

	select {
	case ev := <-e.Events():
		t.Fatalf("expected no event for superseded load, got %s for token %d", ev.Kind, ev.Token)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngineLoadFailure(t *testing.T) {
	boom := errors.New("gone")
	e, _ := newTestEngine(func(string) (pcmStream, io.Closer, error) { return nil, nil, boom })
	defer e.Close()

	e.Load(3, "/missing.mp3")
	ev := nextEvent(t, e, playback.EventFailed)
	if ev.Token != 3 || !errors.Is(ev.Err, boom) {
		t.Fatalf("expected failed event for token 3 wrapping %v, got %+v", boom, ev)
	}
}

func TestEngineEmptyRefFails(t *testing.T) {
	e := New(Options{})
	defer e.Close()

	e.Load(1, "")
	ev := nextEvent(t, e, playback.EventFailed)
	if !errors.Is(ev.Err, errNoMediaRef) {
		t.Fatalf("expected errNoMediaRef, got %v", ev.Err)
	}
}

func TestEngineVolumeClampsAndApplies(t *testing.T) {
	e, outputs := newTestEngine(oneSecond)
	defer e.Close()

	e.Load(1, "a")
	nextEvent(t, e, playback.EventReady)

	e.SetVolume(1.7)
	if got := e.Volume(); got != 1 {
		t.Fatalf("expected volume clamped to 1, got %v", got)
	}
	e.AdjustVolume(-2)
	if got := e.Volume(); got != 0 {
		t.Fatalf("expected volume clamped to 0, got %v", got)
	}
	if got := (*outputs)[0].Volume(); got != 0 {
		t.Fatalf("expected output volume 0, got %v", got)
	}
}

func TestEngineCloseClosesEvents(t *testing.T) {
	e, _ := newTestEngine(oneSecond)
	e.Load(1, "a")
	nextEvent(t, e, playback.EventReady)
	e.Close()
	e.Close()

	for range e.Events() {
	}
	e.Load(2, "b")
}

func TestBytesToDuration(t *testing.T) {
	if got := bytesToDuration(playbackBytesPerSec / 2); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %v", got)
	}
}
