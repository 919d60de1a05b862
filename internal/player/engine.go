// Package player renders local audio files through the system audio device.
// Engine is the playback host: it loads, plays and pauses one track at a time
// and reports progress as token-tagged events.
package player

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/olivier-w/tagdeck/internal/playback"
)

const (
	// DefaultTick is how often a playing track reports its position.
	DefaultTick = 250 * time.Millisecond
	// DefaultVolume is the initial output volume.
	DefaultVolume = 0.8

	playbackBytesPerSec = playbackSampleRate * playbackFrameSize
	eventBuffer         = 64
)

// Options configures an Engine.
type Options struct {
	Logger *slog.Logger
	Tick   time.Duration
	Volume float64
}

// Engine implements playback.Host on top of oto. All methods are safe for
// concurrent use.
type Engine struct {
	logger *slog.Logger
	tick   time.Duration
	events chan playback.Event
	done   chan struct{}
	wg     sync.WaitGroup

	open      func(ref string) (pcmStream, io.Closer, error)
	newOutput func(r io.Reader) (output, error)

	mu      sync.Mutex
	token   uint64
	current *loadedTrack
	volume  float64
	closed  bool
}

var _ playback.Host = (*Engine)(nil)

// loadedTrack is the decoder and output for one Load.
type loadedTrack struct {
	token    uint64
	ref      string
	closer   io.Closer
	counter  *countingReader
	out      output
	length   int64
	playing  bool
	started  bool
	stop     chan struct{}
	stopOnce sync.Once
}

func (t *loadedTrack) position() time.Duration {
	return bytesToDuration(t.counter.Pos())
}

func (t *loadedTrack) duration() time.Duration {
	return bytesToDuration(t.length)
}

func (t *loadedTrack) release() {
	t.stopOnce.Do(func() {
		close(t.stop)
		t.out.Pause()
		if t.closer != nil {
			t.closer.Close()
		}
	})
}

func bytesToDuration(n int64) time.Duration {
	return time.Duration(float64(n) / float64(playbackBytesPerSec) * float64(time.Second))
}

// New creates an Engine. The audio device is opened on the first load.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Volume <= 0 || opts.Volume > 1 {
		opts.Volume = DefaultVolume
	}
	return &Engine{
		logger:    opts.Logger,
		tick:      opts.Tick,
		events:    make(chan playback.Event, eventBuffer),
		done:      make(chan struct{}),
		open:      openFile,
		newOutput: newOtoOutput,
		volume:    opts.Volume,
	}
}

// Events returns the event stream. It is closed by Close.
func (e *Engine) Events() <-chan playback.Event {
	return e.events
}

// Load stops the current track and prepares ref in the background.
func (e *Engine) Load(token uint64, ref string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.token = token
	prev := e.current
	e.current = nil
	e.wg.Add(1)
	e.mu.Unlock()

	if prev != nil {
		prev.release()
	}
	go e.prepare(token, ref)
}

func (e *Engine) prepare(token uint64, ref string) {
	defer e.wg.Done()

	dec, closer, err := e.open(ref)
	if err != nil {
		e.logger.Warn("load failed", "ref", ref, "token", token, "error", err)
		e.emit(playback.Event{Kind: playback.EventFailed, Token: token, Err: err})
		return
	}
	counter := &countingReader{reader: dec}
	out, err := e.newOutput(counter)
	if err != nil {
		closer.Close()
		e.logger.Error("audio output unavailable", "error", err)
		e.emit(playback.Event{Kind: playback.EventFailed, Token: token, Err: err})
		return
	}

	t := &loadedTrack{
		token:   token,
		ref:     ref,
		closer:  closer,
		counter: counter,
		out:     out,
		length:  dec.Length(),
		stop:    make(chan struct{}),
	}

	e.mu.Lock()
	if e.closed || e.token != token {
		e.mu.Unlock()
		t.release()
		e.logger.Debug("load superseded", "ref", ref, "token", token)
		return
	}
	out.SetVolume(e.volume)
	e.current = t
	e.mu.Unlock()

	e.logger.Debug("track ready", "ref", ref, "token", token, "duration", t.duration())
	e.emit(playback.Event{Kind: playback.EventReady, Token: token, Duration: t.duration()})
}

// Play starts or resumes the loaded track.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.current
	if t == nil || t.playing {
		return
	}
	t.out.Play()
	t.playing = true
	if !t.started {
		t.started = true
		e.wg.Add(1)
		go e.monitor(t)
	}
}

// Pause pauses the loaded track.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.current
	if t == nil || !t.playing {
		return
	}
	t.out.Pause()
	t.playing = false
}

// monitor reports the position while t plays and signals the end once the
// decoder is drained and the output has gone quiet.
func (e *Engine) monitor(t *loadedTrack) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		playing := t.playing
		e.mu.Unlock()
		if !playing {
			continue
		}

		pos := t.counter.Pos()
		if pos >= t.length && !t.out.IsPlaying() {
			e.emit(playback.Event{Kind: playback.EventTimeUpdate, Token: t.token, Current: t.duration(), Duration: t.duration()})
			e.emit(playback.Event{Kind: playback.EventEnded, Token: t.token})
			return
		}
		e.emit(playback.Event{Kind: playback.EventTimeUpdate, Token: t.token, Current: t.position(), Duration: t.duration()})
	}
}

// emit delivers ev unless the engine is closing. Time updates are dropped
// when the consumer is behind.
func (e *Engine) emit(ev playback.Event) {
	if ev.Kind == playback.EventTimeUpdate {
		select {
		case e.events <- ev:
		default:
		}
		return
	}
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

// Volume returns the current volume (0.0 to 1.0).
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// SetVolume sets the volume, clamped to 0.0 - 1.0.
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = min(max(v, 0), 1)
	if e.current != nil {
		e.current.out.SetVolume(e.volume)
	}
}

// AdjustVolume changes the volume by delta.
func (e *Engine) AdjustVolume(delta float64) {
	e.SetVolume(e.Volume() + delta)
}

// Close stops playback, waits for background work and closes Events.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.done)
	t := e.current
	e.current = nil
	e.mu.Unlock()

	if t != nil {
		t.release()
	}
	e.wg.Wait()
	close(e.events)
}
