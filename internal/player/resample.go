package player

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	playbackSampleRate     = 48000
	playbackChannels       = 2
	playbackBytesPerSample = 2
	playbackFrameSize      = playbackChannels * playbackBytesPerSample
)

// toPlaybackFormat returns src unchanged when it is already 48 kHz stereo,
// otherwise a forward-only converter to that format.
func toPlaybackFormat(src pcmStream) (pcmStream, error) {
	rate, channels := src.SampleRate(), src.ChannelCount()
	if rate <= 0 {
		return nil, fmt.Errorf("unsupported sample rate: %d", rate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}
	if rate == playbackSampleRate && channels == playbackChannels {
		return src, nil
	}

	frameSize := channels * playbackBytesPerSample
	srcFrames := src.Length() / int64(frameSize)
	outFrames := srcFrames * playbackSampleRate / int64(rate)
	if srcFrames > 0 && outFrames == 0 {
		outFrames = 1
	}
	return &resampler{
		in:        bufio.NewReaderSize(src, 4096*frameSize),
		rate:      int64(rate),
		channels:  channels,
		frame:     make([]byte, frameSize),
		outFrames: outFrames,
		last:      -1,
	}, nil
}

// resampler mixes any channel layout down to stereo and converts the rate by
// linear interpolation between neighbouring source frames. Output frame k
// sits at source position k*rate/48000.
type resampler struct {
	in       *bufio.Reader
	rate     int64
	channels int
	frame    []byte

	outFrames int64
	written   int64

	// a and b are the source frames at index ai and ai+1.
	a, b    [playbackChannels]int16
	ai      int64
	started bool
	// last is the index of the final source frame once the input is drained.
	last int64

	out     []byte
	pending []byte
}

func (r *resampler) Length() int64     { return r.outFrames * playbackFrameSize }
func (r *resampler) SampleRate() int   { return playbackSampleRate }
func (r *resampler) ChannelCount() int { return playbackChannels }

func (r *resampler) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		if err := r.fill(max(len(p)/playbackFrameSize, 1)); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// fill renders up to frames output frames into pending. It returns an error
// only when nothing could be rendered.
func (r *resampler) fill(frames int) error {
	if cap(r.out) < frames*playbackFrameSize {
		r.out = make([]byte, frames*playbackFrameSize)
	}
	out := r.out[:0]

	var err error
	for range frames {
		if r.written >= r.outFrames {
			err = io.EOF
			break
		}
		pos := r.written * r.rate
		if err = r.seekFrame(pos / playbackSampleRate); err != nil {
			break
		}
		frac := pos % playbackSampleRate
		out = binary.LittleEndian.AppendUint16(out, uint16(lerp(r.a[0], r.b[0], frac)))
		out = binary.LittleEndian.AppendUint16(out, uint16(lerp(r.a[1], r.b[1], frac)))
		r.written++
	}

	if len(out) == 0 {
		return err
	}
	r.pending = out
	return nil
}

// seekFrame advances the a/b window until a holds source frame idx.
func (r *resampler) seekFrame(idx int64) error {
	if !r.started {
		f, err := r.readFrame()
		if err != nil {
			return err
		}
		r.a, r.b, r.started = f, f, true
		if err := r.advanceB(); err != nil {
			return err
		}
	}
	for r.ai < idx {
		if r.last >= 0 && r.ai >= r.last {
			return io.EOF
		}
		r.a = r.b
		r.ai++
		if err := r.advanceB(); err != nil {
			return err
		}
	}
	return nil
}

// advanceB loads frame ai+1 into b, holding a once the input is drained.
func (r *resampler) advanceB() error {
	if r.last >= 0 {
		r.b = r.a
		return nil
	}
	f, err := r.readFrame()
	switch {
	case errors.Is(err, io.EOF):
		r.last = r.ai
		r.b = r.a
		return nil
	case err != nil:
		return err
	}
	r.b = f
	return nil
}

func (r *resampler) readFrame() ([playbackChannels]int16, error) {
	if _, err := io.ReadFull(r.in, r.frame); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return [playbackChannels]int16{}, err
	}
	left, right := downmix(r.frame, r.channels)
	return [playbackChannels]int16{left, right}, nil
}

// lerp interpolates between a and b at frac/48000.
func lerp(a, b int16, frac int64) int16 {
	if frac == 0 || a == b {
		return a
	}
	diff := int64(b) - int64(a)
	return int16(int64(a) + (diff*frac+playbackSampleRate/2)/playbackSampleRate)
}

// downmix folds one interleaved s16le frame into a stereo pair. Even channels
// are averaged into left, odd channels into right.
func downmix(frame []byte, channels int) (int16, int16) {
	if channels == 1 {
		s := int16(binary.LittleEndian.Uint16(frame))
		return s, s
	}
	var left, right, nl, nr int
	for ch := range channels {
		s := int(int16(binary.LittleEndian.Uint16(frame[ch*2:])))
		if ch%2 == 0 {
			left += s
			nl++
		} else {
			right += s
			nr++
		}
	}
	return clampPCM16(left / nl), clampPCM16(right / nr)
}
