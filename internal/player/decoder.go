package player

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
	"github.com/olivier-w/tagdeck/internal/media"
)

// pcmStream is a forward-only interleaved s16le PCM stream. Length is the
// total size in bytes, when the container reports it.
type pcmStream interface {
	io.Reader
	Length() int64
	SampleRate() int
	ChannelCount() int
}

var (
	errNoMediaRef  = errors.New("no media reference")
	errNotPlayable = errors.New("format not supported for playback")
)

// openFile opens the file behind ref and returns its audio in the playback
// format. The returned closer releases the file.
func openFile(ref string) (pcmStream, io.Closer, error) {
	if ref == "" {
		return nil, nil, errNoMediaRef
	}
	if !media.IsPlayableExt(filepath.Ext(ref)) {
		return nil, nil, fmt.Errorf("%s: %w", filepath.Base(ref), errNotPlayable)
	}
	f, err := os.Open(ref)
	if err != nil {
		return nil, nil, err
	}
	src, err := newDecoder(f, filepath.Ext(ref))
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("decoding %s: %w", filepath.Base(ref), err)
	}
	dec, err := toPlaybackFormat(src)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("decoding %s: %w", filepath.Base(ref), err)
	}
	return dec, f, nil
}

// newDecoder picks a decoder by file extension. WAV needs r to seek past
// its header chunks; the other formats only read forward.
func newDecoder(r io.ReadSeeker, ext string) (pcmStream, error) {
	switch strings.ToLower(ext) {
	case ".mp3":
		return newMP3Decoder(r)
	case ".wav":
		return newWAVDecoder(r)
	case ".flac":
		return newFLACDecoder(r)
	case ".ogg":
		return newOGGDecoder(r)
	default:
		return nil, fmt.Errorf("unsupported format: %s", ext)
	}
}

// pcmBuffer holds converted samples that did not fit the caller's buffer.
type pcmBuffer struct {
	buf []byte
}

func (b *pcmBuffer) drain(p []byte) (int, bool) {
	if len(b.buf) == 0 {
		return 0, false
	}
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, true
}

func (b *pcmBuffer) emit(p, raw []byte) int {
	n := copy(p, raw)
	if n < len(raw) {
		b.buf = raw[n:]
	}
	return n
}

func clampPCM16(sample int) int16 {
	return int16(min(max(sample, -32768), 32767))
}

// --- MP3 ---

type mp3Decoder struct {
	dec *mp3.Decoder
}

func newMP3Decoder(r io.Reader) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	return &mp3Decoder{dec: dec}, nil
}

func (d *mp3Decoder) Read(p []byte) (int, error) { return d.dec.Read(p) }
func (d *mp3Decoder) Length() int64              { return d.dec.Length() }
func (d *mp3Decoder) SampleRate() int            { return d.dec.SampleRate() }
func (d *mp3Decoder) ChannelCount() int          { return 2 }

// --- WAV ---

type wavDecoder struct {
	pcmBuffer
	r           io.Reader
	totalBytes  int64
	sampleRate  int
	channels    int
	srcBitDepth int
}

func newWAVDecoder(r io.ReadSeeker) (*wavDecoder, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	if channels == 0 || bitDepth%8 != 0 || bitDepth == 0 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported WAV layout: %d channels, %d bits", channels, bitDepth)
	}
	srcFrameSize := int64(channels) * int64(bitDepth) / 8

	return &wavDecoder{
		r:           io.LimitReader(r, dec.PCMLen()),
		sampleRate:  int(dec.SampleRate),
		channels:    channels,
		srcBitDepth: bitDepth,
		totalBytes:  dec.PCMLen() / srcFrameSize * int64(channels) * 2,
	}, nil
}

func (d *wavDecoder) Read(p []byte) (int, error) {
	if n, ok := d.drain(p); ok {
		return n, nil
	}

	width := d.srcBitDepth / 8
	samples := max(len(p)/2, 1)
	src := make([]byte, samples*width)
	n, err := io.ReadFull(d.r, src)
	samples = n / width
	if samples == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, err
	}

	raw := make([]byte, samples*2)
	for i := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(pcmSample(src[i*width:], d.srcBitDepth)))
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return d.emit(p, raw), err
}

// pcmSample converts one little-endian integer sample to 16 bits.
func pcmSample(b []byte, bits int) int16 {
	switch bits {
	case 8:
		return clampPCM16((int(b[0]) - 128) << 8)
	case 16:
		return int16(binary.LittleEndian.Uint16(b))
	case 24:
		s := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if s&0x800000 != 0 {
			s |= ^0xFFFFFF
		}
		return clampPCM16(int(s >> 8))
	case 32:
		return int16(int32(binary.LittleEndian.Uint32(b)) >> 16)
	}
	return 0
}

func (d *wavDecoder) Length() int64     { return d.totalBytes }
func (d *wavDecoder) SampleRate() int   { return d.sampleRate }
func (d *wavDecoder) ChannelCount() int { return d.channels }

// --- FLAC ---

type flacDecoder struct {
	pcmBuffer
	stream     *flac.Stream
	totalBytes int64
	sampleRate int
	channels   int
	bps        int
}

func newFLACDecoder(r io.Reader) (*flacDecoder, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	info := stream.Info
	channels := int(info.NChannels)
	return &flacDecoder{
		stream:     stream,
		sampleRate: int(info.SampleRate),
		channels:   channels,
		bps:        int(info.BitsPerSample),
		totalBytes: int64(info.NSamples) * int64(channels) * 2,
	}, nil
}

func (d *flacDecoder) Read(p []byte) (int, error) {
	if n, ok := d.drain(p); ok {
		return n, nil
	}

	frame, err := d.stream.ParseNext()
	if err != nil {
		return 0, err
	}

	nSamples := int(frame.Subframes[0].NSamples)
	raw := make([]byte, nSamples*d.channels*2)
	for i := range nSamples {
		for ch := range d.channels {
			sample := int(frame.Subframes[ch].Samples[i])
			if d.bps > 16 {
				sample >>= d.bps - 16
			} else if d.bps < 16 {
				sample <<= 16 - d.bps
			}
			binary.LittleEndian.PutUint16(raw[(i*d.channels+ch)*2:], uint16(clampPCM16(sample)))
		}
	}
	return d.emit(p, raw), nil
}

func (d *flacDecoder) Length() int64     { return d.totalBytes }
func (d *flacDecoder) SampleRate() int   { return d.sampleRate }
func (d *flacDecoder) ChannelCount() int { return d.channels }

// --- Ogg Vorbis ---

type oggDecoder struct {
	pcmBuffer
	reader     *oggvorbis.Reader
	totalBytes int64
	sampleRate int
	channels   int
}

func newOGGDecoder(r io.Reader) (*oggDecoder, error) {
	reader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	channels := reader.Channels()
	return &oggDecoder{
		reader:     reader,
		sampleRate: reader.SampleRate(),
		channels:   channels,
		totalBytes: reader.Length() * int64(channels) * 2,
	}, nil
}

func (d *oggDecoder) Read(p []byte) (int, error) {
	if n, ok := d.drain(p); ok {
		return n, nil
	}

	samples := make([]float32, max(len(p)/2, 1))
	n, err := d.reader.Read(samples)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	raw := make([]byte, n*2)
	for i, s := range samples[:n] {
		s = min(max(s, -1), 1)
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(s*32767)))
	}
	return d.emit(p, raw), err
}

func (d *oggDecoder) Length() int64     { return d.totalBytes }
func (d *oggDecoder) SampleRate() int   { return d.sampleRate }
func (d *oggDecoder) ChannelCount() int { return d.channels }
