package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/meta"
	"github.com/simonhull/audiometa"

	"github.com/olivier-w/tagdeck/internal/media"
)

// frontCover is the picture type shared by ID3 APIC and FLAC PICTURE.
const frontCover = 3

// rawTags holds the four logical fields read from a file, before defaults.
type rawTags struct {
	format  string
	title   string
	artist  string
	album   string
	picture []byte
	mime    string
}

// setPicture keeps the first picture seen, replacing it only with a front cover.
func (t *rawTags) setPicture(data []byte, mime string, pictureType int, haveFront *bool) {
	if len(data) == 0 || *haveFront {
		return
	}
	if t.picture != nil && pictureType != frontCover {
		return
	}
	t.picture = data
	t.mime = mime
	*haveFront = pictureType == frontCover
}

// decode sniffs the container and reads its tags with the matching decoder.
func decode(r media.Reader, size int64, name string) (rawTags, error) {
	format, err := audiometa.DetectFormat(r, size, name)
	if err != nil {
		return rawTags{}, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return rawTags{}, fmt.Errorf("rewinding: %w", err)
	}

	var tags rawTags
	switch format {
	case audiometa.FormatMP3:
		tags, err = decodeID3(r)
	case audiometa.FormatFLAC:
		tags, err = decodeFLAC(r)
	case audiometa.FormatWAV:
		tags, err = decodeWAV(r)
	default:
		tags, err = decodeGeneric(r)
	}
	if err != nil {
		return rawTags{}, err
	}
	tags.format = formatName(format)
	return tags, nil
}

func formatName(f audiometa.Format) string {
	switch f {
	case audiometa.FormatMP3:
		return "MP3"
	case audiometa.FormatFLAC:
		return "FLAC"
	case audiometa.FormatM4A:
		return "M4A"
	case audiometa.FormatM4B:
		return "M4B"
	case audiometa.FormatOgg:
		return "Ogg Vorbis"
	case audiometa.FormatOpus:
		return "Opus"
	case audiometa.FormatWAV:
		return "WAV"
	case audiometa.FormatAIFF:
		return "AIFF"
	default:
		return "Unknown"
	}
}

// id3v1Size is the length of the ID3v1 trailer.
const id3v1Size = 128

// decodeID3 reads ID3v2 frames. Without any frames it falls back to the
// ID3v1 trailer.
func decodeID3(r io.ReadSeeker) (rawTags, error) {
	t, err := id3v2.ParseReader(r, id3v2.Options{Parse: true})
	if err != nil {
		return rawTags{}, fmt.Errorf("parsing ID3v2: %w", err)
	}
	if t.Count() == 0 {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return rawTags{}, fmt.Errorf("rewinding: %w", err)
		}
		return decodeGeneric(r)
	}

	out := rawTags{
		title:  t.Title(),
		artist: t.Artist(),
		album:  t.Album(),
	}
	var haveFront bool
	for _, f := range t.GetFrames(t.CommonID("Attached picture")) {
		pf, ok := f.(id3v2.PictureFrame)
		if !ok {
			continue
		}
		out.setPicture(pf.Picture, pf.MimeType, int(pf.PictureType), &haveFront)
	}
	return out, nil
}

// decodeFLAC reads the VORBIS_COMMENT and PICTURE metadata blocks.
func decodeFLAC(r io.Reader) (rawTags, error) {
	stream, err := flac.Parse(r)
	if err != nil {
		return rawTags{}, fmt.Errorf("parsing FLAC metadata: %w", err)
	}

	var out rawTags
	var haveFront bool
	for _, block := range stream.Blocks {
		switch body := block.Body.(type) {
		case *meta.VorbisComment:
			for _, kv := range body.Tags {
				out.setComment(kv[0], kv[1])
			}
		case *meta.Picture:
			out.setPicture(body.Data, body.MIME, int(body.Type), &haveFront)
		}
	}
	return out, nil
}

// setComment maps a Vorbis comment onto the tag fields; the first value wins.
func (t *rawTags) setComment(key, value string) {
	switch strings.ToUpper(key) {
	case "TITLE":
		if t.title == "" {
			t.title = value
		}
	case "ARTIST":
		if t.artist == "" {
			t.artist = value
		}
	case "ALBUM":
		if t.album == "" {
			t.album = value
		}
	}
}

// decodeWAV reads the RIFF INFO list. WAV files carry no artwork.
func decodeWAV(r io.ReadSeeker) (rawTags, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return rawTags{}, errors.New("invalid WAV file")
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return rawTags{}, fmt.Errorf("rewinding: %w", err)
	}
	d = wav.NewDecoder(r)
	d.ReadMetadata()
	if err := d.Err(); err != nil && !errors.Is(err, io.EOF) {
		return rawTags{}, fmt.Errorf("reading WAV INFO: %w", err)
	}

	var out rawTags
	if m := d.Metadata; m != nil {
		out.title = m.Title
		out.artist = m.Artist
		out.album = m.Product
	}
	return out, nil
}

// decodeGeneric covers MP4 atoms, Ogg comments and ID3v1 trailers.
func decodeGeneric(r io.ReadSeeker) (rawTags, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return rawTags{}, fmt.Errorf("sizing: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return rawTags{}, fmt.Errorf("rewinding: %w", err)
	}

	m, err := tag.ReadFrom(r)
	switch {
	case errors.Is(err, tag.ErrNoTagsFound):
		return rawTags{}, nil
	case err != nil && size < id3v1Size:
		// Too short to hold even an ID3v1 trailer.
		return rawTags{}, nil
	}
	if err != nil {
		return rawTags{}, fmt.Errorf("reading tags: %w", err)
	}

	out := rawTags{
		title:  m.Title(),
		artist: m.Artist(),
		album:  m.Album(),
	}
	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		out.picture = bytes.Clone(pic.Data)
		out.mime = pic.MIMEType
		if out.mime == "" {
			out.mime = pic.Ext
		}
	}
	return out, nil
}
