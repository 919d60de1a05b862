package metadata

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/require"
)

// mpegFrame is enough of an MPEG audio frame header for container sniffing.
var mpegFrame = append([]byte{0xFF, 0xFB, 0x90, 0x00}, make([]byte, 64)...)

type picture struct {
	data []byte
	mime string
	kind byte
}

func mp3Bytes(t *testing.T, title, artist, album string, pics ...picture) []byte {
	t.Helper()
	tag := id3v2.NewEmptyTag()
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if title != "" {
		tag.SetTitle(title)
	}
	if artist != "" {
		tag.SetArtist(artist)
	}
	if album != "" {
		tag.SetAlbum(album)
	}
	for i, p := range pics {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    p.mime,
			PictureType: p.kind,
			Description: string(rune('a' + i)),
			Picture:     p.data,
		})
	}

	var buf bytes.Buffer
	_, err := tag.WriteTo(&buf)
	require.NoError(t, err)
	buf.Write(mpegFrame)
	return buf.Bytes()
}

func flacBlock(typ byte, last bool, body []byte) []byte {
	hdr := make([]byte, 4)
	hdr[0] = typ
	if last {
		hdr[0] |= 0x80
	}
	hdr[1] = byte(len(body) >> 16)
	hdr[2] = byte(len(body) >> 8)
	hdr[3] = byte(len(body))
	return append(hdr, body...)
}

func flacBytes(comments []string, pic *picture) []byte {
	var out bytes.Buffer
	out.WriteString("fLaC")

	si := make([]byte, 34)
	binary.BigEndian.PutUint16(si[0:], 4096)
	binary.BigEndian.PutUint16(si[2:], 4096)
	packed := uint64(44100)<<44 | uint64(1)<<41 | uint64(15)<<36
	binary.BigEndian.PutUint64(si[10:], packed)
	out.Write(flacBlock(0, false, si))

	var vc bytes.Buffer
	vendor := "tagdeck-test"
	_ = binary.Write(&vc, binary.LittleEndian, uint32(len(vendor)))
	vc.WriteString(vendor)
	_ = binary.Write(&vc, binary.LittleEndian, uint32(len(comments)))
	for _, c := range comments {
		_ = binary.Write(&vc, binary.LittleEndian, uint32(len(c)))
		vc.WriteString(c)
	}
	out.Write(flacBlock(4, pic == nil, vc.Bytes()))

	if pic != nil {
		var pb bytes.Buffer
		_ = binary.Write(&pb, binary.BigEndian, uint32(pic.kind))
		_ = binary.Write(&pb, binary.BigEndian, uint32(len(pic.mime)))
		pb.WriteString(pic.mime)
		_ = binary.Write(&pb, binary.BigEndian, uint32(0))
		_ = binary.Write(&pb, binary.BigEndian, [4]uint32{})
		_ = binary.Write(&pb, binary.BigEndian, uint32(len(pic.data)))
		pb.Write(pic.data)
		out.Write(flacBlock(6, true, pb.Bytes()))
	}
	return out.Bytes()
}

// wavBytes builds a PCM WAV file with an INFO list. Values must have even
// length so no padding byte is needed.
func wavBytes(info map[string]string) []byte {
	var chunks bytes.Buffer

	fmtChunk := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtChunk[0:], 1)
	binary.LittleEndian.PutUint16(fmtChunk[2:], 2)
	binary.LittleEndian.PutUint32(fmtChunk[4:], 44100)
	binary.LittleEndian.PutUint32(fmtChunk[8:], 44100*4)
	binary.LittleEndian.PutUint16(fmtChunk[12:], 4)
	binary.LittleEndian.PutUint16(fmtChunk[14:], 16)
	writeChunk(&chunks, "fmt ", fmtChunk)

	if len(info) > 0 {
		var list bytes.Buffer
		list.WriteString("INFO")
		for _, id := range []string{"INAM", "IART", "IPRD"} {
			if v, ok := info[id]; ok {
				writeChunk(&list, id, []byte(v))
			}
		}
		writeChunk(&chunks, "LIST", list.Bytes())
	}
	writeChunk(&chunks, "data", make([]byte, 8))

	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(4+chunks.Len()))
	out.WriteString("WAVE")
	out.Write(chunks.Bytes())
	return out.Bytes()
}

func writeChunk(w *bytes.Buffer, id string, body []byte) {
	w.WriteString(id)
	_ = binary.Write(w, binary.LittleEndian, uint32(len(body)))
	w.Write(body)
}

// id3v1Trailer builds the fixed 128-byte ID3v1 tag found at the end of old MP3s.
func id3v1Trailer(title, artist, album string) []byte {
	field := func(s string, n int) []byte {
		b := make([]byte, n)
		copy(b, s)
		return b
	}
	var b bytes.Buffer
	b.WriteString("TAG")
	b.Write(field(title, 30))
	b.Write(field(artist, 30))
	b.Write(field(album, 30))
	b.Write(field("1999", 4))
	b.Write(field("", 30))
	b.WriteByte(255)
	return b.Bytes()
}
