// Package cover turns embedded artwork into display references and owns the
// lifetime of the image bytes behind those references.
package cover

import (
	"encoding/base64"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// RefPrefix starts every display reference produced by the codec.
const RefPrefix = "cover:"

// refNamespace seeds the name-based UUIDs used as references.
var refNamespace = uuid.MustParse("0b6c5f7e-2f43-4b8e-9a51-6d3c8f1e2a47")

var mimeAliases = map[string]string{
	"jpg":         "image/jpeg",
	"jpeg":        "image/jpeg",
	"image/jpg":   "image/jpeg",
	"image/pjpeg": "image/jpeg",
	"png":         "image/png",
	"image/x-png": "image/png",
	"gif":         "image/gif",
	"webp":        "image/webp",
	"bmp":         "image/bmp",
}

// Codec converts an embedded picture into a display reference. It is pure:
// the same bytes and declared format always give the same reference.
type Codec struct{}

// DisplayRef returns "cover:<uuid>" for the picture, or "" when data or
// mime is empty.
func (Codec) DisplayRef(data []byte, mime string) string {
	m := NormalizeMIME(mime, data)
	if len(data) == 0 || m == "" {
		return ""
	}
	payload := make([]byte, 0, len(m)+1+len(data))
	payload = append(payload, m...)
	payload = append(payload, 0)
	payload = append(payload, data...)
	return RefPrefix + uuid.NewSHA1(refNamespace, payload).String()
}

// DataURL returns the self-contained data: URL form of the picture, or ""
// under the same rules as DisplayRef.
func (Codec) DataURL(data []byte, mime string) string {
	m := NormalizeMIME(mime, data)
	if len(data) == 0 || m == "" {
		return ""
	}
	return "data:" + m + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// NormalizeMIME maps the loose format strings found in tags ("JPG",
// "image/jpg", "PNG") to canonical image MIME types. An unrecognised declared
// type is replaced by the sniffed type when the bytes are a known image.
func NormalizeMIME(declared string, data []byte) string {
	d := strings.ToLower(strings.TrimSpace(declared))
	if d == "" {
		return ""
	}
	if alias, ok := mimeAliases[d]; ok {
		return alias
	}
	if strings.HasPrefix(d, "image/") {
		return d
	}
	if len(data) > 0 {
		if sniffed := mimetype.Detect(data); strings.HasPrefix(sniffed.String(), "image/") {
			return sniffed.String()
		}
	}
	return d
}
