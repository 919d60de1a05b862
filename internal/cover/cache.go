package cover

import (
	"bytes"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"sync"

	"github.com/bbrks/go-blurhash"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// blurHashSize bounds the thumbnail the placeholder hash is computed from.
const blurHashSize = 64

// Image is a cached cover.
type Image struct {
	MIME     string
	Data     []byte
	Width    int
	Height   int
	BlurHash string
}

type entry struct {
	img  Image
	refs int
}

// Cache holds cover bytes for as long as at least one track references them.
// Tracks sharing artwork (an album) share one entry. Safe for concurrent use.
type Cache struct {
	codec  Codec
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// NewCache creates an empty cache.
func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Acquire stores the picture (once per reference) and takes one reference on
// it. It returns the display reference, or "" when there is nothing to show.
func (c *Cache) Acquire(data []byte, mime string) string {
	ref := c.codec.DisplayRef(data, mime)
	if ref == "" {
		return ""
	}

	c.mu.Lock()
	if e, ok := c.entries[ref]; ok {
		e.refs++
		c.mu.Unlock()
		return ref
	}
	c.mu.Unlock()

	// Decoding happens unlocked; a concurrent Acquire of the same picture may
	// do the same work, the first insert wins.
	img := c.describe(data, NormalizeMIME(mime, data))

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[ref]; ok {
		e.refs++
		return ref
	}
	c.entries[ref] = &entry{img: img, refs: 1}
	c.logger.Debug("cover cached", "ref", ref, "mime", img.MIME, "size", len(img.Data))
	return ref
}

// Release drops one reference. The bytes are freed with the last reference.
func (c *Cache) Release(ref string) {
	if ref == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ref]
	if !ok {
		c.logger.Debug("release of unknown cover", "ref", ref)
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(c.entries, ref)
		c.logger.Debug("cover released", "ref", ref)
	}
}

// Resolve returns the cached image for ref.
func (c *Cache) Resolve(ref string) (Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ref]
	if !ok {
		return Image{}, false
	}
	return e.img, true
}

// Refs returns the live reference count for ref.
func (c *Cache) Refs(ref string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[ref]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) describe(data []byte, mime string) Image {
	img := Image{MIME: mime, Data: data}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		c.logger.Debug("cover not decodable, no placeholder", "mime", mime, "error", err)
		return img
	}
	b := decoded.Bounds()
	img.Width, img.Height = b.Dx(), b.Dy()

	hash, err := blurhash.Encode(4, 3, thumbnail(decoded))
	if err != nil {
		c.logger.Debug("blurhash failed", "error", err)
		return img
	}
	img.BlurHash = hash
	return img
}

// thumbnail scales img so that its longest side is at most blurHashSize.
func thumbnail(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= blurHashSize && h <= blurHashSize {
		return img
	}

	var dw, dh int
	if w > h {
		dw = blurHashSize
		dh = max(1, h*blurHashSize/w)
	} else {
		dh = blurHashSize
		dw = max(1, w*blurHashSize/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
