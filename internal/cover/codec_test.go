package cover

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayRefIsDeterministic(t *testing.T) {
	var c Codec
	data := []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3}

	a := c.DisplayRef(data, "image/jpeg")
	b := c.DisplayRef(append([]byte(nil), data...), "image/jpeg")

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, RefPrefix))
}

func TestDisplayRefDiffersByContent(t *testing.T) {
	var c Codec
	assert.NotEqual(t,
		c.DisplayRef([]byte{1, 2, 3}, "image/png"),
		c.DisplayRef([]byte{1, 2, 4}, "image/png"),
	)
}

func TestDisplayRefEmptyWithoutDataOrFormat(t *testing.T) {
	var c Codec
	assert.Equal(t, "", c.DisplayRef(nil, "image/png"))
	assert.Equal(t, "", c.DisplayRef([]byte{}, "image/png"))
	assert.Equal(t, "", c.DisplayRef([]byte{1}, ""))
	assert.Equal(t, "", c.DataURL(nil, "image/png"))
}

func TestDisplayRefTreatsMIMEAliasesAlike(t *testing.T) {
	var c Codec
	data := []byte{0xFF, 0xD8, 0xFF}
	assert.Equal(t, c.DisplayRef(data, "image/jpeg"), c.DisplayRef(data, "JPG"))
	assert.Equal(t, c.DisplayRef(data, "image/jpeg"), c.DisplayRef(data, "image/jpg"))
}

func TestNormalizeMIME(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	assert.Equal(t, "image/png", NormalizeMIME("PNG", nil))
	assert.Equal(t, "image/jpeg", NormalizeMIME(" image/JPG ", nil))
	assert.Equal(t, "image/png", NormalizeMIME("-->", png))
	assert.Equal(t, "application/x-weird", NormalizeMIME("application/x-weird", []byte("plain text")))
	assert.Equal(t, "", NormalizeMIME("", png))
}

func TestDataURL(t *testing.T) {
	var c Codec
	assert.Equal(t, "data:image/png;base64,AQID", c.DataURL([]byte{1, 2, 3}, "png"))
}
