package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
)

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	assert.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestInspect(t *testing.T) {
	data := encodeTestPNG(t, 16, 9)
	meta, err := Inspect(data)
	assert.NoError(t, err)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 16, meta.Width)
	assert.Equal(t, 9, meta.Height)
	assert.Equal(t, len(data), meta.Size)
}

func TestInspectRejectsGarbage(t *testing.T) {
	_, err := Inspect([]byte("not an image"))
	assert.Error(t, err)
}

func TestFingerprintIsStableAndDistinct(t *testing.T) {
	a := encodeTestPNG(t, 4, 4)
	b := encodeTestPNG(t, 4, 5)

	assert.Equal(t, Fingerprint(a), Fingerprint(a))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 64)
}
