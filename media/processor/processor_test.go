package processor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func TestFitInsidePreservesAspect(t *testing.T) {
	out, err := FitInside(solid(800, 400), 100, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 50, out.Bounds().Dy())
}

func TestFitInsideNeverUpscales(t *testing.T) {
	out, err := FitInside(solid(40, 20), 200, 200)
	require.NoError(t, err)
	assert.Equal(t, 40, out.Bounds().Dx())
	assert.Equal(t, 20, out.Bounds().Dy())
}

func TestCoverExactDimensions(t *testing.T) {
	cases := []struct {
		name string
		src  image.Image
		w, h int
	}{
		{"wide source", solid(800, 400), 60, 60},
		{"tall source", solid(300, 900), 153, 153},
		{"small source", solid(20, 10), 600, 600},
		{"non-square target", solid(500, 500), 120, 40},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Cover(tc.src, tc.w, tc.h)
			require.NoError(t, err)
			assert.Equal(t, tc.w, out.Bounds().Dx())
			assert.Equal(t, tc.h, out.Bounds().Dy())
		})
	}
}

func TestCoverRejectsInvalidTarget(t *testing.T) {
	_, err := Cover(solid(10, 10), 0, 10)
	assert.Error(t, err)
}

func TestCrop(t *testing.T) {
	out, err := Crop(solid(200, 200), image.Rect(10, 10, 110, 60))
	require.NoError(t, err)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 50, out.Bounds().Dy())

	clipped, err := Crop(solid(50, 50), image.Rect(40, 40, 100, 100))
	require.NoError(t, err)
	assert.Equal(t, 10, clipped.Bounds().Dx())

	_, err = Crop(solid(50, 50), image.Rect(60, 60, 70, 70))
	assert.Error(t, err)
}

func TestEncodeFormats(t *testing.T) {
	cases := []struct {
		mime   string
		format string
		ext    string
	}{
		{"image/png", "png", ".png"},
		{"image/gif", "gif", ".gif"},
		{"image/jpeg", "jpeg", ".jpg"},
		{"application/octet-stream", "jpeg", ".jpg"},
		{"", "jpeg", ".jpg"},
		{"IMAGE/PNG; charset=binary", "png", ".png"},
	}
	for _, tc := range cases {
		t.Run(tc.mime, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, solid(16, 16), tc.mime, 0))
			_, format, err := image.DecodeConfig(&buf)
			require.NoError(t, err)
			assert.Equal(t, tc.format, format)
			assert.Equal(t, tc.ext, ExtensionFor(tc.mime))
		})
	}
}

func TestDecodeAndDimensions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(30, 20)))

	w, h, err := Dimensions(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 30, w)
	assert.Equal(t, 20, h)

	img, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 30, img.Bounds().Dx())

	_, err = Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/png", ContentTypeFor("image/png"))
	assert.Equal(t, "image/jpeg", ContentTypeFor("image/webp"))
}
