// Package processor holds the image primitives used to derive icon variants:
// decode, scale, crop and encode. Every function returns a new image and never
// mutates its input, so callers can derive many variants from one decode.
package processor

import (
	"fmt"
	"image"
	"io"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const DefaultJPEGQuality = 80

// Interpolation used for every scale step.
var Interpolation = resize.Lanczos3

// Decode reads any registered image format, applying the EXIF orientation tag.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Dimensions reads only the image header.
func Dimensions(r io.Reader) (int, int, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// FitInside scales img to fit within w×h preserving aspect. Images that
// already fit are returned unchanged; sources are never enlarged.
func FitInside(img image.Image, w, h int) (image.Image, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("fit inside: invalid bound %dx%d", w, h)
	}
	return resize.Thumbnail(uint(w), uint(h), img, Interpolation), nil
}

// Cover scales img until it covers w×h, then cuts the centered w×h region.
// The result is always exactly w×h.
func Cover(img image.Image, w, h int) (image.Image, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("cover: invalid target %dx%d", w, h)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("cover: empty source")
	}

	scale := math.Max(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy()))
	nw := max(int(math.Ceil(float64(b.Dx())*scale)), w)
	nh := max(int(math.Ceil(float64(b.Dy())*scale)), h)

	scaled := resize.Resize(uint(nw), uint(nh), img, Interpolation)
	return imaging.CropCenter(scaled, w, h), nil
}

// Crop cuts rect out of img. The rectangle is clipped to the image bounds;
// an empty intersection is an error.
func Crop(img image.Image, rect image.Rectangle) (image.Image, error) {
	rect = rect.Canon()
	clipped := rect.Add(img.Bounds().Min).Intersect(img.Bounds())
	if clipped.Empty() {
		return nil, fmt.Errorf("crop %v outside image bounds %v", rect, img.Bounds())
	}
	return imaging.Crop(img, rect.Add(img.Bounds().Min)), nil
}

// Encode writes img in the format matching mime. Unknown types fall back to
// JPEG; quality applies to JPEG only and defaults to DefaultJPEGQuality.
func Encode(w io.Writer, img image.Image, mime string, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var err error
	switch normalizeMime(mime) {
	case "image/png":
		err = imaging.Encode(w, img, imaging.PNG)
	case "image/gif":
		err = imaging.Encode(w, img, imaging.GIF)
	default:
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", mime, err)
	}
	return nil
}

// ExtensionFor returns the file extension Encode produces for mime.
func ExtensionFor(mime string) string {
	switch normalizeMime(mime) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// ContentTypeFor returns the MIME type Encode produces for mime.
func ContentTypeFor(mime string) string {
	switch normalizeMime(mime) {
	case "image/png", "image/gif":
		return normalizeMime(mime)
	default:
		return "image/jpeg"
	}
}

func normalizeMime(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}
