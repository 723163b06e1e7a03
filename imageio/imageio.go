// Package imageio loads slide raster images and normalizes them for the
// export pipeline.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
)

// MaxDimension caps the working resolution. Slides rendered above this are
// downscaled before analysis; normalized region coordinates make the output
// independent of the choice.
const MaxDimension = 2048

// SlideImage is the decoded, normalized raster of one slide. Immutable once
// loaded; owned exclusively by the pipeline run that loaded it.
type SlideImage struct {
	pixels *image.NRGBA
	width  int
	height int
}

// Decode parses raster bytes (PNG, JPEG or GIF), converts them to NRGBA and
// downscales anything larger than MaxDimension on its longest side.
func Decode(data []byte) (*SlideImage, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), nil
}

// FromImage normalizes an already-decoded image.
func FromImage(img image.Image) *SlideImage {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if w > MaxDimension || h > MaxDimension {
		if w >= h {
			img = imaging.Resize(img, MaxDimension, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, MaxDimension, imaging.Lanczos)
		}
	}
	nrgba := imaging.Clone(img)
	return &SlideImage{
		pixels: nrgba,
		width:  nrgba.Bounds().Dx(),
		height: nrgba.Bounds().Dy(),
	}
}

func (s *SlideImage) Width() int  { return s.width }
func (s *SlideImage) Height() int { return s.height }

// Pixels returns the backing NRGBA buffer. Callers must treat it as
// read-only; mutating stages clone first.
func (s *SlideImage) Pixels() *image.NRGBA { return s.pixels }

// Crop returns a copy of the given pixel rectangle, clipped to the image.
func (s *SlideImage) Crop(r image.Rectangle) *image.NRGBA {
	return imaging.Crop(s.pixels, r.Intersect(s.pixels.Bounds()))
}

// Clone returns a mutable copy of the pixel buffer.
func (s *SlideImage) Clone() *image.NRGBA {
	return imaging.Clone(s.pixels)
}

// EncodePNG serializes an image for the external recognition services, which
// all accept PNG payloads.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
