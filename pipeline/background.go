package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/cenkalti/backoff/v4"
	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/slidex-project/slidex/document"
	"github.com/slidex-project/slidex/faults"
	"github.com/slidex-project/slidex/imageio"
)

const (
	// Pixel dilation of every masked region. Antialiased glyph edges bleed a
	// few pixels past the detected box and would survive the repaint.
	maskPadding = 8
	// Fraction of pixels inside the repainted holes still contrasting with
	// the surrounding plate above which the inpaint is considered failed.
	residualInkRatio = 0.35
)

// reconstructBackground produces the clean background plate of a slide: the
// original raster with every foreground region repainted away. It always
// returns a usable plate; a non-nil error reports that inpainting degraded
// to a flat fill and carries the BackgroundReconstructionFailed kind.
func (s *Service) reconstructBackground(ctx context.Context, slide *imageio.SlideImage, tree *document.Tree) (image.Image, error) {
	boxes := foregroundBoxes(slide, tree)
	if len(boxes) == 0 {
		return slide.Clone(), nil
	}
	if s.inpainter == nil {
		return flatFillPlate(slide, boxes), nil
	}

	mask := buildMask(slide, boxes)
	operation := func() (image.Image, error) {
		var plate image.Image
		err := s.budget.Do(ctx, func() error {
			var callErr error
			plate, callErr = s.inpainter.Inpaint(ctx, slide.Pixels(), mask)
			return callErr
		})
		return plate, err
	}
	plate, err := backoff.RetryWithData(operation,
		backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(s.config.RetryInterval), uint64(s.config.MaxRetries)),
			ctx))
	if err != nil {
		return flatFillPlate(slide, boxes), faults.New(faults.BackgroundReconstructionFailed, "background", document.NoRegion,
			fmt.Errorf("inpainting failed: %w", err))
	}
	if !plateClean(plate, boxes) {
		return flatFillPlate(slide, boxes), faults.New(faults.BackgroundReconstructionFailed, "background", document.NoRegion,
			fmt.Errorf("inpainted plate still shows foreground residue"))
	}
	return plate, nil
}

// foregroundBoxes collects the dilated pixel boxes of every leaf region.
func foregroundBoxes(slide *imageio.SlideImage, tree *document.Tree) []image.Rectangle {
	var boxes []image.Rectangle
	for _, id := range tree.Leaves() {
		leaf := tree.Get(id)
		if leaf.Kind == document.KindBackground {
			continue
		}
		left, top, width, height := leaf.Box.Scale(slide.Width(), slide.Height())
		box := image.Rect(left, top, left+width, top+height).
			Inset(-maskPadding).
			Intersect(slide.Pixels().Bounds())
		if !box.Empty() {
			boxes = append(boxes, box)
		}
	}
	return boxes
}

// buildMask renders the repaint mask: opaque white over every foreground
// box, transparent elsewhere.
func buildMask(slide *imageio.SlideImage, boxes []image.Rectangle) *image.NRGBA {
	mask := image.NewNRGBA(slide.Pixels().Bounds())
	white := image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	for _, box := range boxes {
		draw.Draw(mask, box, white, image.Point{}, draw.Src)
	}
	return mask
}

// flatFillPlate paints every foreground box with the color sampled just
// outside it. Crude next to real inpainting, but deterministic and always
// available.
func flatFillPlate(slide *imageio.SlideImage, boxes []image.Rectangle) image.Image {
	dc := gg.NewContextForImage(slide.Pixels())
	for _, box := range boxes {
		fill := ringColor(slide.Pixels(), box)
		dc.SetColor(color.NRGBA{
			R: uint8(fill.R*255 + 0.5),
			G: uint8(fill.G*255 + 0.5),
			B: uint8(fill.B*255 + 0.5),
			A: 255,
		})
		dc.DrawRectangle(float64(box.Min.X), float64(box.Min.Y), float64(box.Dx()), float64(box.Dy()))
		dc.Fill()
	}
	return dc.Image()
}

// plateClean verifies the repaint: inside every hole, pixels should blend
// with the plate around the hole instead of contrasting like the removed
// foreground did.
func plateClean(plate image.Image, boxes []image.Rectangle) bool {
	nrgba, ok := plate.(*image.NRGBA)
	if !ok {
		converted := image.NewNRGBA(plate.Bounds())
		draw.Draw(converted, plate.Bounds(), plate, plate.Bounds().Min, draw.Src)
		nrgba = converted
	}
	for _, box := range boxes {
		box = box.Intersect(nrgba.Bounds())
		if box.Empty() {
			continue
		}
		surrounding := ringColor(nrgba, box)
		contrasting, total := 0, 0
		for y := box.Min.Y; y < box.Max.Y; y++ {
			for x := box.Min.X; x < box.Max.X; x++ {
				total++
				if nrgbaToColorful(nrgba.NRGBAAt(x, y)).DistanceCIEDE2000(surrounding) > inkColorDistance {
					contrasting++
				}
			}
		}
		if total > 0 && float64(contrasting)/float64(total) > residualInkRatio {
			return false
		}
	}
	return true
}

// ringColor averages the one-pixel ring just outside box, clipped to the
// image.
func ringColor(img *image.NRGBA, box image.Rectangle) (avg colorful.Color) {
	ring := box.Inset(-1)
	count := 0
	add := func(x, y int) {
		if !image.Pt(x, y).In(img.Bounds()) || image.Pt(x, y).In(box) {
			return
		}
		c := nrgbaToColorful(img.NRGBAAt(x, y))
		avg.R += c.R
		avg.G += c.G
		avg.B += c.B
		count++
	}
	for x := ring.Min.X; x < ring.Max.X; x++ {
		add(x, ring.Min.Y)
		add(x, ring.Max.Y-1)
	}
	for y := ring.Min.Y; y < ring.Max.Y; y++ {
		add(ring.Min.X, y)
		add(ring.Max.X-1, y)
	}
	if count == 0 {
		return colorful.Color{R: 1, G: 1, B: 1}
	}
	avg.R /= float64(count)
	avg.G /= float64(count)
	avg.B /= float64(count)
	return avg
}
