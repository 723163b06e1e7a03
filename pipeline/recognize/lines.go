package recognize

import (
	"context"
	"image"
)

// ProjectionLineDetector is the default TableLineRecognizer: a local
// heuristic that finds ruling lines from ink projection profiles. A row line
// is a horizontal band whose dark-pixel coverage exceeds MinCoverage of the
// region width; column lines are detected symmetrically.
type ProjectionLineDetector struct {
	// MinCoverage is the fraction of the perpendicular extent a band must
	// cover with ink to count as a ruling line.
	MinCoverage float64
	// MaxLuminance is the 0-255 luminance at or below which a pixel counts
	// as ink.
	MaxLuminance float64
	// MergeDistance groups bands closer than this many pixels into one line.
	MergeDistance float64
}

func NewProjectionLineDetector() *ProjectionLineDetector {
	return &ProjectionLineDetector{
		MinCoverage:   0.55,
		MaxLuminance:  128,
		MergeDistance: 4,
	}
}

func (d *ProjectionLineDetector) RecognizeTableLines(ctx context.Context, img *image.NRGBA) (TableLines, error) {
	if err := ctx.Err(); err != nil {
		return TableLines{}, err
	}

	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w == 0 || h == 0 {
		return TableLines{}, nil
	}

	rowCoverage := make([]float64, h)
	colCoverage := make([]float64, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if d.isInk(img, bounds.Min.X+x, bounds.Min.Y+y) {
				rowCoverage[y]++
				colCoverage[x]++
			}
		}
	}
	for y := range rowCoverage {
		rowCoverage[y] /= float64(w)
	}
	for x := range colCoverage {
		colCoverage[x] /= float64(h)
	}

	return TableLines{
		RowLines: d.linePositions(rowCoverage),
		ColLines: d.linePositions(colCoverage),
	}, nil
}

func (d *ProjectionLineDetector) isInk(img *image.NRGBA, x, y int) bool {
	c := img.NRGBAAt(x, y)
	lum := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
	return lum <= d.MaxLuminance && c.A > 0
}

// linePositions turns a coverage profile into merged line centers: runs of
// indices above MinCoverage become one line each, and nearby runs within
// MergeDistance collapse together.
func (d *ProjectionLineDetector) linePositions(coverage []float64) []float64 {
	var lines []float64
	runStart := -1
	flush := func(end int) {
		if runStart < 0 {
			return
		}
		center := float64(runStart+end-1) / 2
		if n := len(lines); n > 0 && center-lines[n-1] <= d.MergeDistance {
			lines[n-1] = (lines[n-1] + center) / 2
		} else {
			lines = append(lines, center)
		}
		runStart = -1
	}
	for i, c := range coverage {
		if c >= d.MinCoverage {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		flush(i)
	}
	flush(len(coverage))
	return lines
}
