package pipeline

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/slidex-project/slidex/document"
	"github.com/slidex-project/slidex/faults"
	"github.com/slidex-project/slidex/imageio"
	"github.com/slidex-project/slidex/pipeline/recognize"
	"github.com/slidex-project/slidex/pkg/utils"
)

const (
	// Pixel padding around a region crop before recognition, so glyphs
	// touching the detected box edge are not clipped.
	recognitionPadding = 4
	// Point dimensions of the 16:9 target canvas: 10in x 5.625in at 72pt/in.
	canvasWidthPt  = 720.0
	canvasHeightPt = 405.0
	// CIEDE2000 distance above which a sampled pixel counts as ink rather
	// than background when recovering the text color.
	inkColorDistance = 0.12
	// Fraction of the region width that separates "centered" from
	// left/right aligned when comparing the two margins.
	alignmentMarginTolerance = 0.08
)

// recognizeWithRetry submits one image to the text recognizer under the
// external-call budget, retrying transient failures with constant backoff.
func (s *Service) recognizeWithRetry(ctx context.Context, pngImage []byte) ([]recognize.Word, error) {
	operation := func() ([]recognize.Word, error) {
		var words []recognize.Word
		err := s.budget.Do(ctx, func() error {
			var callErr error
			words, callErr = s.recognizer.RecognizeText(ctx, pngImage)
			return callErr
		})
		return words, err
	}
	return backoff.RetryWithData(operation,
		backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(s.config.RetryInterval), uint64(s.config.MaxRetries)),
			ctx))
}

// recoverText recognizes the text of one region and reconstructs its style.
// On low recognition confidence it returns BOTH a best-effort style (flagged
// LowConfidence) and a typed OcrLowConfidence error, so the caller can choose
// between accepting the guess with a warning and failing the slide.
func (s *Service) recoverText(ctx context.Context, slide *imageio.SlideImage, tree *document.Tree, id document.RegionID) (*document.TextStyle, error) {
	region := tree.Get(id)
	left, top, width, height := region.Box.Scale(slide.Width(), slide.Height())
	cropBox := image.Rect(left, top, left+width, top+height).Inset(-recognitionPadding)
	crop := slide.Crop(cropBox)

	pngImage, err := imageio.EncodePNG(crop)
	if err != nil {
		return nil, faults.New(faults.OcrLowConfidence, "recover-text", id, err)
	}

	words, err := s.recognizeWithRetry(ctx, pngImage)
	if err != nil {
		return nil, faults.New(faults.OcrLowConfidence, "recover-text", id,
			faults.New(faults.ExternalServiceUnavailable, "recover-text", id, err))
	}
	words = utils.Filter(words, func(w recognize.Word) bool {
		return strings.TrimSpace(w.Text) != ""
	})
	if len(words) == 0 {
		return nil, faults.New(faults.OcrLowConfidence, "recover-text", id,
			fmt.Errorf("no text recognized in region"))
	}

	lines := groupLines(words)
	text := joinLines(lines)
	confidence := meanConfidence(words)

	style := &document.TextStyle{
		Text:       text,
		Weight:     dominantWeight(words),
		Alpha:      1,
		Align:      detectAlignment(lines, crop.Bounds()),
		Family:     s.fonts.Family(),
		Confidence: confidence,
	}
	style.Color = s.recoverTextColor(crop, words)
	style.SizePt = s.recoverFontSize(slide, crop.Bounds(), lines, style)

	if confidence < s.config.MinOCRConfidence {
		style.LowConfidence = true
		return style, faults.New(faults.OcrLowConfidence, "recover-text", id,
			fmt.Errorf("mean confidence %.2f below threshold %.2f", confidence, s.config.MinOCRConfidence))
	}
	return style, nil
}

// groupLines clusters words into reading-order lines: two words share a line
// when their boxes overlap vertically by more than half the shorter height.
func groupLines(words []recognize.Word) [][]recognize.Word {
	sorted := make([]recognize.Word, len(words))
	copy(sorted, words)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Box.Min.Y != sorted[j].Box.Min.Y {
			return sorted[i].Box.Min.Y < sorted[j].Box.Min.Y
		}
		return sorted[i].Box.Min.X < sorted[j].Box.Min.X
	})

	var lines [][]recognize.Word
	for _, word := range sorted {
		placed := false
		for i, line := range lines {
			if verticalOverlap(line[len(line)-1].Box, word.Box) > 0.5 {
				lines[i] = append(lines[i], word)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, []recognize.Word{word})
		}
	}
	for _, line := range lines {
		sort.Slice(line, func(i, j int) bool { return line[i].Box.Min.X < line[j].Box.Min.X })
	}
	return lines
}

func joinLines(lines [][]recognize.Word) string {
	rendered := utils.Map(lines, func(line []recognize.Word) string {
		texts := utils.Map(line, func(w recognize.Word) string { return w.Text })
		return strings.Join(texts, " ")
	})
	return strings.Join(rendered, "\n")
}

func verticalOverlap(a, b image.Rectangle) float64 {
	overlap := min(a.Max.Y, b.Max.Y) - max(a.Min.Y, b.Min.Y)
	shorter := min(a.Dy(), b.Dy())
	if overlap <= 0 || shorter == 0 {
		return 0
	}
	return float64(overlap) / float64(shorter)
}

// meanConfidence weights each word by its text length so one short garbage
// token cannot sink a long, cleanly recognized block.
func meanConfidence(words []recognize.Word) float64 {
	total, weight := 0.0, 0.0
	for _, w := range words {
		n := float64(len([]rune(w.Text)))
		total += w.Confidence * n
		weight += n
	}
	if weight == 0 {
		return 0
	}
	return total / weight
}

// dominantWeight takes the most common provider-reported weight, falling back
// to regular when the provider recovered no style information.
func dominantWeight(words []recognize.Word) int {
	boldRunes, totalRunes := 0, 0
	for _, w := range words {
		n := len([]rune(w.Text))
		totalRunes += n
		if w.Styled && w.FontWeight >= document.SemiBoldWeight {
			boldRunes += n
		}
	}
	if totalRunes > 0 && boldRunes*2 > totalRunes {
		return document.BoldWeight
	}
	return document.RegularWeight
}

// recoverTextColor prefers provider-detected colors; otherwise it averages
// the pixels that contrast with the crop's border background.
func (s *Service) recoverTextColor(crop *image.NRGBA, words []recognize.Word) colorful.Color {
	styled := utils.Filter(words, func(w recognize.Word) bool { return w.Styled })
	if len(styled) > 0 {
		sum := utils.Reduce(styled, func(acc colorful.Color, w recognize.Word) colorful.Color {
			return colorful.Color{R: acc.R + w.Color.R, G: acc.G + w.Color.G, B: acc.B + w.Color.B}
		}, colorful.Color{})
		n := float64(len(styled))
		return colorful.Color{R: sum.R / n, G: sum.G / n, B: sum.B / n}
	}

	background := borderColor(crop)
	var sum colorful.Color
	count := 0
	bounds := crop.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pixel := nrgbaToColorful(crop.NRGBAAt(x, y))
			if pixel.DistanceCIEDE2000(background) > inkColorDistance {
				sum.R += pixel.R
				sum.G += pixel.G
				sum.B += pixel.B
				count++
			}
		}
	}
	if count == 0 {
		// Nothing contrasts with the background; pick the safest default.
		return colorful.Color{}
	}
	return colorful.Color{R: sum.R / float64(count), G: sum.G / float64(count), B: sum.B / float64(count)}
}

// recoverFontSize estimates the point size from the median glyph height, then
// caps it so the longest line still fits the region width when re-rendered
// with the face the style will actually use.
func (s *Service) recoverFontSize(slide *imageio.SlideImage, cropBounds image.Rectangle, lines [][]recognize.Word, style *document.TextStyle) float64 {
	heights := utils.FlatMap(lines, func(line []recognize.Word) []float64 {
		return utils.Map(line, func(w recognize.Word) float64 {
			if w.PixelFontSize > 0 {
				return w.PixelFontSize
			}
			return float64(w.Box.Dy())
		})
	})
	sort.Float64s(heights)
	estimate := heights[len(heights)/2] / float64(slide.Height()) * canvasHeightPt
	if estimate < 1 {
		estimate = 1
	}

	longest := ""
	for _, line := range lines {
		if text := strings.Join(utils.Map(line, func(w recognize.Word) string { return w.Text }), " "); len(text) > len(longest) {
			longest = text
		}
	}
	maxWidthPt := float64(cropBounds.Dx()) / float64(slide.Width()) * canvasWidthPt
	fitted := fitFontSize(s.fonts.ByWeight(style.Weight), longest, maxWidthPt, estimate)
	return fitted
}

// fitFontSize binary-searches the largest size, up to upper, at which text
// still measures within maxWidth points.
func fitFontSize(font *truetype.Font, text string, maxWidth, upper float64) float64 {
	if text == "" || maxWidth <= 0 {
		return upper
	}
	dc := gg.NewContext(1, 1)
	measure := func(size float64) float64 {
		dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: size}))
		width, _ := dc.MeasureString(text)
		return width
	}
	if measure(upper) <= maxWidth {
		return upper
	}
	low, high := 1.0, upper
	for high-low > 0.25 {
		mid := (low + high) / 2
		if measure(mid) <= maxWidth {
			low = mid
		} else {
			high = mid
		}
	}
	return low
}

// detectAlignment compares the left and right margins of the recognized
// lines inside the crop. Symmetric margins on every line read as centered.
func detectAlignment(lines [][]recognize.Word, cropBounds image.Rectangle) document.Alignment {
	width := float64(cropBounds.Dx())
	if width == 0 {
		return document.AlignLeft
	}
	leftSum, rightSum := 0.0, 0.0
	for _, line := range lines {
		minX, maxX := cropBounds.Max.X, cropBounds.Min.X
		for _, w := range line {
			minX = min(minX, w.Box.Min.X)
			maxX = max(maxX, w.Box.Max.X)
		}
		leftSum += float64(minX - cropBounds.Min.X)
		rightSum += float64(cropBounds.Max.X - maxX)
	}
	n := float64(len(lines))
	left, right := leftSum/n/width, rightSum/n/width
	switch {
	case left+alignmentMarginTolerance < right:
		return document.AlignLeft
	case right+alignmentMarginTolerance < left:
		return document.AlignRight
	default:
		return document.AlignCenter
	}
}

// borderColor estimates the crop's background as the average color of its
// one-pixel border ring.
func borderColor(img *image.NRGBA) colorful.Color {
	bounds := img.Bounds()
	var sum colorful.Color
	count := 0
	add := func(x, y int) {
		c := nrgbaToColorful(img.NRGBAAt(x, y))
		sum.R += c.R
		sum.G += c.G
		sum.B += c.B
		count++
	}
	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		add(x, bounds.Min.Y)
		add(x, bounds.Max.Y-1)
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		add(bounds.Min.X, y)
		add(bounds.Max.X-1, y)
	}
	if count == 0 {
		return colorful.Color{R: 1, G: 1, B: 1}
	}
	return colorful.Color{R: sum.R / float64(count), G: sum.G / float64(count), B: sum.B / float64(count)}
}

func nrgbaToColorful(c interface{ RGBA() (uint32, uint32, uint32, uint32) }) colorful.Color {
	r, g, b, _ := c.RGBA()
	return colorful.Color{R: float64(r) / 65535, G: float64(g) / 65535, B: float64(b) / 65535}
}
