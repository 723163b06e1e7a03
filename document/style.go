package document

import "github.com/lucasb-eyer/go-colorful"

// FontWeight thresholds follow standard CSS numeric weights.
const (
	RegularWeight  = 400
	SemiBoldWeight = 600
	BoldWeight     = 700
)

// Alignment is the horizontal alignment of a recovered text block.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

func (a Alignment) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "left"
	}
}

// TextStyle is the recovered appearance of one text region. The font family
// is the nearest available face, not a guaranteed match with whatever the
// source image was rendered with.
type TextStyle struct {
	// Text is the literal recognized string.
	Text string
	// SizePt is the font size in points on the target canvas.
	SizePt float64
	// Weight is the numeric font weight, e.g. 400 or 700.
	Weight int
	// Color of the text. Alpha is separate because colorful.Color has none.
	Color colorful.Color
	Alpha float64
	Align Alignment
	// Family is the approximate font family name, e.g. "SansSerif".
	Family string
	// Confidence is the recognition confidence in [0, 1].
	Confidence float64
	// LowConfidence marks a best-effort guess that was accepted below the
	// configured OCR threshold. Surfaced to the user as a review hint.
	LowConfidence bool
}

// Bold reports whether the style should render with a bold face.
func (s TextStyle) Bold() bool {
	return s.Weight >= BoldWeight
}
