// Package recognize defines the OCR capability interfaces the pipeline
// depends on, plus the production providers backing them. Tests substitute
// deterministic fakes for the same interfaces.
package recognize

import (
	"context"
	"image"

	"github.com/lucasb-eyer/go-colorful"
)

// Word is one recognized token with its pixel bounding box in the coordinate
// space of the image that was submitted.
type Word struct {
	Text string
	Box  image.Rectangle
	// Confidence is the recognition confidence in [0, 1].
	Confidence float64
	// Styled reports whether the provider recovered style information.
	// Providers without style support (e.g. plain word OCR) leave it false.
	Styled bool
	// Color is the detected text color, meaningful only when Styled is set.
	Color colorful.Color
	// FontWeight is the numeric CSS-style weight, 0 when not provided.
	FontWeight int
	// PixelFontSize is the detected glyph size in pixels, 0 when not provided.
	PixelFontSize float64
}

// TextRecognizer recognizes the words inside an image. Implementations must
// be safe for concurrent use; the pipeline fans recognition calls out across
// sibling regions.
type TextRecognizer interface {
	RecognizeText(ctx context.Context, pngImage []byte) ([]Word, error)
}

// TableLines holds detected grid line positions in pixels, relative to the
// analyzed image: RowLines are Y coordinates sorted ascending, ColLines are
// X coordinates sorted ascending. A well-formed R×C grid has R+1 row lines
// and C+1 column lines.
type TableLines struct {
	RowLines []float64
	ColLines []float64
}

// TableLineRecognizer detects the ruling lines of a table candidate region.
type TableLineRecognizer interface {
	RecognizeTableLines(ctx context.Context, img *image.NRGBA) (TableLines, error)
}
