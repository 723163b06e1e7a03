package recognize

import (
	"context"
	"fmt"
	"image"
	"math"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/slidex-project/slidex/pkg/utils"
)

// VisionClient is an interface for the vision.ImageAnnotatorClient.
// Ref: https://pkg.go.dev/cloud.google.com/go/vision/v2/apiv1
// This interface is used for mocking the annotator client in unit tests.
type VisionClient interface {
	DetectDocumentText(ctx context.Context, image *visionpb.Image, imageContext *visionpb.ImageContext, opts ...gax.CallOption) (*visionpb.TextAnnotation, error)
}

// GoogleVision recognizes words with the Cloud Vision document-text
// detector. It returns positions and confidences but no style information.
type GoogleVision struct {
	client VisionClient
}

func NewGoogleVision(client VisionClient) *GoogleVision {
	return &GoogleVision{client: client}
}

func (g *GoogleVision) RecognizeText(ctx context.Context, pngImage []byte) ([]Word, error) {
	annotation, err := g.client.DetectDocumentText(ctx, &visionpb.Image{Content: pngImage}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to detect document text: %w", err)
	}
	return annotationWords(annotation), nil
}

func annotationWords(annotation *visionpb.TextAnnotation) []Word {
	blocks := utils.FlatMap(annotation.GetPages(), func(page *visionpb.Page) []*visionpb.Block {
		return page.GetBlocks()
	})
	paragraphs := utils.FlatMap(blocks, func(block *visionpb.Block) []*visionpb.Paragraph {
		return block.GetParagraphs()
	})
	words := utils.FlatMap(paragraphs, func(paragraph *visionpb.Paragraph) []*visionpb.Word {
		return paragraph.GetWords()
	})

	return utils.Map(words, func(word *visionpb.Word) Word {
		box := utils.Reduce(word.GetBoundingBox().GetVertices(), func(box pixelBox, vertex *visionpb.Vertex) pixelBox {
			return pixelBox{
				top:    min(box.top, vertex.GetY()),
				left:   min(box.left, vertex.GetX()),
				bottom: max(box.bottom, vertex.GetY()),
				right:  max(box.right, vertex.GetX()),
			}
		}, emptyPixelBox())
		text := utils.Reduce(word.GetSymbols(), func(text string, symbol *visionpb.Symbol) string {
			return text + symbol.GetText()
		}, "")
		return Word{
			Text:       text,
			Box:        box.rectangle(),
			Confidence: float64(word.GetConfidence()),
		}
	})
}

// pixelBox accumulates vertex extremes while folding over a bounding poly.
type pixelBox struct {
	top    int32
	left   int32
	bottom int32
	right  int32
}

func emptyPixelBox() pixelBox {
	return pixelBox{top: math.MaxInt32, left: math.MaxInt32}
}

func (b pixelBox) rectangle() image.Rectangle {
	return image.Rect(int(b.left), int(b.top), int(b.right), int(b.bottom))
}
