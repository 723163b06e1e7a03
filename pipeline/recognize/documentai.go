package recognize

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/slidex-project/slidex/document"
	"github.com/slidex-project/slidex/pkg/utils"
)

// DocClient is an interface for the DocumentProcessorClient.
// Ref: https://pkg.go.dev/cloud.google.com/go/documentai
// This interface is used for mocking the processor client in tests.
type DocClient interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
}

// ProcessorSpec identifies the Document AI processor to call.
type ProcessorSpec struct {
	// E.g., slidex-prod
	ProjectID string
	// E.g., us
	Location string
	// E.g., 98dae69a95e1906
	ProcessorID string
}

// DocumentAI recognizes words with style information (text color, numeric
// font weight, pixel font size) using the Document AI OCR premium features.
type DocumentAI struct {
	client DocClient
	spec   ProcessorSpec
}

func NewDocumentAI(client DocClient, spec ProcessorSpec) *DocumentAI {
	return &DocumentAI{client: client, spec: spec}
}

func (d *DocumentAI) RecognizeText(ctx context.Context, pngImage []byte) ([]Word, error) {
	request := &documentaipb.ProcessRequest{
		Name: fmt.Sprintf("projects/%s/locations/%s/processors/%s", d.spec.ProjectID, d.spec.Location, d.spec.ProcessorID),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  pngImage,
				MimeType: "image/png",
			},
		},
		ProcessOptions: &documentaipb.ProcessOptions{
			OcrConfig: &documentaipb.OcrConfig{
				PremiumFeatures: &documentaipb.OcrConfig_PremiumFeatures{
					ComputeStyleInfo: true,
				},
			},
		},
	}
	response, err := d.client.ProcessDocument(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}
	return documentWords(response.GetDocument()), nil
}

func documentWords(doc *documentaipb.Document) []Word {
	tokens := utils.FlatMap(doc.GetPages(), func(page *documentaipb.Document_Page) []*documentaipb.Document_Page_Token {
		return page.GetTokens()
	})

	return utils.Map(tokens, func(token *documentaipb.Document_Page_Token) Word {
		box := utils.Reduce(token.GetLayout().GetBoundingPoly().GetVertices(), func(box pixelBox, vertex *documentaipb.Vertex) pixelBox {
			return pixelBox{
				top:    min(box.top, vertex.GetY()),
				left:   min(box.left, vertex.GetX()),
				bottom: max(box.bottom, vertex.GetY()),
				right:  max(box.right, vertex.GetX()),
			}
		}, emptyPixelBox())

		text := strings.Join(utils.Map(token.GetLayout().GetTextAnchor().GetTextSegments(), func(segment *documentaipb.Document_TextAnchor_TextSegment) string {
			return string([]rune(doc.GetText())[segment.GetStartIndex():segment.GetEndIndex()])
		}), "")

		styleInfo := token.GetStyleInfo()
		fontWeight := int(styleInfo.GetFontWeight())
		// StyleInfo.FontWeight is an optional proto3 int field that defaults
		// to 0 when unset, so 0 means "no numeric weight provided" and we
		// fall back to the bold flag.
		if fontWeight == 0 {
			if styleInfo.GetBold() {
				fontWeight = document.BoldWeight
			} else {
				fontWeight = document.RegularWeight
			}
		}

		return Word{
			Text:       strings.TrimSuffix(text, "\n"),
			Box:        box.rectangle(),
			Confidence: float64(token.GetLayout().GetConfidence()),
			Styled:     true,
			Color: colorful.Color{
				R: float64(styleInfo.GetTextColor().GetRed()),
				G: float64(styleInfo.GetTextColor().GetGreen()),
				B: float64(styleInfo.GetTextColor().GetBlue()),
			},
			FontWeight:    fontWeight,
			PixelFontSize: float64(styleInfo.GetPixelFontSize()),
		}
	})
}
