package recognize

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes words with a local Tesseract installation. It is the
// offline provider used when no cloud OCR credentials are configured; no
// style information is recovered.
type Tesseract struct {
	languages []string
}

func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{languages: languages}
}

// RecognizeText runs word-level OCR. A gosseract client is not safe for
// concurrent use, so each call gets its own.
func (t *Tesseract) RecognizeText(ctx context.Context, pngImage []byte) ([]Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("failed to set tesseract language: %w", err)
	}
	if err := client.SetImageFromBytes(pngImage); err != nil {
		return nil, fmt.Errorf("failed to load image into tesseract: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get word boxes: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		words = append(words, Word{
			Text:       box.Word,
			Box:        box.Box,
			Confidence: box.Confidence / 100,
		})
	}
	return words, nil
}
