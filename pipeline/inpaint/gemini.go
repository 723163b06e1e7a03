package inpaint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/google/generative-ai-go/genai"
)

const cleanBackgroundPrompt = `Remove every element covered by the white areas of the second image (the mask) from the first image.
Fill the removed areas so they blend seamlessly with the surrounding background: continue gradients, textures and shapes.
Do not add any new text, icons or illustrations. Return only the edited image.`

// Gemini inpaints through generative image editing: the model receives the
// original image plus the mask and is prompted to repaint the masked areas.
// Less precise than a dedicated mask-based model but needs no extra
// infrastructure.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(client *genai.Client, model string) *Gemini {
	return &Gemini{client: client, model: model}
}

func (g *Gemini) Inpaint(ctx context.Context, origin image.Image, mask image.Image) (image.Image, error) {
	originPNG, err := encodePNG(origin)
	if err != nil {
		return nil, err
	}
	maskPNG, err := encodePNG(mask)
	if err != nil {
		return nil, err
	}

	model := g.client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx,
		genai.Text(cleanBackgroundPrompt),
		genai.Blob{MIMEType: "image/png", Data: originPNG},
		genai.Blob{MIMEType: "image/png", Data: maskPNG},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate edited image: %w", err)
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if blob, ok := part.(genai.Blob); ok {
				edited, _, err := image.Decode(bytes.NewReader(blob.Data))
				if err != nil {
					return nil, fmt.Errorf("failed to decode edited image: %w", err)
				}
				return edited, nil
			}
		}
	}
	return nil, errors.New("no image in model response")
}
