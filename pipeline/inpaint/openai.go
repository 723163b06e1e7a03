package inpaint

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient is the slice of the OpenAI API surface this provider needs.
// This interface is used for mocking the client in tests.
type OpenAIClient interface {
	CreateEditImage(ctx context.Context, request openai.ImageEditRequest) (openai.ImageResponse, error)
}

// OpenAI inpaints with the image-edit endpoint. The API takes its inputs as
// files, so both images are staged in a temp directory per call.
type OpenAI struct {
	client OpenAIClient
}

func NewOpenAI(client OpenAIClient) *OpenAI {
	return &OpenAI{client: client}
}

func (o *OpenAI) Inpaint(ctx context.Context, origin image.Image, mask image.Image) (image.Image, error) {
	dir, err := os.MkdirTemp("", "slidex-inpaint-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	// The edit endpoint repaints where the mask is transparent, the inverse
	// of our convention, so the mask is inverted into "transparent = repaint"
	// form while writing.
	originFile, err := writePNGFile(filepath.Join(dir, "origin.png"), origin)
	if err != nil {
		return nil, err
	}
	defer originFile.Close()
	maskFile, err := writePNGFile(filepath.Join(dir, "mask.png"), invertMask(mask))
	if err != nil {
		return nil, err
	}
	defer maskFile.Close()

	response, err := o.client.CreateEditImage(ctx, openai.ImageEditRequest{
		Image:          originFile,
		Mask:           maskFile,
		Prompt:         cleanBackgroundPrompt,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to edit image: %w", err)
	}
	if len(response.Data) == 0 {
		return nil, errors.New("no image in edit response")
	}

	data, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode edited image payload: %w", err)
	}
	edited, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode edited image: %w", err)
	}
	return edited, nil
}

func writePNGFile(path string, img image.Image) (*os.File, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to rewind %s: %w", path, err)
	}
	return file, nil
}

var nrgbaOpaqueBlack = color.NRGBA{A: 255}

func invertMask(mask image.Image) image.Image {
	bounds := mask.Bounds()
	out := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := mask.At(x, y).RGBA()
			if a > 0 {
				// Marked for repaint: leave fully transparent.
				continue
			}
			out.SetNRGBA(x, y, nrgbaOpaqueBlack)
		}
	}
	return out
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
