package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/slidex-project/slidex/document"
	"github.com/slidex-project/slidex/faults"
	"github.com/slidex-project/slidex/imageio"
	"github.com/slidex-project/slidex/pipeline/recognize"
	"github.com/slidex-project/slidex/schedule"
)

// fakeRecognizer returns canned words, optionally failing or delaying per
// call. The delay lets tests invert completion order across slides.
type fakeRecognizer struct {
	words      []recognize.Word
	err        error
	delay      func(call int) time.Duration
	callsCount atomic.Int64
}

func (f *fakeRecognizer) RecognizeText(ctx context.Context, pngImage []byte) ([]recognize.Word, error) {
	call := int(f.callsCount.Add(1))
	if f.delay != nil {
		select {
		case <-time.After(f.delay(call)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.words, nil
}

func newTestService(recognizer recognize.TextRecognizer, poolSize int) *Service {
	return New(
		recognizer,
		nil,
		nil,
		nil,
		nil,
		schedule.NewPool(poolSize),
		schedule.NewBudget(poolSize*2),
		Config{MaxRetries: 1, RetryInterval: time.Millisecond},
	)
}

func whiteImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// drawSquiggle draws a connected diagonal stroke. Its bounding box has low
// ink density, so the segmenter classifies it as a text block.
func drawSquiggle(img *image.NRGBA, x0, y0 int) {
	dark := color.NRGBA{R: 20, G: 20, B: 20, A: 255}
	for i := 0; i < 60; i++ {
		img.SetNRGBA(x0+i, y0+i/3, dark)
		img.SetNRGBA(x0+i, y0+i/3+1, dark)
	}
}

func pngSlide(t *testing.T, img *image.NRGBA) []byte {
	t.Helper()
	data, err := imageio.EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG() = %v", err)
	}
	return data
}

func textSlide(t *testing.T, width int) []byte {
	t.Helper()
	img := whiteImage(width, 180)
	drawSquiggle(img, 40, 60)
	return pngSlide(t, img)
}

func lowConfidenceWords() []recognize.Word {
	return []recognize.Word{{
		Text:       "hello",
		Box:        image.Rect(2, 2, 40, 14),
		Confidence: 0.3,
	}}
}

func goodWords() []recognize.Word {
	return []recognize.Word{{
		Text:       "hello",
		Box:        image.Rect(2, 2, 40, 14),
		Confidence: 0.95,
	}}
}

func TestExportAbsorbsLowConfidenceAsWarning(t *testing.T) {
	service := newTestService(&fakeRecognizer{words: lowConfidenceWords()}, 2)

	result, err := service.Export(context.Background(), [][]byte{textSlide(t, 320)},
		Options{ReturnPartialOnError: true})
	if err != nil {
		t.Fatalf("Export() = %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("len(Warnings) = %d, want 1: %v", len(result.Warnings), result.Warnings)
	}
	if result.Warnings[0].Stage != "recover-text" {
		t.Errorf("warning stage = %q, want recover-text", result.Warnings[0].Stage)
	}

	// The degraded element must still be present, flagged for review.
	if len(result.Documents) != 1 {
		t.Fatalf("len(Documents) = %d, want 1", len(result.Documents))
	}
	doc := result.Documents[0]
	if len(doc.Elements) != 1 {
		t.Fatalf("len(Elements) = %d, want 1", len(doc.Elements))
	}
	el := doc.Elements[0]
	if el.Kind != document.ElementText || el.Style == nil {
		t.Fatalf("element = %+v, want text element with style", el)
	}
	if !el.Style.LowConfidence {
		t.Error("Style.LowConfidence = false, want true")
	}
	// The warning must point back at the degraded region.
	if result.Warnings[0].Region != el.Region {
		t.Errorf("warning region = %d, want %d", result.Warnings[0].Region, el.Region)
	}
	if el.Style.Text != "hello" {
		t.Errorf("Style.Text = %q, want hello", el.Style.Text)
	}
	if len(result.PPTX) == 0 {
		t.Error("PPTX is empty")
	}
}

func TestExportFailsOnLowConfidenceWithoutPartial(t *testing.T) {
	service := newTestService(&fakeRecognizer{words: lowConfidenceWords()}, 2)

	_, err := service.Export(context.Background(), [][]byte{textSlide(t, 320)},
		Options{ReturnPartialOnError: false})
	if err == nil {
		t.Fatal("Export() = nil, want low-confidence failure")
	}
}

func TestExportKeepsSubmissionOrder(t *testing.T) {
	// Later recognition calls finish first; output order must still follow
	// the submission order.
	recognizer := &fakeRecognizer{
		words: goodWords(),
		delay: func(call int) time.Duration {
			return time.Duration(max(4-call, 0)) * 20 * time.Millisecond
		},
	}
	service := newTestService(recognizer, 3)

	widths := []int{320, 352, 384}
	slides := make([][]byte, len(widths))
	for i, w := range widths {
		slides[i] = textSlide(t, w)
	}

	result, err := service.Export(context.Background(), slides, Options{})
	if err != nil {
		t.Fatalf("Export() = %v", err)
	}
	if len(result.Documents) != len(widths) {
		t.Fatalf("len(Documents) = %d, want %d", len(result.Documents), len(widths))
	}
	for i, doc := range result.Documents {
		if doc.SourceWidth != widths[i] {
			t.Errorf("Documents[%d].SourceWidth = %d, want %d", i, doc.SourceWidth, widths[i])
		}
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", result.Warnings)
	}
}

func TestExportRespectsPoolBound(t *testing.T) {
	const poolSize = 2
	pool := schedule.NewPool(poolSize)
	service := New(
		&fakeRecognizer{words: goodWords()},
		nil, nil, nil, nil,
		pool,
		schedule.NewBudget(8),
		Config{MaxRetries: 1, RetryInterval: time.Millisecond},
	)

	slides := make([][]byte, 6)
	for i := range slides {
		slides[i] = textSlide(t, 320)
	}
	if _, err := service.Export(context.Background(), slides, Options{}); err != nil {
		t.Fatalf("Export() = %v", err)
	}
	if peak := pool.Peak(); peak > poolSize {
		t.Errorf("Peak() = %d, exceeds pool size %d", peak, poolSize)
	}
}

func TestExportStrictFailureReportsRootCause(t *testing.T) {
	// Slide 1 fails to decode almost immediately, cancelling slide 0 while
	// it is still waiting on recognition. The reported error must name the
	// slide that actually failed, not the cancellation fallout its sibling
	// absorbed.
	recognizer := &fakeRecognizer{
		words: goodWords(),
		delay: func(call int) time.Duration { return 250 * time.Millisecond },
	}
	service := newTestService(recognizer, 2)

	slides := [][]byte{
		textSlide(t, 320),
		[]byte("not an image"),
	}
	_, err := service.Export(context.Background(), slides, Options{})
	if err == nil {
		t.Fatal("Export() = nil, want decode failure")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("Export() = %v, want the decode failure, not cancellation", err)
	}
	if !faults.IsKind(err, faults.SegmentationFailed) {
		t.Errorf("Export() = %v, want SegmentationFailed", err)
	}
}

func TestExportSkipsFailedSlideWithWarning(t *testing.T) {
	service := newTestService(&fakeRecognizer{words: goodWords()}, 2)

	slides := [][]byte{
		[]byte("not an image"),
		textSlide(t, 320),
	}
	result, err := service.Export(context.Background(), slides, Options{ReturnPartialOnError: true})
	if err != nil {
		t.Fatalf("Export() = %v", err)
	}
	if len(result.Documents) != 1 {
		t.Fatalf("len(Documents) = %d, want 1", len(result.Documents))
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Slide != 0 {
		t.Errorf("Warnings = %v, want one slide-level warning for slide 0", result.Warnings)
	}
}

func TestExportRejectsEmptyRequest(t *testing.T) {
	service := newTestService(&fakeRecognizer{words: goodWords()}, 1)
	if _, err := service.Export(context.Background(), nil, Options{}); err == nil {
		t.Error("Export(nil) = nil, want error")
	}
}
