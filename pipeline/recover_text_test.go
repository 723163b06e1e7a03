package pipeline

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/slidex-project/slidex/document"
	"github.com/slidex-project/slidex/faults"
	"github.com/slidex-project/slidex/imageio"
	"github.com/slidex-project/slidex/pipeline/recognize"
)

func word(text string, box image.Rectangle, confidence float64) recognize.Word {
	return recognize.Word{Text: text, Box: box, Confidence: confidence}
}

func TestGroupLinesReadingOrder(t *testing.T) {
	words := []recognize.Word{
		word("world", image.Rect(60, 0, 110, 12), 0.9),
		word("again", image.Rect(0, 20, 50, 32), 0.9),
		word("hello", image.Rect(0, 0, 50, 12), 0.9),
	}
	lines := groupLines(words)
	if len(lines) != 2 {
		t.Fatalf("groupLines() = %d lines, want 2", len(lines))
	}
	if got := joinLines(lines); got != "hello world\nagain" {
		t.Errorf("joinLines() = %q, want %q", got, "hello world\nagain")
	}
}

func TestMeanConfidenceWeightsByLength(t *testing.T) {
	words := []recognize.Word{
		word("a", image.Rect(0, 0, 5, 10), 0.1),
		word("long-token", image.Rect(10, 0, 80, 10), 1.0),
	}
	got := meanConfidence(words)
	// 1 rune at 0.1 plus 10 runes at 1.0.
	want := (0.1 + 10.0) / 11.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("meanConfidence() = %v, want %v", got, want)
	}
}

func TestDetectAlignment(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 40)
	tests := []struct {
		name string
		box  image.Rectangle
		want document.Alignment
	}{
		{"flush left", image.Rect(2, 0, 60, 12), document.AlignLeft},
		{"flush right", image.Rect(40, 0, 98, 12), document.AlignRight},
		{"centered", image.Rect(25, 0, 75, 12), document.AlignCenter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := [][]recognize.Word{{word("x", tt.box, 0.9)}}
			if got := detectAlignment(lines, bounds); got != tt.want {
				t.Errorf("detectAlignment() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDominantWeight(t *testing.T) {
	bold := recognize.Word{Text: "heading", Styled: true, FontWeight: 700}
	regular := recognize.Word{Text: "x", Styled: true, FontWeight: 400}
	if got := dominantWeight([]recognize.Word{bold, regular}); got != document.BoldWeight {
		t.Errorf("dominantWeight() = %d, want bold", got)
	}
	if got := dominantWeight([]recognize.Word{{Text: "plain"}}); got != document.RegularWeight {
		t.Errorf("dominantWeight() unstyled = %d, want regular", got)
	}
}

func TestRecoverTextLowConfidenceKeepsBestEffort(t *testing.T) {
	service := newTestService(&fakeRecognizer{words: lowConfidenceWords()}, 1)
	slide := imageio.FromImage(whiteImage(320, 180))
	tree := document.NewTree()
	id := tree.Add(tree.Root(), document.KindTextBlock, document.NewRect(0.1, 0.3, 0.25, 0.15))

	style, err := service.recoverText(context.Background(), slide, tree, id)
	if !faults.IsKind(err, faults.OcrLowConfidence) {
		t.Fatalf("recoverText() err = %v, want OcrLowConfidence", err)
	}
	if style == nil {
		t.Fatal("style = nil, want best-effort style alongside the error")
	}
	if !style.LowConfidence {
		t.Error("style.LowConfidence = false, want true")
	}
	if style.Text != "hello" {
		t.Errorf("style.Text = %q, want hello", style.Text)
	}
}

func TestRecoverTextEscalatesPersistentFailure(t *testing.T) {
	recognizer := &fakeRecognizer{err: errors.New("connection refused")}
	service := newTestService(recognizer, 1)
	slide := imageio.FromImage(whiteImage(320, 180))
	tree := document.NewTree()
	id := tree.Add(tree.Root(), document.KindTextBlock, document.NewRect(0.1, 0.3, 0.25, 0.15))

	_, err := service.recoverText(context.Background(), slide, tree, id)
	if !faults.IsKind(err, faults.OcrLowConfidence) {
		t.Fatalf("recoverText() err = %v, want OcrLowConfidence escalation", err)
	}
	if calls := recognizer.callsCount.Load(); calls < 2 {
		t.Errorf("recognizer called %d times, want retries before escalation", calls)
	}
}

func TestRecoverTextGoodConfidence(t *testing.T) {
	service := newTestService(&fakeRecognizer{words: goodWords()}, 1)
	slide := imageio.FromImage(whiteImage(320, 180))
	tree := document.NewTree()
	id := tree.Add(tree.Root(), document.KindTextBlock, document.NewRect(0.1, 0.3, 0.25, 0.15))

	style, err := service.recoverText(context.Background(), slide, tree, id)
	if err != nil {
		t.Fatalf("recoverText() = %v", err)
	}
	if style.LowConfidence {
		t.Error("style.LowConfidence = true, want false")
	}
	if style.SizePt <= 0 {
		t.Errorf("style.SizePt = %v, want positive", style.SizePt)
	}
	if style.Family == "" {
		t.Error("style.Family is empty")
	}
	if style.Alpha != 1 {
		t.Errorf("style.Alpha = %v, want 1", style.Alpha)
	}
}

func TestFitFontSizeShrinksToWidth(t *testing.T) {
	fonts := newTestService(&fakeRecognizer{}, 1).fonts
	face := fonts.ByWeight(document.RegularWeight)

	wide := fitFontSize(face, "a very long line of recovered text", 100, 48)
	if wide >= 48 {
		t.Errorf("fitFontSize() = %v, want shrunk below the upper bound", wide)
	}
	short := fitFontSize(face, "hi", 500, 24)
	if short != 24 {
		t.Errorf("fitFontSize() = %v, want upper bound kept for fitting text", short)
	}
}
