package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/slidex-project/slidex/document"
	"github.com/slidex-project/slidex/faults"
	"github.com/slidex-project/slidex/imageio"
	"github.com/slidex-project/slidex/pipeline/inpaint"
	"github.com/slidex-project/slidex/schedule"
)

// fakeInpainter returns a fixed plate or a fixed error.
type fakeInpainter struct {
	plate image.Image
	err   error
	calls int
}

func (f *fakeInpainter) Inpaint(ctx context.Context, origin, mask image.Image) (image.Image, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.plate, nil
}

func backgroundFixture() (*imageio.SlideImage, *document.Tree) {
	img := whiteImage(320, 180)
	fillRect(img, image.Rect(80, 60, 240, 120), color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	slide := imageio.FromImage(img)

	tree := document.NewTree()
	tree.Add(tree.Root(), document.KindImage, document.NewRect(0.25, 1.0/3, 0.5, 1.0/3))
	return slide, tree
}

func inpaintService(client inpaint.Client) *Service {
	return New(
		&fakeRecognizer{},
		nil,
		client,
		nil, nil,
		schedule.NewPool(1),
		schedule.NewBudget(2),
		Config{MaxRetries: 1, RetryInterval: time.Millisecond},
	)
}

func TestReconstructBackgroundBlankTree(t *testing.T) {
	inpainter := &fakeInpainter{err: errors.New("must not be called")}
	service := inpaintService(inpainter)
	slide := imageio.FromImage(whiteImage(320, 180))

	plate, err := service.reconstructBackground(context.Background(), slide, document.NewTree())
	if err != nil {
		t.Fatalf("reconstructBackground() = %v", err)
	}
	if plate == nil {
		t.Fatal("plate = nil")
	}
	if inpainter.calls != 0 {
		t.Errorf("inpainter called %d times for a blank tree, want 0", inpainter.calls)
	}
}

func TestReconstructBackgroundFlatFillWithoutInpainter(t *testing.T) {
	service := inpaintService(nil)
	slide, tree := backgroundFixture()

	plate, err := service.reconstructBackground(context.Background(), slide, tree)
	if err != nil {
		t.Fatalf("reconstructBackground() = %v", err)
	}
	assertRepainted(t, plate)
}

func TestReconstructBackgroundFallsBackOnInpaintFailure(t *testing.T) {
	inpainter := &fakeInpainter{err: errors.New("service down")}
	service := inpaintService(inpainter)
	slide, tree := backgroundFixture()

	plate, err := service.reconstructBackground(context.Background(), slide, tree)
	if !faults.IsKind(err, faults.BackgroundReconstructionFailed) {
		t.Fatalf("reconstructBackground() err = %v, want BackgroundReconstructionFailed", err)
	}
	if plate == nil {
		t.Fatal("plate = nil, want flat-fill fallback")
	}
	assertRepainted(t, plate)

	// Transient failures are retried before falling back.
	if inpainter.calls < 2 {
		t.Errorf("inpainter called %d times, want retries", inpainter.calls)
	}
}

func TestExportUsesFallbackPlateInStrictMode(t *testing.T) {
	// The flat fill is the defined recovery for a failed inpaint, so the
	// slide degrades with a warning even when partial results are disabled.
	inpainter := &fakeInpainter{err: errors.New("service down")}
	service := New(
		&fakeRecognizer{words: goodWords()},
		nil,
		inpainter,
		nil, nil,
		schedule.NewPool(1),
		schedule.NewBudget(2),
		Config{MaxRetries: 1, RetryInterval: time.Millisecond},
	)

	result, err := service.Export(context.Background(), [][]byte{textSlide(t, 320)},
		Options{ReturnPartialOnError: false})
	if err != nil {
		t.Fatalf("Export() = %v", err)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Stage != "background" {
		t.Fatalf("Warnings = %v, want one background warning", result.Warnings)
	}
	if len(result.Documents) != 1 {
		t.Fatalf("len(Documents) = %d, want 1", len(result.Documents))
	}
	if result.Documents[0].Background == nil {
		t.Error("Background = nil, want flat-fill plate")
	}
}

func TestReconstructBackgroundRejectsDirtyPlate(t *testing.T) {
	// The "inpainted" plate still contains the original foreground; the
	// verifier must reject it and fall back.
	slide, tree := backgroundFixture()
	inpainter := &fakeInpainter{plate: slide.Clone()}
	service := inpaintService(inpainter)

	plate, err := service.reconstructBackground(context.Background(), slide, tree)
	if !faults.IsKind(err, faults.BackgroundReconstructionFailed) {
		t.Fatalf("reconstructBackground() err = %v, want BackgroundReconstructionFailed", err)
	}
	assertRepainted(t, plate)
}

func TestReconstructBackgroundAcceptsCleanPlate(t *testing.T) {
	slide, tree := backgroundFixture()
	inpainter := &fakeInpainter{plate: whiteImage(320, 180)}
	service := inpaintService(inpainter)

	plate, err := service.reconstructBackground(context.Background(), slide, tree)
	if err != nil {
		t.Fatalf("reconstructBackground() = %v", err)
	}
	assertRepainted(t, plate)
}

// assertRepainted checks that the dark foreground block no longer shows in
// the plate's center.
func assertRepainted(t *testing.T, plate image.Image) {
	t.Helper()
	r, g, b, _ := plate.At(160, 90).RGBA()
	if r>>8 < 200 || g>>8 < 200 || b>>8 < 200 {
		t.Errorf("plate center = (%d,%d,%d), want near-white after repaint", r>>8, g>>8, b>>8)
	}
}
