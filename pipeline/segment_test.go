package pipeline

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/slidex-project/slidex/document"
	"github.com/slidex-project/slidex/faults"
	"github.com/slidex-project/slidex/imageio"
)

func TestSegmentBlankSlide(t *testing.T) {
	service := newTestService(&fakeRecognizer{}, 1)
	slide := imageio.FromImage(whiteImage(320, 180))

	tree, err := service.segment(context.Background(), slide, 4)
	if err != nil {
		t.Fatalf("segment() = %v", err)
	}
	// A blank slide is a valid background-only layout, not an error.
	if got := len(tree.Leaves()); got != 0 {
		t.Errorf("Leaves() = %d regions, want 0", got)
	}
	if tree.Get(tree.Root()).Kind != document.KindGroup {
		t.Errorf("root kind = %s, want Group", tree.Get(tree.Root()).Kind)
	}
}

func TestSegmentTinyImageFails(t *testing.T) {
	service := newTestService(&fakeRecognizer{}, 1)
	slide := imageio.FromImage(whiteImage(4, 4))

	_, err := service.segment(context.Background(), slide, 4)
	if !faults.IsKind(err, faults.SegmentationFailed) {
		t.Errorf("segment() = %v, want SegmentationFailed", err)
	}
}

func TestSegmentSeparatesBlocks(t *testing.T) {
	service := newTestService(&fakeRecognizer{}, 1)
	img := whiteImage(320, 180)
	dark := color.NRGBA{R: 30, G: 30, B: 30, A: 255}
	fillRect(img, image.Rect(40, 20, 160, 50), dark)
	fillRect(img, image.Rect(40, 110, 200, 150), dark)
	slide := imageio.FromImage(img)

	tree, err := service.segment(context.Background(), slide, 4)
	if err != nil {
		t.Fatalf("segment() = %v", err)
	}
	leaves := tree.Leaves()
	if len(leaves) != 2 {
		t.Fatalf("Leaves() = %d regions, want 2", len(leaves))
	}

	// Paint order follows reading order: the upper block comes first.
	first := tree.Get(leaves[0])
	second := tree.Get(leaves[1])
	if first.Box.Y >= second.Box.Y {
		t.Errorf("leaf order: first.Y=%.3f, second.Y=%.3f, want top block first", first.Box.Y, second.Box.Y)
	}
	if first.Z >= second.Z {
		t.Errorf("z order: first.Z=%d, second.Z=%d", first.Z, second.Z)
	}

	// Every leaf box stays inside the root canvas.
	if err := tree.Validate(containmentEps, siblingOverlapTolerance); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestSegmentSolidBlockIsPictorial(t *testing.T) {
	service := newTestService(&fakeRecognizer{}, 1)
	img := whiteImage(320, 180)
	fillRect(img, image.Rect(60, 40, 260, 140), color.NRGBA{R: 200, G: 60, B: 40, A: 255})
	slide := imageio.FromImage(img)

	tree, err := service.segment(context.Background(), slide, 4)
	if err != nil {
		t.Fatalf("segment() = %v", err)
	}
	leaves := tree.Leaves()
	if len(leaves) != 1 {
		t.Fatalf("Leaves() = %d regions, want 1", len(leaves))
	}
	if kind := tree.Get(leaves[0]).Kind; kind != document.KindImage {
		t.Errorf("leaf kind = %s, want Image", kind)
	}
}

func TestSegmentCollapsesDominantChildGroup(t *testing.T) {
	// A group dominated by a single child is really one element with
	// trimmings. Demoting it must not leave its former descendants behind in
	// the arena, where they would resurface as extra leaves.
	service := newTestService(&fakeRecognizer{}, 1)
	img := whiteImage(320, 180)
	fillRect(img, image.Rect(60, 40, 260, 140), color.NRGBA{R: 200, G: 60, B: 40, A: 255})
	seg := &segmenter{
		img:      imageio.FromImage(img),
		service:  service,
		maxDepth: 4,
		w:        320,
		h:        180,
	}
	seg.computeLuminance()

	tree := document.NewTree()
	group := tree.Add(tree.Root(), document.KindGroup, document.NewRect(0.1, 0.15, 0.7, 0.65))
	dominant := tree.Add(group, document.KindImage, document.NewRect(0.12, 0.17, 0.66, 0.6))
	tree.Add(dominant, document.KindTextBlock, document.NewRect(0.15, 0.2, 0.3, 0.2))
	tree.Add(group, document.KindTextBlock, document.NewRect(0.12, 0.78, 0.1, 0.02))

	seg.resolveGroup(tree, group, image.Rect(60, 40, 260, 140), 0)

	leaves := tree.Leaves()
	if len(leaves) != 1 || leaves[0] != group {
		t.Fatalf("Leaves() = %v, want only the demoted group %d", leaves, group)
	}
	if kind := tree.Get(group).Kind; kind != document.KindImage {
		t.Errorf("demoted kind = %s, want Image", kind)
	}
	if err := tree.Validate(containmentEps, siblingOverlapTolerance); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestSegmentSparseStrokeIsText(t *testing.T) {
	service := newTestService(&fakeRecognizer{}, 1)
	img := whiteImage(320, 180)
	drawSquiggle(img, 40, 60)
	slide := imageio.FromImage(img)

	tree, err := service.segment(context.Background(), slide, 4)
	if err != nil {
		t.Fatalf("segment() = %v", err)
	}
	leaves := tree.Leaves()
	if len(leaves) != 1 {
		t.Fatalf("Leaves() = %d regions, want 1", len(leaves))
	}
	if kind := tree.Get(leaves[0]).Kind; kind != document.KindTextBlock {
		t.Errorf("leaf kind = %s, want TextBlock", kind)
	}
}
