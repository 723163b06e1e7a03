package pipeline

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/slidex-project/slidex/document"
	"github.com/slidex-project/slidex/faults"
	"github.com/slidex-project/slidex/imageio"
)

const (
	// Minimum luminance delta from the local background for a pixel to count
	// as foreground. Empirically determined on generated slide renders.
	contrastThreshold = 36.0
	// Components smaller than this fraction of the canvas are decoration
	// noise and are dropped.
	minComponentAreaFraction = 0.0004
	// Sibling boxes overlapping beyond this ratio of the smaller box are one
	// element that the component pass split; they get merged.
	siblingMergeOverlap = 0.25
	// A group whose largest child covers more than this fraction of the
	// parent is kept atomic instead of recursing: the "group" is really one
	// element with trimmings.
	dominantChildCoverage = 0.85
	// Ink density above which a region is treated as pictorial content
	// rather than text.
	pictorialDensity = 0.5
	// Working resolution of the connected-component pass. Boxes are refined
	// against full-resolution projections afterwards.
	componentGridSize = 512
)

// segmenter recursively partitions one slide image into a region tree.
type segmenter struct {
	img      *imageio.SlideImage
	service  *Service
	maxDepth int
	w, h     int
	lum      []float64
}

// segment builds the layout tree for a slide. The root is always a group
// covering the full canvas; a blank slide yields a root with zero children,
// which is a valid (background-only) result, not an error.
func (s *Service) segment(ctx context.Context, img *imageio.SlideImage, maxDepth int) (*document.Tree, error) {
	if img.Width() < 8 || img.Height() < 8 {
		return nil, faults.New(faults.SegmentationFailed, "segment", document.NoRegion,
			fmt.Errorf("image %dx%d is too small to analyze", img.Width(), img.Height()))
	}

	seg := &segmenter{
		img:      img,
		service:  s,
		maxDepth: maxDepth,
		w:        img.Width(),
		h:        img.Height(),
	}
	seg.computeLuminance()

	tree := document.NewTree()
	full := image.Rect(0, 0, seg.w, seg.h)
	if err := seg.split(ctx, tree, tree.Root(), full, 0); err != nil {
		return nil, err
	}
	seg.assignPaintOrder(tree)

	if err := tree.Validate(containmentEps, siblingOverlapTolerance); err != nil {
		return nil, faults.New(faults.SegmentationFailed, "segment", document.NoRegion, err)
	}
	return tree, nil
}

const (
	containmentEps          = 0.01
	siblingOverlapTolerance = 0.6
)

func (seg *segmenter) computeLuminance() {
	pixels := seg.img.Pixels()
	seg.lum = make([]float64, seg.w*seg.h)
	for y := 0; y < seg.h; y++ {
		for x := 0; x < seg.w; x++ {
			c := pixels.NRGBAAt(pixels.Bounds().Min.X+x, pixels.Bounds().Min.Y+y)
			seg.lum[y*seg.w+x] = 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
		}
	}
}

// split detects the child regions of window and adds them under parent,
// recursing into groups until depth reaches maxDepth.
func (seg *segmenter) split(ctx context.Context, tree *document.Tree, parent document.RegionID, window image.Rectangle, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	boxes := seg.components(window)
	boxes = seg.mergeOverlapping(boxes)
	sort.Slice(boxes, func(i, j int) bool {
		if boxes[i].Min.Y != boxes[j].Min.Y {
			return boxes[i].Min.Y < boxes[j].Min.Y
		}
		return boxes[i].Min.X < boxes[j].Min.X
	})

	for _, box := range boxes {
		kind := seg.classify(ctx, box, depth)
		id := tree.Add(parent, kind, seg.normalize(box))
		if kind != document.KindGroup {
			continue
		}
		if err := seg.split(ctx, tree, id, box, depth+1); err != nil {
			return err
		}
		seg.resolveGroup(tree, id, box, depth)
	}
	return nil
}

// resolveGroup demotes degenerate groups after their children are known: a
// group with no separable children, or one dominated by a single child,
// becomes an atomic leaf of its dominant type.
func (seg *segmenter) resolveGroup(tree *document.Tree, id document.RegionID, box image.Rectangle, depth int) {
	region := tree.Get(id)
	if len(region.Children) == 0 {
		region.Kind = seg.classifyAtomic(box)
		return
	}
	parentArea := region.Box.Area()
	if parentArea == 0 {
		return
	}
	for _, childID := range region.Children {
		if tree.Get(childID).Box.Area()/parentArea > dominantChildCoverage {
			// Detach the whole subtree, not just the child list: anything
			// left dangling in the arena would still surface as a leaf.
			tree.Collapse(id)
			tree.Get(id).Kind = seg.classifyAtomic(box)
			return
		}
	}
}

// components finds foreground connected components inside window on a
// downsampled grid and returns their full-resolution bounding boxes.
func (seg *segmenter) components(window image.Rectangle) []image.Rectangle {
	ds := max((max(window.Dx(), window.Dy())+componentGridSize-1)/componentGridSize, 1)
	gw := (window.Dx() + ds - 1) / ds
	gh := (window.Dy() + ds - 1) / ds
	if gw == 0 || gh == 0 {
		return nil
	}

	bg := seg.backgroundLuminance(window)
	mask := make([]bool, gw*gh)
	for gy := 0; gy < gh; gy++ {
		for gx := 0; gx < gw; gx++ {
			// A grid cell is foreground when any sampled pixel inside it
			// contrasts with the window background.
			for y := window.Min.Y + gy*ds; y < min(window.Min.Y+(gy+1)*ds, window.Max.Y); y++ {
				for x := window.Min.X + gx*ds; x < min(window.Min.X+(gx+1)*ds, window.Max.X); x++ {
					if math.Abs(seg.lum[y*seg.w+x]-bg) > contrastThreshold {
						mask[gy*gw+gx] = true
					}
				}
				if mask[gy*gw+gx] {
					break
				}
			}
		}
	}

	minArea := minComponentAreaFraction * float64(seg.w*seg.h)
	visited := make([]bool, gw*gh)
	var boxes []image.Rectangle
	var queue []int
	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		queue = append(queue[:0], start)
		visited[start] = true
		minX, minY, maxX, maxY := gw, gh, -1, -1
		for len(queue) > 0 {
			cell := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			cx, cy := cell%gw, cell/gw
			minX, minY = min(minX, cx), min(minY, cy)
			maxX, maxY = max(maxX, cx), max(maxY, cy)
			for _, next := range [4]int{cell - 1, cell + 1, cell - gw, cell + gw} {
				if next < 0 || next >= len(mask) {
					continue
				}
				// Cells on opposite row ends are not neighbors.
				if absInt(next%gw-cx) > 1 {
					continue
				}
				if mask[next] && !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		box := image.Rect(
			window.Min.X+minX*ds,
			window.Min.Y+minY*ds,
			min(window.Min.X+(maxX+1)*ds, window.Max.X),
			min(window.Min.Y+(maxY+1)*ds, window.Max.Y),
		)
		if float64(box.Dx()*box.Dy()) >= minArea {
			boxes = append(boxes, box)
		}
	}
	return boxes
}

// mergeOverlapping repeatedly unions boxes that overlap beyond the sibling
// tolerance until the set is stable.
func (seg *segmenter) mergeOverlapping(boxes []image.Rectangle) []image.Rectangle {
	for {
		merged := false
		for i := 0; i < len(boxes) && !merged; i++ {
			for j := i + 1; j < len(boxes); j++ {
				if overlapRatio(boxes[i], boxes[j]) > siblingMergeOverlap {
					boxes[i] = boxes[i].Union(boxes[j])
					boxes = append(boxes[:j], boxes[j+1:]...)
					merged = true
					break
				}
			}
		}
		if !merged {
			return boxes
		}
	}
}

// classify decides the kind of a detected box. A grid-like arrangement
// always wins as Table over TextBlock once at least a 2x2 lattice of aligned
// edges is present; clusters of separable bands become groups while depth
// remains, atomic leaves below that.
func (seg *segmenter) classify(ctx context.Context, box image.Rectangle, depth int) document.RegionKind {
	crop := seg.img.Crop(box)
	if lines, err := seg.service.lineRecognizer.RecognizeTableLines(ctx, crop); err == nil {
		if len(lines.RowLines) >= 3 && len(lines.ColLines) >= 3 {
			return document.KindTable
		}
	}
	if depth < seg.maxDepth && seg.bandCount(box) >= 2 {
		return document.KindGroup
	}
	return seg.classifyAtomic(box)
}

// classifyAtomic distinguishes text from pictorial content for a leaf box.
// Component boxes fit their content exactly, so the background reference is
// sampled from a ring just outside the box.
func (seg *segmenter) classifyAtomic(box image.Rectangle) document.RegionKind {
	ring := box.Inset(-2).Intersect(image.Rect(0, 0, seg.w, seg.h))
	bg := seg.backgroundLuminance(ring)
	ink := 0
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if math.Abs(seg.lum[y*seg.w+x]-bg) > contrastThreshold {
				ink++
			}
		}
	}
	density := float64(ink) / float64(max(box.Dx()*box.Dy(), 1))
	if density > pictorialDensity {
		return document.KindImage
	}
	return document.KindTextBlock
}

// bandCount counts the horizontal ink bands inside box, i.e. maximal runs of
// rows containing foreground separated by clean gaps. Two or more bands mean
// the box is a vertically separable cluster.
func (seg *segmenter) bandCount(box image.Rectangle) int {
	bg := seg.backgroundLuminance(box)
	bands := 0
	inBand := false
	gap := 0
	minGap := max(box.Dy()/40, 2)
	for y := box.Min.Y; y < box.Max.Y; y++ {
		rowHasInk := false
		for x := box.Min.X; x < box.Max.X; x++ {
			if math.Abs(seg.lum[y*seg.w+x]-bg) > contrastThreshold {
				rowHasInk = true
				break
			}
		}
		if rowHasInk {
			if !inBand && (bands == 0 || gap >= minGap) {
				bands++
			}
			inBand = true
			gap = 0
		} else {
			inBand = false
			gap++
		}
	}
	return bands
}

// backgroundLuminance estimates the local background as the median luminance
// of the window's border ring.
func (seg *segmenter) backgroundLuminance(window image.Rectangle) float64 {
	var samples []float64
	for x := window.Min.X; x < window.Max.X; x++ {
		samples = append(samples, seg.lum[window.Min.Y*seg.w+x], seg.lum[(window.Max.Y-1)*seg.w+x])
	}
	for y := window.Min.Y; y < window.Max.Y; y++ {
		samples = append(samples, seg.lum[y*seg.w+window.Min.X], seg.lum[y*seg.w+window.Max.X-1])
	}
	sort.Float64s(samples)
	if len(samples) == 0 {
		return 255
	}
	return samples[len(samples)/2]
}

func (seg *segmenter) normalize(box image.Rectangle) document.Rect {
	return document.NewRect(
		float64(box.Min.X)/float64(seg.w),
		float64(box.Min.Y)/float64(seg.h),
		float64(box.Dx())/float64(seg.w),
		float64(box.Dy())/float64(seg.h),
	)
}

// assignPaintOrder renumbers z indices by a depth-first walk so that paint
// order follows document order regardless of how detection interleaved.
func (seg *segmenter) assignPaintOrder(tree *document.Tree) {
	z := 0
	var walk func(id document.RegionID)
	walk = func(id document.RegionID) {
		region := tree.Get(id)
		region.Z = z
		z++
		for _, child := range region.Children {
			walk(child)
		}
	}
	walk(tree.Root())
}

func overlapRatio(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	minArea := min(a.Dx()*a.Dy(), b.Dx()*b.Dy())
	if minArea == 0 {
		return 0
	}
	return float64(inter.Dx()*inter.Dy()) / float64(minArea)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
