package document

import "math"

// Rect is an axis-aligned rectangle in normalized slide coordinates:
// X, Y, W and H are all fractions of the canvas in [0, 1], so a region
// keeps its position regardless of the resolution the slide was rendered at.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// NewRect clamps the given coordinates into the unit square.
func NewRect(x, y, w, h float64) Rect {
	x = clamp01(x)
	y = clamp01(y)
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if x+w > 1 {
		w = 1 - x
	}
	if y+h > 1 {
		h = 1 - y
	}
	return Rect{X: x, Y: y, W: w, H: h}
}

// FullCanvas is the rectangle covering the whole slide.
func FullCanvas() Rect {
	return Rect{X: 0, Y: 0, W: 1, H: 1}
}

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Area returns the normalized area of the rectangle.
func (r Rect) Area() float64 {
	return r.W * r.H
}

// ContainsRect reports whether other lies inside r, allowing the edges of
// other to stick out by eps on every side.
func (r Rect) ContainsRect(other Rect, eps float64) bool {
	return other.X >= r.X-eps &&
		other.Y >= r.Y-eps &&
		other.Right() <= r.Right()+eps &&
		other.Bottom() <= r.Bottom()+eps
}

// Intersects reports whether the two rectangles overlap at all.
func (r Rect) Intersects(other Rect) bool {
	return !(r.Right() < other.X ||
		other.Right() < r.X ||
		r.Bottom() < other.Y ||
		other.Bottom() < r.Y)
}

// Intersection returns the overlapping rectangle, or a zero rect when the
// rectangles are disjoint.
func (r Rect) Intersection(other Rect) Rect {
	if !r.Intersects(other) {
		return Rect{}
	}
	x := math.Max(r.X, other.X)
	y := math.Max(r.Y, other.Y)
	return Rect{
		X: x,
		Y: y,
		W: math.Min(r.Right(), other.Right()) - x,
		H: math.Min(r.Bottom(), other.Bottom()) - y,
	}
}

// Union returns the smallest rectangle covering both.
func (r Rect) Union(other Rect) Rect {
	if r.Area() == 0 {
		return other
	}
	if other.Area() == 0 {
		return r
	}
	x := math.Min(r.X, other.X)
	y := math.Min(r.Y, other.Y)
	return Rect{
		X: x,
		Y: y,
		W: math.Max(r.Right(), other.Right()) - x,
		H: math.Max(r.Bottom(), other.Bottom()) - y,
	}
}

// OverlapRatio returns the intersection area relative to the smaller of the
// two rectangles, in [0, 1].
func (r Rect) OverlapRatio(other Rect) float64 {
	minArea := math.Min(r.Area(), other.Area())
	if minArea == 0 {
		return 0
	}
	return r.Intersection(other).Area() / minArea
}

// Expand grows the rectangle by margin on every side, clamped to the canvas.
func (r Rect) Expand(margin float64) Rect {
	return NewRect(r.X-margin, r.Y-margin, r.W+2*margin, r.H+2*margin)
}

// Scale maps the normalized rectangle onto a pixel canvas of the given size.
// The returned values are left, top, width and height in pixels.
func (r Rect) Scale(canvasW, canvasH int) (int, int, int, int) {
	return int(math.Round(r.X * float64(canvasW))),
		int(math.Round(r.Y * float64(canvasH))),
		int(math.Round(r.W * float64(canvasW))),
		int(math.Round(r.H * float64(canvasH)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
