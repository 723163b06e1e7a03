package document

import (
	"math"
	"testing"
)

func TestNewRectClamps(t *testing.T) {
	tests := []struct {
		name       string
		x, y, w, h float64
		want       Rect
	}{
		{"inside", 0.1, 0.2, 0.3, 0.4, Rect{0.1, 0.2, 0.3, 0.4}},
		{"negative origin", -0.5, -0.5, 0.4, 0.4, Rect{0, 0, 0.4, 0.4}},
		{"overflow width", 0.8, 0.1, 0.5, 0.2, Rect{0.8, 0.1, 0.2, 0.2}},
		{"negative size", 0.5, 0.5, -1, -1, Rect{0.5, 0.5, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewRect(tt.x, tt.y, tt.w, tt.h)
			if got != tt.want {
				t.Errorf("NewRect() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRectContainsRect(t *testing.T) {
	outer := Rect{0.1, 0.1, 0.5, 0.5}
	tests := []struct {
		name  string
		inner Rect
		eps   float64
		want  bool
	}{
		{"strictly inside", Rect{0.2, 0.2, 0.2, 0.2}, 0, true},
		{"identical", outer, 0, true},
		{"sticks out right", Rect{0.5, 0.2, 0.3, 0.1}, 0, false},
		{"sticks out within eps", Rect{0.09, 0.1, 0.5, 0.5}, 0.02, true},
		{"disjoint", Rect{0.7, 0.7, 0.2, 0.2}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outer.ContainsRect(tt.inner, tt.eps); got != tt.want {
				t.Errorf("ContainsRect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRectOverlapRatio(t *testing.T) {
	a := Rect{0, 0, 0.5, 0.5}
	tests := []struct {
		name string
		b    Rect
		want float64
	}{
		{"disjoint", Rect{0.6, 0.6, 0.2, 0.2}, 0},
		{"identical", a, 1},
		{"half of smaller", Rect{0.25, 0, 0.5, 0.25}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.OverlapRatio(tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("OverlapRatio() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRectScale(t *testing.T) {
	r := Rect{0.25, 0.5, 0.5, 0.25}
	x, y, w, h := r.Scale(400, 200)
	if x != 100 || y != 100 || w != 200 || h != 50 {
		t.Errorf("Scale() = (%d,%d,%d,%d), want (100,100,200,50)", x, y, w, h)
	}
}

func TestTreeAddAndLeaves(t *testing.T) {
	tree := NewTree()
	group := tree.Add(tree.Root(), KindGroup, Rect{0.1, 0.1, 0.8, 0.8})
	textB := tree.Add(group, KindTextBlock, Rect{0.1, 0.5, 0.3, 0.2})
	textA := tree.Add(group, KindTextBlock, Rect{0.1, 0.15, 0.3, 0.2})
	tree.Get(textA).Z = 1
	tree.Get(textB).Z = 2

	leaves := tree.Leaves()
	if len(leaves) != 2 {
		t.Fatalf("Leaves() returned %d regions, want 2", len(leaves))
	}
	if leaves[0] != textA || leaves[1] != textB {
		t.Errorf("Leaves() order = %v, want [%d %d]", leaves, textA, textB)
	}
	if tree.Depth(textA) != 2 {
		t.Errorf("Depth() = %d, want 2", tree.Depth(textA))
	}
}

func TestTreeCollapse(t *testing.T) {
	tree := NewTree()
	group := tree.Add(tree.Root(), KindGroup, Rect{0.1, 0.1, 0.8, 0.8})
	child := tree.Add(group, KindImage, Rect{0.12, 0.12, 0.74, 0.7})
	tree.Add(child, KindTextBlock, Rect{0.2, 0.2, 0.3, 0.2})
	tree.Add(group, KindTextBlock, Rect{0.15, 0.84, 0.2, 0.04})

	tree.Collapse(group)

	// Only the collapsed region itself survives as a leaf; its former
	// descendants must not resurface from the arena.
	leaves := tree.Leaves()
	if len(leaves) != 1 || leaves[0] != group {
		t.Fatalf("Leaves() after Collapse = %v, want [%d]", leaves, group)
	}
	if err := tree.Validate(0.01, 0.5); err != nil {
		t.Errorf("Validate() after Collapse = %v, want nil", err)
	}
}

func TestTreeValidate(t *testing.T) {
	t.Run("valid nested tree", func(t *testing.T) {
		tree := NewTree()
		group := tree.Add(tree.Root(), KindGroup, Rect{0.1, 0.1, 0.8, 0.8})
		tree.Add(group, KindTextBlock, Rect{0.2, 0.2, 0.3, 0.2})
		tree.Add(group, KindImage, Rect{0.2, 0.6, 0.3, 0.2})
		if err := tree.Validate(0.01, 0.5); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("child escapes parent", func(t *testing.T) {
		tree := NewTree()
		group := tree.Add(tree.Root(), KindGroup, Rect{0.1, 0.1, 0.3, 0.3})
		tree.Add(group, KindTextBlock, Rect{0.3, 0.3, 0.3, 0.3})
		if err := tree.Validate(0.01, 0.5); err == nil {
			t.Error("Validate() = nil, want containment error")
		}
	})

	t.Run("siblings overlap too much", func(t *testing.T) {
		tree := NewTree()
		tree.Add(tree.Root(), KindTextBlock, Rect{0.1, 0.1, 0.4, 0.4})
		tree.Add(tree.Root(), KindTextBlock, Rect{0.15, 0.15, 0.4, 0.4})
		if err := tree.Validate(0.01, 0.5); err == nil {
			t.Error("Validate() = nil, want sibling overlap error")
		}
	})

	t.Run("unreachable region", func(t *testing.T) {
		tree := NewTree()
		group := tree.Add(tree.Root(), KindGroup, Rect{0.1, 0.1, 0.8, 0.8})
		tree.Add(group, KindTextBlock, Rect{0.2, 0.2, 0.3, 0.2})
		// Dropping the child list by hand orphans the child in the arena.
		tree.Get(group).Children = nil
		if err := tree.Validate(0.01, 0.5); err == nil {
			t.Error("Validate() = nil, want unreachable-region error")
		}
	})

	t.Run("empty tree is background only", func(t *testing.T) {
		tree := NewTree()
		if err := tree.Validate(0.01, 0.5); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
		if len(tree.Leaves()) != 0 {
			t.Errorf("Leaves() = %v, want none", tree.Leaves())
		}
	})
}

func TestTableModelValidate(t *testing.T) {
	t.Run("fresh grid tiles exactly", func(t *testing.T) {
		m := NewTableModel(3, 4)
		if err := m.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
		if len(m.Cells) != 12 {
			t.Errorf("len(Cells) = %d, want 12", len(m.Cells))
		}
	})

	t.Run("merged grid still tiles", func(t *testing.T) {
		m := NewTableModel(3, 3)
		if err := m.Merge(0, 0, 2, 2); err != nil {
			t.Fatalf("Merge() = %v", err)
		}
		if err := m.Validate(); err != nil {
			t.Errorf("Validate() after merge = %v, want nil", err)
		}
		if len(m.Cells) != 6 {
			t.Errorf("len(Cells) = %d, want 6", len(m.Cells))
		}
	})

	t.Run("span escaping grid is rejected", func(t *testing.T) {
		m := NewTableModel(2, 2)
		m.Cells[0].RowSpan = 3
		if err := m.Validate(); err == nil {
			t.Error("Validate() = nil, want span error")
		}
	})

	t.Run("double coverage is rejected", func(t *testing.T) {
		m := NewTableModel(2, 2)
		m.Cells[0].ColSpan = 2
		if err := m.Validate(); err == nil {
			t.Error("Validate() = nil, want coverage error")
		}
	})
}

func TestTableModelMerge(t *testing.T) {
	t.Run("merge onto covered anchor fails", func(t *testing.T) {
		m := NewTableModel(3, 3)
		if err := m.Merge(0, 0, 2, 2); err != nil {
			t.Fatalf("first Merge() = %v", err)
		}
		if err := m.Merge(1, 1, 2, 2); err == nil {
			t.Error("Merge() on covered anchor = nil, want error")
		}
	})

	t.Run("CellAt covered slot returns nil", func(t *testing.T) {
		m := NewTableModel(2, 2)
		if err := m.Merge(0, 0, 1, 2); err != nil {
			t.Fatalf("Merge() = %v", err)
		}
		if m.CellAt(0, 1) != nil {
			t.Error("CellAt(0,1) != nil for covered slot")
		}
		anchor := m.CellAt(0, 0)
		if anchor == nil || anchor.ColSpan != 2 {
			t.Errorf("CellAt(0,0) = %+v, want anchor with ColSpan 2", anchor)
		}
	})
}
