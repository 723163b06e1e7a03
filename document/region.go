package document

import (
	"fmt"
	"sort"
)

// RegionKind classifies what a detected region contains.
type RegionKind int

const (
	KindUnknown RegionKind = iota
	KindTextBlock
	KindTable
	KindImage
	KindGroup
	KindBackground
)

func (k RegionKind) String() string {
	switch k {
	case KindTextBlock:
		return "TextBlock"
	case KindTable:
		return "Table"
	case KindImage:
		return "Image"
	case KindGroup:
		return "Group"
	case KindBackground:
		return "Background"
	default:
		return "Unknown"
	}
}

// RegionID indexes a region inside its tree's arena.
type RegionID int

// NoRegion marks the absence of a parent (only the root has it).
const NoRegion RegionID = -1

// Region is one node of the layout tree. Regions never hold pointers to each
// other; parents and children are plain arena indices, which keeps the tree
// acyclic by construction and trivially serializable.
type Region struct {
	ID       RegionID
	Kind     RegionKind
	Box      Rect
	Parent   RegionID
	Children []RegionID
	// Z is the paint order index: lower values are painted first.
	Z int
	// dead marks regions detached by Collapse. They stay in the arena so ids
	// remain stable, but they are no longer part of the tree.
	dead bool
}

// IsLeaf reports whether the region has no children.
func (r *Region) IsLeaf() bool {
	return len(r.Children) == 0
}

// Tree is an arena of regions. Index 0 is always the root group covering the
// full canvas.
type Tree struct {
	regions []Region
}

// NewTree creates a tree holding only the full-canvas root group.
func NewTree() *Tree {
	t := &Tree{}
	t.regions = append(t.regions, Region{
		ID:     0,
		Kind:   KindGroup,
		Box:    FullCanvas(),
		Parent: NoRegion,
	})
	return t
}

// Root returns the id of the root group.
func (t *Tree) Root() RegionID { return 0 }

// Len returns the number of regions in the arena.
func (t *Tree) Len() int { return len(t.regions) }

// Get returns the region with the given id. The returned pointer stays valid
// until the next Add call.
func (t *Tree) Get(id RegionID) *Region {
	return &t.regions[id]
}

// Add appends a new region under parent and returns its id. The z index
// defaults to the insertion order; callers may adjust it afterwards.
func (t *Tree) Add(parent RegionID, kind RegionKind, box Rect) RegionID {
	id := RegionID(len(t.regions))
	t.regions = append(t.regions, Region{
		ID:     id,
		Kind:   kind,
		Box:    box,
		Parent: parent,
		Z:      int(id),
	})
	t.regions[parent].Children = append(t.regions[parent].Children, id)
	return id
}

// Collapse turns the region into a leaf: all of its descendants are detached
// from the tree and stop counting as leaves. Detached regions keep their
// arena slots so other ids stay valid.
func (t *Tree) Collapse(id RegionID) {
	for _, childID := range t.regions[id].Children {
		t.regions[childID].dead = true
		t.Collapse(childID)
	}
	t.regions[id].Children = nil
}

// Leaves returns the ids of all leaf regions in paint order (z ascending,
// id as tie-break so the order is total and deterministic).
func (t *Tree) Leaves() []RegionID {
	var leaves []RegionID
	for i := range t.regions {
		if t.regions[i].dead {
			continue
		}
		if t.regions[i].IsLeaf() && t.regions[i].ID != t.Root() {
			leaves = append(leaves, t.regions[i].ID)
		}
	}
	sort.Slice(leaves, func(i, j int) bool {
		a, b := t.Get(leaves[i]), t.Get(leaves[j])
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		return a.ID < b.ID
	})
	return leaves
}

// Depth returns how many ancestors the region has. The root has depth 0.
func (t *Tree) Depth(id RegionID) int {
	depth := 0
	for t.regions[id].Parent != NoRegion {
		id = t.regions[id].Parent
		depth++
	}
	return depth
}

// Validate checks the structural invariants of the tree: every live region
// is reachable from the root, every child box is contained in its parent's
// box within eps, and sibling boxes do not overlap beyond maxSiblingOverlap
// of the smaller box (heavier overlap means the segmenter should have merged
// them into one region).
func (t *Tree) Validate(eps, maxSiblingOverlap float64) error {
	reachable := make([]bool, len(t.regions))
	var mark func(id RegionID)
	mark = func(id RegionID) {
		reachable[id] = true
		for _, childID := range t.regions[id].Children {
			mark(childID)
		}
	}
	mark(t.Root())

	for i := range t.regions {
		r := &t.regions[i]
		if r.dead {
			continue
		}
		if !reachable[i] {
			return fmt.Errorf("region %d is not reachable from the root", r.ID)
		}
		for _, childID := range r.Children {
			child := t.Get(childID)
			if child.Parent != r.ID {
				return fmt.Errorf("region %d: child %d has parent %d", r.ID, childID, child.Parent)
			}
			if !r.Box.ContainsRect(child.Box, eps) {
				return fmt.Errorf("region %d: child %d box %+v escapes parent box %+v", r.ID, childID, child.Box, r.Box)
			}
		}
		for a := 0; a < len(r.Children); a++ {
			for b := a + 1; b < len(r.Children); b++ {
				boxA := t.Get(r.Children[a]).Box
				boxB := t.Get(r.Children[b]).Box
				if ratio := boxA.OverlapRatio(boxB); ratio > maxSiblingOverlap {
					return fmt.Errorf("region %d: siblings %d and %d overlap by %.2f", r.ID, r.Children[a], r.Children[b], ratio)
				}
			}
		}
	}
	return nil
}
