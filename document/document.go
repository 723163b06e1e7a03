// Package document holds the format-agnostic slide model the export pipeline
// assembles before serialization: a region layout tree, recovered text and
// table structures, and the final SlideDocument consumed by the encoders.
package document

import "image"

// ElementKind is the type of a placed document element.
type ElementKind int

const (
	ElementText ElementKind = iota
	ElementTable
	ElementImage
)

func (k ElementKind) String() string {
	switch k {
	case ElementText:
		return "Text"
	case ElementTable:
		return "Table"
	default:
		return "Image"
	}
}

// Element is one positioned, editable shape overlaid on the background
// plate. Exactly one of Style, Table or Picture is populated, matching Kind.
type Element struct {
	Region RegionID
	Kind   ElementKind
	Box    Rect
	// Z is the paint order, inherited from the region tree.
	Z int
	// Style holds the recovered text for ElementText.
	Style *TextStyle
	// Table holds the recovered grid for ElementTable.
	Table *TableModel
	// Picture holds the cropped pixels for ElementImage.
	Picture image.Image
}

// SlideDocument is the assembled model of a single slide: a full-bleed
// background plate plus the ordered overlay elements. It is created once per
// export, is immutable after assembly, and is consumed by the encoders.
type SlideDocument struct {
	// Background is the reconstructed plate, same dimensions as the source
	// image. Never nil after assembly.
	Background image.Image
	// Elements are sorted by paint order (Z ascending).
	Elements []Element
	// SourceWidth and SourceHeight are the pixel dimensions of the decoded
	// slide image the normalized boxes were derived from.
	SourceWidth  int
	SourceHeight int
}

// Tables returns the table elements in paint order. Used by the spreadsheet
// encoder, which exports grids only.
func (d *SlideDocument) Tables() []*TableModel {
	var tables []*TableModel
	for _, el := range d.Elements {
		if el.Kind == ElementTable && el.Table != nil {
			tables = append(tables, el.Table)
		}
	}
	return tables
}
