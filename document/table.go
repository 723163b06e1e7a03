package document

import "fmt"

// Cell is one logical table cell. A cell spanning several rows or columns
// appears once, anchored at its top-left grid slot.
type Cell struct {
	Row     int
	Col     int
	RowSpan int
	ColSpan int
	Text    string
	Style   TextStyle
}

// TableModel is the recovered structure of a table region: an R×C grid tiled
// exactly by the cells' spans.
type TableModel struct {
	Rows  int
	Cols  int
	Cells []Cell
	// ColWidths and RowHeights are fractions of the table box, summing to 1.
	ColWidths  []float64
	RowHeights []float64
}

// NewTableModel builds a model with one unit cell per grid slot and uniform
// row/column sizing.
func NewTableModel(rows, cols int) *TableModel {
	m := &TableModel{Rows: rows, Cols: cols}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.Cells = append(m.Cells, Cell{Row: r, Col: c, RowSpan: 1, ColSpan: 1})
		}
	}
	m.ColWidths = uniformFractions(cols)
	m.RowHeights = uniformFractions(rows)
	return m
}

// CellAt returns the cell anchored at (row, col), or nil when that slot is
// covered by another cell's span.
func (m *TableModel) CellAt(row, col int) *Cell {
	for i := range m.Cells {
		if m.Cells[i].Row == row && m.Cells[i].Col == col {
			return &m.Cells[i]
		}
	}
	return nil
}

// Validate checks that the cells' spans partition the grid exactly: every
// grid slot covered once, no cell sticking out of the grid.
func (m *TableModel) Validate() error {
	if m.Rows < 1 || m.Cols < 1 {
		return fmt.Errorf("table grid %dx%d is degenerate", m.Rows, m.Cols)
	}
	covered := make([]int, m.Rows*m.Cols)
	for _, cell := range m.Cells {
		if cell.RowSpan < 1 || cell.ColSpan < 1 {
			return fmt.Errorf("cell (%d,%d) has non-positive span %dx%d", cell.Row, cell.Col, cell.RowSpan, cell.ColSpan)
		}
		if cell.Row < 0 || cell.Col < 0 || cell.Row+cell.RowSpan > m.Rows || cell.Col+cell.ColSpan > m.Cols {
			return fmt.Errorf("cell (%d,%d) span %dx%d escapes %dx%d grid", cell.Row, cell.Col, cell.RowSpan, cell.ColSpan, m.Rows, m.Cols)
		}
		for r := cell.Row; r < cell.Row+cell.RowSpan; r++ {
			for c := cell.Col; c < cell.Col+cell.ColSpan; c++ {
				covered[r*m.Cols+c]++
			}
		}
	}
	for i, count := range covered {
		if count == 0 {
			return fmt.Errorf("grid slot (%d,%d) is not covered by any cell", i/m.Cols, i%m.Cols)
		}
		if count > 1 {
			return fmt.Errorf("grid slot (%d,%d) is covered %d times", i/m.Cols, i%m.Cols, count)
		}
	}
	return nil
}

// Merge collapses the rectangular block anchored at (row, col) into a single
// cell with the given spans, removing the cells it swallows. The block must
// currently consist of unit cells.
func (m *TableModel) Merge(row, col, rowSpan, colSpan int) error {
	if row < 0 || col < 0 || row+rowSpan > m.Rows || col+colSpan > m.Cols {
		return fmt.Errorf("merge block (%d,%d) %dx%d escapes %dx%d grid", row, col, rowSpan, colSpan, m.Rows, m.Cols)
	}
	anchor := m.CellAt(row, col)
	if anchor == nil {
		return fmt.Errorf("merge anchor (%d,%d) is already covered", row, col)
	}
	kept := m.Cells[:0]
	for _, cell := range m.Cells {
		inBlock := cell.Row >= row && cell.Row < row+rowSpan &&
			cell.Col >= col && cell.Col < col+colSpan
		if inBlock && !(cell.Row == row && cell.Col == col) {
			if cell.RowSpan != 1 || cell.ColSpan != 1 {
				return fmt.Errorf("merge block overlaps spanned cell (%d,%d)", cell.Row, cell.Col)
			}
			continue
		}
		if cell.Row == row && cell.Col == col {
			cell.RowSpan = rowSpan
			cell.ColSpan = colSpan
		}
		kept = append(kept, cell)
	}
	m.Cells = kept
	return nil
}

func uniformFractions(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}
