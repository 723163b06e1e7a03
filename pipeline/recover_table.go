package pipeline

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
	"strings"

	"github.com/slidex-project/slidex/document"
	"github.com/slidex-project/slidex/faults"
	"github.com/slidex-project/slidex/imageio"
	"github.com/slidex-project/slidex/pipeline/recognize"
	"github.com/slidex-project/slidex/pkg/utils"
)

const (
	// Fraction of a ruling-line segment that must carry ink for the segment
	// to count as a real cell separator. Below this the adjacent cells are
	// treated as merged.
	separatorCoverage = 0.5
)

// recoverTable reconstructs the logical grid of a table region: line
// positions, cell texts and merged-cell spans. A region whose ruling lines
// cannot support at least a 2x2 grid, or whose geometry is too irregular,
// fails with TableStructureAmbiguous so the caller can demote it to a plain
// text block.
func (s *Service) recoverTable(ctx context.Context, slide *imageio.SlideImage, tree *document.Tree, id document.RegionID) (*document.TableModel, error) {
	region := tree.Get(id)
	left, top, width, height := region.Box.Scale(slide.Width(), slide.Height())
	crop := slide.Crop(image.Rect(left, top, left+width, top+height))

	lines, err := s.lineRecognizer.RecognizeTableLines(ctx, crop)
	if err != nil {
		return nil, faults.New(faults.TableStructureAmbiguous, "recover-table", id, err)
	}
	if len(lines.RowLines) < 3 || len(lines.ColLines) < 3 {
		return nil, faults.New(faults.TableStructureAmbiguous, "recover-table", id,
			fmt.Errorf("detected %d row and %d column lines, need a 2x2 grid",
				len(lines.RowLines), len(lines.ColLines)))
	}
	if cv := spacingVariation(lines.RowLines); cv > s.config.TableStructureTolerance {
		return nil, faults.New(faults.TableStructureAmbiguous, "recover-table", id,
			fmt.Errorf("row spacing variation %.2f exceeds tolerance %.2f", cv, s.config.TableStructureTolerance))
	}

	rows := len(lines.RowLines) - 1
	cols := len(lines.ColLines) - 1
	model := document.NewTableModel(rows, cols)
	model.RowHeights = bandFractions(lines.RowLines)
	model.ColWidths = bandFractions(lines.ColLines)

	s.mergeSpannedCells(model, crop, lines)

	words, err := s.recognizeTableText(ctx, crop)
	if err != nil {
		return nil, faults.New(faults.TableStructureAmbiguous, "recover-table", id, err)
	}
	fillCells(model, words, lines, s.cellStyle(crop, words, slide))

	if err := model.Validate(); err != nil {
		return nil, faults.New(faults.TableStructureAmbiguous, "recover-table", id, err)
	}
	return model, nil
}

// recognizeTableText runs one recognition pass over the whole table crop.
// A table with no recognizable text is still a valid (empty) table.
func (s *Service) recognizeTableText(ctx context.Context, crop *image.NRGBA) ([]recognize.Word, error) {
	pngImage, err := imageio.EncodePNG(crop)
	if err != nil {
		return nil, err
	}
	words, err := s.recognizeWithRetry(ctx, pngImage)
	if err != nil {
		return nil, fmt.Errorf("table text recognition failed: %w", err)
	}
	return utils.Filter(words, func(w recognize.Word) bool {
		return strings.TrimSpace(w.Text) != ""
	}), nil
}

// cellStyle derives one shared style for the table's cell texts. Cell
// contents in generated decks are uniform enough that a single style reads
// better than per-cell guesses from a handful of glyphs.
func (s *Service) cellStyle(crop *image.NRGBA, words []recognize.Word, slide *imageio.SlideImage) document.TextStyle {
	style := document.TextStyle{
		Weight: document.RegularWeight,
		Alpha:  1,
		Align:  document.AlignCenter,
		Family: s.fonts.Family(),
	}
	if len(words) == 0 {
		style.SizePt = 12
		return style
	}
	style.Weight = dominantWeight(words)
	style.Color = s.recoverTextColor(crop, words)
	style.Confidence = meanConfidence(words)

	heights := utils.Map(words, func(w recognize.Word) float64 {
		if w.PixelFontSize > 0 {
			return w.PixelFontSize
		}
		return float64(w.Box.Dy())
	})
	sort.Float64s(heights)
	style.SizePt = math.Max(heights[len(heights)/2]/float64(slide.Height())*canvasHeightPt, 1)
	return style
}

// fillCells assigns every recognized word to the cell whose band contains
// its box center, then joins each cell's words in reading order.
func fillCells(model *document.TableModel, words []recognize.Word, lines recognize.TableLines, style document.TextStyle) {
	cellWords := make(map[[2]int][]recognize.Word)
	for _, word := range words {
		cx := float64(word.Box.Min.X+word.Box.Max.X) / 2
		cy := float64(word.Box.Min.Y+word.Box.Max.Y) / 2
		row := bandIndex(lines.RowLines, cy)
		col := bandIndex(lines.ColLines, cx)
		if row < 0 || col < 0 {
			continue
		}
		anchor := model.CellAt(row, col)
		if anchor == nil {
			continue
		}
		key := [2]int{anchor.Row, anchor.Col}
		cellWords[key] = append(cellWords[key], word)
	}

	for i := range model.Cells {
		cell := &model.Cells[i]
		group := cellWords[[2]int{cell.Row, cell.Col}]
		if len(group) == 0 {
			cell.Style = style
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if verticalOverlap(group[i].Box, group[j].Box) > 0.5 {
				return group[i].Box.Min.X < group[j].Box.Min.X
			}
			return group[i].Box.Min.Y < group[j].Box.Min.Y
		})
		cell.Text = strings.Join(utils.Map(group, func(w recognize.Word) string { return w.Text }), " ")
		cell.Style = style
	}
}

// mergeSpannedCells inspects every interior ruling segment: where a segment
// carries almost no ink the cells it would separate are actually one merged
// cell. Runs are merged per column (vertical spans) and per row (horizontal
// spans); a cell can only join one run, which keeps the grid a valid tiling.
func (s *Service) mergeSpannedCells(model *document.TableModel, crop *image.NRGBA, lines recognize.TableLines) {
	for col := 0; col < model.Cols; col++ {
		runStart := -1
		for line := 1; line < len(lines.RowLines)-1; line++ {
			present := segmentInked(crop,
				lines.ColLines[col], lines.ColLines[col+1],
				lines.RowLines[line], true)
			if !present && runStart == -1 {
				runStart = line - 1
			}
			if present && runStart != -1 {
				mergeIfUnit(model, runStart, col, line-runStart, 1)
				runStart = -1
			}
		}
		if runStart != -1 {
			mergeIfUnit(model, runStart, col, model.Rows-runStart, 1)
		}
	}

	for row := 0; row < model.Rows; row++ {
		runStart := -1
		for line := 1; line < len(lines.ColLines)-1; line++ {
			present := segmentInked(crop,
				lines.RowLines[row], lines.RowLines[row+1],
				lines.ColLines[line], false)
			if !present && runStart == -1 {
				runStart = line - 1
			}
			if present && runStart != -1 {
				mergeIfUnit(model, row, runStart, 1, line-runStart)
				runStart = -1
			}
		}
		if runStart != -1 {
			mergeIfUnit(model, row, runStart, 1, model.Cols-runStart)
		}
	}
}

// mergeIfUnit merges the block only when it still consists of unit cells.
// A slot already swallowed by a perpendicular merge leaves the block as-is,
// which keeps ambiguous evidence from producing an invalid tiling.
func mergeIfUnit(model *document.TableModel, row, col, rowSpan, colSpan int) {
	for r := row; r < row+rowSpan; r++ {
		for c := col; c < col+colSpan; c++ {
			cell := model.CellAt(r, c)
			if cell == nil || cell.RowSpan != 1 || cell.ColSpan != 1 {
				return
			}
		}
	}
	_ = model.Merge(row, col, rowSpan, colSpan)
}

// segmentInked reports whether the ruling segment at position pos, spanning
// [from, to] on the other axis, carries enough ink to be a separator.
func segmentInked(crop *image.NRGBA, from, to, pos float64, horizontal bool) bool {
	bounds := crop.Bounds()
	bg := borderColor(crop)
	inked, total := 0, 0
	for v := int(from); v < int(to); v++ {
		var x, y int
		if horizontal {
			x, y = bounds.Min.X+v, bounds.Min.Y+int(pos)
		} else {
			x, y = bounds.Min.X+int(pos), bounds.Min.Y+v
		}
		if !image.Pt(x, y).In(bounds) {
			continue
		}
		total++
		if nrgbaToColorful(crop.NRGBAAt(x, y)).DistanceCIEDE2000(bg) > inkColorDistance {
			inked++
		}
	}
	return total > 0 && float64(inked)/float64(total) >= separatorCoverage
}

// bandIndex returns which band of the sorted line positions contains v, or
// -1 when v falls outside the grid.
func bandIndex(positions []float64, v float64) int {
	for i := 0; i+1 < len(positions); i++ {
		if v >= positions[i] && v < positions[i+1] {
			return i
		}
	}
	if len(positions) >= 2 && v == positions[len(positions)-1] {
		return len(positions) - 2
	}
	return -1
}

// bandFractions converts absolute line positions into the fractional widths
// of the bands between them.
func bandFractions(positions []float64) []float64 {
	span := positions[len(positions)-1] - positions[0]
	if span <= 0 {
		return nil
	}
	fractions := make([]float64, len(positions)-1)
	for i := range fractions {
		fractions[i] = (positions[i+1] - positions[i]) / span
	}
	return fractions
}

// spacingVariation returns the coefficient of variation of the gaps between
// consecutive line positions.
func spacingVariation(positions []float64) float64 {
	gaps := make([]float64, len(positions)-1)
	mean := 0.0
	for i := range gaps {
		gaps[i] = positions[i+1] - positions[i]
		mean += gaps[i]
	}
	mean /= float64(len(gaps))
	if mean == 0 {
		return 0
	}
	variance := 0.0
	for _, g := range gaps {
		variance += (g - mean) * (g - mean)
	}
	variance /= float64(len(gaps))
	return math.Sqrt(variance) / mean
}
