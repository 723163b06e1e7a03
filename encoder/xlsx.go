package encoder

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/slidex-project/slidex/document"
)

// EncodeXLSX exports every recovered table into a spreadsheet, one sheet per
// table, preserving merged cells. Slides without tables contribute nothing;
// a deck with no tables at all yields a workbook with a single empty sheet.
func EncodeXLSX(docs []*document.SlideDocument) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	sheetCount := 0
	for slideIdx, doc := range docs {
		for tableIdx, table := range doc.Tables() {
			sheetCount++
			name := fmt.Sprintf("Slide%d Table%d", slideIdx+1, tableIdx+1)
			if sheetCount == 1 {
				if err := file.SetSheetName(file.GetSheetName(0), name); err != nil {
					return nil, fmt.Errorf("failed to name sheet %s: %w", name, err)
				}
			} else {
				if _, err := file.NewSheet(name); err != nil {
					return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
				}
			}
			if err := writeSheet(file, name, table); err != nil {
				return nil, err
			}
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(file *excelize.File, sheet string, table *document.TableModel) error {
	for _, cell := range table.Cells {
		anchor, err := excelize.CoordinatesToCellName(cell.Col+1, cell.Row+1)
		if err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
		if err := file.SetCellValue(sheet, anchor, cell.Text); err != nil {
			return fmt.Errorf("sheet %s: failed to set %s: %w", sheet, anchor, err)
		}
		if cell.RowSpan > 1 || cell.ColSpan > 1 {
			end, err := excelize.CoordinatesToCellName(cell.Col+cell.ColSpan, cell.Row+cell.RowSpan)
			if err != nil {
				return fmt.Errorf("sheet %s: %w", sheet, err)
			}
			if err := file.MergeCell(sheet, anchor, end); err != nil {
				return fmt.Errorf("sheet %s: failed to merge %s:%s: %w", sheet, anchor, end, err)
			}
		}
	}
	return nil
}
