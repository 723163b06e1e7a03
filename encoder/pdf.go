package encoder

import (
	"bytes"
	"fmt"
	"image"

	"github.com/jung-kurt/gofpdf"

	"github.com/slidex-project/slidex/document"
	"github.com/slidex-project/slidex/imageio"
)

const (
	// Page size in points: the EMU slide canvas at 72pt/in.
	pageWidthPt  = float64(slideCX) / 12700.0
	pageHeightPt = float64(slideCY) / 12700.0
)

// EncodePDF flattens the documents into a PDF, one 16:9 page per slide. The
// overlay elements are re-rendered on top of the background plate, so the
// pages match the PPTX deck without being editable.
func EncodePDF(docs []*document.SlideDocument) ([]byte, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no slides to encode")
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pageWidthPt, Ht: pageHeightPt},
	})

	for idx, doc := range docs {
		pdf.AddPage()
		if err := drawPDFPage(pdf, idx+1, doc); err != nil {
			return nil, err
		}
	}
	if err := pdf.Error(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawPDFPage(pdf *gofpdf.Fpdf, page int, doc *document.SlideDocument) error {
	if err := placePDFImage(pdf, fmt.Sprintf("page-%d-background", page), doc.Background,
		0, 0, pageWidthPt, pageHeightPt); err != nil {
		return err
	}

	pictureIndex := 0
	for _, el := range doc.Elements {
		x := el.Box.X * pageWidthPt
		y := el.Box.Y * pageHeightPt
		w := el.Box.W * pageWidthPt
		h := el.Box.H * pageHeightPt

		switch el.Kind {
		case document.ElementText:
			drawPDFText(pdf, x, y, w, h, el.Style)
		case document.ElementTable:
			drawPDFTable(pdf, x, y, w, h, el.Table)
		case document.ElementImage:
			pictureIndex++
			if err := placePDFImage(pdf, fmt.Sprintf("page-%d-pic-%d", page, pictureIndex), el.Picture, x, y, w, h); err != nil {
				return err
			}
		}
	}
	return nil
}

func placePDFImage(pdf *gofpdf.Fpdf, name string, img image.Image, x, y, w, h float64) error {
	data, err := imageio.EncodePNG(img)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	options := gofpdf.ImageOptions{ImageType: "PNG"}
	if info := pdf.RegisterImageOptionsReader(name, options, bytes.NewReader(data)); info == nil {
		return fmt.Errorf("failed to register %s: %v", name, pdf.Error())
	}
	pdf.ImageOptions(name, x, y, w, h, false, options, 0, "")
	return nil
}

func drawPDFText(pdf *gofpdf.Fpdf, x, y, w, h float64, style *document.TextStyle) {
	fontStyle := ""
	if style.Bold() {
		fontStyle = "B"
	}
	pdf.SetFont("Helvetica", fontStyle, style.SizePt)
	r, g, b := rgb255(style)
	pdf.SetTextColor(r, g, b)
	pdf.SetXY(x, y)
	pdf.MultiCell(w, style.SizePt*1.2, style.Text, "", pdfAlign(style.Align), false)
}

func drawPDFTable(pdf *gofpdf.Fpdf, x, y, w, h float64, table *document.TableModel) {
	colOffsets := cumulative(table.ColWidths)
	rowOffsets := cumulative(table.RowHeights)
	pdf.SetDrawColor(120, 120, 120)
	for _, cell := range table.Cells {
		cx := x + colOffsets[cell.Col]*w
		cy := y + rowOffsets[cell.Row]*h
		cw := (colOffsets[cell.Col+cell.ColSpan] - colOffsets[cell.Col]) * w
		ch := (rowOffsets[cell.Row+cell.RowSpan] - rowOffsets[cell.Row]) * h

		fontStyle := ""
		if cell.Style.Bold() {
			fontStyle = "B"
		}
		pdf.SetFont("Helvetica", fontStyle, cell.Style.SizePt)
		r, g, b := rgb255(&cell.Style)
		pdf.SetTextColor(r, g, b)
		pdf.SetXY(cx, cy)
		pdf.CellFormat(cw, ch, cell.Text, "1", 0, "CM", false, 0, "")
	}
}

// cumulative turns band fractions into offsets: [0, f0, f0+f1, ..., 1].
func cumulative(fractions []float64) []float64 {
	offsets := make([]float64, len(fractions)+1)
	for i, f := range fractions {
		offsets[i+1] = offsets[i] + f
	}
	return offsets
}

func rgb255(style *document.TextStyle) (int, int, int) {
	c := style.Color.Clamped()
	return int(c.R*255 + 0.5), int(c.G*255 + 0.5), int(c.B*255 + 0.5)
}

func pdfAlign(align document.Alignment) string {
	switch align {
	case document.AlignCenter:
		return "C"
	case document.AlignRight:
		return "R"
	default:
		return "L"
	}
}
