package encoder

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"io"
	"strings"
	"testing"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/slidex-project/slidex/document"
)

func solidBackground(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 240, G: 240, B: 250, A: 255})
		}
	}
	return img
}

func sampleDocument() *document.SlideDocument {
	table := document.NewTableModel(2, 2)
	_ = table.Merge(0, 0, 1, 2)
	table.CellAt(0, 0).Text = "header"
	table.CellAt(1, 0).Text = "a"
	table.CellAt(1, 1).Text = "b"

	return &document.SlideDocument{
		Background:   solidBackground(32, 18),
		SourceWidth:  32,
		SourceHeight: 18,
		Elements: []document.Element{
			{
				Region: 1,
				Kind:   document.ElementText,
				Box:    document.NewRect(0.1, 0.1, 0.4, 0.1),
				Z:      1,
				Style: &document.TextStyle{
					Text:   "Title & <subtitle>",
					SizePt: 24,
					Weight: document.BoldWeight,
					Color:  colorful.Color{R: 0.2, G: 0.2, B: 0.2},
					Alpha:  1,
					Align:  document.AlignCenter,
					Family: "SansSerif",
				},
			},
			{
				Region: 2,
				Kind:   document.ElementTable,
				Box:    document.NewRect(0.1, 0.3, 0.6, 0.4),
				Z:      2,
				Table:  table,
			},
			{
				Region: 3,
				Kind:   document.ElementImage,
				Box:    document.NewRect(0.75, 0.3, 0.2, 0.4),
				Z:      3,
				Picture: solidBackground(8, 8),
			},
		},
	}
}

func archiveEntries(t *testing.T, data []byte) map[string]string {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() = %v", err)
	}
	entries := make(map[string]string, len(reader.File))
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open %s: %v", file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", file.Name, err)
		}
		entries[file.Name] = string(content)
	}
	return entries
}

func TestEncodePPTXIsDeterministic(t *testing.T) {
	docs := []*document.SlideDocument{sampleDocument()}
	first, err := EncodePPTX(docs)
	if err != nil {
		t.Fatalf("EncodePPTX() = %v", err)
	}
	second, err := EncodePPTX(docs)
	if err != nil {
		t.Fatalf("EncodePPTX() second run = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("EncodePPTX() output differs between runs")
	}
}

func TestEncodePPTXStructure(t *testing.T) {
	data, err := EncodePPTX([]*document.SlideDocument{sampleDocument()})
	if err != nil {
		t.Fatalf("EncodePPTX() = %v", err)
	}
	entries := archiveEntries(t, data)

	for _, name := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"ppt/presentation.xml",
		"ppt/_rels/presentation.xml.rels",
		"ppt/slideMasters/slideMaster1.xml",
		"ppt/slideLayouts/slideLayout1.xml",
		"ppt/theme/theme1.xml",
		"ppt/slides/slide1.xml",
		"ppt/slides/_rels/slide1.xml.rels",
		"ppt/media/slide1background.png",
		"ppt/media/slide1pic1.png",
	} {
		if _, ok := entries[name]; !ok {
			t.Errorf("archive is missing %s", name)
		}
	}

	presentation := entries["ppt/presentation.xml"]
	if !strings.Contains(presentation, `cx="12192000" cy="6858000" type="screen16x9"`) {
		t.Error("presentation.xml lacks the 16:9 slide size")
	}

	slide := entries["ppt/slides/slide1.xml"]
	if !strings.Contains(slide, `<a:blip r:embed="rId2"/>`) {
		t.Error("slide1.xml lacks the full-bleed background picture")
	}
	if !strings.Contains(slide, `<a:t>Title &amp; &lt;subtitle&gt;</a:t>`) {
		t.Error("slide1.xml lacks the escaped text run")
	}
	if !strings.Contains(slide, ` b="1"`) {
		t.Error("slide1.xml lacks the bold run property")
	}
	if !strings.Contains(slide, `algn="ctr"`) {
		t.Error("slide1.xml lacks the centered paragraph")
	}
	if !strings.Contains(slide, `gridSpan="2"`) {
		t.Error("slide1.xml lacks the merged table cell span")
	}
	if !strings.Contains(slide, `hMerge="1"`) {
		t.Error("slide1.xml lacks the merge continuation cell")
	}
}

func TestEncodePPTXBackgroundOnlySlide(t *testing.T) {
	doc := &document.SlideDocument{
		Background:   solidBackground(32, 18),
		SourceWidth:  32,
		SourceHeight: 18,
	}
	data, err := EncodePPTX([]*document.SlideDocument{doc})
	if err != nil {
		t.Fatalf("EncodePPTX() = %v", err)
	}
	entries := archiveEntries(t, data)

	slide := entries["ppt/slides/slide1.xml"]
	if strings.Contains(slide, "<p:sp>") || strings.Contains(slide, "<p:graphicFrame>") {
		t.Error("background-only slide carries overlay shapes")
	}
	if !strings.Contains(slide, `<a:blip r:embed="rId2"/>`) {
		t.Error("background-only slide lacks its background picture")
	}
}

func TestEncodePPTXRejectsEmptyDeck(t *testing.T) {
	if _, err := EncodePPTX(nil); err == nil {
		t.Error("EncodePPTX(nil) = nil, want error")
	}
}

func TestEncodePDF(t *testing.T) {
	data, err := EncodePDF([]*document.SlideDocument{sampleDocument()})
	if err != nil {
		t.Fatalf("EncodePDF() = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("EncodePDF() output is not a PDF")
	}
}

func TestEncodeXLSXExportsTables(t *testing.T) {
	data, err := EncodeXLSX([]*document.SlideDocument{sampleDocument()})
	if err != nil {
		t.Fatalf("EncodeXLSX() = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("EncodeXLSX() output is empty")
	}
	// XLSX is a zip archive; the sheet must be present.
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("workbook is not a zip archive: %v", err)
	}
	found := false
	for _, file := range reader.File {
		if strings.HasPrefix(file.Name, "xl/worksheets/") {
			found = true
		}
	}
	if !found {
		t.Error("workbook has no worksheets")
	}
}
