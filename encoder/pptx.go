// Package encoder serializes assembled slide documents into their delivery
// formats: an editable PPTX deck, a flattened PDF and a spreadsheet with the
// recovered tables.
package encoder

import (
	"archive/zip"
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/slidex-project/slidex/document"
	"github.com/slidex-project/slidex/imageio"
)

const (
	// 16:9 slide size in EMU (914400 per inch): 10in x 5.625in.
	slideCX = 12192000
	slideCY = 6858000

	// Fixed document timestamp. Exports carry no wall-clock metadata so the
	// same input always produces byte-identical archives.
	deckTimestamp = "2024-01-01T00:00:00Z"

	applicationName = "slidex"
)

// EncodePPTX serializes the documents into a PowerPoint archive: each slide
// is its reconstructed background as a full-bleed picture, overlaid with
// editable text boxes, tables and pictures. Encoding is deterministic.
func EncodePPTX(docs []*document.SlideDocument) ([]byte, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no slides to encode")
	}

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)

	statics := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML(docs)},
		{"_rels/.rels", rootRelsXML()},
		{"docProps/core.xml", corePropsXML()},
		{"docProps/app.xml", appPropsXML(len(docs))},
		{"ppt/presentation.xml", presentationXML(len(docs))},
		{"ppt/_rels/presentation.xml.rels", presentationRelsXML(len(docs))},
		{"ppt/presProps.xml", presPropsXML()},
		{"ppt/viewProps.xml", viewPropsXML()},
		{"ppt/theme/theme1.xml", themeXML()},
		{"ppt/slideMasters/slideMaster1.xml", slideMasterXML()},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", slideMasterRelsXML()},
		{"ppt/slideLayouts/slideLayout1.xml", slideLayoutXML()},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", slideLayoutRelsXML()},
	}
	for _, entry := range statics {
		if err := writeZipTextFile(writer, entry.name, entry.content); err != nil {
			_ = writer.Close()
			return nil, err
		}
	}

	for idx, doc := range docs {
		if err := writeSlide(writer, idx+1, doc); err != nil {
			_ = writer.Close()
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSlide(writer *zip.Writer, number int, doc *document.SlideDocument) error {
	background, err := imageio.EncodePNG(doc.Background)
	if err != nil {
		return fmt.Errorf("slide %d: failed to encode background: %w", number, err)
	}
	backgroundName := fmt.Sprintf("ppt/media/slide%dbackground.png", number)
	if err := writeZipBytes(writer, backgroundName, background); err != nil {
		return err
	}

	// Picture elements get their own media parts, related from the slide as
	// rId3 onwards (rId1 is the layout, rId2 the background).
	pictureRels := make(map[document.RegionID]int)
	pictureTargets := []string{strings.TrimPrefix(backgroundName, "ppt/")}
	pictureIndex := 0
	for _, el := range doc.Elements {
		if el.Kind != document.ElementImage {
			continue
		}
		pictureIndex++
		data, err := imageio.EncodePNG(el.Picture)
		if err != nil {
			return fmt.Errorf("slide %d: failed to encode picture %d: %w", number, pictureIndex, err)
		}
		name := fmt.Sprintf("ppt/media/slide%dpic%d.png", number, pictureIndex)
		if err := writeZipBytes(writer, name, data); err != nil {
			return err
		}
		pictureRels[el.Region] = 3 + len(pictureTargets) - 1
		pictureTargets = append(pictureTargets, strings.TrimPrefix(name, "ppt/"))
	}

	if err := writeZipTextFile(writer,
		fmt.Sprintf("ppt/slides/slide%d.xml", number),
		slideXML(number, doc, pictureRels)); err != nil {
		return err
	}
	return writeZipTextFile(writer,
		fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", number),
		slideRelsXML(pictureTargets))
}

func slideXML(number int, doc *document.SlideDocument, pictureRels map[document.RegionID]int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">`)
	b.WriteString(`<p:cSld><p:spTree>`)
	b.WriteString(`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`)

	// Shape 2 is always the full-bleed background plate.
	fmt.Fprintf(&b, `<p:pic><p:nvPicPr><p:cNvPr id="2" name="Background %d"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>`, number)
	b.WriteString(`<p:blipFill><a:blip r:embed="rId2"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`)
	fmt.Fprintf(&b, `<p:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`, slideCX, slideCY)

	shapeID := 3
	for _, el := range doc.Elements {
		x, y, cx, cy := emuBox(el.Box)
		switch el.Kind {
		case document.ElementText:
			writeTextShape(&b, shapeID, x, y, cx, cy, el.Style)
		case document.ElementTable:
			writeTableFrame(&b, shapeID, x, y, cx, cy, el.Table)
		case document.ElementImage:
			writePictureShape(&b, shapeID, x, y, cx, cy, pictureRels[el.Region])
		}
		shapeID++
	}

	b.WriteString(`</p:spTree></p:cSld>`)
	b.WriteString(`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>`)
	b.WriteString(`</p:sld>`)
	return b.String()
}

func writeTextShape(b *strings.Builder, id int, x, y, cx, cy int64, style *document.TextStyle) {
	fmt.Fprintf(b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="TextBox %d"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>`, id, id)
	fmt.Fprintf(b, `<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom><a:noFill/></p:spPr>`, x, y, cx, cy)
	b.WriteString(`<p:txBody><a:bodyPr wrap="square" anchor="ctr"><a:normAutofit/></a:bodyPr><a:lstStyle/>`)
	for _, line := range strings.Split(style.Text, "\n") {
		b.WriteString(`<a:p>`)
		fmt.Fprintf(b, `<a:pPr algn="%s"/>`, paragraphAlign(style.Align))
		b.WriteString(`<a:r>`)
		writeRunProperties(b, style)
		fmt.Fprintf(b, `<a:t>%s</a:t></a:r></a:p>`, escapeXML(line))
	}
	b.WriteString(`</p:txBody></p:sp>`)
}

func writeRunProperties(b *strings.Builder, style *document.TextStyle) {
	fmt.Fprintf(b, `<a:rPr lang="en-US" sz="%d"`, fontSizeHundredths(style.SizePt))
	if style.Bold() {
		b.WriteString(` b="1"`)
	}
	b.WriteString(` dirty="0">`)
	fmt.Fprintf(b, `<a:solidFill><a:srgbClr val="%s"`, hexColor(style.Color))
	if style.Alpha < 1 {
		fmt.Fprintf(b, `><a:alpha val="%d"/></a:srgbClr>`, int(math.Round(style.Alpha*100000)))
	} else {
		b.WriteString(`/>`)
	}
	b.WriteString(`</a:solidFill>`)
	if style.Family != "" {
		fmt.Fprintf(b, `<a:latin typeface="%s"/>`, escapeXML(style.Family))
	}
	b.WriteString(`</a:rPr>`)
}

func writePictureShape(b *strings.Builder, id int, x, y, cx, cy int64, relID int) {
	fmt.Fprintf(b, `<p:pic><p:nvPicPr><p:cNvPr id="%d" name="Picture %d"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>`, id, id)
	fmt.Fprintf(b, `<p:blipFill><a:blip r:embed="rId%d"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`, relID)
	fmt.Fprintf(b, `<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`, x, y, cx, cy)
}

func writeTableFrame(b *strings.Builder, id int, x, y, cx, cy int64, table *document.TableModel) {
	fmt.Fprintf(b, `<p:graphicFrame><p:nvGraphicFramePr><p:cNvPr id="%d" name="Table %d"/><p:cNvGraphicFramePr/><p:nvPr/></p:nvGraphicFramePr>`, id, id)
	fmt.Fprintf(b, `<p:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></p:xfrm>`, x, y, cx, cy)
	b.WriteString(`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/table">`)
	b.WriteString(`<a:tbl><a:tblPr firstRow="0" bandRow="0"/><a:tblGrid>`)
	for _, fraction := range table.ColWidths {
		fmt.Fprintf(b, `<a:gridCol w="%d"/>`, scaleEMU(fraction, cx))
	}
	b.WriteString(`</a:tblGrid>`)

	for row := 0; row < table.Rows; row++ {
		fmt.Fprintf(b, `<a:tr h="%d">`, scaleEMU(table.RowHeights[row], cy))
		for col := 0; col < table.Cols; col++ {
			writeTableCell(b, table, row, col)
		}
		b.WriteString(`</a:tr>`)
	}
	b.WriteString(`</a:tbl></a:graphicData></a:graphic></p:graphicFrame>`)
}

// writeTableCell emits the a:tc for one grid slot. Slots covered by a span
// become merge-continuation cells so the grid stays rectangular.
func writeTableCell(b *strings.Builder, table *document.TableModel, row, col int) {
	anchor := owningCell(table, row, col)
	if anchor == nil {
		// Validate guarantees full coverage; an uncovered slot here would be
		// a bug, but an empty cell degrades better than invalid XML.
		b.WriteString(`<a:tc><a:txBody><a:bodyPr/><a:lstStyle/><a:p/></a:txBody><a:tcPr/></a:tc>`)
		return
	}

	if anchor.Row == row && anchor.Col == col {
		b.WriteString(`<a:tc`)
		if anchor.ColSpan > 1 {
			fmt.Fprintf(b, ` gridSpan="%d"`, anchor.ColSpan)
		}
		if anchor.RowSpan > 1 {
			fmt.Fprintf(b, ` rowSpan="%d"`, anchor.RowSpan)
		}
		b.WriteString(`>`)
		writeCellText(b, anchor)
		b.WriteString(`<a:tcPr anchor="ctr"/></a:tc>`)
		return
	}

	b.WriteString(`<a:tc`)
	if row == anchor.Row {
		b.WriteString(` hMerge="1"`)
		if anchor.RowSpan > 1 {
			fmt.Fprintf(b, ` rowSpan="%d"`, anchor.RowSpan)
		}
	} else if col == anchor.Col {
		b.WriteString(` vMerge="1"`)
		if anchor.ColSpan > 1 {
			fmt.Fprintf(b, ` gridSpan="%d"`, anchor.ColSpan)
		}
	} else {
		b.WriteString(` hMerge="1" vMerge="1"`)
	}
	b.WriteString(`><a:txBody><a:bodyPr/><a:lstStyle/><a:p/></a:txBody><a:tcPr/></a:tc>`)
}

func writeCellText(b *strings.Builder, cell *document.Cell) {
	b.WriteString(`<a:txBody><a:bodyPr anchor="ctr"/><a:lstStyle/>`)
	if cell.Text == "" {
		b.WriteString(`<a:p><a:pPr algn="ctr"/></a:p>`)
	} else {
		for _, line := range strings.Split(cell.Text, "\n") {
			b.WriteString(`<a:p><a:pPr algn="ctr"/><a:r>`)
			writeRunProperties(b, &cell.Style)
			fmt.Fprintf(b, `<a:t>%s</a:t></a:r></a:p>`, escapeXML(line))
		}
	}
	b.WriteString(`</a:txBody>`)
}

func owningCell(table *document.TableModel, row, col int) *document.Cell {
	for i := range table.Cells {
		cell := &table.Cells[i]
		if row >= cell.Row && row < cell.Row+cell.RowSpan &&
			col >= cell.Col && col < cell.Col+cell.ColSpan {
			return cell
		}
	}
	return nil
}

func slideRelsXML(pictureTargets []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	b.WriteString(`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>`)
	for i, target := range pictureTargets {
		fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../%s"/>`, 2+i, target)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func contentTypesXML(docs []*document.SlideDocument) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	b.WriteString(`<Default Extension="png" ContentType="image/png"/>`)
	b.WriteString(`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>`)
	b.WriteString(`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/presProps.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presProps+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/viewProps.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.viewProps+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`)
	for i := 1; i <= len(docs); i++ {
		fmt.Fprintf(&b, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i)
	}
	b.WriteString(`</Types>`)
	return b.String()
}

func rootRelsXML() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/>` +
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
		`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties" Target="docProps/app.xml"/>` +
		`</Relationships>`
}

func corePropsXML() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:dcmitype="http://purl.org/dc/dcmitype/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title/>` +
		`<dc:creator>` + applicationName + `</dc:creator>` +
		`<cp:lastModifiedBy>` + applicationName + `</cp:lastModifiedBy>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + deckTimestamp + `</dcterms:created>` +
		`<dcterms:modified xsi:type="dcterms:W3CDTF">` + deckTimestamp + `</dcterms:modified>` +
		`</cp:coreProperties>`
}

func appPropsXML(slideCount int) string {
	var titles strings.Builder
	fmt.Fprintf(&titles, `<vt:vector size="%d" baseType="lpstr">`, slideCount)
	for i := 1; i <= slideCount; i++ {
		fmt.Fprintf(&titles, `<vt:lpstr>Slide %d</vt:lpstr>`, i)
	}
	titles.WriteString(`</vt:vector>`)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties" xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes">`)
	b.WriteString(`<Application>` + applicationName + `</Application>`)
	b.WriteString(`<PresentationFormat>On-screen Show (16:9)</PresentationFormat>`)
	fmt.Fprintf(&b, `<Slides>%d</Slides>`, slideCount)
	b.WriteString(`<Notes>0</Notes><HiddenSlides>0</HiddenSlides><MMClips>0</MMClips><ScaleCrop>false</ScaleCrop>`)
	fmt.Fprintf(&b, `<HeadingPairs><vt:vector size="2" baseType="variant"><vt:variant><vt:lpstr>Slides</vt:lpstr></vt:variant><vt:variant><vt:i4>%d</vt:i4></vt:variant></vt:vector></HeadingPairs>`, slideCount)
	b.WriteString(`<TitlesOfParts>` + titles.String() + `</TitlesOfParts>`)
	b.WriteString(`<AppVersion>16.0000</AppVersion>`)
	b.WriteString(`</Properties>`)
	return b.String()
}

func presentationXML(slideCount int) string {
	var slides strings.Builder
	slides.WriteString(`<p:sldIdLst>`)
	for i := 0; i < slideCount; i++ {
		fmt.Fprintf(&slides, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, 5+i)
	}
	slides.WriteString(`</p:sldIdLst>`)

	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<p:presentation xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" saveSubsetFonts="1" autoCompressPictures="0">` +
		`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>` +
		slides.String() +
		fmt.Sprintf(`<p:sldSz cx="%d" cy="%d" type="screen16x9"/>`, slideCX, slideCY) +
		`<p:notesSz cx="6858000" cy="9144000"/>` +
		`<p:defaultTextStyle/>` +
		`</p:presentation>`
}

func presentationRelsXML(slideCount int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	b.WriteString(`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="slideMasters/slideMaster1.xml"/>`)
	b.WriteString(`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/presProps" Target="presProps.xml"/>`)
	b.WriteString(`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/viewProps" Target="viewProps.xml"/>`)
	b.WriteString(`<Relationship Id="rId4" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="theme/theme1.xml"/>`)
	for i := 0; i < slideCount; i++ {
		fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide%d.xml"/>`, 5+i, i+1)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func presPropsXML() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<p:presentationPr xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"/>`
}

func viewPropsXML() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<p:viewPr xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:normalViewPr><p:restoredLeft sz="15000"/><p:restoredTop sz="94000"/></p:normalViewPr></p:viewPr>`
}

func slideMasterXML() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<p:sldMaster xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">` +
		`<p:cSld><p:bg><p:bgPr><a:solidFill><a:srgbClr val="FFFFFF"/></a:solidFill><a:effectLst/></p:bgPr></p:bg>` +
		`<p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/></p:spTree></p:cSld>` +
		`<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>` +
		`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>` +
		`</p:sldMaster>`
}

func slideMasterRelsXML() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>` +
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="../theme/theme1.xml"/>` +
		`</Relationships>`
}

func slideLayoutXML() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<p:sldLayout xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" type="blank">` +
		`<p:cSld name="Blank"><p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/></p:spTree></p:cSld>` +
		`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>` +
		`</p:sldLayout>`
}

func slideLayoutRelsXML() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="../slideMasters/slideMaster1.xml"/>` +
		`</Relationships>`
}

func themeXML() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" name="Office Theme"><a:themeElements>` +
		`<a:clrScheme name="Office"><a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1><a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1><a:dk2><a:srgbClr val="44546A"/></a:dk2><a:lt2><a:srgbClr val="E7E6E6"/></a:lt2><a:accent1><a:srgbClr val="4472C4"/></a:accent1><a:accent2><a:srgbClr val="ED7D31"/></a:accent2><a:accent3><a:srgbClr val="A5A5A5"/></a:accent3><a:accent4><a:srgbClr val="FFC000"/></a:accent4><a:accent5><a:srgbClr val="5B9BD5"/></a:accent5><a:accent6><a:srgbClr val="70AD47"/></a:accent6><a:hlink><a:srgbClr val="0563C1"/></a:hlink><a:folHlink><a:srgbClr val="954F72"/></a:folHlink></a:clrScheme>` +
		`<a:fontScheme name="Office"><a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont><a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont></a:fontScheme>` +
		`<a:fmtScheme name="Office">` +
		`<a:fillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:fillStyleLst>` +
		`<a:lnStyleLst><a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="12700"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="19050"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln></a:lnStyleLst>` +
		`<a:effectStyleLst><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle></a:effectStyleLst>` +
		`<a:bgFillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:bgFillStyleLst>` +
		`</a:fmtScheme></a:themeElements><a:objectDefaults/><a:extraClrSchemeLst/></a:theme>`
}

func writeZipTextFile(writer *zip.Writer, name, content string) error {
	w, err := writer.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create archive entry %s: %w", name, err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}

func writeZipBytes(writer *zip.Writer, name string, payload []byte) error {
	w, err := writer.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create archive entry %s: %w", name, err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}

// emuBox maps a normalized box onto the slide canvas in EMU.
func emuBox(box document.Rect) (x, y, cx, cy int64) {
	return int64(math.Round(box.X * slideCX)),
		int64(math.Round(box.Y * slideCY)),
		int64(math.Round(box.W * slideCX)),
		int64(math.Round(box.H * slideCY))
}

func scaleEMU(fraction float64, total int64) int64 {
	return int64(math.Round(fraction * float64(total)))
}

// fontSizeHundredths converts points to the hundredths-of-a-point unit of
// a:rPr sz, clamped to PowerPoint's accepted range.
func fontSizeHundredths(sizePt float64) int {
	sz := int(math.Round(sizePt * 100))
	if sz < 100 {
		sz = 100
	}
	if sz > 400000 {
		sz = 400000
	}
	return sz
}

func paragraphAlign(align document.Alignment) string {
	switch align {
	case document.AlignCenter:
		return "ctr"
	case document.AlignRight:
		return "r"
	default:
		return "l"
	}
}

func hexColor(c colorful.Color) string {
	clamped := c.Clamped()
	return fmt.Sprintf("%02X%02X%02X",
		uint8(clamped.R*255+0.5), uint8(clamped.G*255+0.5), uint8(clamped.B*255+0.5))
}

func escapeXML(s string) string {
	return xmlReplacer.Replace(s)
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)
