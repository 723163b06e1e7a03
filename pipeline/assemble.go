package pipeline

import (
	"fmt"
	"image"

	"github.com/slidex-project/slidex/document"
	"github.com/slidex-project/slidex/faults"
	"github.com/slidex-project/slidex/imageio"
)

// recovered is the per-region payload produced by the recovery stage.
// Exactly one field is set for a surviving region; dropped marks a region
// that was absorbed as a warning and must not reach the document.
type recovered struct {
	style   *document.TextStyle
	table   *document.TableModel
	picture image.Image
	dropped bool
}

// assemble folds the background plate and the recovered payloads into the
// final slide document. Every non-background leaf appears exactly once, in
// paint order. A leaf without a matching payload is an internal invariant
// violation and fails the slide with EncodingFailed.
func assemble(tree *document.Tree, background image.Image, slide *imageio.SlideImage, payloads map[document.RegionID]recovered) (*document.SlideDocument, error) {
	doc := &document.SlideDocument{
		Background:   background,
		SourceWidth:  slide.Width(),
		SourceHeight: slide.Height(),
	}

	for _, id := range tree.Leaves() {
		leaf := tree.Get(id)
		if leaf.Kind == document.KindBackground {
			continue
		}
		payload, ok := payloads[id]
		if !ok {
			return nil, faults.New(faults.EncodingFailed, "assemble", id,
				fmt.Errorf("leaf region %s has no recovered payload", leaf.Kind))
		}
		if payload.dropped {
			continue
		}

		element := document.Element{
			Region: id,
			Box:    leaf.Box,
			Z:      leaf.Z,
		}
		switch leaf.Kind {
		case document.KindTextBlock:
			if payload.style == nil {
				return nil, faults.New(faults.EncodingFailed, "assemble", id,
					fmt.Errorf("text region carries no style"))
			}
			element.Kind = document.ElementText
			element.Style = payload.style
		case document.KindTable:
			if payload.table == nil {
				return nil, faults.New(faults.EncodingFailed, "assemble", id,
					fmt.Errorf("table region carries no grid"))
			}
			if err := payload.table.Validate(); err != nil {
				return nil, faults.New(faults.EncodingFailed, "assemble", id, err)
			}
			element.Kind = document.ElementTable
			element.Table = payload.table
		case document.KindImage:
			if payload.picture == nil {
				return nil, faults.New(faults.EncodingFailed, "assemble", id,
					fmt.Errorf("image region carries no pixels"))
			}
			element.Kind = document.ElementImage
			element.Picture = payload.picture
		default:
			return nil, faults.New(faults.EncodingFailed, "assemble", id,
				fmt.Errorf("leaf region has unexpected kind %s", leaf.Kind))
		}
		doc.Elements = append(doc.Elements, element)
	}
	return doc, nil
}
