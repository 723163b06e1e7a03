// Package pipeline turns rendered slide images into editable documents: it
// segments each raster into a region tree, recovers text styles and table
// grids, reconstructs a clean background plate and assembles the results
// into SlideDocuments ready for encoding.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/slidex-project/slidex/document"
	"github.com/slidex-project/slidex/encoder"
	"github.com/slidex-project/slidex/faults"
	"github.com/slidex-project/slidex/imageio"
	"github.com/slidex-project/slidex/pipeline/artifact"
	"github.com/slidex-project/slidex/pipeline/fontkit"
	"github.com/slidex-project/slidex/pipeline/inpaint"
	"github.com/slidex-project/slidex/pipeline/recognize"
	"github.com/slidex-project/slidex/schedule"
)

// Config carries the tuning knobs of the pipeline. Zero values are replaced
// by the defaults below at construction.
type Config struct {
	// MaxSegmentationDepth bounds layout recursion. Slides deeper than this
	// keep their lowest groups as atomic regions.
	MaxSegmentationDepth int
	// MinOCRConfidence is the mean confidence below which recognized text is
	// only accepted as a flagged best-effort guess.
	MinOCRConfidence float64
	// TableStructureTolerance is the maximum coefficient of variation of row
	// spacing before a table candidate is demoted.
	TableStructureTolerance float64
	// MaxRetries and RetryInterval shape the constant-backoff retry applied
	// to external recognition and inpainting calls.
	MaxRetries    int
	RetryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxSegmentationDepth == 0 {
		c.MaxSegmentationDepth = 4
	}
	if c.MinOCRConfidence == 0 {
		c.MinOCRConfidence = 0.62
	}
	if c.TableStructureTolerance == 0 {
		c.TableStructureTolerance = 0.18
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 500 * time.Millisecond
	}
	return c
}

// Service is the export pipeline with its injected collaborators. inpainter
// may be nil, in which case backgrounds are reconstructed by flat filling.
type Service struct {
	recognizer     recognize.TextRecognizer
	lineRecognizer recognize.TableLineRecognizer
	inpainter      inpaint.Client
	fonts          *fontkit.Provider
	artifacts      artifact.Store
	pool           *schedule.Pool
	budget         *schedule.Budget
	config         Config
}

func New(
	recognizer recognize.TextRecognizer,
	lineRecognizer recognize.TableLineRecognizer,
	inpainter inpaint.Client,
	fonts *fontkit.Provider,
	artifacts artifact.Store,
	pool *schedule.Pool,
	budget *schedule.Budget,
	config Config,
) *Service {
	if lineRecognizer == nil {
		lineRecognizer = recognize.NewProjectionLineDetector()
	}
	if fonts == nil {
		fonts = fontkit.Builtin()
	}
	if artifacts == nil {
		artifacts = artifact.Discard{}
	}
	return &Service{
		recognizer:     recognizer,
		lineRecognizer: lineRecognizer,
		inpainter:      inpainter,
		fonts:          fonts,
		artifacts:      artifacts,
		pool:           pool,
		budget:         budget,
		config:         config.withDefaults(),
	}
}

// Options selects the failure policy of one export request.
type Options struct {
	// ReturnPartialOnError absorbs recoverable faults as warnings and skips
	// slides that fail fatally, instead of aborting the whole export.
	ReturnPartialOnError bool
}

// Result is a finished export. Documents and Warnings follow the order of
// the submitted slides.
type Result struct {
	PPTX      []byte
	Documents []*document.SlideDocument
	Warnings  []faults.Warning
}

// Export runs the full pipeline over the given slide images and encodes the
// surviving documents into a PPTX archive. Slides are processed concurrently
// under the worker pool; results keep the submission order.
func (s *Service) Export(ctx context.Context, slides [][]byte, opts Options) (*Result, error) {
	if len(slides) == 0 {
		return nil, fmt.Errorf("no slides to export")
	}
	runID := uuid.NewString()
	for i, data := range slides {
		if err := s.artifacts.Save(ctx, fmt.Sprintf("%s/input-%02d", runID, i), data); err != nil {
			log.Printf("Failed to archive input slide %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type slideOutcome struct {
		index    int
		doc      *document.SlideDocument
		warnings []faults.Warning
		err      error
	}
	outcomes := make(chan slideOutcome, len(slides))
	for i, data := range slides {
		go func(index int, data []byte) {
			if err := s.pool.Acquire(ctx); err != nil {
				outcomes <- slideOutcome{index: index, err: err}
				return
			}
			defer s.pool.Release()
			doc, warnings, err := s.exportSlide(ctx, runID, index, data, opts)
			outcomes <- slideOutcome{index: index, doc: doc, warnings: warnings, err: err}
		}(i, data)
	}

	ordered := make([]slideOutcome, len(slides))
	for range slides {
		outcome := <-outcomes
		ordered[outcome.index] = outcome
		if outcome.err != nil && !opts.ReturnPartialOnError {
			cancel()
		}
	}

	result := &Result{}
	for _, outcome := range ordered {
		if outcome.err != nil {
			if !opts.ReturnPartialOnError {
				// Sibling slides that were cut short by the cancellation
				// above report context.Canceled; prefer the slide that
				// actually caused the abort.
				for _, other := range ordered {
					if other.err != nil && !errors.Is(other.err, context.Canceled) {
						return nil, fmt.Errorf("slide %d failed: %w", other.index, other.err)
					}
				}
				return nil, fmt.Errorf("slide %d failed: %w", outcome.index, outcome.err)
			}
			result.Warnings = append(result.Warnings, faults.Warning{
				Slide:  outcome.index,
				Region: document.NoRegion,
				Stage:  "slide",
				Reason: outcome.err.Error(),
			})
			continue
		}
		result.Warnings = append(result.Warnings, outcome.warnings...)
		result.Documents = append(result.Documents, outcome.doc)
	}
	if len(result.Documents) == 0 {
		return nil, fmt.Errorf("all %d slides failed", len(slides))
	}

	pptx, err := encoder.EncodePPTX(result.Documents)
	if err != nil {
		return nil, faults.New(faults.EncodingFailed, "encode", document.NoRegion, err)
	}
	result.PPTX = pptx
	if err := s.artifacts.Save(ctx, runID+"/export.pptx", pptx); err != nil {
		log.Printf("Failed to archive export result: %v", err)
	}
	return result, nil
}

// exportSlide runs one slide through decode, segmentation, recovery,
// background reconstruction and assembly.
func (s *Service) exportSlide(ctx context.Context, runID string, index int, data []byte, opts Options) (*document.SlideDocument, []faults.Warning, error) {
	state := newSlideState()
	slide, err := imageio.Decode(data)
	if err != nil {
		state.fail(err)
		return nil, nil, faults.New(faults.SegmentationFailed, "decode", document.NoRegion, err)
	}

	tree, err := s.segment(ctx, slide, s.config.MaxSegmentationDepth)
	if err != nil {
		state.fail(err)
		return nil, nil, err
	}
	if err := state.advance(StageSegmented); err != nil {
		return nil, nil, faults.New(faults.EncodingFailed, "segment", document.NoRegion, err)
	}

	payloads, warnings, err := s.recoverRegions(ctx, slide, tree, index, opts)
	if err != nil {
		state.fail(err)
		return nil, warnings, err
	}
	if err := state.advance(StageRecovered); err != nil {
		return nil, warnings, faults.New(faults.EncodingFailed, "recover", document.NoRegion, err)
	}

	background, bgErr := s.reconstructBackground(ctx, slide, tree)
	if bgErr != nil {
		// reconstructBackground always hands back a usable plate; the flat
		// fill is the defined recovery, so the slide proceeds with a warning
		// regardless of the failure policy.
		warnings = append(warnings, faults.Warning{
			Slide:  index,
			Region: document.NoRegion,
			Stage:  "background",
			Reason: bgErr.Error(),
		})
	}
	if err := state.advance(StageBackgroundReady); err != nil {
		return nil, warnings, faults.New(faults.EncodingFailed, "background", document.NoRegion, err)
	}
	s.savePlateArtifact(ctx, runID, index, background)

	doc, err := assemble(tree, background, slide, payloads)
	if err != nil {
		state.fail(err)
		return nil, warnings, err
	}
	if err := state.advance(StageAssembled); err != nil {
		return nil, warnings, faults.New(faults.EncodingFailed, "assemble", document.NoRegion, err)
	}
	if len(warnings) > 0 {
		_ = state.advance(StagePartialResult)
	}
	return doc, warnings, nil
}

// recoverRegions fans recovery out across the leaf regions of one slide and
// applies the failure policy: recoverable faults become warnings (keeping a
// best-effort payload where one exists) when partial results are allowed,
// and abort the slide otherwise.
func (s *Service) recoverRegions(ctx context.Context, slide *imageio.SlideImage, tree *document.Tree, index int, opts Options) (map[document.RegionID]recovered, []faults.Warning, error) {
	leaves := tree.Leaves()
	type leafOutcome struct {
		id       document.RegionID
		payload  recovered
		warnings []faults.Warning
		err      error
	}
	outcomes := make(chan leafOutcome, len(leaves))
	for _, id := range leaves {
		go func(id document.RegionID) {
			payload, warnings, err := s.recoverRegion(ctx, slide, tree, id, index, opts)
			outcomes <- leafOutcome{id: id, payload: payload, warnings: warnings, err: err}
		}(id)
	}

	payloads := make(map[document.RegionID]recovered, len(leaves))
	var warnings []faults.Warning
	var firstErr error
	for range leaves {
		outcome := <-outcomes
		if outcome.err != nil {
			if firstErr == nil {
				firstErr = outcome.err
			}
			continue
		}
		payloads[outcome.id] = outcome.payload
		warnings = append(warnings, outcome.warnings...)
	}
	if firstErr != nil {
		return nil, warnings, firstErr
	}
	return payloads, warnings, nil
}

// recoverRegion recovers one leaf. Table regions whose structure is
// ambiguous are demoted to text blocks with a warning; that demotion is the
// defined behavior, not a partial-result concession.
func (s *Service) recoverRegion(ctx context.Context, slide *imageio.SlideImage, tree *document.Tree, id document.RegionID, index int, opts Options) (recovered, []faults.Warning, error) {
	region := tree.Get(id)
	var warnings []faults.Warning

	if region.Kind == document.KindTable {
		table, err := s.recoverTable(ctx, slide, tree, id)
		switch {
		case err == nil:
			return recovered{table: table}, nil, nil
		case faults.IsKind(err, faults.TableStructureAmbiguous):
			warnings = append(warnings, faults.Warning{
				Slide:  index,
				Region: id,
				Stage:  "recover-table",
				Reason: fmt.Sprintf("demoted to text block: %v", err),
			})
			region.Kind = document.KindTextBlock
		default:
			return recovered{}, nil, err
		}
	}

	switch region.Kind {
	case document.KindTextBlock:
		style, err := s.recoverText(ctx, slide, tree, id)
		if err == nil {
			return recovered{style: style}, warnings, nil
		}
		if !opts.ReturnPartialOnError || !recoverableKind(err) {
			return recovered{}, warnings, err
		}
		warnings = append(warnings, faults.Warning{
			Slide:  index,
			Region: id,
			Stage:  "recover-text",
			Reason: err.Error(),
		})
		if style != nil {
			return recovered{style: style}, warnings, nil
		}
		return recovered{dropped: true}, warnings, nil

	case document.KindImage:
		left, top, width, height := region.Box.Scale(slide.Width(), slide.Height())
		crop := slide.Crop(image.Rect(left, top, left+width, top+height))
		return recovered{picture: crop}, warnings, nil

	case document.KindBackground:
		// Background leaves carry no overlay; the plate covers them.
		return recovered{dropped: true}, warnings, nil

	default:
		return recovered{}, warnings, faults.New(faults.EncodingFailed, "recover", id,
			fmt.Errorf("unexpected leaf kind %s", region.Kind))
	}
}

func recoverableKind(err error) bool {
	kind, ok := faults.KindOf(err)
	return ok && kind.Recoverable()
}

func (s *Service) savePlateArtifact(ctx context.Context, runID string, index int, plate image.Image) {
	data, err := imageio.EncodePNG(plate)
	if err != nil {
		return
	}
	if err := s.artifacts.Save(ctx, fmt.Sprintf("%s/slide-%02d-plate.png", runID, index), data); err != nil {
		log.Printf("Failed to archive background plate for slide %d: %v", index, err)
	}
}
