// Package faults defines the typed error taxonomy of the export pipeline and
// the warning records attached to partial results.
package faults

import (
	"errors"
	"fmt"

	"github.com/slidex-project/slidex/document"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// SegmentationFailed is fatal: no usable region tree could be produced.
	SegmentationFailed Kind = iota
	// OcrLowConfidence is recoverable: recognition confidence fell below the
	// configured threshold.
	OcrLowConfidence
	// TableStructureAmbiguous is recoverable: row/column line hypotheses
	// disagree beyond tolerance. The caller demotes the region to a text block.
	TableStructureAmbiguous
	// BackgroundReconstructionFailed is recoverable: inpainting failed or its
	// quality was not verifiable. The caller falls back to a flat fill.
	BackgroundReconstructionFailed
	// ExternalServiceUnavailable is transient and retried with backoff before
	// escalating to one of the kinds above.
	ExternalServiceUnavailable
	// EncodingFailed is fatal and signals an assembler/encoder invariant
	// violation, i.e. a bug rather than an input-quality issue.
	EncodingFailed
)

func (k Kind) String() string {
	switch k {
	case SegmentationFailed:
		return "SegmentationFailed"
	case OcrLowConfidence:
		return "OcrLowConfidence"
	case TableStructureAmbiguous:
		return "TableStructureAmbiguous"
	case BackgroundReconstructionFailed:
		return "BackgroundReconstructionFailed"
	case ExternalServiceUnavailable:
		return "ExternalServiceUnavailable"
	case EncodingFailed:
		return "EncodingFailed"
	default:
		return "Unknown"
	}
}

// Recoverable reports whether a failure of this kind may be absorbed as a
// warning instead of aborting the slide.
func (k Kind) Recoverable() bool {
	switch k {
	case OcrLowConfidence, TableStructureAmbiguous, BackgroundReconstructionFailed:
		return true
	default:
		return false
	}
}

// Error is a typed pipeline failure, optionally scoped to a region.
type Error struct {
	Kind   Kind
	Stage  string
	Region document.RegionID
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s (region %d): %v", e.Kind, e.Stage, e.Region, e.Err)
	}
	return fmt.Sprintf("%s at %s (region %d)", e.Kind, e.Stage, e.Region)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed error scoped to a region. Use document.NoRegion for
// slide-level failures.
func New(kind Kind, stage string, region document.RegionID, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Region: region, Err: err}
}

// KindOf extracts the failure kind from err, or (0, false) when err carries
// no typed pipeline error.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// IsKind reports whether err wraps a typed error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Warning records a non-fatal degradation for user-facing review hints.
type Warning struct {
	// Slide is the zero-based index of the slide in the export request.
	Slide int
	// Region identifies the affected region in that slide's layout tree.
	Region document.RegionID
	// Stage names the pipeline stage that degraded, e.g. "recover-text".
	Stage string
	// Reason is a short human-readable explanation.
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("slide %d region %d [%s]: %s", w.Slide, w.Region, w.Stage, w.Reason)
}
