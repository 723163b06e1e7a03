package pipeline

import "fmt"

// Stage is the explicit progress marker of one slide moving through the
// pipeline. Modeling progress as a tagged state instead of scattered flags
// keeps the legal transitions checkable.
type Stage int

const (
	StageLoaded Stage = iota
	StageSegmented
	StageRecovered
	StageBackgroundReady
	StageAssembled
	StageEncoded
	StageFailed
	StagePartialResult
)

func (s Stage) String() string {
	switch s {
	case StageLoaded:
		return "Loaded"
	case StageSegmented:
		return "Segmented"
	case StageRecovered:
		return "Recovered"
	case StageBackgroundReady:
		return "BackgroundReady"
	case StageAssembled:
		return "Assembled"
	case StageEncoded:
		return "Encoded"
	case StageFailed:
		return "Failed"
	case StagePartialResult:
		return "PartialResult"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is allowed.
func (s Stage) Terminal() bool {
	return s == StageEncoded || s == StageFailed || s == StagePartialResult
}

// slideState tracks one slide's progress and failure reason.
type slideState struct {
	stage  Stage
	reason error
}

func newSlideState() *slideState {
	return &slideState{stage: StageLoaded}
}

// advance moves to the next stage, enforcing the pipeline order. Failed is
// reachable from anywhere; PartialResult only from a non-terminal stage.
func (s *slideState) advance(next Stage) error {
	if s.stage.Terminal() {
		return fmt.Errorf("illegal transition %s -> %s: %s is terminal", s.stage, next, s.stage)
	}
	switch next {
	case StageFailed, StagePartialResult:
		s.stage = next
		return nil
	}
	if next != s.stage+1 {
		return fmt.Errorf("illegal transition %s -> %s", s.stage, next)
	}
	s.stage = next
	return nil
}

// fail records a terminal failure with its reason.
func (s *slideState) fail(reason error) {
	s.stage = StageFailed
	s.reason = reason
}
