package models

import "fmt"

// Stage represents a processing stage an episode has reached.
type Stage string

const (
	// StageDiscovered indicates the source file was found and registered.
	StageDiscovered Stage = "discovered"
	// StagePrepared indicates media metadata has been probed and recorded.
	StagePrepared Stage = "prepared"
	// StageTranscribed indicates a transcript with word timings exists.
	StageTranscribed Stage = "transcribed"
	// StageEnriched indicates LLM enrichment has run.
	StageEnriched Stage = "enriched"
	// StageRendered indicates the HTML artifact tree has been generated.
	StageRendered Stage = "rendered"
	// StageClipsDiscovered indicates clip candidates have been segmented.
	StageClipsDiscovered Stage = "clips_discovered"
)

// stageOrder is the canonical progression. Clip discovery branches off
// transcription rather than extending the render chain, but for episode
// bookkeeping it sorts after rendered.
var stageOrder = []Stage{
	StageDiscovered,
	StagePrepared,
	StageTranscribed,
	StageEnriched,
	StageRendered,
	StageClipsDiscovered,
}

// Stages returns the declared stage order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// ParseStage validates and returns a stage value.
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if !stage.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, s)
	}
	return stage, nil
}

// Valid reports whether the stage is one of the declared stages.
func (s Stage) Valid() bool {
	for _, st := range stageOrder {
		if st == s {
			return true
		}
	}
	return false
}

// Index returns the ordinal position of the stage, or -1 if unknown.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// AtLeast reports whether s is at or beyond other in the declared order.
func (s Stage) AtLeast(other Stage) bool {
	return s.Index() >= other.Index()
}

// Before reports whether s precedes other in the declared order.
func (s Stage) Before(other Stage) bool {
	si, oi := s.Index(), other.Index()
	return si >= 0 && oi >= 0 && si < oi
}

// String implements fmt.Stringer.
func (s Stage) String() string {
	return string(s)
}
