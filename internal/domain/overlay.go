package domain

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrOverlayEntryEmpty = errors.New("overlay entry sets no overrides")
)

// Overlay is a per-recipient, per-assignment set of parameter overrides. It is
// applied during expansion and never persisted against the training unit.
type Overlay struct {
	Entries []OverlayEntry `json:"entries"`
}

// OverlayEntry overrides parameters of one step. Each field is optional; an
// entry with every field unset is rejected as meaningless. An override applies
// identically to every round of the expanded unit.
type OverlayEntry struct {
	StepID                primitive.ObjectID `json:"stepId"`
	WeightOverride        *float64           `json:"weightOverride,omitempty"`
	SubstituteExerciseRef *string            `json:"substituteExerciseRef,omitempty"`
	SetsOverride          *int               `json:"setsOverride,omitempty"`
	RepsOverride          *int               `json:"repsOverride,omitempty"`
	DistanceOverride      *int               `json:"distanceOverride,omitempty"`
	IntensityOverride     *string            `json:"intensityOverride,omitempty"`
}

// IsEmpty reports whether the entry carries no overrides at all.
func (e *OverlayEntry) IsEmpty() bool {
	return e.WeightOverride == nil &&
		e.SubstituteExerciseRef == nil &&
		e.SetsOverride == nil &&
		e.RepsOverride == nil &&
		e.DistanceOverride == nil &&
		e.IntensityOverride == nil
}

// Validate checks entry-local invariants. Step existence against a concrete
// training unit is the expansion engine's job, not the overlay's.
func (o *Overlay) Validate() error {
	for i := range o.Entries {
		e := &o.Entries[i]
		if e.StepID == primitive.NilObjectID {
			return fmt.Errorf("overlay entry %d: step ID is required", i+1)
		}
		if e.IsEmpty() {
			return fmt.Errorf("overlay entry %d: %w", i+1, ErrOverlayEntryEmpty)
		}
		if e.SetsOverride != nil && (*e.SetsOverride < 1 || *e.SetsOverride > MaxSets) {
			return fmt.Errorf("overlay entry %d: %w: sets must be 1-%d", i+1, ErrStepFieldRange, MaxSets)
		}
		if e.RepsOverride != nil && *e.RepsOverride != RepsMaxEffort && (*e.RepsOverride < 1 || *e.RepsOverride > MaxReps) {
			return fmt.Errorf("overlay entry %d: %w: reps must be 1-%d or max effort", i+1, ErrStepFieldRange, MaxReps)
		}
		if e.DistanceOverride != nil && (*e.DistanceOverride < 1 || *e.DistanceOverride > MaxDistanceMeters) {
			return fmt.Errorf("overlay entry %d: %w: distance must be 1-%d meters", i+1, ErrStepFieldRange, MaxDistanceMeters)
		}
		if e.WeightOverride != nil && *e.WeightOverride <= 0 {
			return fmt.Errorf("overlay entry %d: %w: weight must be positive", i+1, ErrStepFieldRange)
		}
		if e.SubstituteExerciseRef != nil && *e.SubstituteExerciseRef == "" {
			return fmt.Errorf("overlay entry %d: substitute exercise reference cannot be empty", i+1)
		}
	}
	return nil
}
