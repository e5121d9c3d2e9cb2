package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Limits on TrainingUnit and ExerciseStep fields.
const (
	MaxUnitNameLength = 120
	MinRepeatCount    = 1
	MaxRepeatCount    = 20
	MaxSets           = 100
	MaxReps           = 1000
	MaxDistanceMeters = 100000
	MaxRestSeconds    = 3600
	MaxStepNotesLen   = 1000

	// RepsMaxEffort is the sentinel rep value meaning "as many reps as possible".
	RepsMaxEffort = -1
)

var (
	ErrUnitNameInvalid      = errors.New("training unit name must be non-empty and at most 120 characters")
	ErrUnitNoSteps          = errors.New("training unit must contain at least one step")
	ErrUnitRepeatCountRange = errors.New("training unit repeat count must be between 1 and 20")
	ErrStepDescribesNothing = errors.New("exercise step must specify sets/reps, a distance, or a duration")
	ErrStepFieldRange       = errors.New("exercise step field out of range")
	ErrDuplicateStepID      = errors.New("duplicate step ID within training unit")
)

// TrainingUnit is a named, owned, reusable workout template. It is expanded
// into a GeneratedSession at assignment time; it is never referenced live by
// the sessions produced from it.
type TrainingUnit struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID     primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	Name        string             `bson:"name" json:"name"`
	Steps       []ExerciseStep     `bson:"steps" json:"steps"`
	RepeatCount int                `bson:"repeatCount" json:"repeatCount"` // Number of rounds, 1-20
	ArchivedAt  *time.Time         `bson:"archivedAt,omitempty" json:"archivedAt,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ExerciseStep is one line item inside a TrainingUnit. StepID is minted when
// the step is first added and stays stable across reorders; removed IDs are
// never reused, so overlay references stay unambiguous.
type ExerciseStep struct {
	StepID          primitive.ObjectID `bson:"stepId" json:"stepId"`
	ExerciseRef     string             `bson:"exerciseRef" json:"exerciseRef"` // Opaque, resolved via the exercise catalog
	Sets            *int               `bson:"sets,omitempty" json:"sets,omitempty"`
	Reps            *int               `bson:"reps,omitempty" json:"reps,omitempty"` // 1-1000, or RepsMaxEffort
	DistanceMeters  *int               `bson:"distanceMeters,omitempty" json:"distanceMeters,omitempty"`
	DurationSeconds *int               `bson:"durationSeconds,omitempty" json:"durationSeconds,omitempty"`
	RestSeconds     *int               `bson:"restSeconds,omitempty" json:"restSeconds,omitempty"`
	Notes           string             `bson:"notes,omitempty" json:"notes,omitempty"`
}

// IsArchived reports whether the unit has been soft-deleted.
func (u *TrainingUnit) IsArchived() bool {
	return u.ArchivedAt != nil
}

// StepByID returns the step with the given ID, if present.
func (u *TrainingUnit) StepByID(stepID primitive.ObjectID) (*ExerciseStep, bool) {
	for i := range u.Steps {
		if u.Steps[i].StepID == stepID {
			return &u.Steps[i], true
		}
	}
	return nil, false
}

// Validate checks the unit's own invariants. Archived units are exempt from
// the non-empty-steps rule since they can no longer be assigned anyway.
func (u *TrainingUnit) Validate() error {
	if u.Name == "" || len(u.Name) > MaxUnitNameLength {
		return ErrUnitNameInvalid
	}
	if u.RepeatCount < MinRepeatCount || u.RepeatCount > MaxRepeatCount {
		return ErrUnitRepeatCountRange
	}
	if len(u.Steps) == 0 && !u.IsArchived() {
		return ErrUnitNoSteps
	}
	seen := make(map[primitive.ObjectID]struct{}, len(u.Steps))
	for i := range u.Steps {
		if _, dup := seen[u.Steps[i].StepID]; dup {
			return ErrDuplicateStepID
		}
		seen[u.Steps[i].StepID] = struct{}{}
		if err := u.Steps[i].Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// Validate checks a single step's invariants.
func (s *ExerciseStep) Validate() error {
	if s.ExerciseRef == "" {
		return errors.New("exercise step requires an exercise reference")
	}
	if s.Sets != nil && (*s.Sets < 1 || *s.Sets > MaxSets) {
		return fmt.Errorf("%w: sets must be 1-%d", ErrStepFieldRange, MaxSets)
	}
	if s.Reps != nil && *s.Reps != RepsMaxEffort && (*s.Reps < 1 || *s.Reps > MaxReps) {
		return fmt.Errorf("%w: reps must be 1-%d or max effort", ErrStepFieldRange, MaxReps)
	}
	if s.DistanceMeters != nil && (*s.DistanceMeters < 1 || *s.DistanceMeters > MaxDistanceMeters) {
		return fmt.Errorf("%w: distance must be 1-%d meters", ErrStepFieldRange, MaxDistanceMeters)
	}
	if s.DurationSeconds != nil && *s.DurationSeconds < 1 {
		return fmt.Errorf("%w: duration must be positive", ErrStepFieldRange)
	}
	if s.RestSeconds != nil && (*s.RestSeconds < 0 || *s.RestSeconds > MaxRestSeconds) {
		return fmt.Errorf("%w: rest must be 0-%d seconds", ErrStepFieldRange, MaxRestSeconds)
	}
	if len(s.Notes) > MaxStepNotesLen {
		return fmt.Errorf("%w: notes must be at most %d characters", ErrStepFieldRange, MaxStepNotesLen)
	}
	// A step must describe something to perform.
	if s.Sets == nil && s.Reps == nil && s.DistanceMeters == nil && s.DurationSeconds == nil {
		return ErrStepDescribesNothing
	}
	return nil
}
