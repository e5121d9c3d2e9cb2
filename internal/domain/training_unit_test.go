package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func intp(v int) *int { return &v }

func TestExerciseStepValidate(t *testing.T) {
	base := ExerciseStep{StepID: primitive.NewObjectID(), ExerciseRef: "press"}

	step := base
	step.Sets, step.Reps = intp(3), intp(8)
	assert.NoError(t, step.Validate())

	step = base
	step.Reps = intp(RepsMaxEffort)
	assert.NoError(t, step.Validate(), "max-effort sentinel is a valid rep count")

	step = base
	step.Reps = intp(-2)
	assert.ErrorIs(t, step.Validate(), ErrStepFieldRange)

	step = base
	step.Reps = intp(MaxReps + 1)
	assert.ErrorIs(t, step.Validate(), ErrStepFieldRange)

	step = base
	step.DistanceMeters = intp(0)
	assert.ErrorIs(t, step.Validate(), ErrStepFieldRange)

	step = base
	step.DurationSeconds = intp(45)
	step.RestSeconds = intp(0)
	assert.NoError(t, step.Validate(), "zero rest is allowed")

	step = base
	assert.ErrorIs(t, step.Validate(), ErrStepDescribesNothing)
}

func TestTrainingUnitValidateRejectsDuplicateStepIDs(t *testing.T) {
	shared := primitive.NewObjectID()
	unit := TrainingUnit{
		Name:        "Doubles",
		RepeatCount: 1,
		Steps: []ExerciseStep{
			{StepID: shared, ExerciseRef: "a", Sets: intp(1), Reps: intp(1)},
			{StepID: shared, ExerciseRef: "b", Sets: intp(1), Reps: intp(1)},
		},
	}
	assert.ErrorIs(t, unit.Validate(), ErrDuplicateStepID)
}

func TestOverlayValidate(t *testing.T) {
	stepID := primitive.NewObjectID()

	overlay := Overlay{Entries: []OverlayEntry{{StepID: stepID, SetsOverride: intp(4)}}}
	assert.NoError(t, overlay.Validate())

	overlay = Overlay{Entries: []OverlayEntry{{StepID: stepID}}}
	assert.ErrorIs(t, overlay.Validate(), ErrOverlayEntryEmpty)

	overlay = Overlay{Entries: []OverlayEntry{{SetsOverride: intp(4)}}}
	assert.Error(t, overlay.Validate(), "nil step ID is rejected")

	overlay = Overlay{Entries: []OverlayEntry{{StepID: stepID, RepsOverride: intp(RepsMaxEffort)}}}
	assert.NoError(t, overlay.Validate(), "max effort is a valid rep override")

	negative := -5.0
	overlay = Overlay{Entries: []OverlayEntry{{StepID: stepID, WeightOverride: &negative}}}
	assert.ErrorIs(t, overlay.Validate(), ErrStepFieldRange)

	empty := ""
	overlay = Overlay{Entries: []OverlayEntry{{StepID: stepID, SubstituteExerciseRef: &empty}}}
	assert.Error(t, overlay.Validate())
}
