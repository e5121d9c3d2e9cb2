// Package expansion turns a training unit plus an optional modification
// overlay into the ordered list of materialized exercise instances that make
// up a generated session. Expansion is deterministic: given the same unit,
// overlay, and catalog answers it always produces the same instances. The
// injected catalog resolver is the engine's only I/O.
package expansion

import (
	"coachkit/training-engine/internal/catalog"
	"coachkit/training-engine/internal/domain"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Expand materializes one round of instances per repeat count, in the unit's
// step order, applying overlay overrides identically across every round.
// Instance count is exactly repeatCount * len(steps), with orderIndex running
// 1..N across rounds. Failures are *domain.ExpansionError values carrying the
// typed reason and, where attributable, the offending step ID.
func Expand(
	ctx context.Context,
	unit *domain.TrainingUnit,
	overlay *domain.Overlay,
	recipientID primitive.ObjectID,
	resolver catalog.Resolver,
) ([]domain.MaterializedExerciseInstance, error) {
	// 1. The unit's own invariants. A violation here means upstream data
	// corruption, not caller error.
	if err := unit.Validate(); err != nil {
		return nil, &domain.ExpansionError{
			Reason:  domain.ReasonInvalidTemplate,
			Message: err.Error(),
		}
	}
	if unit.IsArchived() {
		return nil, &domain.ExpansionError{
			Reason:  domain.ReasonInvalidTemplate,
			Message: "training unit is archived",
		}
	}

	// 2. Every overlay entry must reference a step present in the unit right
	// now. Entries referencing removed steps fail loudly; nothing is silently
	// dropped.
	overrides := make(map[primitive.ObjectID]*domain.OverlayEntry)
	if overlay != nil {
		for i := range overlay.Entries {
			entry := &overlay.Entries[i]
			if _, ok := unit.StepByID(entry.StepID); !ok {
				stepID := entry.StepID
				return nil, &domain.ExpansionError{
					Reason:  domain.ReasonUnknownStepReference,
					StepID:  &stepID,
					Message: "overlay references a step not present in the training unit",
				}
			}
			overrides[entry.StepID] = entry
		}
	}

	// 3-4. Emit instances round by round, base values first, then overrides.
	instances := make([]domain.MaterializedExerciseInstance, 0, unit.RepeatCount*len(unit.Steps))
	resolved := make(map[string]catalog.Resolution)

	for round := 1; round <= unit.RepeatCount; round++ {
		for pos := range unit.Steps {
			step := &unit.Steps[pos]
			inst := domain.MaterializedExerciseInstance{
				OrderIndex:      (round-1)*len(unit.Steps) + pos + 1,
				Round:           round,
				ExerciseRef:     step.ExerciseRef,
				Sets:            copyInt(step.Sets),
				Reps:            copyInt(step.Reps),
				DistanceMeters:  copyInt(step.DistanceMeters),
				DurationSeconds: copyInt(step.DurationSeconds),
				RestSeconds:     copyInt(step.RestSeconds),
				Notes:           step.Notes,
			}

			if entry, ok := overrides[step.StepID]; ok {
				applyOverrides(&inst, entry)
			}

			// 5. Resolve the effective ref (post-substitution) for existence
			// and recipient visibility. Cached per expansion; an unchanged ref
			// resolves identically in every round.
			res, ok := resolved[inst.ExerciseRef]
			if !ok {
				var err error
				res, err = resolver.ResolveExercise(ctx, inst.ExerciseRef, recipientID)
				if err != nil {
					return nil, fmt.Errorf("resolving exercise %q: %w", inst.ExerciseRef, err)
				}
				resolved[inst.ExerciseRef] = res
			}
			if !res.Exists || !res.Accessible {
				stepID := step.StepID
				return nil, &domain.ExpansionError{
					Reason:  domain.ReasonExerciseNotAccessible,
					StepID:  &stepID,
					Message: fmt.Sprintf("exercise %q does not exist or is not visible to the recipient", inst.ExerciseRef),
				}
			}
			inst.ExerciseName = res.DisplayName

			instances = append(instances, inst)
		}
	}

	return instances, nil
}

// applyOverrides applies one overlay entry to a materialized instance.
// Substitution replaces the exercise identity only; every other parameter is
// inherited from the base step unless its own override is set. Intensity is an
// opaque annotation, never numerically validated here.
func applyOverrides(inst *domain.MaterializedExerciseInstance, entry *domain.OverlayEntry) {
	if entry.SubstituteExerciseRef != nil {
		inst.ExerciseRef = *entry.SubstituteExerciseRef
	}
	if entry.WeightOverride != nil {
		w := *entry.WeightOverride
		inst.Weight = &w
	}
	if entry.SetsOverride != nil {
		inst.Sets = copyInt(entry.SetsOverride)
	}
	if entry.RepsOverride != nil {
		inst.Reps = copyInt(entry.RepsOverride)
	}
	if entry.DistanceOverride != nil {
		inst.DistanceMeters = copyInt(entry.DistanceOverride)
	}
	if entry.IntensityOverride != nil {
		inst.Intensity = *entry.IntensityOverride
	}
}

// copyInt clones an optional int so instances never alias template or overlay
// memory. Materialize by value, never by reference.
func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
