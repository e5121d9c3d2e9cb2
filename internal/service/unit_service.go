package service

import (
	"coachkit/training-engine/internal/domain"
	"coachkit/training-engine/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrUnitNotFound     = errors.New("training unit not found")
	ErrUnitAccessDenied = errors.New("access denied to modify this training unit")
	ErrUnitArchived     = errors.New("training unit is archived")
)

// StepInput describes one step in a create/update request. StepID is empty for
// new steps and carries the existing ID for steps that survive an edit, which
// is what keeps overlay references stable across reorders.
type StepInput struct {
	StepID          *primitive.ObjectID
	ExerciseRef     string
	Sets            *int
	Reps            *int
	DistanceMeters  *int
	DurationSeconds *int
	RestSeconds     *int
	Notes           string
}

// --- Service Interface ---
type UnitService interface {
	CreateUnit(ctx context.Context, ownerID primitive.ObjectID, name string, repeatCount int, steps []StepInput) (*domain.TrainingUnit, error)
	GetUnit(ctx context.Context, ownerID, unitID primitive.ObjectID) (*domain.TrainingUnit, error)
	GetUnitsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.TrainingUnit, error)
	UpdateUnit(ctx context.Context, ownerID, unitID primitive.ObjectID, name string, repeatCount int, steps []StepInput) (*domain.TrainingUnit, error)
	ArchiveUnit(ctx context.Context, ownerID, unitID primitive.ObjectID) error
}

// --- Service Implementation ---

// unitService implements the UnitService interface.
type unitService struct {
	unitRepo repository.TrainingUnitRepository
}

// NewUnitService creates a new instance of unitService.
func NewUnitService(unitRepo repository.TrainingUnitRepository) UnitService {
	return &unitService{
		unitRepo: unitRepo,
	}
}

// CreateUnit builds and persists a new training unit. Every step gets a
// freshly minted stable ID.
func (s *unitService) CreateUnit(ctx context.Context, ownerID primitive.ObjectID, name string, repeatCount int, steps []StepInput) (*domain.TrainingUnit, error) {
	if ownerID == primitive.NilObjectID {
		return nil, errors.New("owner ID is required to create a training unit")
	}
	if repeatCount == 0 {
		repeatCount = domain.MinRepeatCount
	}

	unit := &domain.TrainingUnit{
		OwnerID:     ownerID,
		Name:        name,
		RepeatCount: repeatCount,
		Steps:       make([]domain.ExerciseStep, 0, len(steps)),
	}
	for i := range steps {
		unit.Steps = append(unit.Steps, buildStep(&steps[i], primitive.NewObjectID()))
	}

	if err := unit.Validate(); err != nil {
		return nil, err
	}

	unitID, err := s.unitRepo.Create(ctx, unit)
	if err != nil {
		return nil, err
	}
	unit.ID = unitID
	return unit, nil
}

// GetUnit retrieves one unit the owner may see.
func (s *unitService) GetUnit(ctx context.Context, ownerID, unitID primitive.ObjectID) (*domain.TrainingUnit, error) {
	unit, err := s.unitRepo.GetByID(ctx, unitID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	if unit.OwnerID != ownerID {
		return nil, ErrUnitAccessDenied
	}
	return unit, nil
}

// GetUnitsByOwner retrieves the coach's units, archived ones included.
func (s *unitService) GetUnitsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.TrainingUnit, error) {
	if ownerID == primitive.NilObjectID {
		return nil, errors.New("owner ID is required")
	}
	return s.unitRepo.GetByOwnerID(ctx, ownerID)
}

// UpdateUnit replaces the unit's name, repeat count, and step list. Steps that
// carry an existing step ID keep it; new steps get fresh IDs. A removed step's
// ID is never handed to a new step, so any historical overlay prepared against
// it fails validation instead of silently landing on the wrong step.
func (s *unitService) UpdateUnit(ctx context.Context, ownerID, unitID primitive.ObjectID, name string, repeatCount int, steps []StepInput) (*domain.TrainingUnit, error) {
	unit, err := s.unitRepo.GetByID(ctx, unitID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	if unit.OwnerID != ownerID {
		return nil, ErrUnitAccessDenied
	}
	if unit.IsArchived() {
		return nil, ErrUnitArchived
	}

	existing := make(map[primitive.ObjectID]struct{}, len(unit.Steps))
	for i := range unit.Steps {
		existing[unit.Steps[i].StepID] = struct{}{}
	}

	newSteps := make([]domain.ExerciseStep, 0, len(steps))
	for i := range steps {
		in := &steps[i]
		if in.StepID != nil {
			// A provided ID must belong to this unit's current steps; anything
			// else would let a caller resurrect removed IDs.
			if _, ok := existing[*in.StepID]; !ok {
				return nil, errors.New("step ID does not belong to this training unit")
			}
			newSteps = append(newSteps, buildStep(in, *in.StepID))
			continue
		}
		newSteps = append(newSteps, buildStep(in, primitive.NewObjectID()))
	}

	unit.Name = name
	unit.RepeatCount = repeatCount
	unit.Steps = newSteps

	if err := unit.Validate(); err != nil {
		return nil, err
	}

	if err := s.unitRepo.Update(ctx, unit); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The archived-units-excluded filter means a concurrent archive
			// surfaces here as not-found.
			return nil, ErrUnitArchived
		}
		return nil, err
	}

	return unit, nil
}

// ArchiveUnit soft-deletes a unit. Existing generated sessions keep their
// informational pointer; nothing about them changes.
func (s *unitService) ArchiveUnit(ctx context.Context, ownerID, unitID primitive.ObjectID) error {
	unit, err := s.unitRepo.GetByID(ctx, unitID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnitNotFound
		}
		return err
	}
	if unit.OwnerID != ownerID {
		return ErrUnitAccessDenied
	}

	return s.unitRepo.Archive(ctx, unitID)
}

func buildStep(in *StepInput, stepID primitive.ObjectID) domain.ExerciseStep {
	return domain.ExerciseStep{
		StepID:          stepID,
		ExerciseRef:     in.ExerciseRef,
		Sets:            in.Sets,
		Reps:            in.Reps,
		DistanceMeters:  in.DistanceMeters,
		DurationSeconds: in.DurationSeconds,
		RestSeconds:     in.RestSeconds,
		Notes:           in.Notes,
	}
}
