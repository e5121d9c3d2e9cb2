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
	ErrExerciseNotFound     = errors.New("exercise not found")
	ErrExerciseAccessDenied = errors.New("access denied to modify this exercise")
	ErrExerciseRefTaken     = errors.New("exercise reference is already in use")
	ErrValidationFailed     = errors.New("exercise validation failed")
)

// --- Service Interface ---
type ExerciseService interface {
	CreateExercise(ctx context.Context, ownerID primitive.ObjectID, ref, name, description, muscleGroup, difficulty string, visibility domain.ExerciseVisibility) (*domain.Exercise, error)
	GetExercisesByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.Exercise, error)
	UpdateExercise(ctx context.Context, ownerID, exerciseID primitive.ObjectID, name, description, muscleGroup, difficulty string, visibility domain.ExerciseVisibility) (*domain.Exercise, error)
}

// --- Service Implementation ---

// exerciseService implements the ExerciseService interface.
type exerciseService struct {
	exerciseRepo repository.ExerciseRepository
}

// NewExerciseService creates a new instance of exerciseService.
func NewExerciseService(exerciseRepo repository.ExerciseRepository) ExerciseService {
	return &exerciseService{
		exerciseRepo: exerciseRepo,
	}
}

// CreateExercise handles the creation of a new catalog entry by a coach.
func (s *exerciseService) CreateExercise(ctx context.Context, ownerID primitive.ObjectID, ref, name, description, muscleGroup, difficulty string, visibility domain.ExerciseVisibility) (*domain.Exercise, error) {
	if ref == "" || name == "" {
		return nil, ErrValidationFailed
	}
	if ownerID == primitive.NilObjectID {
		return nil, errors.New("owner ID is required to create an exercise")
	}
	if visibility != "" && visibility != domain.VisibilityPublic && visibility != domain.VisibilityPrivate {
		return nil, ErrValidationFailed
	}

	exercise := &domain.Exercise{
		OwnerID:     ownerID,
		Ref:         ref,
		Name:        name,
		Description: description,
		MuscleGroup: muscleGroup,
		Difficulty:  difficulty,
		Visibility:  visibility,
	}

	exerciseID, err := s.exerciseRepo.Create(ctx, exercise)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrExerciseRefTaken
		}
		return nil, err
	}
	exercise.ID = exerciseID
	return exercise, nil
}

// GetExercisesByOwner retrieves the coach's own catalog entries.
func (s *exerciseService) GetExercisesByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.Exercise, error) {
	if ownerID == primitive.NilObjectID {
		return nil, errors.New("owner ID is required")
	}
	return s.exerciseRepo.GetByOwnerID(ctx, ownerID)
}

// UpdateExercise modifies an entry's descriptive fields. The ref is immutable.
func (s *exerciseService) UpdateExercise(ctx context.Context, ownerID, exerciseID primitive.ObjectID, name, description, muscleGroup, difficulty string, visibility domain.ExerciseVisibility) (*domain.Exercise, error) {
	if name == "" {
		return nil, ErrValidationFailed
	}

	exercise, err := s.exerciseRepo.GetByID(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	if exercise.OwnerID != ownerID {
		return nil, ErrExerciseAccessDenied
	}

	exercise.Name = name
	exercise.Description = description
	exercise.MuscleGroup = muscleGroup
	exercise.Difficulty = difficulty
	if visibility != "" {
		if visibility != domain.VisibilityPublic && visibility != domain.VisibilityPrivate {
			return nil, ErrValidationFailed
		}
		exercise.Visibility = visibility
	}

	if err := s.exerciseRepo.Update(ctx, exercise); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}

	return exercise, nil
}
