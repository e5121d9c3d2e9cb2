package catalog

import (
	"coachkit/training-engine/internal/domain"
	"coachkit/training-engine/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// repositoryResolver answers catalog lookups from the local exercises
// collection. An exercise is visible to a user when it is public, when the
// user owns it, or when its owner is a coach with an active relationship to
// the user.
type repositoryResolver struct {
	exerciseRepo     repository.ExerciseRepository
	relationshipRepo repository.RelationshipRepository
}

// NewRepositoryResolver creates a Resolver backed by the local catalog store.
func NewRepositoryResolver(exerciseRepo repository.ExerciseRepository, relationshipRepo repository.RelationshipRepository) Resolver {
	return &repositoryResolver{
		exerciseRepo:     exerciseRepo,
		relationshipRepo: relationshipRepo,
	}
}

func (r *repositoryResolver) ResolveExercise(ctx context.Context, ref string, visibleToUserID primitive.ObjectID) (Resolution, error) {
	exercise, err := r.exerciseRepo.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Resolution{Exists: false, Accessible: false}, nil
		}
		return Resolution{}, err
	}

	if exercise.Visibility == domain.VisibilityPublic || exercise.OwnerID == visibleToUserID {
		return Resolution{Exists: true, Accessible: true, DisplayName: exercise.Name}, nil
	}

	rel, err := r.relationshipRepo.GetByPair(ctx, exercise.OwnerID, visibleToUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Resolution{Exists: true, Accessible: false, DisplayName: exercise.Name}, nil
		}
		return Resolution{}, err
	}
	if !rel.IsActive() {
		return Resolution{Exists: true, Accessible: false, DisplayName: exercise.Name}, nil
	}

	return Resolution{Exists: true, Accessible: true, DisplayName: exercise.Name}, nil
}
