package catalog

import (
	"coachkit/training-engine/internal/domain"
	"coachkit/training-engine/internal/repository"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubExerciseRepo struct {
	byRef map[string]*domain.Exercise
}

func (s *stubExerciseRepo) Create(_ context.Context, _ *domain.Exercise) (primitive.ObjectID, error) {
	panic("not used")
}

func (s *stubExerciseRepo) GetByID(_ context.Context, _ primitive.ObjectID) (*domain.Exercise, error) {
	panic("not used")
}

func (s *stubExerciseRepo) GetByRef(_ context.Context, ref string) (*domain.Exercise, error) {
	exercise, ok := s.byRef[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return exercise, nil
}

func (s *stubExerciseRepo) GetByOwnerID(_ context.Context, _ primitive.ObjectID) ([]domain.Exercise, error) {
	panic("not used")
}

func (s *stubExerciseRepo) Update(_ context.Context, _ *domain.Exercise) error {
	panic("not used")
}

type stubRelationshipRepo struct {
	rel *domain.Relationship
}

func (s *stubRelationshipRepo) Create(_ context.Context, _ *domain.Relationship) (primitive.ObjectID, error) {
	panic("not used")
}

func (s *stubRelationshipRepo) GetByID(_ context.Context, _ primitive.ObjectID) (*domain.Relationship, error) {
	panic("not used")
}

func (s *stubRelationshipRepo) GetByPair(_ context.Context, coachID, athleteID primitive.ObjectID) (*domain.Relationship, error) {
	if s.rel == nil || s.rel.CoachID != coachID || s.rel.AthleteID != athleteID {
		return nil, repository.ErrNotFound
	}
	return s.rel, nil
}

func (s *stubRelationshipRepo) GetForUser(_ context.Context, _ primitive.ObjectID) ([]domain.Relationship, error) {
	panic("not used")
}

func (s *stubRelationshipRepo) Update(_ context.Context, _ *domain.Relationship) error {
	panic("not used")
}

func TestResolveExercise(t *testing.T) {
	coachID := primitive.NewObjectID()
	athleteID := primitive.NewObjectID()
	strangerID := primitive.NewObjectID()

	exercises := &stubExerciseRepo{byRef: map[string]*domain.Exercise{
		"air-squat": {OwnerID: coachID, Ref: "air-squat", Name: "Air Squat", Visibility: domain.VisibilityPublic},
		"secret":    {OwnerID: coachID, Ref: "secret", Name: "Secret Drill", Visibility: domain.VisibilityPrivate},
	}}
	relationships := &stubRelationshipRepo{rel: &domain.Relationship{
		CoachID:   coachID,
		AthleteID: athleteID,
		Status:    domain.RelationshipActive,
	}}
	resolver := NewRepositoryResolver(exercises, relationships)
	ctx := context.Background()

	t.Run("unknown ref does not exist", func(t *testing.T) {
		res, err := resolver.ResolveExercise(ctx, "nope", athleteID)
		require.NoError(t, err)
		assert.False(t, res.Exists)
		assert.False(t, res.Accessible)
	})

	t.Run("public is visible to anyone", func(t *testing.T) {
		res, err := resolver.ResolveExercise(ctx, "air-squat", strangerID)
		require.NoError(t, err)
		assert.True(t, res.Accessible)
		assert.Equal(t, "Air Squat", res.DisplayName)
	})

	t.Run("owner sees their private exercise", func(t *testing.T) {
		res, err := resolver.ResolveExercise(ctx, "secret", coachID)
		require.NoError(t, err)
		assert.True(t, res.Accessible)
	})

	t.Run("coached athlete sees the coach's private exercise", func(t *testing.T) {
		res, err := resolver.ResolveExercise(ctx, "secret", athleteID)
		require.NoError(t, err)
		assert.True(t, res.Accessible)
	})

	t.Run("stranger cannot see a private exercise", func(t *testing.T) {
		res, err := resolver.ResolveExercise(ctx, "secret", strangerID)
		require.NoError(t, err)
		assert.True(t, res.Exists)
		assert.False(t, res.Accessible)
	})

	t.Run("revoked relationship closes access", func(t *testing.T) {
		relationships.rel.Status = domain.RelationshipRevoked
		defer func() { relationships.rel.Status = domain.RelationshipActive }()

		res, err := resolver.ResolveExercise(ctx, "secret", athleteID)
		require.NoError(t, err)
		assert.True(t, res.Exists)
		assert.False(t, res.Accessible)
	})
}
