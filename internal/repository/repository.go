package repository

import (
	"coachkit/training-engine/internal/domain"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// ExerciseRepository defines the interface for interacting with the exercise
// catalog's backing collection.
type ExerciseRepository interface {
	Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
	GetByRef(ctx context.Context, ref string) (*domain.Exercise, error)
	GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID) ([]domain.Exercise, error)
	Update(ctx context.Context, exercise *domain.Exercise) error
}

// TrainingUnitRepository defines the interface for interacting with training
// unit templates. Archive is a soft delete; archived units are still readable
// so existing sessions keep their informational source pointer meaningful.
type TrainingUnitRepository interface {
	Create(ctx context.Context, unit *domain.TrainingUnit) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingUnit, error)
	GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID) ([]domain.TrainingUnit, error)
	Update(ctx context.Context, unit *domain.TrainingUnit) error
	Archive(ctx context.Context, id primitive.ObjectID) error
}

// RelationshipRepository defines the interface for interacting with
// coach-athlete relationship data.
type RelationshipRepository interface {
	Create(ctx context.Context, rel *domain.Relationship) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Relationship, error)
	GetByPair(ctx context.Context, coachID, athleteID primitive.ObjectID) (*domain.Relationship, error)
	GetForUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Relationship, error)
	Update(ctx context.Context, rel *domain.Relationship) error
}

// GeneratedSessionRepository defines the interface for interacting with
// materialized session data. There is deliberately no Update method: sessions
// are immutable once written, and any later editing surface must create its
// own explicit edit records elsewhere.
type GeneratedSessionRepository interface {
	Create(ctx context.Context, session *domain.GeneratedSession) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.GeneratedSession, error)
	GetByRecipientID(ctx context.Context, recipientID primitive.ObjectID) ([]domain.GeneratedSession, error)
}
