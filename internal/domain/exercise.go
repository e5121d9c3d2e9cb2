package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExerciseVisibility controls who may resolve a catalog entry.
type ExerciseVisibility string

const (
	VisibilityPublic  ExerciseVisibility = "public"
	VisibilityPrivate ExerciseVisibility = "private"
)

// Exercise is one entry in the exercise catalog. Ref is the stable opaque key
// that training unit steps and overlays point at; it is unique across the
// catalog and survives renames, so materialized sessions snapshot the display
// name rather than chasing it.
type Exercise struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID     primitive.ObjectID `bson:"ownerId" json:"ownerId"` // Coach who created this entry
	Ref         string             `bson:"ref" json:"ref"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	MuscleGroup string             `bson:"muscleGroup,omitempty" json:"muscleGroup,omitempty"` // e.g., "Chest", "Legs", "Back"
	Difficulty  string             `bson:"difficulty,omitempty" json:"difficulty,omitempty"`   // e.g., "Novice", "Medium", "Advanced"
	Visibility  ExerciseVisibility `bson:"visibility" json:"visibility"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
