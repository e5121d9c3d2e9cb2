package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GeneratedSession is the immutable, materialized result of assigning one
// training unit to one recipient. Every instance carries resolved values
// copied at assignment time; later edits to the source unit, the overlay, or
// the exercise catalog never change an existing session. SourceTrainingUnitID
// is informational only and is not a live reference.
type GeneratedSession struct {
	ID                   primitive.ObjectID             `bson:"_id,omitempty" json:"id"`
	RecipientID          primitive.ObjectID             `bson:"recipientId" json:"recipientId"`
	AssignedByID         primitive.ObjectID             `bson:"assignedById" json:"assignedById"`
	SourceTrainingUnitID primitive.ObjectID             `bson:"sourceTrainingUnitId" json:"sourceTrainingUnitId"`
	AssignedAt           time.Time                      `bson:"assignedAt" json:"assignedAt"`
	TargetDate           time.Time                      `bson:"targetDate" json:"targetDate"`
	Instances            []MaterializedExerciseInstance `bson:"instances" json:"instances"`
}

// MaterializedExerciseInstance is one concrete exercise occurrence inside a
// GeneratedSession: a step from one round of the expanded unit with all
// overrides already applied and the exercise name snapshotted by value.
type MaterializedExerciseInstance struct {
	OrderIndex      int      `bson:"orderIndex" json:"orderIndex"` // 1-based position across all rounds
	Round           int      `bson:"round" json:"round"`           // 1-based round number
	ExerciseRef     string   `bson:"exerciseRef" json:"exerciseRef"`
	ExerciseName    string   `bson:"exerciseName" json:"exerciseName"` // Display name at assignment time
	Sets            *int     `bson:"sets,omitempty" json:"sets,omitempty"`
	Reps            *int     `bson:"reps,omitempty" json:"reps,omitempty"`
	DistanceMeters  *int     `bson:"distanceMeters,omitempty" json:"distanceMeters,omitempty"`
	DurationSeconds *int     `bson:"durationSeconds,omitempty" json:"durationSeconds,omitempty"`
	RestSeconds     *int     `bson:"restSeconds,omitempty" json:"restSeconds,omitempty"`
	Weight          *float64 `bson:"weight,omitempty" json:"weight,omitempty"`
	Intensity       string   `bson:"intensity,omitempty" json:"intensity,omitempty"` // Opaque annotation, e.g. target pace
	Notes           string   `bson:"notes,omitempty" json:"notes,omitempty"`
}
