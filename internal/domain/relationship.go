package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RelationshipStatus type for the consent lifecycle
type RelationshipStatus string

const (
	RelationshipPending RelationshipStatus = "pending" // Invitation sent, athlete has not consented
	RelationshipActive  RelationshipStatus = "active"  // Athlete consented; assignments allowed
	RelationshipRevoked RelationshipStatus = "revoked" // Athlete withdrew consent
)

// Relationship is the consent-gated authorization edge between a coach and an
// athlete. At most one document exists per (coachId, athleteId) pair; a unique
// compound index enforces this. Only an Active relationship authorizes new
// assignments. Revoking never touches already-materialized sessions.
type Relationship struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID          primitive.ObjectID `bson:"coachId" json:"coachId"`
	AthleteID        primitive.ObjectID `bson:"athleteId" json:"athleteId"`
	Status           RelationshipStatus `bson:"status" json:"status"`
	ConsentGrantedAt *time.Time         `bson:"consentGrantedAt,omitempty" json:"consentGrantedAt,omitempty"`
	ConsentRevokedAt *time.Time         `bson:"consentRevokedAt,omitempty" json:"consentRevokedAt,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsActive reports whether the relationship currently authorizes assignments.
func (r *Relationship) IsActive() bool {
	return r.Status == RelationshipActive
}
