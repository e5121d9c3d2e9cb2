package service

import (
	"coachkit/training-engine/internal/domain"
	"coachkit/training-engine/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrRelationshipNotFound = errors.New("relationship not found")
	ErrRelationshipExists   = errors.New("a relationship already exists for this coach and athlete")
	ErrSelfRelationship     = errors.New("coach and athlete cannot be the same user")
	ErrNotInvitedAthlete    = errors.New("only the invited athlete can act on this relationship")
	ErrBadStatusTransition  = errors.New("invalid relationship status transition")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserWrongRole        = errors.New("user does not have the required role")
)

// --- Service Interface ---
type RelationshipService interface {
	// Invite creates a Pending relationship between a coach and an athlete,
	// identified by email. Either party may send the invitation.
	Invite(ctx context.Context, inviterID primitive.ObjectID, counterpartEmail string) (*domain.Relationship, error)
	// Accept transitions Pending -> Active. Only the athlete may consent.
	Accept(ctx context.Context, athleteID, relationshipID primitive.ObjectID) (*domain.Relationship, error)
	// Revoke transitions Active -> Revoked. Only the athlete may revoke, at
	// any time. Already-materialized sessions are untouched.
	Revoke(ctx context.Context, athleteID, relationshipID primitive.ObjectID) (*domain.Relationship, error)
	// GetStatus reports the consent status for a pair. ErrRelationshipNotFound
	// is returned when the pair never had a relationship, distinct from a
	// pending or revoked one.
	GetStatus(ctx context.Context, coachID, athleteID primitive.ObjectID) (domain.RelationshipStatus, error)
	GetForUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Relationship, error)
}

// --- Service Implementation ---

// relationshipService implements the RelationshipService interface.
type relationshipService struct {
	relationshipRepo repository.RelationshipRepository
	userRepo         repository.UserRepository
}

// NewRelationshipService creates a new instance of relationshipService.
func NewRelationshipService(relationshipRepo repository.RelationshipRepository, userRepo repository.UserRepository) RelationshipService {
	return &relationshipService{
		relationshipRepo: relationshipRepo,
		userRepo:         userRepo,
	}
}

// Invite resolves the counterpart by email and creates the Pending edge. The
// coach/athlete orientation comes from the two users' roles, not from who
// clicked first.
func (s *relationshipService) Invite(ctx context.Context, inviterID primitive.ObjectID, counterpartEmail string) (*domain.Relationship, error) {
	if inviterID == primitive.NilObjectID || counterpartEmail == "" {
		return nil, errors.New("inviter ID and counterpart email are required")
	}

	inviter, err := s.userRepo.GetByID(ctx, inviterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	counterpart, err := s.userRepo.GetByEmail(ctx, counterpartEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if inviter.ID == counterpart.ID {
		return nil, ErrSelfRelationship
	}

	var coach, athlete *domain.User
	switch {
	case inviter.IsCoach() && counterpart.IsAthlete():
		coach, athlete = inviter, counterpart
	case inviter.IsAthlete() && counterpart.IsCoach():
		coach, athlete = counterpart, inviter
	default:
		return nil, ErrUserWrongRole
	}

	rel := &domain.Relationship{
		CoachID:   coach.ID,
		AthleteID: athlete.ID,
		Status:    domain.RelationshipPending,
	}

	relID, err := s.relationshipRepo.Create(ctx, rel)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrRelationshipExists
		}
		return nil, err
	}
	rel.ID = relID
	return rel, nil
}

// Accept records the athlete's explicit consent.
func (s *relationshipService) Accept(ctx context.Context, athleteID, relationshipID primitive.ObjectID) (*domain.Relationship, error) {
	rel, err := s.getForAthlete(ctx, athleteID, relationshipID)
	if err != nil {
		return nil, err
	}
	if rel.Status != domain.RelationshipPending {
		return nil, ErrBadStatusTransition
	}

	now := time.Now().UTC()
	rel.Status = domain.RelationshipActive
	rel.ConsentGrantedAt = &now

	if err := s.relationshipRepo.Update(ctx, rel); err != nil {
		return nil, err
	}
	return rel, nil
}

// Revoke withdraws consent. New assignments are blocked from this moment;
// nothing already materialized is invalidated.
func (s *relationshipService) Revoke(ctx context.Context, athleteID, relationshipID primitive.ObjectID) (*domain.Relationship, error) {
	rel, err := s.getForAthlete(ctx, athleteID, relationshipID)
	if err != nil {
		return nil, err
	}
	if rel.Status != domain.RelationshipActive {
		return nil, ErrBadStatusTransition
	}

	now := time.Now().UTC()
	rel.Status = domain.RelationshipRevoked
	rel.ConsentRevokedAt = &now

	if err := s.relationshipRepo.Update(ctx, rel); err != nil {
		return nil, err
	}
	return rel, nil
}

// GetStatus is the read the assignment orchestrator depends on.
func (s *relationshipService) GetStatus(ctx context.Context, coachID, athleteID primitive.ObjectID) (domain.RelationshipStatus, error) {
	rel, err := s.relationshipRepo.GetByPair(ctx, coachID, athleteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrRelationshipNotFound
		}
		return "", err
	}
	return rel.Status, nil
}

// GetForUser lists every relationship the user participates in.
func (s *relationshipService) GetForUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Relationship, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID is required")
	}
	return s.relationshipRepo.GetForUser(ctx, userID)
}

func (s *relationshipService) getForAthlete(ctx context.Context, athleteID, relationshipID primitive.ObjectID) (*domain.Relationship, error) {
	rel, err := s.relationshipRepo.GetByID(ctx, relationshipID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRelationshipNotFound
		}
		return nil, err
	}
	if rel.AthleteID != athleteID {
		return nil, ErrNotInvitedAthlete
	}
	return rel, nil
}
