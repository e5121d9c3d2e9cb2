package service

import (
	"coachkit/training-engine/internal/domain"
	"coachkit/training-engine/internal/repository"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeUserRepo struct {
	byID    map[primitive.ObjectID]*domain.User
	byEmail map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    make(map[primitive.ObjectID]*domain.User),
		byEmail: make(map[string]*domain.User),
	}
}

func (f *fakeUserRepo) add(email string, role domain.Role) *domain.User {
	user := &domain.User{ID: primitive.NewObjectID(), Email: email, Role: role}
	f.byID[user.ID] = user
	f.byEmail[email] = user
	return user
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	if _, exists := f.byEmail[user.Email]; exists {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	user.ID = primitive.NewObjectID()
	f.byID[user.ID] = user
	f.byEmail[user.Email] = user
	return user.ID, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

type relationshipFixture struct {
	service RelationshipService
	users   *fakeUserRepo
	rels    *fakeRelationshipRepo
	coach   *domain.User
	athlete *domain.User
}

func newRelationshipFixture() *relationshipFixture {
	users := newFakeUserRepo()
	rels := newFakeRelationshipRepo()
	return &relationshipFixture{
		service: NewRelationshipService(rels, users),
		users:   users,
		rels:    rels,
		coach:   users.add("coach@example.com", domain.RoleCoach),
		athlete: users.add("athlete@example.com", domain.RoleAthlete),
	}
}

func TestInviteCreatesPendingRelationship(t *testing.T) {
	fx := newRelationshipFixture()

	rel, err := fx.service.Invite(context.Background(), fx.coach.ID, "athlete@example.com")
	require.NoError(t, err)

	assert.Equal(t, domain.RelationshipPending, rel.Status)
	assert.Equal(t, fx.coach.ID, rel.CoachID)
	assert.Equal(t, fx.athlete.ID, rel.AthleteID)
	assert.Nil(t, rel.ConsentGrantedAt)
	assert.False(t, rel.IsActive(), "an invitation alone never authorizes assignments")
}

func TestInviteOrientationFollowsRoles(t *testing.T) {
	fx := newRelationshipFixture()

	// The athlete inviting the coach produces the same edge orientation.
	rel, err := fx.service.Invite(context.Background(), fx.athlete.ID, "coach@example.com")
	require.NoError(t, err)
	assert.Equal(t, fx.coach.ID, rel.CoachID)
	assert.Equal(t, fx.athlete.ID, rel.AthleteID)
}

func TestInviteRejectsBadPairs(t *testing.T) {
	fx := newRelationshipFixture()
	ctx := context.Background()
	otherCoach := fx.users.add("coach2@example.com", domain.RoleCoach)

	_, err := fx.service.Invite(ctx, fx.coach.ID, "coach2@example.com")
	assert.ErrorIs(t, err, ErrUserWrongRole)

	_, err = fx.service.Invite(ctx, otherCoach.ID, "coach2@example.com")
	assert.ErrorIs(t, err, ErrSelfRelationship)

	_, err = fx.service.Invite(ctx, fx.coach.ID, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAcceptRequiresInvitedAthlete(t *testing.T) {
	fx := newRelationshipFixture()
	ctx := context.Background()

	rel, err := fx.service.Invite(ctx, fx.coach.ID, "athlete@example.com")
	require.NoError(t, err)

	_, err = fx.service.Accept(ctx, fx.coach.ID, rel.ID)
	assert.ErrorIs(t, err, ErrNotInvitedAthlete)

	accepted, err := fx.service.Accept(ctx, fx.athlete.ID, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RelationshipActive, accepted.Status)
	require.NotNil(t, accepted.ConsentGrantedAt)

	// Accepting twice is a bad transition, not a no-op.
	_, err = fx.service.Accept(ctx, fx.athlete.ID, rel.ID)
	assert.ErrorIs(t, err, ErrBadStatusTransition)
}

func TestRevokeLifecycle(t *testing.T) {
	fx := newRelationshipFixture()
	ctx := context.Background()

	rel, err := fx.service.Invite(ctx, fx.coach.ID, "athlete@example.com")
	require.NoError(t, err)

	// Revoking a pending relationship is not a valid transition.
	_, err = fx.service.Revoke(ctx, fx.athlete.ID, rel.ID)
	assert.ErrorIs(t, err, ErrBadStatusTransition)

	_, err = fx.service.Accept(ctx, fx.athlete.ID, rel.ID)
	require.NoError(t, err)

	revoked, err := fx.service.Revoke(ctx, fx.athlete.ID, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RelationshipRevoked, revoked.Status)
	require.NotNil(t, revoked.ConsentRevokedAt)
	assert.False(t, revoked.IsActive())

	status, err := fx.service.GetStatus(ctx, fx.coach.ID, fx.athlete.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RelationshipRevoked, status)
}

func TestGetStatusDistinguishesAbsence(t *testing.T) {
	fx := newRelationshipFixture()

	_, err := fx.service.GetStatus(context.Background(), fx.coach.ID, fx.athlete.ID)
	assert.ErrorIs(t, err, ErrRelationshipNotFound)
}

func TestGetForUserListsBothSides(t *testing.T) {
	fx := newRelationshipFixture()
	ctx := context.Background()

	rel, err := fx.service.Invite(ctx, fx.coach.ID, "athlete@example.com")
	require.NoError(t, err)

	for _, userID := range []primitive.ObjectID{fx.coach.ID, fx.athlete.ID} {
		rels, err := fx.service.GetForUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.Equal(t, rel.ID, rels[0].ID)
	}
}
