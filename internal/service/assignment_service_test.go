package service

import (
	"coachkit/training-engine/internal/catalog"
	"coachkit/training-engine/internal/domain"
	"coachkit/training-engine/internal/repository"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func ptrInt(v int) *int { return &v }

// --- In-memory fakes ---

type pairKey struct {
	coach   primitive.ObjectID
	athlete primitive.ObjectID
}

type fakeRelationshipRepo struct {
	mu             sync.Mutex
	byPair         map[pairKey]*domain.Relationship
	getByPairCalls int
}

func newFakeRelationshipRepo() *fakeRelationshipRepo {
	return &fakeRelationshipRepo{byPair: make(map[pairKey]*domain.Relationship)}
}

func (f *fakeRelationshipRepo) put(coachID, athleteID primitive.ObjectID, status domain.RelationshipStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byPair[pairKey{coachID, athleteID}] = &domain.Relationship{
		ID:        primitive.NewObjectID(),
		CoachID:   coachID,
		AthleteID: athleteID,
		Status:    status,
	}
}

func (f *fakeRelationshipRepo) Create(_ context.Context, rel *domain.Relationship) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rel.ID = primitive.NewObjectID()
	f.byPair[pairKey{rel.CoachID, rel.AthleteID}] = rel
	return rel.ID, nil
}

func (f *fakeRelationshipRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rel := range f.byPair {
		if rel.ID == id {
			return rel, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRelationshipRepo) GetByPair(_ context.Context, coachID, athleteID primitive.ObjectID) (*domain.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getByPairCalls++
	rel, ok := f.byPair[pairKey{coachID, athleteID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rel, nil
}

func (f *fakeRelationshipRepo) GetForUser(_ context.Context, userID primitive.ObjectID) ([]domain.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rels []domain.Relationship
	for _, rel := range f.byPair {
		if rel.CoachID == userID || rel.AthleteID == userID {
			rels = append(rels, *rel)
		}
	}
	return rels, nil
}

func (f *fakeRelationshipRepo) Update(_ context.Context, rel *domain.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byPair[pairKey{rel.CoachID, rel.AthleteID}] = rel
	return nil
}

type fakeUnitRepo struct {
	mu           sync.Mutex
	units        map[primitive.ObjectID]*domain.TrainingUnit
	getByIDCalls int
}

func newFakeUnitRepo() *fakeUnitRepo {
	return &fakeUnitRepo{units: make(map[primitive.ObjectID]*domain.TrainingUnit)}
}

func (f *fakeUnitRepo) Create(_ context.Context, unit *domain.TrainingUnit) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unit.ID = primitive.NewObjectID()
	f.units[unit.ID] = unit
	return unit.ID, nil
}

func (f *fakeUnitRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.TrainingUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getByIDCalls++
	unit, ok := f.units[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return unit, nil
}

func (f *fakeUnitRepo) GetByOwnerID(_ context.Context, ownerID primitive.ObjectID) ([]domain.TrainingUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var units []domain.TrainingUnit
	for _, unit := range f.units {
		if unit.OwnerID == ownerID {
			units = append(units, *unit)
		}
	}
	return units, nil
}

func (f *fakeUnitRepo) Update(_ context.Context, unit *domain.TrainingUnit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.units[unit.ID] = unit
	return nil
}

func (f *fakeUnitRepo) Archive(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if unit, ok := f.units[id]; ok && unit.ArchivedAt == nil {
		now := time.Now()
		unit.ArchivedAt = &now
	}
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[primitive.ObjectID]domain.GeneratedSession
	failFor  map[primitive.ObjectID]bool // Keyed by recipient ID
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[primitive.ObjectID]domain.GeneratedSession),
		failFor:  make(map[primitive.ObjectID]bool),
	}
}

func (f *fakeSessionRepo) Create(_ context.Context, session *domain.GeneratedSession) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[session.RecipientID] {
		return primitive.NilObjectID, errors.New("write refused")
	}
	id := primitive.NewObjectID()
	stored := *session
	stored.ID = id
	stored.Instances = append([]domain.MaterializedExerciseInstance(nil), session.Instances...)
	f.sessions[id] = stored
	return id, nil
}

func (f *fakeSessionRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.GeneratedSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

func (f *fakeSessionRepo) GetByRecipientID(_ context.Context, recipientID primitive.ObjectID) ([]domain.GeneratedSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sessions []domain.GeneratedSession
	for _, session := range f.sessions {
		if session.RecipientID == recipientID {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (f *fakeSessionRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// allowAllResolver marks every ref accessible, mirroring a fully public catalog.
type allowAllResolver struct{}

func (allowAllResolver) ResolveExercise(_ context.Context, ref string, _ primitive.ObjectID) (catalog.Resolution, error) {
	return catalog.Resolution{Exists: true, Accessible: true, DisplayName: ref}, nil
}

type recordingArchive struct {
	mu     sync.Mutex
	keys   []string
	failed bool
}

func (r *recordingArchive) ArchiveSession(_ context.Context, session *domain.GeneratedSession) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed {
		return "", errors.New("bucket unreachable")
	}
	key := "sessions/" + session.RecipientID.Hex() + "/" + session.ID.Hex()
	r.keys = append(r.keys, key)
	return key, nil
}

// --- Fixture ---

type assignmentFixture struct {
	service          AssignmentService
	relationshipRepo *fakeRelationshipRepo
	unitRepo         *fakeUnitRepo
	sessionRepo      *fakeSessionRepo
	coachID          primitive.ObjectID
	unit             *domain.TrainingUnit
	targetDate       time.Time
}

func newAssignmentFixture(t *testing.T) *assignmentFixture {
	t.Helper()
	relationshipRepo := newFakeRelationshipRepo()
	unitRepo := newFakeUnitRepo()
	sessionRepo := newFakeSessionRepo()
	coachID := primitive.NewObjectID()

	unit := &domain.TrainingUnit{
		OwnerID: coachID,
		Name:    "Intervals",
		Steps: []domain.ExerciseStep{
			{StepID: primitive.NewObjectID(), ExerciseRef: "bike-sprint", DurationSeconds: ptrInt(30)},
			{StepID: primitive.NewObjectID(), ExerciseRef: "push-up", Sets: ptrInt(3), Reps: ptrInt(10)},
		},
		RepeatCount: 2,
	}
	_, err := unitRepo.Create(context.Background(), unit)
	require.NoError(t, err)

	svc := NewAssignmentService(relationshipRepo, unitRepo, sessionRepo, allowAllResolver{}, nil, nil, 100, 8)
	return &assignmentFixture{
		service:          svc,
		relationshipRepo: relationshipRepo,
		unitRepo:         unitRepo,
		sessionRepo:      sessionRepo,
		coachID:          coachID,
		unit:             unit,
		targetDate:       time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
	}
}

func (fx *assignmentFixture) activeAthlete() primitive.ObjectID {
	athleteID := primitive.NewObjectID()
	fx.relationshipRepo.put(fx.coachID, athleteID, domain.RelationshipActive)
	return athleteID
}

// --- AssignOne ---

func TestAssignOneSuccess(t *testing.T) {
	fx := newAssignmentFixture(t)
	athleteID := fx.activeAthlete()

	session, err := fx.service.AssignOne(context.Background(), fx.coachID, athleteID, fx.unit.ID, fx.targetDate, nil)
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.False(t, session.ID.IsZero())
	assert.Equal(t, athleteID, session.RecipientID)
	assert.Equal(t, fx.coachID, session.AssignedByID)
	assert.Equal(t, fx.unit.ID, session.SourceTrainingUnitID)
	assert.Equal(t, fx.targetDate, session.TargetDate)
	assert.Len(t, session.Instances, 4) // 2 steps x 2 rounds
	assert.Equal(t, 1, fx.sessionRepo.count())
}

func TestAssignOneNoRelationship(t *testing.T) {
	fx := newAssignmentFixture(t)

	_, err := fx.service.AssignOne(context.Background(), fx.coachID, primitive.NewObjectID(), fx.unit.ID, fx.targetDate, nil)
	var assignErr *AssignmentError
	require.ErrorAs(t, err, &assignErr)
	assert.Equal(t, domain.ReasonRelationshipNotActive, assignErr.Reason)
	assert.Zero(t, fx.sessionRepo.count())
}

func TestAssignOnePendingAndRevokedFailAlike(t *testing.T) {
	fx := newAssignmentFixture(t)
	for _, status := range []domain.RelationshipStatus{domain.RelationshipPending, domain.RelationshipRevoked} {
		athleteID := primitive.NewObjectID()
		fx.relationshipRepo.put(fx.coachID, athleteID, status)

		_, err := fx.service.AssignOne(context.Background(), fx.coachID, athleteID, fx.unit.ID, fx.targetDate, nil)
		var assignErr *AssignmentError
		require.ErrorAs(t, err, &assignErr, "status %s", status)
		assert.Equal(t, domain.ReasonRelationshipNotActive, assignErr.Reason)
	}
	assert.Zero(t, fx.sessionRepo.count())
}

func TestAssignOneRelationshipCheckedBeforeTemplate(t *testing.T) {
	fx := newAssignmentFixture(t)
	athleteID := primitive.NewObjectID()
	fx.relationshipRepo.put(fx.coachID, athleteID, domain.RelationshipRevoked)

	_, err := fx.service.AssignOne(context.Background(), fx.coachID, athleteID, fx.unit.ID, fx.targetDate, nil)
	var assignErr *AssignmentError
	require.ErrorAs(t, err, &assignErr)
	assert.Equal(t, domain.ReasonRelationshipNotActive, assignErr.Reason)

	// An unauthorized caller learns nothing about the template.
	assert.Zero(t, fx.unitRepo.getByIDCalls)
}

func TestAssignOneTemplateUnavailable(t *testing.T) {
	fx := newAssignmentFixture(t)
	athleteID := fx.activeAthlete()

	// Missing.
	_, err := fx.service.AssignOne(context.Background(), fx.coachID, athleteID, primitive.NewObjectID(), fx.targetDate, nil)
	assert.ErrorIs(t, err, ErrTemplateUnavailable)

	// Someone else's unit fails identically.
	otherUnit := &domain.TrainingUnit{
		OwnerID:     primitive.NewObjectID(),
		Name:        "Not Yours",
		Steps:       []domain.ExerciseStep{{StepID: primitive.NewObjectID(), ExerciseRef: "plank", DurationSeconds: ptrInt(60)}},
		RepeatCount: 1,
	}
	otherID, _ := fx.unitRepo.Create(context.Background(), otherUnit)
	_, err = fx.service.AssignOne(context.Background(), fx.coachID, athleteID, otherID, fx.targetDate, nil)
	assert.ErrorIs(t, err, ErrTemplateUnavailable)

	// Archived.
	require.NoError(t, fx.unitRepo.Archive(context.Background(), fx.unit.ID))
	_, err = fx.service.AssignOne(context.Background(), fx.coachID, athleteID, fx.unit.ID, fx.targetDate, nil)
	assert.ErrorIs(t, err, ErrTemplateUnavailable)

	assert.Zero(t, fx.sessionRepo.count())
}

func TestAssignOneOverlayInvalid(t *testing.T) {
	fx := newAssignmentFixture(t)
	athleteID := fx.activeAthlete()

	overlay := &domain.Overlay{Entries: []domain.OverlayEntry{
		{StepID: fx.unit.Steps[0].StepID}, // No override fields set.
	}}
	_, err := fx.service.AssignOne(context.Background(), fx.coachID, athleteID, fx.unit.ID, fx.targetDate, overlay)
	assert.ErrorIs(t, err, ErrOverlayInvalid)
}

func TestAssignOneUnknownStepReference(t *testing.T) {
	fx := newAssignmentFixture(t)
	athleteID := fx.activeAthlete()
	rogue := primitive.NewObjectID()
	overlay := &domain.Overlay{Entries: []domain.OverlayEntry{
		{StepID: rogue, RepsOverride: ptrInt(12)},
	}}

	_, err := fx.service.AssignOne(context.Background(), fx.coachID, athleteID, fx.unit.ID, fx.targetDate, overlay)
	var assignErr *AssignmentError
	require.ErrorAs(t, err, &assignErr)
	assert.Equal(t, domain.ReasonUnknownStepReference, assignErr.Reason)
	require.NotNil(t, assignErr.StepID)
	assert.Equal(t, rogue, *assignErr.StepID)
	assert.Zero(t, fx.sessionRepo.count())
}

func TestAssignOneArchiveIsBestEffort(t *testing.T) {
	fx := newAssignmentFixture(t)
	archive := &recordingArchive{failed: true}
	svc := NewAssignmentService(fx.relationshipRepo, fx.unitRepo, fx.sessionRepo, allowAllResolver{}, archive, nil, 100, 8)
	athleteID := fx.activeAthlete()

	_, err := svc.AssignOne(context.Background(), fx.coachID, athleteID, fx.unit.ID, fx.targetDate, nil)
	require.NoError(t, err, "a failed snapshot must not fail the assignment")
	assert.Equal(t, 1, fx.sessionRepo.count())

	archive.failed = false
	_, err = svc.AssignOne(context.Background(), fx.coachID, athleteID, fx.unit.ID, fx.targetDate, nil)
	require.NoError(t, err)
	assert.Len(t, archive.keys, 1)
}

// --- AssignMany ---

func TestAssignManyMixedOutcomes(t *testing.T) {
	fx := newAssignmentFixture(t)

	athletes := make([]primitive.ObjectID, 5)
	overlays := make(map[primitive.ObjectID]*domain.Overlay, 5)
	for i := range athletes {
		athletes[i] = primitive.NewObjectID()
		status := domain.RelationshipActive
		if i == 2 {
			status = domain.RelationshipRevoked
		}
		fx.relationshipRepo.put(fx.coachID, athletes[i], status)
		overlays[athletes[i]] = nil
	}

	results, err := fx.service.AssignMany(context.Background(), fx.coachID, fx.unit.ID, fx.targetDate, overlays)
	require.NoError(t, err)
	require.Len(t, results, 5, "one result per requested recipient")

	for i, athleteID := range athletes {
		result := results[athleteID]
		if i == 2 {
			assert.Equal(t, domain.ResultFailed, result.Status)
			assert.Equal(t, domain.ReasonRelationshipNotActive, result.Reason)
			assert.True(t, result.SessionID.IsZero())
			continue
		}
		assert.Equal(t, domain.ResultSucceeded, result.Status, "athlete %d", i)
		assert.False(t, result.SessionID.IsZero())

		session, err := fx.sessionRepo.GetByID(context.Background(), result.SessionID)
		require.NoError(t, err)
		assert.Equal(t, athleteID, session.RecipientID)
	}

	// No session was written for the revoked athlete.
	sessions, err := fx.sessionRepo.GetByRecipientID(context.Background(), athletes[2])
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Equal(t, 4, fx.sessionRepo.count())
}

func TestAssignManyBatchTooLarge(t *testing.T) {
	fx := newAssignmentFixture(t)

	overlays := make(map[primitive.ObjectID]*domain.Overlay, 150)
	for i := 0; i < 150; i++ {
		overlays[primitive.NewObjectID()] = nil
	}

	results, err := fx.service.AssignMany(context.Background(), fx.coachID, fx.unit.ID, fx.targetDate, overlays)
	require.ErrorIs(t, err, ErrBatchTooLarge)
	assert.Nil(t, results)

	// Rejected before any relationship or template lookup.
	assert.Zero(t, fx.relationshipRepo.getByPairCalls)
	assert.Zero(t, fx.unitRepo.getByIDCalls)
	assert.Zero(t, fx.sessionRepo.count())
}

func TestAssignManyExactlyAtCap(t *testing.T) {
	fx := newAssignmentFixture(t)

	overlays := make(map[primitive.ObjectID]*domain.Overlay, 100)
	for i := 0; i < 100; i++ {
		overlays[fx.activeAthlete()] = nil
	}

	results, err := fx.service.AssignMany(context.Background(), fx.coachID, fx.unit.ID, fx.targetDate, overlays)
	require.NoError(t, err)
	assert.Len(t, results, 100)
	assert.Equal(t, 100, fx.sessionRepo.count())

	// The shared template was fetched once for the whole batch.
	assert.Equal(t, 1, fx.unitRepo.getByIDCalls)
}

func TestAssignManyNoRecipients(t *testing.T) {
	fx := newAssignmentFixture(t)
	_, err := fx.service.AssignMany(context.Background(), fx.coachID, fx.unit.ID, fx.targetDate, nil)
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestAssignManyTemplateUnavailableFailsWholeBatch(t *testing.T) {
	fx := newAssignmentFixture(t)
	overlays := map[primitive.ObjectID]*domain.Overlay{
		fx.activeAthlete(): nil,
		fx.activeAthlete(): nil,
	}
	require.NoError(t, fx.unitRepo.Archive(context.Background(), fx.unit.ID))

	results, err := fx.service.AssignMany(context.Background(), fx.coachID, fx.unit.ID, fx.targetDate, overlays)
	require.ErrorIs(t, err, ErrTemplateUnavailable)
	assert.Nil(t, results)
	assert.Zero(t, fx.sessionRepo.count())
}

func TestAssignManyCancelledBeforeDispatch(t *testing.T) {
	fx := newAssignmentFixture(t)
	overlays := map[primitive.ObjectID]*domain.Overlay{fx.activeAthlete(): nil}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.service.AssignMany(ctx, fx.coachID, fx.unit.ID, fx.targetDate, overlays)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fx.sessionRepo.count())
}

func TestAssignManyPerRecipientOverlays(t *testing.T) {
	fx := newAssignmentFixture(t)
	plain := fx.activeAthlete()
	modified := fx.activeAthlete()

	overlays := map[primitive.ObjectID]*domain.Overlay{
		plain: nil,
		modified: {Entries: []domain.OverlayEntry{
			{StepID: fx.unit.Steps[1].StepID, RepsOverride: ptrInt(5)},
		}},
	}

	results, err := fx.service.AssignMany(context.Background(), fx.coachID, fx.unit.ID, fx.targetDate, overlays)
	require.NoError(t, err)

	plainSession, err := fx.sessionRepo.GetByID(context.Background(), results[plain].SessionID)
	require.NoError(t, err)
	modifiedSession, err := fx.sessionRepo.GetByID(context.Background(), results[modified].SessionID)
	require.NoError(t, err)

	// Step 2 appears at positions 2 and 4 (2 steps x 2 rounds).
	assert.Equal(t, 10, *plainSession.Instances[1].Reps)
	assert.Equal(t, 10, *plainSession.Instances[3].Reps)
	assert.Equal(t, 5, *modifiedSession.Instances[1].Reps)
	assert.Equal(t, 5, *modifiedSession.Instances[3].Reps)
}

func TestAssignManyInvalidOverlayFailsWholeBatch(t *testing.T) {
	fx := newAssignmentFixture(t)
	overlays := map[primitive.ObjectID]*domain.Overlay{
		fx.activeAthlete(): nil,
		fx.activeAthlete(): {Entries: []domain.OverlayEntry{{StepID: fx.unit.Steps[0].StepID}}},
	}

	_, err := fx.service.AssignMany(context.Background(), fx.coachID, fx.unit.ID, fx.targetDate, overlays)
	assert.ErrorIs(t, err, ErrOverlayInvalid)
	assert.Zero(t, fx.unitRepo.getByIDCalls)
}

func TestAssignManyPersistenceFailureIsIsolated(t *testing.T) {
	fx := newAssignmentFixture(t)
	healthy := fx.activeAthlete()
	doomed := fx.activeAthlete()
	fx.sessionRepo.failFor[doomed] = true

	overlays := map[primitive.ObjectID]*domain.Overlay{healthy: nil, doomed: nil}
	results, err := fx.service.AssignMany(context.Background(), fx.coachID, fx.unit.ID, fx.targetDate, overlays)
	require.NoError(t, err)

	assert.Equal(t, domain.ResultSucceeded, results[healthy].Status)
	assert.Equal(t, domain.ResultFailed, results[doomed].Status)
	assert.Equal(t, domain.ReasonPersistenceFailure, results[doomed].Reason)
	assert.Equal(t, 1, fx.sessionRepo.count())
}

// --- Session immutability and reads ---

func TestSessionsSurviveTemplateEditAndArchive(t *testing.T) {
	fx := newAssignmentFixture(t)
	athleteID := fx.activeAthlete()

	session, err := fx.service.AssignOne(context.Background(), fx.coachID, athleteID, fx.unit.ID, fx.targetDate, nil)
	require.NoError(t, err)
	originalReps := *session.Instances[1].Reps

	// Edit the template in place, then archive it.
	*fx.unit.Steps[1].Reps = 99
	fx.unit.Name = "Renamed"
	require.NoError(t, fx.unitRepo.Archive(context.Background(), fx.unit.ID))

	stored, err := fx.service.GetSession(context.Background(), athleteID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, originalReps, *stored.Instances[1].Reps, "materialized values are copies, not references")
	assert.Equal(t, fx.unit.ID, stored.SourceTrainingUnitID, "source pointer stays informational after archive")

	sessions, err := fx.service.GetSessionsForRecipient(context.Background(), athleteID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestGetSessionVisibility(t *testing.T) {
	fx := newAssignmentFixture(t)
	athleteID := fx.activeAthlete()

	session, err := fx.service.AssignOne(context.Background(), fx.coachID, athleteID, fx.unit.ID, fx.targetDate, nil)
	require.NoError(t, err)

	_, err = fx.service.GetSession(context.Background(), athleteID, session.ID)
	assert.NoError(t, err, "recipient can read")
	_, err = fx.service.GetSession(context.Background(), fx.coachID, session.ID)
	assert.NoError(t, err, "assigner can read")
	_, err = fx.service.GetSession(context.Background(), primitive.NewObjectID(), session.ID)
	assert.ErrorIs(t, err, ErrSessionAccessDenied)
	_, err = fx.service.GetSession(context.Background(), athleteID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
