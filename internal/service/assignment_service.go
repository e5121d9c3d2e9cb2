package service

import (
	"coachkit/training-engine/internal/catalog"
	"coachkit/training-engine/internal/domain"
	"coachkit/training-engine/internal/expansion"
	"coachkit/training-engine/internal/repository"
	"coachkit/training-engine/internal/storage"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	// ErrBatchTooLarge and ErrTemplateUnavailable apply to a whole request and
	// short-circuit before any per-recipient work.
	ErrBatchTooLarge       = errors.New("bulk assignment exceeds the recipient cap")
	ErrTemplateUnavailable = errors.New("training unit is archived, not found, or not owned by the assigner")
	ErrNoRecipients        = errors.New("bulk assignment requires at least one recipient")
	ErrOverlayInvalid      = errors.New("modification overlay is invalid")
)

// Defaults for AssignmentConfig values left unset.
const (
	DefaultMaxBatchSize   = 100
	DefaultWorkerPoolSize = 8
)

// AssignmentError is a typed single-assignment failure carrying the reason the
// transport layer translates, plus the offending step where one exists.
type AssignmentError struct {
	Reason  domain.FailureReason
	StepID  *primitive.ObjectID
	Message string
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("assignment failed (%s): %s", e.Reason, e.Message)
}

// --- Service Interface ---
type AssignmentService interface {
	// AssignOne materializes one training unit for one recipient. Failures
	// are *AssignmentError values with a typed reason.
	AssignOne(ctx context.Context, coachID, athleteID, unitID primitive.ObjectID, targetDate time.Time, overlay *domain.Overlay) (*domain.GeneratedSession, error)
	// AssignMany fans the same unit out to many recipients as independent
	// units of work. One recipient's failure never rolls back another's
	// success. The result map is complete: one entry per requested recipient.
	AssignMany(ctx context.Context, coachID, unitID primitive.ObjectID, targetDate time.Time, overlays map[primitive.ObjectID]*domain.Overlay) (map[primitive.ObjectID]domain.Result, error)
	// GetSession returns a session to its recipient or its assigner.
	GetSession(ctx context.Context, requesterID, sessionID primitive.ObjectID) (*domain.GeneratedSession, error)
	// GetSessionsForRecipient is the planner-facing read of a recipient's
	// materialized sessions.
	GetSessionsForRecipient(ctx context.Context, recipientID primitive.ObjectID) ([]domain.GeneratedSession, error)
}

var ErrSessionNotFound = errors.New("generated session not found")
var ErrSessionAccessDenied = errors.New("access denied to this generated session")

// --- Service Implementation ---

// assignmentService implements the AssignmentService interface.
type assignmentService struct {
	relationshipRepo repository.RelationshipRepository
	unitRepo         repository.TrainingUnitRepository
	sessionRepo      repository.GeneratedSessionRepository
	resolver         catalog.Resolver
	archive          storage.SessionArchive // Optional; nil disables archiving
	logger           *zap.SugaredLogger
	maxBatchSize     int
	workerPoolSize   int
}

// NewAssignmentService creates a new instance of assignmentService. archive
// may be nil.
func NewAssignmentService(
	relationshipRepo repository.RelationshipRepository,
	unitRepo repository.TrainingUnitRepository,
	sessionRepo repository.GeneratedSessionRepository,
	resolver catalog.Resolver,
	archive storage.SessionArchive,
	logger *zap.SugaredLogger,
	maxBatchSize int,
	workerPoolSize int,
) AssignmentService {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	if workerPoolSize <= 0 {
		workerPoolSize = DefaultWorkerPoolSize
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &assignmentService{
		relationshipRepo: relationshipRepo,
		unitRepo:         unitRepo,
		sessionRepo:      sessionRepo,
		resolver:         resolver,
		archive:          archive,
		logger:           logger,
		maxBatchSize:     maxBatchSize,
		workerPoolSize:   workerPoolSize,
	}
}

// AssignOne runs the full single-recipient path: relationship check, template
// check, expansion, persistence.
func (s *assignmentService) AssignOne(ctx context.Context, coachID, athleteID, unitID primitive.ObjectID, targetDate time.Time, overlay *domain.Overlay) (*domain.GeneratedSession, error) {
	if coachID == primitive.NilObjectID || athleteID == primitive.NilObjectID || unitID == primitive.NilObjectID {
		return nil, errors.New("coach ID, athlete ID, and unit ID are required")
	}
	if overlay != nil {
		if err := overlay.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrOverlayInvalid, err)
		}
	}

	// Relationship comes first: a coach without consent learns nothing about
	// the template's state.
	if result := s.checkRelationship(ctx, coachID, athleteID); result != nil {
		return nil, &AssignmentError{Reason: result.Reason, StepID: result.StepID, Message: result.Message}
	}

	// The template is always re-fetched here, never taken from the caller, so
	// an archive or edit that landed since the caller last looked is honored.
	unit, err := s.fetchAssignableUnit(ctx, coachID, unitID)
	if err != nil {
		return nil, err
	}

	result, session := s.assignRecipient(ctx, coachID, athleteID, unit, targetDate, overlay)
	if result.Status != domain.ResultSucceeded {
		return nil, &AssignmentError{Reason: result.Reason, StepID: result.StepID, Message: result.Message}
	}
	return session, nil
}

// AssignMany is a fan-out of independent per-recipient transactions, not one
// large transaction.
func (s *assignmentService) AssignMany(ctx context.Context, coachID, unitID primitive.ObjectID, targetDate time.Time, overlays map[primitive.ObjectID]*domain.Overlay) (map[primitive.ObjectID]domain.Result, error) {
	if coachID == primitive.NilObjectID || unitID == primitive.NilObjectID {
		return nil, errors.New("coach ID and unit ID are required")
	}
	if len(overlays) == 0 {
		return nil, ErrNoRecipients
	}
	// Cap check comes first: an oversized request fails before any
	// relationship or template lookup happens.
	if len(overlays) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: %d recipients, cap is %d", ErrBatchTooLarge, len(overlays), s.maxBatchSize)
	}
	for athleteID, overlay := range overlays {
		if overlay == nil {
			continue
		}
		if err := overlay.Validate(); err != nil {
			return nil, fmt.Errorf("%w (recipient %s): %s", ErrOverlayInvalid, athleteID.Hex(), err)
		}
	}

	// Template is fetched once and shared read-only across all workers. If it
	// is unavailable, every recipient fails uniformly with no per-recipient
	// work done.
	unit, err := s.fetchAssignableUnit(ctx, coachID, unitID)
	if err != nil {
		return nil, err
	}

	// Cancellation before dispatch fails fast with no partial work.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type recipientResult struct {
		athleteID primitive.ObjectID
		result    domain.Result
	}

	jobs := make(chan primitive.ObjectID, len(overlays))
	out := make(chan recipientResult, len(overlays))

	workers := s.workerPoolSize
	if len(overlays) < workers {
		workers = len(overlays)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for athleteID := range jobs {
				result, _ := s.assignRecipient(ctx, coachID, athleteID, unit, targetDate, overlays[athleteID])
				out <- recipientResult{athleteID: athleteID, result: result}
			}
		}()
	}

	for athleteID := range overlays {
		jobs <- athleteID
	}
	close(jobs)
	wg.Wait()
	close(out)

	// The map is assembled only after every worker reached a terminal state;
	// callers never observe a partially-populated result.
	results := make(map[primitive.ObjectID]domain.Result, len(overlays))
	succeeded := 0
	for rr := range out {
		results[rr.athleteID] = rr.result
		if rr.result.Status == domain.ResultSucceeded {
			succeeded++
		}
	}

	s.logger.Infow("bulk assignment finished",
		"unitId", unitID.Hex(),
		"coachId", coachID.Hex(),
		"recipients", len(overlays),
		"succeeded", succeeded,
		"failed", len(overlays)-succeeded,
	)

	return results, nil
}

// fetchAssignableUnit loads the current template state and verifies ownership
// and archival. All failure modes collapse into ErrTemplateUnavailable so a
// caller cannot distinguish someone else's unit from a missing one.
func (s *assignmentService) fetchAssignableUnit(ctx context.Context, coachID, unitID primitive.ObjectID) (*domain.TrainingUnit, error) {
	unit, err := s.unitRepo.GetByID(ctx, unitID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateUnavailable
		}
		return nil, err
	}
	if unit.OwnerID != coachID || unit.IsArchived() {
		return nil, ErrTemplateUnavailable
	}
	return unit, nil
}

// checkRelationship returns nil when the pair's relationship is Active, and a
// failed Result otherwise. Missing, pending, and revoked all fail the same way
// from the assigner's point of view.
func (s *assignmentService) checkRelationship(ctx context.Context, coachID, athleteID primitive.ObjectID) *domain.Result {
	rel, err := s.relationshipRepo.GetByPair(ctx, coachID, athleteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r := domain.FailedResult(domain.ReasonRelationshipNotActive, nil, "no relationship exists with this athlete")
			return &r
		}
		r := domain.FailedResult(domain.ReasonPersistenceFailure, nil, fmt.Sprintf("relationship lookup failed: %v", err))
		return &r
	}
	if !rel.IsActive() {
		r := domain.FailedResult(domain.ReasonRelationshipNotActive, nil, fmt.Sprintf("relationship status is %s", rel.Status))
		return &r
	}
	return nil
}

// assignRecipient is the per-recipient unit of work: relationship check,
// expansion, persistence. It always returns a terminal Result and never
// panics the batch. The session is non-nil only on success.
func (s *assignmentService) assignRecipient(ctx context.Context, coachID, athleteID primitive.ObjectID, unit *domain.TrainingUnit, targetDate time.Time, overlay *domain.Overlay) (domain.Result, *domain.GeneratedSession) {
	if err := ctx.Err(); err != nil {
		return domain.FailedResult(domain.ReasonPersistenceFailure, nil, "request cancelled before this recipient was processed"), nil
	}

	// 1. Relationship must be Active.
	if result := s.checkRelationship(ctx, coachID, athleteID); result != nil {
		return *result, nil
	}

	// 2. Expand. The unit was validated as assignable by the caller; the
	// engine re-checks its own invariants.
	instances, err := expansion.Expand(ctx, unit, overlay, athleteID, s.resolver)
	if err != nil {
		var expErr *domain.ExpansionError
		if errors.As(err, &expErr) {
			if expErr.Reason == domain.ReasonInvalidTemplate {
				// The unit violates its own invariants: upstream data
				// corruption, worth a warning.
				s.logger.Warnw("training unit failed invariant check during expansion",
					"unitId", unit.ID.Hex(),
					"error", expErr.Message,
				)
			}
			return domain.FailedResult(expErr.Reason, expErr.StepID, expErr.Message), nil
		}
		// Infrastructure failure during catalog resolution; retryable.
		return domain.FailedResult(domain.ReasonPersistenceFailure, nil, fmt.Sprintf("expansion failed: %v", err)), nil
	}

	session := &domain.GeneratedSession{
		RecipientID:          athleteID,
		AssignedByID:         coachID,
		SourceTrainingUnitID: unit.ID,
		AssignedAt:           time.Now().UTC(),
		TargetDate:           targetDate,
		Instances:            instances,
	}

	// 3. Persist. Once persistence begins it runs to completion: a caller
	// cancel must not produce a partially-written session.
	writeCtx := context.WithoutCancel(ctx)
	sessionID, err := s.sessionRepo.Create(writeCtx, session)
	if err != nil {
		return domain.FailedResult(domain.ReasonPersistenceFailure, nil, fmt.Sprintf("failed to write generated session: %v", err)), nil
	}
	session.ID = sessionID

	// 4. Archive snapshot, best effort.
	if s.archive != nil {
		if _, err := s.archive.ArchiveSession(writeCtx, session); err != nil {
			s.logger.Warnw("failed to archive generated session snapshot",
				"sessionId", sessionID.Hex(),
				"error", err,
			)
		}
	}

	return domain.Succeeded(sessionID), session
}

// GetSession retrieves one session, visible to its recipient and its assigner.
func (s *assignmentService) GetSession(ctx context.Context, requesterID, sessionID primitive.ObjectID) (*domain.GeneratedSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.RecipientID != requesterID && session.AssignedByID != requesterID {
		return nil, ErrSessionAccessDenied
	}
	return session, nil
}

// GetSessionsForRecipient lists the recipient's sessions for the planner.
func (s *assignmentService) GetSessionsForRecipient(ctx context.Context, recipientID primitive.ObjectID) ([]domain.GeneratedSession, error) {
	if recipientID == primitive.NilObjectID {
		return nil, errors.New("recipient ID is required")
	}
	return s.sessionRepo.GetByRecipientID(ctx, recipientID)
}
