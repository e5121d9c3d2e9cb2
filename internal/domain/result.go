package domain

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FailureReason is the closed set of typed reasons an assignment attempt can
// fail with. Callers translate these into transport-level status codes.
type FailureReason string

const (
	ReasonRelationshipNotActive FailureReason = "RELATIONSHIP_NOT_ACTIVE" // Missing, pending, or revoked
	ReasonTemplateUnavailable   FailureReason = "TEMPLATE_UNAVAILABLE"    // Archived, not found, or not owned by assigner
	ReasonInvalidTemplate       FailureReason = "INVALID_TEMPLATE"        // Unit violates its own invariants
	ReasonUnknownStepReference  FailureReason = "UNKNOWN_STEP_REFERENCE"  // Overlay points at a step the unit doesn't have
	ReasonExerciseNotAccessible FailureReason = "EXERCISE_NOT_ACCESSIBLE" // Ref unresolvable or not visible to recipient
	ReasonBatchTooLarge         FailureReason = "BATCH_TOO_LARGE"
	ReasonPersistenceFailure    FailureReason = "PERSISTENCE_FAILURE" // Retryable by the caller; not retried here
)

// ResultStatus is the terminal state of one recipient's assignment attempt.
type ResultStatus string

const (
	ResultSucceeded ResultStatus = "succeeded"
	ResultFailed    ResultStatus = "failed"
)

// Result is the per-recipient outcome of an assignment. On success SessionID
// identifies the created GeneratedSession; on failure Reason is always set and
// StepID points at the offending step where one exists.
type Result struct {
	Status    ResultStatus        `json:"status"`
	SessionID primitive.ObjectID  `json:"sessionId,omitempty"`
	Reason    FailureReason       `json:"reason,omitempty"`
	StepID    *primitive.ObjectID `json:"stepId,omitempty"`
	Message   string              `json:"message,omitempty"`
}

// Succeeded builds a success result for a created session.
func Succeeded(sessionID primitive.ObjectID) Result {
	return Result{Status: ResultSucceeded, SessionID: sessionID}
}

// FailedResult builds a failure result from a typed reason.
func FailedResult(reason FailureReason, stepID *primitive.ObjectID, message string) Result {
	return Result{Status: ResultFailed, Reason: reason, StepID: stepID, Message: message}
}

// ExpansionError is a typed expansion failure. StepID is set for failures
// attributable to a single step (unknown overlay reference, unresolvable
// exercise) and nil otherwise.
type ExpansionError struct {
	Reason  FailureReason
	StepID  *primitive.ObjectID
	Message string
}

func (e *ExpansionError) Error() string {
	if e.StepID != nil {
		return fmt.Sprintf("expansion failed (%s, step %s): %s", e.Reason, e.StepID.Hex(), e.Message)
	}
	return fmt.Sprintf("expansion failed (%s): %s", e.Reason, e.Message)
}
