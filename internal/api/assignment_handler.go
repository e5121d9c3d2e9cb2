package api

import (
	"coachkit/training-engine/internal/domain"
	"coachkit/training-engine/internal/service"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AssignmentHandler struct {
	assignmentService service.AssignmentService
}

func NewAssignmentHandler(assignmentService service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService}
}

// --- DTOs ---

const targetDateLayout = "2006-01-02"

type OverlayEntryRequest struct {
	StepID                string   `json:"stepId" binding:"required"`
	WeightOverride        *float64 `json:"weightOverride"`
	SubstituteExerciseRef *string  `json:"substituteExerciseRef"`
	SetsOverride          *int     `json:"setsOverride"`
	RepsOverride          *int     `json:"repsOverride"`
	DistanceOverride      *int     `json:"distanceOverride"`
	IntensityOverride     *string  `json:"intensityOverride"`
}

type AssignOneRequest struct {
	AthleteID  string                `json:"athleteId" binding:"required"`
	UnitID     string                `json:"unitId" binding:"required"`
	TargetDate string                `json:"targetDate" binding:"required"`
	Overlay    []OverlayEntryRequest `json:"overlay"`
}

type BulkRecipientRequest struct {
	AthleteID string                `json:"athleteId" binding:"required"`
	Overlay   []OverlayEntryRequest `json:"overlay"`
}

type AssignManyRequest struct {
	UnitID     string                 `json:"unitId" binding:"required"`
	TargetDate string                 `json:"targetDate" binding:"required"`
	Recipients []BulkRecipientRequest `json:"recipients" binding:"required,min=1"`
}

type ResultResponse struct {
	Status    domain.ResultStatus  `json:"status"`
	SessionID string               `json:"sessionId,omitempty"`
	Reason    domain.FailureReason `json:"reason,omitempty"`
	StepID    string               `json:"stepId,omitempty"`
	Message   string               `json:"message,omitempty"`
}

type AssignManyResponse struct {
	Succeeded int                       `json:"succeeded"`
	Failed    int                       `json:"failed"`
	Results   map[string]ResultResponse `json:"results"` // Keyed by athlete ID
}

type InstanceResponse struct {
	OrderIndex      int      `json:"orderIndex"`
	Round           int      `json:"round"`
	ExerciseRef     string   `json:"exerciseRef"`
	ExerciseName    string   `json:"exerciseName"`
	Sets            *int     `json:"sets,omitempty"`
	Reps            *int     `json:"reps,omitempty"`
	DistanceMeters  *int     `json:"distanceMeters,omitempty"`
	DurationSeconds *int     `json:"durationSeconds,omitempty"`
	RestSeconds     *int     `json:"restSeconds,omitempty"`
	Weight          *float64 `json:"weight,omitempty"`
	Intensity       string   `json:"intensity,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

type SessionResponse struct {
	ID                   string             `json:"id"`
	RecipientID          string             `json:"recipientId"`
	AssignedByID         string             `json:"assignedById"`
	SourceTrainingUnitID string             `json:"sourceTrainingUnitId"`
	AssignedAt           time.Time          `json:"assignedAt"`
	TargetDate           time.Time          `json:"targetDate"`
	Instances            []InstanceResponse `json:"instances"`
}

func mapOverlay(entries []OverlayEntryRequest) (*domain.Overlay, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	overlay := &domain.Overlay{Entries: make([]domain.OverlayEntry, 0, len(entries))}
	for i := range entries {
		stepID, err := primitive.ObjectIDFromHex(entries[i].StepID)
		if err != nil {
			return nil, errors.New("invalid stepId format in overlay")
		}
		overlay.Entries = append(overlay.Entries, domain.OverlayEntry{
			StepID:                stepID,
			WeightOverride:        entries[i].WeightOverride,
			SubstituteExerciseRef: entries[i].SubstituteExerciseRef,
			SetsOverride:          entries[i].SetsOverride,
			RepsOverride:          entries[i].RepsOverride,
			DistanceOverride:      entries[i].DistanceOverride,
			IntensityOverride:     entries[i].IntensityOverride,
		})
	}
	if err := overlay.Validate(); err != nil {
		return nil, err
	}
	return overlay, nil
}

// --- Handler Methods ---

// AssignOne godoc
// @Summary Assign a training unit to one athlete
// @Tags Assignments
// @Security BearerAuth
// @Router /assignments [post]
func (h *AssignmentHandler) AssignOne(c *gin.Context) {
	var req AssignOneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	coachID, ok := currentUserID(c)
	if !ok {
		return
	}
	athleteID, err := primitive.ObjectIDFromHex(req.AthleteID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid athleteId format.")
		return
	}
	unitID, err := primitive.ObjectIDFromHex(req.UnitID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid unitId format.")
		return
	}
	targetDate, err := time.Parse(targetDateLayout, req.TargetDate)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid targetDate, expected YYYY-MM-DD.")
		return
	}
	overlay, err := mapOverlay(req.Overlay)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.assignmentService.AssignOne(c.Request.Context(), coachID, athleteID, unitID, targetDate, overlay)
	if err != nil {
		abortAssignmentError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MapSessionToResponse(session))
}

// AssignMany godoc
// @Summary Assign a training unit to many athletes in one request
// @Tags Assignments
// @Security BearerAuth
// @Router /assignments/bulk [post]
func (h *AssignmentHandler) AssignMany(c *gin.Context) {
	var req AssignManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	coachID, ok := currentUserID(c)
	if !ok {
		return
	}
	unitID, err := primitive.ObjectIDFromHex(req.UnitID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid unitId format.")
		return
	}
	targetDate, err := time.Parse(targetDateLayout, req.TargetDate)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid targetDate, expected YYYY-MM-DD.")
		return
	}

	overlays := make(map[primitive.ObjectID]*domain.Overlay, len(req.Recipients))
	for i := range req.Recipients {
		athleteID, err := primitive.ObjectIDFromHex(req.Recipients[i].AthleteID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid athleteId format in recipients.")
			return
		}
		if _, dup := overlays[athleteID]; dup {
			abortWithError(c, http.StatusBadRequest, "Duplicate athleteId in recipients.")
			return
		}
		overlay, err := mapOverlay(req.Recipients[i].Overlay)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		overlays[athleteID] = overlay
	}

	results, err := h.assignmentService.AssignMany(c.Request.Context(), coachID, unitID, targetDate, overlays)
	if err != nil {
		abortAssignmentError(c, err)
		return
	}

	resp := AssignManyResponse{Results: make(map[string]ResultResponse, len(results))}
	for athleteID, result := range results {
		if result.Status == domain.ResultSucceeded {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
		resp.Results[athleteID.Hex()] = MapResultToResponse(result)
	}

	c.JSON(http.StatusOK, resp)
}

// GetSession godoc
// @Summary Get one generated session
// @Tags Sessions
// @Security BearerAuth
// @Router /sessions/{sessionId} [get]
func (h *AssignmentHandler) GetSession(c *gin.Context) {
	requesterID, ok := currentUserID(c)
	if !ok {
		return
	}
	sessionID, ok := pathObjectID(c, "sessionId")
	if !ok {
		return
	}

	session, err := h.assignmentService.GetSession(c.Request.Context(), requesterID, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrSessionAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to retrieve session.")
		}
		return
	}

	c.JSON(http.StatusOK, MapSessionToResponse(session))
}

// GetOwnSessions godoc
// @Summary List the athlete's generated sessions
// @Tags Sessions
// @Security BearerAuth
// @Router /sessions [get]
func (h *AssignmentHandler) GetOwnSessions(c *gin.Context) {
	recipientID, ok := currentUserID(c)
	if !ok {
		return
	}

	sessions, err := h.assignmentService.GetSessionsForRecipient(c.Request.Context(), recipientID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve sessions.")
		return
	}

	responses := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		responses = append(responses, MapSessionToResponse(&sessions[i]))
	}
	c.JSON(http.StatusOK, responses)
}

// abortAssignmentError maps orchestrator errors onto HTTP statuses.
func abortAssignmentError(c *gin.Context, err error) {
	var assignErr *service.AssignmentError
	if errors.As(err, &assignErr) {
		status := http.StatusInternalServerError
		switch assignErr.Reason {
		case domain.ReasonRelationshipNotActive:
			status = http.StatusForbidden
		case domain.ReasonTemplateUnavailable:
			status = http.StatusNotFound
		case domain.ReasonUnknownStepReference, domain.ReasonExerciseNotAccessible:
			status = http.StatusUnprocessableEntity
		case domain.ReasonInvalidTemplate:
			status = http.StatusUnprocessableEntity
		case domain.ReasonPersistenceFailure:
			status = http.StatusBadGateway
		}
		c.AbortWithStatusJSON(status, gin.H{
			"error":  assignErr.Message,
			"reason": assignErr.Reason,
			"stepId": hexOrEmpty(assignErr.StepID),
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrBatchTooLarge):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":  err.Error(),
			"reason": domain.ReasonBatchTooLarge,
		})
	case errors.Is(err, service.ErrTemplateUnavailable):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error":  err.Error(),
			"reason": domain.ReasonTemplateUnavailable,
		})
	case errors.Is(err, service.ErrOverlayInvalid), errors.Is(err, service.ErrNoRecipients):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "Failed to process assignment.")
	}
}

func hexOrEmpty(id *primitive.ObjectID) string {
	if id == nil {
		return ""
	}
	return id.Hex()
}

// MapResultToResponse converts a per-recipient domain.Result to its DTO.
func MapResultToResponse(result domain.Result) ResultResponse {
	resp := ResultResponse{
		Status:  result.Status,
		Reason:  result.Reason,
		StepID:  hexOrEmpty(result.StepID),
		Message: result.Message,
	}
	if result.SessionID != primitive.NilObjectID {
		resp.SessionID = result.SessionID.Hex()
	}
	return resp
}

// MapSessionToResponse converts a domain.GeneratedSession to its DTO.
func MapSessionToResponse(session *domain.GeneratedSession) SessionResponse {
	instances := make([]InstanceResponse, 0, len(session.Instances))
	for i := range session.Instances {
		inst := &session.Instances[i]
		instances = append(instances, InstanceResponse{
			OrderIndex:      inst.OrderIndex,
			Round:           inst.Round,
			ExerciseRef:     inst.ExerciseRef,
			ExerciseName:    inst.ExerciseName,
			Sets:            inst.Sets,
			Reps:            inst.Reps,
			DistanceMeters:  inst.DistanceMeters,
			DurationSeconds: inst.DurationSeconds,
			RestSeconds:     inst.RestSeconds,
			Weight:          inst.Weight,
			Intensity:       inst.Intensity,
			Notes:           inst.Notes,
		})
	}
	return SessionResponse{
		ID:                   session.ID.Hex(),
		RecipientID:          session.RecipientID.Hex(),
		AssignedByID:         session.AssignedByID.Hex(),
		SourceTrainingUnitID: session.SourceTrainingUnitID.Hex(),
		AssignedAt:           session.AssignedAt,
		TargetDate:           session.TargetDate,
		Instances:            instances,
	}
}
