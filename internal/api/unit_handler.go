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

type UnitHandler struct {
	unitService service.UnitService
}

func NewUnitHandler(unitService service.UnitService) *UnitHandler {
	return &UnitHandler{unitService: unitService}
}

// --- DTOs ---

// StepRequest describes one step in a create/update request. StepID is set
// only on update, for steps that should keep their existing identity.
type StepRequest struct {
	StepID          string `json:"stepId"`
	ExerciseRef     string `json:"exerciseRef" binding:"required"`
	Sets            *int   `json:"sets"`
	Reps            *int   `json:"reps"`
	DistanceMeters  *int   `json:"distanceMeters"`
	DurationSeconds *int   `json:"durationSeconds"`
	RestSeconds     *int   `json:"restSeconds"`
	Notes           string `json:"notes"`
}

type UnitRequest struct {
	Name        string        `json:"name" binding:"required,max=120"`
	RepeatCount int           `json:"repeatCount" binding:"omitempty,min=1,max=20"`
	Steps       []StepRequest `json:"steps" binding:"required,min=1"`
}

type StepResponse struct {
	StepID          string `json:"stepId"`
	ExerciseRef     string `json:"exerciseRef"`
	Sets            *int   `json:"sets,omitempty"`
	Reps            *int   `json:"reps,omitempty"`
	DistanceMeters  *int   `json:"distanceMeters,omitempty"`
	DurationSeconds *int   `json:"durationSeconds,omitempty"`
	RestSeconds     *int   `json:"restSeconds,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type UnitResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	RepeatCount int            `json:"repeatCount"`
	Steps       []StepResponse `json:"steps"`
	ArchivedAt  *time.Time     `json:"archivedAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func mapStepInputs(steps []StepRequest) ([]service.StepInput, error) {
	inputs := make([]service.StepInput, 0, len(steps))
	for i := range steps {
		in := service.StepInput{
			ExerciseRef:     steps[i].ExerciseRef,
			Sets:            steps[i].Sets,
			Reps:            steps[i].Reps,
			DistanceMeters:  steps[i].DistanceMeters,
			DurationSeconds: steps[i].DurationSeconds,
			RestSeconds:     steps[i].RestSeconds,
			Notes:           steps[i].Notes,
		}
		if steps[i].StepID != "" {
			stepID, err := primitive.ObjectIDFromHex(steps[i].StepID)
			if err != nil {
				return nil, errors.New("invalid stepId format")
			}
			in.StepID = &stepID
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// --- Handler Methods ---

// CreateUnit godoc
// @Summary Create a training unit
// @Tags Units
// @Security BearerAuth
// @Router /units [post]
func (h *UnitHandler) CreateUnit(c *gin.Context) {
	var req UnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	steps, err := mapStepInputs(req.Steps)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	unit, err := h.unitService.CreateUnit(c.Request.Context(), ownerID, req.Name, req.RepeatCount, steps)
	if err != nil {
		abortUnitError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MapUnitToResponse(unit))
}

// GetUnits godoc
// @Summary List the coach's training units
// @Tags Units
// @Security BearerAuth
// @Router /units [get]
func (h *UnitHandler) GetUnits(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	units, err := h.unitService.GetUnitsByOwner(c.Request.Context(), ownerID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve training units.")
		return
	}

	responses := make([]UnitResponse, 0, len(units))
	for i := range units {
		responses = append(responses, MapUnitToResponse(&units[i]))
	}
	c.JSON(http.StatusOK, responses)
}

// GetUnit godoc
// @Summary Get one training unit
// @Tags Units
// @Security BearerAuth
// @Router /units/{unitId} [get]
func (h *UnitHandler) GetUnit(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	unitID, ok := pathObjectID(c, "unitId")
	if !ok {
		return
	}

	unit, err := h.unitService.GetUnit(c.Request.Context(), ownerID, unitID)
	if err != nil {
		abortUnitError(c, err)
		return
	}

	c.JSON(http.StatusOK, MapUnitToResponse(unit))
}

// UpdateUnit godoc
// @Summary Replace a training unit's name, repeat count, and steps
// @Tags Units
// @Security BearerAuth
// @Router /units/{unitId} [put]
func (h *UnitHandler) UpdateUnit(c *gin.Context) {
	var req UnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	unitID, ok := pathObjectID(c, "unitId")
	if !ok {
		return
	}

	steps, err := mapStepInputs(req.Steps)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	repeatCount := req.RepeatCount
	if repeatCount == 0 {
		repeatCount = domain.MinRepeatCount
	}

	unit, err := h.unitService.UpdateUnit(c.Request.Context(), ownerID, unitID, req.Name, repeatCount, steps)
	if err != nil {
		abortUnitError(c, err)
		return
	}

	c.JSON(http.StatusOK, MapUnitToResponse(unit))
}

// ArchiveUnit godoc
// @Summary Archive (soft-delete) a training unit
// @Tags Units
// @Security BearerAuth
// @Router /units/{unitId} [delete]
func (h *UnitHandler) ArchiveUnit(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	unitID, ok := pathObjectID(c, "unitId")
	if !ok {
		return
	}

	if err := h.unitService.ArchiveUnit(c.Request.Context(), ownerID, unitID); err != nil {
		abortUnitError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func abortUnitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnitNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnitAccessDenied):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrUnitArchived):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnitNameInvalid),
		errors.Is(err, domain.ErrUnitNoSteps),
		errors.Is(err, domain.ErrUnitRepeatCountRange),
		errors.Is(err, domain.ErrStepDescribesNothing),
		errors.Is(err, domain.ErrStepFieldRange),
		errors.Is(err, domain.ErrDuplicateStepID):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "Failed to process training unit.")
	}
}

// MapUnitToResponse converts a domain.TrainingUnit to its DTO.
func MapUnitToResponse(unit *domain.TrainingUnit) UnitResponse {
	steps := make([]StepResponse, 0, len(unit.Steps))
	for i := range unit.Steps {
		s := &unit.Steps[i]
		steps = append(steps, StepResponse{
			StepID:          s.StepID.Hex(),
			ExerciseRef:     s.ExerciseRef,
			Sets:            s.Sets,
			Reps:            s.Reps,
			DistanceMeters:  s.DistanceMeters,
			DurationSeconds: s.DurationSeconds,
			RestSeconds:     s.RestSeconds,
			Notes:           s.Notes,
		})
	}
	return UnitResponse{
		ID:          unit.ID.Hex(),
		Name:        unit.Name,
		RepeatCount: unit.RepeatCount,
		Steps:       steps,
		ArchivedAt:  unit.ArchivedAt,
		CreatedAt:   unit.CreatedAt,
		UpdatedAt:   unit.UpdatedAt,
	}
}
