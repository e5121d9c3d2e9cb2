package api

import (
	"coachkit/training-engine/internal/domain"
	"coachkit/training-engine/internal/service"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type ExerciseHandler struct {
	exerciseService service.ExerciseService
}

func NewExerciseHandler(exerciseService service.ExerciseService) *ExerciseHandler {
	return &ExerciseHandler{exerciseService: exerciseService}
}

// --- DTOs ---

type CreateExerciseRequest struct {
	Ref         string                    `json:"ref" binding:"required"`
	Name        string                    `json:"name" binding:"required"`
	Description string                    `json:"description"`
	MuscleGroup string                    `json:"muscleGroup"`
	Difficulty  string                    `json:"difficulty"`
	Visibility  domain.ExerciseVisibility `json:"visibility" binding:"omitempty,oneof=public private"`
}

type UpdateExerciseRequest struct {
	Name        string                    `json:"name" binding:"required"`
	Description string                    `json:"description"`
	MuscleGroup string                    `json:"muscleGroup"`
	Difficulty  string                    `json:"difficulty"`
	Visibility  domain.ExerciseVisibility `json:"visibility" binding:"omitempty,oneof=public private"`
}

type ExerciseResponse struct {
	ID          string                    `json:"id"`
	Ref         string                    `json:"ref"`
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	MuscleGroup string                    `json:"muscleGroup,omitempty"`
	Difficulty  string                    `json:"difficulty,omitempty"`
	Visibility  domain.ExerciseVisibility `json:"visibility"`
	CreatedAt   time.Time                 `json:"createdAt"`
}

// --- Handler Methods ---

// CreateExercise godoc
// @Summary Create a catalog exercise
// @Tags Exercises
// @Security BearerAuth
// @Router /exercises [post]
func (h *ExerciseHandler) CreateExercise(c *gin.Context) {
	var req CreateExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	exercise, err := h.exerciseService.CreateExercise(c.Request.Context(), ownerID, req.Ref, req.Name, req.Description, req.MuscleGroup, req.Difficulty, req.Visibility)
	if err != nil {
		if errors.Is(err, service.ErrExerciseRefTaken) {
			abortWithError(c, http.StatusConflict, err.Error())
		} else if errors.Is(err, service.ErrValidationFailed) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to create exercise.")
		}
		return
	}

	c.JSON(http.StatusCreated, MapExerciseToResponse(exercise))
}

// GetOwnExercises godoc
// @Summary List the coach's catalog exercises
// @Tags Exercises
// @Security BearerAuth
// @Router /exercises [get]
func (h *ExerciseHandler) GetOwnExercises(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	exercises, err := h.exerciseService.GetExercisesByOwner(c.Request.Context(), ownerID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve exercises.")
		return
	}

	responses := make([]ExerciseResponse, 0, len(exercises))
	for i := range exercises {
		responses = append(responses, MapExerciseToResponse(&exercises[i]))
	}
	c.JSON(http.StatusOK, responses)
}

// UpdateExercise godoc
// @Summary Update a catalog exercise's descriptive fields
// @Tags Exercises
// @Security BearerAuth
// @Router /exercises/{exerciseId} [put]
func (h *ExerciseHandler) UpdateExercise(c *gin.Context) {
	var req UpdateExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	exerciseID, ok := pathObjectID(c, "exerciseId")
	if !ok {
		return
	}

	exercise, err := h.exerciseService.UpdateExercise(c.Request.Context(), ownerID, exerciseID, req.Name, req.Description, req.MuscleGroup, req.Difficulty, req.Visibility)
	if err != nil {
		if errors.Is(err, service.ErrExerciseNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else if errors.Is(err, service.ErrExerciseAccessDenied) {
			abortWithError(c, http.StatusForbidden, err.Error())
		} else if errors.Is(err, service.ErrValidationFailed) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to update exercise.")
		}
		return
	}

	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

// MapExerciseToResponse converts a domain.Exercise to its DTO.
func MapExerciseToResponse(exercise *domain.Exercise) ExerciseResponse {
	return ExerciseResponse{
		ID:          exercise.ID.Hex(),
		Ref:         exercise.Ref,
		Name:        exercise.Name,
		Description: exercise.Description,
		MuscleGroup: exercise.MuscleGroup,
		Difficulty:  exercise.Difficulty,
		Visibility:  exercise.Visibility,
		CreatedAt:   exercise.CreatedAt,
	}
}
