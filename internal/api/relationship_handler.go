package api

import (
	"coachkit/training-engine/internal/domain"
	"coachkit/training-engine/internal/service"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RelationshipHandler struct {
	relationshipService service.RelationshipService
}

func NewRelationshipHandler(relationshipService service.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{relationshipService: relationshipService}
}

// --- DTOs ---

type InviteRequest struct {
	CounterpartEmail string `json:"counterpartEmail" binding:"required,email"`
}

type RelationshipResponse struct {
	ID               string                    `json:"id"`
	CoachID          string                    `json:"coachId"`
	AthleteID        string                    `json:"athleteId"`
	Status           domain.RelationshipStatus `json:"status"`
	ConsentGrantedAt *time.Time                `json:"consentGrantedAt,omitempty"`
	ConsentRevokedAt *time.Time                `json:"consentRevokedAt,omitempty"`
	CreatedAt        time.Time                 `json:"createdAt"`
}

// --- Handler Methods ---

// Invite godoc
// @Summary Invite a coach or athlete into a pending relationship
// @Tags Relationships
// @Security BearerAuth
// @Router /relationships [post]
func (h *RelationshipHandler) Invite(c *gin.Context) {
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	inviterID, ok := currentUserID(c)
	if !ok {
		return
	}

	rel, err := h.relationshipService.Invite(c.Request.Context(), inviterID, req.CounterpartEmail)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrRelationshipExists):
			abortWithError(c, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrSelfRelationship), errors.Is(err, service.ErrUserWrongRole):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to create invitation.")
		}
		return
	}

	c.JSON(http.StatusCreated, MapRelationshipToResponse(rel))
}

// Accept godoc
// @Summary Accept a pending relationship (athlete consent)
// @Tags Relationships
// @Security BearerAuth
// @Router /relationships/{relationshipId}/accept [post]
func (h *RelationshipHandler) Accept(c *gin.Context) {
	h.transition(c, h.relationshipService.Accept)
}

// Revoke godoc
// @Summary Revoke an active relationship (athlete withdrawal)
// @Tags Relationships
// @Security BearerAuth
// @Router /relationships/{relationshipId}/revoke [post]
func (h *RelationshipHandler) Revoke(c *gin.Context) {
	h.transition(c, h.relationshipService.Revoke)
}

// GetRelationships godoc
// @Summary List the caller's relationships
// @Tags Relationships
// @Security BearerAuth
// @Router /relationships [get]
func (h *RelationshipHandler) GetRelationships(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	rels, err := h.relationshipService.GetForUser(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve relationships.")
		return
	}

	responses := make([]RelationshipResponse, 0, len(rels))
	for i := range rels {
		responses = append(responses, MapRelationshipToResponse(&rels[i]))
	}
	c.JSON(http.StatusOK, responses)
}

func (h *RelationshipHandler) transition(
	c *gin.Context,
	op func(ctx context.Context, athleteID, relationshipID primitive.ObjectID) (*domain.Relationship, error),
) {
	athleteID, ok := currentUserID(c)
	if !ok {
		return
	}
	relationshipID, ok := pathObjectID(c, "relationshipId")
	if !ok {
		return
	}

	rel, err := op(c.Request.Context(), athleteID, relationshipID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRelationshipNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotInvitedAthlete):
			abortWithError(c, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrBadStatusTransition):
			abortWithError(c, http.StatusConflict, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to update relationship.")
		}
		return
	}

	c.JSON(http.StatusOK, MapRelationshipToResponse(rel))
}

// MapRelationshipToResponse converts a domain.Relationship to its DTO.
func MapRelationshipToResponse(rel *domain.Relationship) RelationshipResponse {
	return RelationshipResponse{
		ID:               rel.ID.Hex(),
		CoachID:          rel.CoachID.Hex(),
		AthleteID:        rel.AthleteID.Hex(),
		Status:           rel.Status,
		ConsentGrantedAt: rel.ConsentGrantedAt,
		ConsentRevokedAt: rel.ConsentRevokedAt,
		CreatedAt:        rel.CreatedAt,
	}
}
