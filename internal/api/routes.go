package api

import (
	"coachkit/training-engine/internal/domain"
	"coachkit/training-engine/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	exerciseService service.ExerciseService,
	unitService service.UnitService,
	relationshipService service.RelationshipService,
	assignmentService service.AssignmentService,
) {

	authHandler := NewAuthHandler(authService)
	exerciseHandler := NewExerciseHandler(exerciseService)
	unitHandler := NewUnitHandler(unitService)
	relationshipHandler := NewRelationshipHandler(relationshipService)
	assignmentHandler := NewAssignmentHandler(assignmentService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- Exercise Catalog (coach-authored) ---
		exerciseGroup := protected.Group("/exercises")
		exerciseGroup.Use(RoleMiddleware(domain.RoleCoach))
		{
			exerciseGroup.POST("", exerciseHandler.CreateExercise)
			exerciseGroup.GET("", exerciseHandler.GetOwnExercises)
			exerciseGroup.PUT("/:exerciseId", exerciseHandler.UpdateExercise)
		}

		// --- Training Units (coach-authored templates) ---
		unitGroup := protected.Group("/units")
		unitGroup.Use(RoleMiddleware(domain.RoleCoach))
		{
			unitGroup.POST("", unitHandler.CreateUnit)
			unitGroup.GET("", unitHandler.GetUnits)
			unitGroup.GET("/:unitId", unitHandler.GetUnit)
			unitGroup.PUT("/:unitId", unitHandler.UpdateUnit)
			unitGroup.DELETE("/:unitId", unitHandler.ArchiveUnit)
		}

		// --- Coach/Athlete Relationships ---
		relationshipGroup := protected.Group("/relationships")
		{
			relationshipGroup.GET("", relationshipHandler.GetRelationships)
			relationshipGroup.POST("", relationshipHandler.Invite)
			// Consent transitions belong to the athlete side.
			relationshipGroup.POST("/:relationshipId/accept", RoleMiddleware(domain.RoleAthlete), relationshipHandler.Accept)
			relationshipGroup.POST("/:relationshipId/revoke", RoleMiddleware(domain.RoleAthlete), relationshipHandler.Revoke)
		}

		// --- Assignments (coach fan-out) ---
		assignmentGroup := protected.Group("/assignments")
		assignmentGroup.Use(RoleMiddleware(domain.RoleCoach))
		{
			assignmentGroup.POST("", assignmentHandler.AssignOne)
			assignmentGroup.POST("/bulk", assignmentHandler.AssignMany)
		}

		// --- Generated Sessions ---
		sessionGroup := protected.Group("/sessions")
		{
			// Listing is athlete-facing; single-session reads are shared with
			// the assigning coach and authorized inside the service.
			sessionGroup.GET("", RoleMiddleware(domain.RoleAthlete), assignmentHandler.GetOwnSessions)
			sessionGroup.GET("/:sessionId", assignmentHandler.GetSession)
		}
	}
}
