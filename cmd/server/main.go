package main

import (
	"coachkit/training-engine/internal/api"
	"coachkit/training-engine/internal/catalog"
	"coachkit/training-engine/internal/config"
	"coachkit/training-engine/internal/repository/mongo"
	"coachkit/training-engine/internal/service"
	"coachkit/training-engine/internal/storage"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// @title Training Unit Assignment Engine API
// @version 1.0
// @description API for authoring training unit templates and assigning them to athletes.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("FATAL: Could not initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	logger.Info("Starting training engine server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Fatalw("Could not load config", "error", err)
	}
	logger.Info("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatalw("Could not connect to MongoDB", "error", err)
	}
	defer func() {
		logger.Info("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Errorw("Failed to disconnect MongoDB", "error", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info("Database connection established.")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureUserIndexes(ctx, appDB.Collection("users"))
		mongo.EnsureExerciseIndexes(ctx, appDB.Collection("exercises"))
		mongo.EnsureTrainingUnitIndexes(ctx, appDB.Collection("training_units"))
		mongo.EnsureRelationshipIndexes(ctx, appDB.Collection("relationships"))
		mongo.EnsureSessionIndexes(ctx, appDB.Collection("generated_sessions"))
		logger.Info("Index creation process completed.")
	}()

	// --- Session Archive (optional) ---
	var archive storage.SessionArchive
	if cfg.Archive.Enabled {
		archive, err = storage.NewS3Archive(cfg.Archive)
		if err != nil {
			logger.Fatalw("Failed to initialize session archive", "error", err)
		}
		logger.Infow("Session archive enabled", "bucket", cfg.Archive.BucketName)
	}

	// --- Repositories ---
	userRepo := mongo.NewMongoUserRepository(appDB)
	exerciseRepo := mongo.NewMongoExerciseRepository(appDB)
	unitRepo := mongo.NewMongoTrainingUnitRepository(appDB)
	relationshipRepo := mongo.NewMongoRelationshipRepository(appDB)
	sessionRepo := mongo.NewMongoSessionRepository(appDB)

	// --- Services ---
	resolver := catalog.NewRepositoryResolver(exerciseRepo, relationshipRepo)
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	exerciseService := service.NewExerciseService(exerciseRepo)
	unitService := service.NewUnitService(unitRepo)
	relationshipService := service.NewRelationshipService(relationshipRepo, userRepo)
	assignmentService := service.NewAssignmentService(
		relationshipRepo,
		unitRepo,
		sessionRepo,
		resolver,
		archive,
		logger,
		cfg.Assignment.MaxBatchSize,
		cfg.Assignment.WorkerPoolSize,
	)

	// --- HTTP ---
	router := gin.Default()
	api.SetupRoutes(router, cfg.JWT.Secret, authService, exerciseService, unitService, relationshipService, assignmentService)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Infow("Server starting", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("ListenAndServe error", "error", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Fatalw("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exiting.")
}
