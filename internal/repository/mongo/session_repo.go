package mongo

import (
	"coachkit/training-engine/internal/domain"
	"coachkit/training-engine/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionCollectionName = "generated_sessions"

// mongoSessionRepository implements repository.GeneratedSessionRepository.
// Sessions are written once as a single document, so the full instance list
// is atomic at the recipient granularity, and never updated afterwards.
type mongoSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionRepository creates a new GeneratedSession repository backed by MongoDB.
func NewMongoSessionRepository(db *mongo.Database) repository.GeneratedSessionRepository {
	return &mongoSessionRepository{
		collection: db.Collection(sessionCollectionName),
	}
}

// Create inserts a new generated session with all its materialized instances.
func (r *mongoSessionRepository) Create(ctx context.Context, session *domain.GeneratedSession) (primitive.ObjectID, error) {
	if session.RecipientID == primitive.NilObjectID || session.AssignedByID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("generated session requires recipientId and assignedById")
	}
	if len(session.Instances) == 0 {
		return primitive.NilObjectID, errors.New("generated session requires at least one instance")
	}

	session.ID = primitive.NewObjectID()
	if session.AssignedAt.IsZero() {
		session.AssignedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted session ID")
	}

	return insertedID, nil
}

// GetByID retrieves a generated session by its ID.
func (r *mongoSessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.GeneratedSession, error) {
	var session domain.GeneratedSession
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// GetByRecipientID retrieves all sessions belonging to a recipient, ordered by
// target date then assignment time. This is the read contract the planner
// consumes.
func (r *mongoSessionRepository) GetByRecipientID(ctx context.Context, recipientID primitive.ObjectID) ([]domain.GeneratedSession, error) {
	var sessions []domain.GeneratedSession
	filter := bson.M{"recipientId": recipientID}
	findOptions := options.Find().SetSort(bson.D{{Key: "targetDate", Value: 1}, {Key: "assignedAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// EnsureSessionIndexes creates necessary indexes for the generated_sessions collection.
func EnsureSessionIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Planner reads: a recipient's calendar
			Keys:    bson.D{{Key: "recipientId", Value: 1}, {Key: "targetDate", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "assignedById", Value: 1}},
			Options: options.Index(),
		},
		// No unique (assignedById, recipientId, targetDate) index: repeating
		// an identical assignment creates an additional session.
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// Non-fatal; see EnsureUserIndexes.
	}
}
