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

const relationshipCollectionName = "relationships"

// mongoRelationshipRepository implements repository.RelationshipRepository
type mongoRelationshipRepository struct {
	collection *mongo.Collection
}

// NewMongoRelationshipRepository creates a new Relationship repository backed by MongoDB.
func NewMongoRelationshipRepository(db *mongo.Database) repository.RelationshipRepository {
	return &mongoRelationshipRepository{
		collection: db.Collection(relationshipCollectionName),
	}
}

// Create inserts a new relationship. The unique (coachId, athleteId) index
// turns a second invitation for the same pair into ErrDuplicate.
func (r *mongoRelationshipRepository) Create(ctx context.Context, rel *domain.Relationship) (primitive.ObjectID, error) {
	if rel.CoachID == primitive.NilObjectID || rel.AthleteID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("relationship requires coachId and athleteId")
	}
	if rel.CoachID == rel.AthleteID {
		return primitive.NilObjectID, errors.New("coach and athlete cannot be the same user")
	}

	rel.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	rel.CreatedAt = now
	rel.UpdatedAt = now
	if rel.Status == "" {
		rel.Status = domain.RelationshipPending
	}

	result, err := r.collection.InsertOne(ctx, rel)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted relationship ID")
	}

	return insertedID, nil
}

// GetByID retrieves a relationship by its ID.
func (r *mongoRelationshipRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Relationship, error) {
	var rel domain.Relationship
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&rel)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &rel, nil
}

// GetByPair retrieves the single relationship for a (coach, athlete) pair.
// ErrNotFound means the pair never had a relationship, which callers must
// distinguish from a pending or revoked one.
func (r *mongoRelationshipRepository) GetByPair(ctx context.Context, coachID, athleteID primitive.ObjectID) (*domain.Relationship, error) {
	var rel domain.Relationship
	filter := bson.M{"coachId": coachID, "athleteId": athleteID}

	err := r.collection.FindOne(ctx, filter).Decode(&rel)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &rel, nil
}

// GetForUser retrieves every relationship the user participates in, as either
// coach or athlete, newest first.
func (r *mongoRelationshipRepository) GetForUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Relationship, error) {
	var rels []domain.Relationship
	filter := bson.M{"$or": []bson.M{{"coachId": userID}, {"athleteId": userID}}}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &rels); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}

	return rels, nil
}

// Update persists a status transition with its consent timestamps.
func (r *mongoRelationshipRepository) Update(ctx context.Context, rel *domain.Relationship) error {
	if rel.ID == primitive.NilObjectID {
		return errors.New("relationship ID is required for update")
	}

	filter := bson.M{"_id": rel.ID}
	updateFields := bson.M{
		"status":    rel.Status,
		"updatedAt": time.Now().UTC(),
	}
	if rel.ConsentGrantedAt != nil {
		updateFields["consentGrantedAt"] = *rel.ConsentGrantedAt
	}
	if rel.ConsentRevokedAt != nil {
		updateFields["consentRevokedAt"] = *rel.ConsentRevokedAt
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": updateFields})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureRelationshipIndexes creates necessary indexes for the relationships collection.
func EnsureRelationshipIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// At most one relationship row per coach/athlete pair
			Keys:    bson.D{{Key: "coachId", Value: 1}, {Key: "athleteId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "athleteId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// Non-fatal; see EnsureUserIndexes.
	}
}
