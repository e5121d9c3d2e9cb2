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

const trainingUnitCollectionName = "training_units"

// mongoTrainingUnitRepository implements repository.TrainingUnitRepository
type mongoTrainingUnitRepository struct {
	collection *mongo.Collection
}

// NewMongoTrainingUnitRepository creates a new TrainingUnit repository backed by MongoDB.
func NewMongoTrainingUnitRepository(db *mongo.Database) repository.TrainingUnitRepository {
	return &mongoTrainingUnitRepository{
		collection: db.Collection(trainingUnitCollectionName),
	}
}

// Create inserts a new training unit into the database.
func (r *mongoTrainingUnitRepository) Create(ctx context.Context, unit *domain.TrainingUnit) (primitive.ObjectID, error) {
	if unit.OwnerID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("training unit requires an owner ID")
	}

	unit.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	unit.CreatedAt = now
	unit.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, unit)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted training unit ID")
	}

	return insertedID, nil
}

// GetByID retrieves a training unit by its ID. Archived units are returned
// too; callers decide what archived means for them.
func (r *mongoTrainingUnitRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingUnit, error) {
	var unit domain.TrainingUnit
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&unit)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &unit, nil
}

// GetByOwnerID retrieves all training units owned by a coach, newest first.
func (r *mongoTrainingUnitRepository) GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID) ([]domain.TrainingUnit, error) {
	var units []domain.TrainingUnit
	filter := bson.M{"ownerId": ownerID}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &units); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}

	return units, nil
}

// Update replaces the mutable fields of a training unit. Archived units are
// excluded by the filter so an archive concurrent with an edit wins.
func (r *mongoTrainingUnitRepository) Update(ctx context.Context, unit *domain.TrainingUnit) error {
	if unit.ID == primitive.NilObjectID {
		return errors.New("training unit ID is required for update")
	}

	filter := bson.M{"_id": unit.ID, "archivedAt": bson.M{"$exists": false}}
	update := bson.M{
		"$set": bson.M{
			"name":        unit.Name,
			"steps":       unit.Steps,
			"repeatCount": unit.RepeatCount,
			"updatedAt":   time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Archive soft-deletes a training unit by stamping archivedAt. Archiving an
// already-archived unit is a no-op that keeps the original timestamp.
func (r *mongoTrainingUnitRepository) Archive(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id}
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{"updatedAt": now},
		"$min": bson.M{"archivedAt": now},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureTrainingUnitIndexes creates necessary indexes for the training_units collection.
func EnsureTrainingUnitIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Owner's unit list, newest first
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "archivedAt", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// Non-fatal; see EnsureUserIndexes.
	}
}
