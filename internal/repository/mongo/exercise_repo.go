package mongo

import (
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/repository"
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const exerciseCollectionName = "exercises"

// mongoExerciseRepository implements repository.ExerciseRepository
type mongoExerciseRepository struct {
	orderedCollection
}

// NewMongoExerciseRepository creates a new Exercise repository backed by MongoDB.
func NewMongoExerciseRepository(db *mongo.Database) repository.ExerciseRepository {
	return &mongoExerciseRepository{
		orderedCollection: orderedCollection{collection: db.Collection(exerciseCollectionName), parentField: "sessionId"},
	}
}

// Create appends an exercise at the end of its session.
func (r *mongoExerciseRepository) Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error) {
	if exercise.SessionID == primitive.NilObjectID || exercise.ModuleID == primitive.NilObjectID || exercise.ProgramID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("exercise requires programId, moduleId and sessionId")
	}
	order, err := r.nextOrder(ctx, exercise.SessionID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	exercise.ID = primitive.NewObjectID()
	exercise.Order = order
	now := time.Now().UTC()
	exercise.CreatedAt = now
	exercise.UpdatedAt = now
	return insertDocument(ctx, r.collection, exercise)
}

// GetByID retrieves an exercise by its ID.
func (r *mongoExerciseRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	var exercise domain.Exercise
	if err := r.findByID(ctx, id, &exercise); err != nil {
		return nil, err
	}
	return &exercise, nil
}

// GetBySessionID lists a session's exercises in order.
func (r *mongoExerciseRepository) GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]domain.Exercise, error) {
	exercises := []domain.Exercise{}
	if err := r.listByParent(ctx, sessionID, &exercises); err != nil {
		return nil, err
	}
	return exercises, nil
}

// Update modifies the content fields of an exercise.
// Its position in the tree is not changed here.
func (r *mongoExerciseRepository) Update(ctx context.Context, exercise *domain.Exercise) error {
	return r.updateFields(ctx, exercise.ID, bson.M{
		"primary":               exercise.Primary,
		"alternatives":          exercise.Alternatives,
		"measures":              exercise.Measures,
		"objectives":            exercise.Objectives,
		"customMeasureLabels":   exercise.CustomMeasureLabels,
		"customObjectiveLabels": exercise.CustomObjectiveLabels,
		"updatedAt":             time.Now().UTC(),
	})
}

// Delete removes the exercise and its sets.
func (r *mongoExerciseRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := r.orderedCollection.Delete(ctx, id); err != nil {
		return err
	}
	_, err := r.collection.Database().Collection(setCollectionName).DeleteMany(ctx, bson.M{"exerciseId": id})
	return err
}

// CountReferencing counts exercises using the library item as primary or alternative.
func (r *mongoExerciseRepository) CountReferencing(ctx context.Context, libraryID, name string) (int64, error) {
	filter, err := referencingFilter(libraryID, name)
	if err != nil {
		return 0, err
	}
	return r.collection.CountDocuments(ctx, filter)
}

// FindReferencing lists exercises using the library item as primary or alternative.
func (r *mongoExerciseRepository) FindReferencing(ctx context.Context, libraryID, name string) ([]domain.Exercise, error) {
	filter, err := referencingFilter(libraryID, name)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetProjection(bson.M{"programId": 1, "moduleId": 1, "sessionId": 1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	exercises := []domain.Exercise{}
	if err := cursor.All(ctx, &exercises); err != nil {
		return nil, err
	}
	return exercises, nil
}

func referencingFilter(libraryID, name string) (bson.M, error) {
	if libraryID == "" || strings.ContainsAny(libraryID, ".$") {
		return nil, errors.New("invalid library ID")
	}
	return bson.M{"$or": bson.A{
		bson.M{"primary." + libraryID: name},
		bson.M{"alternatives." + libraryID: name},
	}}, nil
}

// EnsureExerciseIndexes creates necessary indexes for the exercises collection.
func EnsureExerciseIndexes(ctx context.Context, collection *mongo.Collection) error {
	return ensureOrderedIndexes(ctx, collection, "sessionId",
		mongo.IndexModel{Keys: bson.D{{Key: "moduleId", Value: 1}}, Options: options.Index()},
		mongo.IndexModel{Keys: bson.D{{Key: "programId", Value: 1}}, Options: options.Index()},
	)
}
