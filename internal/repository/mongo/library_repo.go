package mongo

import (
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const libraryCollectionName = "library_exercises"

// mongoLibraryRepository implements repository.LibraryRepository
type mongoLibraryRepository struct {
	collection *mongo.Collection
}

// NewMongoLibraryRepository creates a new library repository backed by MongoDB.
func NewMongoLibraryRepository(db *mongo.Database) repository.LibraryRepository {
	return &mongoLibraryRepository{
		collection: db.Collection(libraryCollectionName),
	}
}

// Create inserts a new library exercise. Names are unique per library.
func (r *mongoLibraryRepository) Create(ctx context.Context, item *domain.LibraryExercise) (primitive.ObjectID, error) {
	if item.Name == "" || item.LibraryID == "" || item.CreatorID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("library exercise name, library ID and creator ID are required")
	}
	item.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	return insertDocument(ctx, r.collection, item)
}

func (r *mongoLibraryRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.LibraryExercise, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByName resolves a (libraryId, name) reference.
func (r *mongoLibraryRepository) GetByName(ctx context.Context, libraryID, name string) (*domain.LibraryExercise, error) {
	return r.findOne(ctx, bson.M{"libraryId": libraryID, "name": name})
}

func (r *mongoLibraryRepository) findOne(ctx context.Context, filter bson.M) (*domain.LibraryExercise, error) {
	var item domain.LibraryExercise
	err := r.collection.FindOne(ctx, filter).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// GetByLibraryID lists the exercises of one library sorted by name.
func (r *mongoLibraryRepository) GetByLibraryID(ctx context.Context, libraryID string) ([]domain.LibraryExercise, error) {
	items := []domain.LibraryExercise{}
	findOptions := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"libraryId": libraryID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Update modifies an existing library exercise. Name and owner are immutable
// because program exercises reference items by name.
func (r *mongoLibraryRepository) Update(ctx context.Context, item *domain.LibraryExercise) error {
	if item.ID == primitive.NilObjectID {
		return errors.New("library exercise ID is required for update")
	}
	update := bson.M{
		"$set": bson.M{
			"description":       item.Description,
			"videoUrl":          item.VideoURL,
			"videoObjectKey":    item.VideoObjectKey,
			"muscle_activation": item.MuscleActivation,
			"implements":        item.Implements,
			"updatedAt":         time.Now().UTC(),
		},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": item.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a library exercise, ensuring it belongs to the specified creator.
func (r *mongoLibraryRepository) Delete(ctx context.Context, id primitive.ObjectID, creatorID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "creatorId": creatorID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		// Missing, or owned by someone else.
		return repository.ErrNotFound
	}
	return nil
}

// EnsureLibraryIndexes creates necessary indexes for the library collection.
func EnsureLibraryIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "libraryId", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "creatorId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
