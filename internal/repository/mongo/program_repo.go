// internal/repository/mongo/program_repo.go
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

const programCollectionName = "programs"

// mongoProgramRepository implements repository.ProgramRepository
type mongoProgramRepository struct {
	collection *mongo.Collection
}

// NewMongoProgramRepository creates a new Program repository.
func NewMongoProgramRepository(db *mongo.Database) repository.ProgramRepository {
	return &mongoProgramRepository{
		collection: db.Collection(programCollectionName),
	}
}

// Create inserts a new program.
func (r *mongoProgramRepository) Create(ctx context.Context, program *domain.Program) (primitive.ObjectID, error) {
	if program.CreatorID == primitive.NilObjectID || program.Title == "" {
		return primitive.NilObjectID, errors.New("program requires creator_id and title")
	}
	if program.Status == "" {
		program.Status = domain.ProgramDraft
	}
	program.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	program.CreatedAt = now
	program.UpdatedAt = now
	return insertDocument(ctx, r.collection, program)
}

// GetByID retrieves a single program by its ID.
func (r *mongoProgramRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Program, error) {
	var program domain.Program
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&program)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &program, nil
}

// GetByCreatorID retrieves all programs of a creator, newest first.
func (r *mongoProgramRepository) GetByCreatorID(ctx context.Context, creatorID primitive.ObjectID) ([]domain.Program, error) {
	programs := []domain.Program{}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"creator_id": creatorID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &programs); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return programs, nil
}

// Patch applies a field-level update; nil fields are left untouched.
func (r *mongoProgramRepository) Patch(ctx context.Context, id primitive.ObjectID, patch domain.ProgramPatch) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.Duration != nil {
		set["duration"] = *patch.Duration
	}
	if patch.DeliveryType != nil {
		set["deliveryType"] = *patch.DeliveryType
	}
	if patch.FreeTrial != nil {
		set["free_trial"] = *patch.FreeTrial
	}
	if patch.ProgramSettings != nil {
		set["programSettings"] = *patch.ProgramSettings
	}
	if patch.AvailableLibraries != nil {
		set["availableLibraries"] = patch.AvailableLibraries
	}
	// Tutorials are merged per screen key.
	for screenKey, urls := range patch.Tutorials {
		set["tutorials."+screenKey] = urls
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureProgramIndexes creates necessary indexes. Call during startup.
func EnsureProgramIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "creator_id", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
