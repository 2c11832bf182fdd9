package mongo

import (
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const setCollectionName = "sets"

// reservedSetFields cannot be used as objective names.
var reservedSetFields = map[string]bool{
	"_id": true, "exerciseId": true, "order": true, "createdAt": true, "updatedAt": true,
}

type mongoSetRepository struct {
	orderedCollection
}

func NewMongoSetRepository(db *mongo.Database) repository.SetRepository {
	return &mongoSetRepository{
		orderedCollection: orderedCollection{collection: db.Collection(setCollectionName), parentField: "exerciseId"},
	}
}

func (r *mongoSetRepository) Create(ctx context.Context, set *domain.Set) (primitive.ObjectID, error) {
	if set.ExerciseID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("set requires exerciseId")
	}
	if err := checkSetValues(set.Values); err != nil {
		return primitive.NilObjectID, err
	}
	order, err := r.nextOrder(ctx, set.ExerciseID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	set.ID = primitive.NewObjectID()
	set.Order = order
	now := time.Now().UTC()
	set.CreatedAt = now
	set.UpdatedAt = now
	return insertDocument(ctx, r.collection, set)
}

func (r *mongoSetRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Set, error) {
	var set domain.Set
	if err := r.findByID(ctx, id, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (r *mongoSetRepository) GetByExerciseID(ctx context.Context, exerciseID primitive.ObjectID) ([]domain.Set, error) {
	sets := []domain.Set{}
	if err := r.listByParent(ctx, exerciseID, &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

// Update writes every objective value of the set. Null clears a value.
func (r *mongoSetRepository) Update(ctx context.Context, set *domain.Set) error {
	if err := checkSetValues(set.Values); err != nil {
		return err
	}
	fields := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range set.Values {
		fields[k] = v
	}
	return r.updateFields(ctx, set.ID, fields)
}

func checkSetValues(values map[string]interface{}) error {
	for k := range values {
		if k == "" || reservedSetFields[k] || k[0] == '$' || strings.Contains(k, ".") {
			return fmt.Errorf("%w: %q", repository.ErrInvalidField, k)
		}
	}
	return nil
}

// EnsureSetIndexes creates necessary indexes. Call during startup.
func EnsureSetIndexes(ctx context.Context, collection *mongo.Collection) error {
	return ensureOrderedIndexes(ctx, collection, "exerciseId")
}
