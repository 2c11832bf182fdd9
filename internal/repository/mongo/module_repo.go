// internal/repository/mongo/module_repo.go
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

const moduleCollectionName = "modules"

// mongoModuleRepository implements repository.ModuleRepository
type mongoModuleRepository struct {
	orderedCollection
	db *mongo.Database
}

// NewMongoModuleRepository creates a new Module repository.
func NewMongoModuleRepository(db *mongo.Database) repository.ModuleRepository {
	return &mongoModuleRepository{
		orderedCollection: orderedCollection{collection: db.Collection(moduleCollectionName), parentField: "programId"},
		db:                db,
	}
}

// Create appends a module at the end of its program.
func (r *mongoModuleRepository) Create(ctx context.Context, module *domain.Module) (primitive.ObjectID, error) {
	if module.ProgramID == primitive.NilObjectID || module.Title == "" {
		return primitive.NilObjectID, errors.New("module requires programId and title")
	}
	order, err := r.nextOrder(ctx, module.ProgramID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	module.ID = primitive.NewObjectID()
	module.Order = order
	now := time.Now().UTC()
	module.CreatedAt = now
	module.UpdatedAt = now
	return insertDocument(ctx, r.collection, module)
}

func (r *mongoModuleRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Module, error) {
	var module domain.Module
	if err := r.findByID(ctx, id, &module); err != nil {
		return nil, err
	}
	return &module, nil
}

// GetByProgramID lists a program's modules in order.
func (r *mongoModuleRepository) GetByProgramID(ctx context.Context, programID primitive.ObjectID) ([]domain.Module, error) {
	modules := []domain.Module{}
	if err := r.listByParent(ctx, programID, &modules); err != nil {
		return nil, err
	}
	return modules, nil
}

// Update changes the editable fields. Program and order are not touched here.
func (r *mongoModuleRepository) Update(ctx context.Context, module *domain.Module) error {
	if module.Title == "" {
		return errors.New("module title cannot be empty")
	}
	return r.updateFields(ctx, module.ID, bson.M{
		"title":            module.Title,
		"libraryModuleRef": module.LibraryModuleRef,
		"updatedAt":        time.Now().UTC(),
	})
}

// Delete removes the module together with its sessions, exercises and sets.
func (r *mongoModuleRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := r.orderedCollection.Delete(ctx, id); err != nil {
		return err
	}
	return deleteDescendants(ctx, r.db, bson.M{"moduleId": id}, true)
}

// deleteDescendants removes the exercises matching filter along with their
// sets, and the matching sessions when withSessions is set.
func deleteDescendants(ctx context.Context, db *mongo.Database, filter bson.M, withSessions bool) error {
	exercises := db.Collection(exerciseCollectionName)
	cursor, err := exercises.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return err
	}
	var ids []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &ids); err != nil {
		return err
	}
	if len(ids) > 0 {
		exerciseIDs := make([]primitive.ObjectID, len(ids))
		for i, doc := range ids {
			exerciseIDs[i] = doc.ID
		}
		if _, err := db.Collection(setCollectionName).DeleteMany(ctx, bson.M{"exerciseId": bson.M{"$in": exerciseIDs}}); err != nil {
			return err
		}
		if _, err := exercises.DeleteMany(ctx, filter); err != nil {
			return err
		}
	}
	if withSessions {
		if _, err := db.Collection(sessionCollectionName).DeleteMany(ctx, filter); err != nil {
			return err
		}
	}
	return nil
}

// EnsureModuleIndexes creates necessary indexes. Call during startup.
func EnsureModuleIndexes(ctx context.Context, collection *mongo.Collection) error {
	return ensureOrderedIndexes(ctx, collection, "programId")
}
