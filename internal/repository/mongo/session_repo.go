// internal/repository/mongo/session_repo.go
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

const sessionCollectionName = "sessions"

// mongoSessionRepository implements repository.SessionRepository
type mongoSessionRepository struct {
	orderedCollection
	db *mongo.Database
}

// NewMongoSessionRepository creates a new Session repository.
func NewMongoSessionRepository(db *mongo.Database) repository.SessionRepository {
	return &mongoSessionRepository{
		orderedCollection: orderedCollection{collection: db.Collection(sessionCollectionName), parentField: "moduleId"},
		db:                db,
	}
}

// Create appends a session at the end of its module.
func (r *mongoSessionRepository) Create(ctx context.Context, session *domain.Session) (primitive.ObjectID, error) {
	if session.ModuleID == primitive.NilObjectID || session.ProgramID == primitive.NilObjectID || session.Title == "" {
		return primitive.NilObjectID, errors.New("session requires programId, moduleId and title")
	}
	order, err := r.nextOrder(ctx, session.ModuleID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	session.ID = primitive.NewObjectID()
	session.Order = order
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	return insertDocument(ctx, r.collection, session)
}

func (r *mongoSessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Session, error) {
	var session domain.Session
	if err := r.findByID(ctx, id, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetByModuleID lists a module's sessions in order.
func (r *mongoSessionRepository) GetByModuleID(ctx context.Context, moduleID primitive.ObjectID) ([]domain.Session, error) {
	sessions := []domain.Session{}
	if err := r.listByParent(ctx, moduleID, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *mongoSessionRepository) Update(ctx context.Context, session *domain.Session) error {
	if session.Title == "" {
		return errors.New("session title cannot be empty")
	}
	return r.updateFields(ctx, session.ID, bson.M{
		"title":             session.Title,
		"librarySessionRef": session.LibrarySessionRef,
		"updatedAt":         time.Now().UTC(),
	})
}

// Delete removes the session together with its exercises and sets.
func (r *mongoSessionRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := r.orderedCollection.Delete(ctx, id); err != nil {
		return err
	}
	return deleteDescendants(ctx, r.db, bson.M{"sessionId": id}, false)
}

// EnsureSessionIndexes creates necessary indexes. Call during startup.
func EnsureSessionIndexes(ctx context.Context, collection *mongo.Collection) error {
	return ensureOrderedIndexes(ctx, collection, "moduleId", mongo.IndexModel{
		Keys:    bson.D{{Key: "programId", Value: 1}},
		Options: options.Index(),
	})
}
