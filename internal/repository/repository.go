package repository

import (
	"alcyxob/program-studio/internal/domain"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrInvalidField = RepositoryError("invalid field name")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// ProgramRepository stores programs.
type ProgramRepository interface {
	Create(ctx context.Context, program *domain.Program) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Program, error)
	GetByCreatorID(ctx context.Context, creatorID primitive.ObjectID) ([]domain.Program, error)
	Patch(ctx context.Context, id primitive.ObjectID, patch domain.ProgramPatch) error
}

// OrderedRepository is the part shared by every ordered child collection.
type OrderedRepository interface {
	// SetOrders rewrites the order field of the given documents in one batch.
	SetOrders(ctx context.Context, updates []domain.OrderUpdate) error
}

// FlaggedRepository stores the denormalized isComplete flag.
// A nil value removes the flag so the next view recomputes it.
type FlaggedRepository interface {
	SetCompleteness(ctx context.Context, id primitive.ObjectID, isComplete *bool) error
}

// ModuleRepository stores program modules.
type ModuleRepository interface {
	OrderedRepository
	FlaggedRepository
	Create(ctx context.Context, module *domain.Module) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Module, error)
	GetByProgramID(ctx context.Context, programID primitive.ObjectID) ([]domain.Module, error)
	Update(ctx context.Context, module *domain.Module) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// SessionRepository stores module sessions.
type SessionRepository interface {
	OrderedRepository
	FlaggedRepository
	Create(ctx context.Context, session *domain.Session) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Session, error)
	GetByModuleID(ctx context.Context, moduleID primitive.ObjectID) ([]domain.Session, error)
	Update(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// ExerciseRepository stores program exercises.
type ExerciseRepository interface {
	OrderedRepository
	Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
	GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]domain.Exercise, error)
	Update(ctx context.Context, exercise *domain.Exercise) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// CountReferencing counts program exercises that use the library item
	// as primary or alternative.
	CountReferencing(ctx context.Context, libraryID, name string) (int64, error)
	// FindReferencing returns the ids and parents of those exercises.
	FindReferencing(ctx context.Context, libraryID, name string) ([]domain.Exercise, error)
}

// SetRepository stores exercise sets.
type SetRepository interface {
	OrderedRepository
	Create(ctx context.Context, set *domain.Set) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Set, error)
	GetByExerciseID(ctx context.Context, exerciseID primitive.ObjectID) ([]domain.Set, error)
	Update(ctx context.Context, set *domain.Set) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// LibraryRepository stores a creator's reusable exercises.
type LibraryRepository interface {
	Create(ctx context.Context, item *domain.LibraryExercise) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.LibraryExercise, error)
	GetByName(ctx context.Context, libraryID, name string) (*domain.LibraryExercise, error)
	GetByLibraryID(ctx context.Context, libraryID string) ([]domain.LibraryExercise, error)
	Update(ctx context.Context, item *domain.LibraryExercise) error
	Delete(ctx context.Context, id primitive.ObjectID, creatorID primitive.ObjectID) error
}
