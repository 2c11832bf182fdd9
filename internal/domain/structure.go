package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LibraryRef is a weak pointer from program content to a shared library template.
// It never implies ownership.
type LibraryRef struct {
	LibraryID string `bson:"libraryId" json:"libraryId"`
	ItemID    string `bson:"itemId" json:"itemId"`
	Name      string `bson:"name,omitempty" json:"name,omitempty"`
}

// Module is an ordered child of a Program.
type Module struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProgramID        primitive.ObjectID `bson:"programId" json:"programId"`
	Title            string             `bson:"title" json:"title"`
	Order            int                `bson:"order" json:"order"`
	IsComplete       *bool              `bson:"isComplete,omitempty" json:"isComplete,omitempty"` // nil until computed
	LibraryModuleRef *LibraryRef        `bson:"libraryModuleRef,omitempty" json:"libraryModuleRef,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Session is an ordered child of a Module.
type Session struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProgramID         primitive.ObjectID `bson:"programId" json:"programId"`
	ModuleID          primitive.ObjectID `bson:"moduleId" json:"moduleId"`
	Title             string             `bson:"title" json:"title"`
	Order             int                `bson:"order" json:"order"`
	IsComplete        *bool              `bson:"isComplete,omitempty" json:"isComplete,omitempty"`
	LibrarySessionRef *LibraryRef        `bson:"librarySessionRef,omitempty" json:"librarySessionRef,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// OrderUpdate assigns a new position to one sibling.
type OrderUpdate struct {
	ID    primitive.ObjectID
	Order int
}
