// internal/domain/library.go
package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LibraryExercise is a reusable exercise definition in a creator's library.
// Program exercises reference it by (libraryId, name).
type LibraryExercise struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LibraryID        string             `bson:"libraryId" json:"libraryId"`
	CreatorID        primitive.ObjectID `bson:"creatorId" json:"creatorId"`
	Name             string             `bson:"name" json:"name"`
	Description      string             `bson:"description,omitempty" json:"description,omitempty"`
	VideoURL         string             `bson:"videoUrl,omitempty" json:"videoUrl,omitempty"`
	VideoObjectKey   string             `bson:"videoObjectKey,omitempty" json:"-"`
	MuscleActivation map[string]float64 `bson:"muscle_activation,omitempty" json:"muscleActivation,omitempty"` // muscle -> percent
	Implements       []string           `bson:"implements,omitempty" json:"implements,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsComplete is true when the item has a video, a muscle-activation map
// and at least one implement.
func (l *LibraryExercise) IsComplete() bool {
	if l == nil {
		return false
	}
	hasVideo := strings.TrimSpace(l.VideoURL) != "" || l.VideoObjectKey != ""
	hasImplements := false
	for _, impl := range l.Implements {
		if strings.TrimSpace(impl) != "" {
			hasImplements = true
			break
		}
	}
	return hasVideo && len(l.MuscleActivation) > 0 && hasImplements
}
