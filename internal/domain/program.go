// internal/domain/program.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProgramStatus is the publication state of a program.
type ProgramStatus string

const (
	ProgramDraft     ProgramStatus = "draft"
	ProgramPublished ProgramStatus = "published"
)

func (s ProgramStatus) Valid() bool {
	return s == ProgramDraft || s == ProgramPublished
}

// FreeTrial describes the optional trial period of a paid program.
type FreeTrial struct {
	Active       bool `bson:"active" json:"active"`
	DurationDays int  `bson:"duration_days" json:"durationDays"`
}

// ProgramSettings holds trainee-facing behaviour toggles.
type ProgramSettings struct {
	StreakEnabled          bool `bson:"streakEnabled" json:"streakEnabled"`
	MinimumSessionsPerWeek int  `bson:"minimumSessionsPerWeek" json:"minimumSessionsPerWeek"`
}

// Program is the top-level content container authored by a creator.
type Program struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CreatorID          primitive.ObjectID  `bson:"creator_id" json:"creatorId"`
	Title              string              `bson:"title" json:"title"`
	Status             ProgramStatus       `bson:"status" json:"status"`
	Price              float64             `bson:"price" json:"price"`
	Duration           string              `bson:"duration,omitempty" json:"duration,omitempty"` // e.g. "8 semanas"
	DeliveryType       string              `bson:"deliveryType,omitempty" json:"deliveryType,omitempty"`
	FreeTrial          FreeTrial           `bson:"free_trial" json:"freeTrial"`
	ProgramSettings    ProgramSettings     `bson:"programSettings" json:"programSettings"`
	AvailableLibraries []string            `bson:"availableLibraries,omitempty" json:"availableLibraries,omitempty"`
	Tutorials          map[string][]string `bson:"tutorials,omitempty" json:"tutorials,omitempty"` // screenKey -> video URLs
	CreatedAt          time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// ProgramPatch is a field-level update. Nil fields are left untouched.
type ProgramPatch struct {
	Title              *string
	Status             *ProgramStatus
	Price              *float64
	Duration           *string
	DeliveryType       *string
	FreeTrial          *FreeTrial
	ProgramSettings    *ProgramSettings
	AvailableLibraries []string
	Tutorials          map[string][]string
}

// Empty reports whether the patch changes nothing.
func (p ProgramPatch) Empty() bool {
	return p.Title == nil && p.Status == nil && p.Price == nil && p.Duration == nil &&
		p.DeliveryType == nil && p.FreeTrial == nil && p.ProgramSettings == nil &&
		p.AvailableLibraries == nil && p.Tutorials == nil
}
