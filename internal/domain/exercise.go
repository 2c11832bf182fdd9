// internal/domain/exercise.go
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// ObjectivePrevious shows the trainee last time's value and requires no input.
	ObjectivePrevious = "previous"
	// ObjectiveIntensity values are stored as "N/10".
	ObjectiveIntensity = "intensity"
)

var ErrInvalidIntensity = errors.New("intensity must be a number between 0 and 10")

// Alternatives maps a library id to the alternative exercise names taken from it.
// Legacy documents stored this field as an array; those decode to an empty map.
type Alternatives map[string][]string

// Count returns the number of non-empty alternative names.
func (a Alternatives) Count() int {
	n := 0
	for _, names := range a {
		for _, name := range names {
			if strings.TrimSpace(name) != "" {
				n++
			}
		}
	}
	return n
}

// UnmarshalBSONValue accepts a document of arrays (or single strings) and
// coerces any other shape to an empty map.
func (a *Alternatives) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	out := Alternatives{}
	if t == bsontype.EmbeddedDocument {
		elems, err := bson.Raw(data).Elements()
		if err == nil {
			for _, el := range elems {
				out.addRaw(el.Key(), el.Value())
			}
		}
	}
	*a = out
	return nil
}

func (a Alternatives) addRaw(libraryID string, v bson.RawValue) {
	switch v.Type {
	case bsontype.String:
		a[libraryID] = append(a[libraryID], v.StringValue())
	case bsontype.Array:
		values, err := v.Array().Values()
		if err != nil {
			return
		}
		for _, item := range values {
			if s, ok := item.StringValueOK(); ok {
				a[libraryID] = append(a[libraryID], s)
			}
		}
	}
}

// UnmarshalJSON mirrors the BSON coercion for API payloads.
func (a *Alternatives) UnmarshalJSON(data []byte) error {
	out := Alternatives{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		for libraryID, msg := range raw {
			var names []string
			if err := json.Unmarshal(msg, &names); err == nil {
				out[libraryID] = append(out[libraryID], names...)
				continue
			}
			var name string
			if err := json.Unmarshal(msg, &name); err == nil {
				out[libraryID] = append(out[libraryID], name)
			}
		}
	}
	*a = out
	return nil
}

// Exercise is an ordered child of a Session.
type Exercise struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProgramID             primitive.ObjectID `bson:"programId" json:"programId"`
	ModuleID              primitive.ObjectID `bson:"moduleId" json:"moduleId"`
	SessionID             primitive.ObjectID `bson:"sessionId" json:"sessionId"`
	Order                 int                `bson:"order" json:"order"`
	Primary               map[string]string  `bson:"primary,omitempty" json:"primary,omitempty"` // libraryId -> exercise name
	Alternatives          Alternatives       `bson:"alternatives,omitempty" json:"alternatives,omitempty"`
	Measures              []string           `bson:"measures,omitempty" json:"measures,omitempty"`
	Objectives            []string           `bson:"objectives,omitempty" json:"objectives,omitempty"`
	CustomMeasureLabels   map[string]string  `bson:"customMeasureLabels,omitempty" json:"customMeasureLabels,omitempty"`
	CustomObjectiveLabels map[string]string  `bson:"customObjectiveLabels,omitempty" json:"customObjectiveLabels,omitempty"`
	CreatedAt             time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PrimaryRef returns the single meaningful primary reference.
// When several entries exist the lowest library id wins.
func (e *Exercise) PrimaryRef() (libraryID, name string, ok bool) {
	if e == nil || len(e.Primary) == 0 {
		return "", "", false
	}
	keys := make([]string, 0, len(e.Primary))
	for k := range e.Primary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(e.Primary[k]) != "" {
			return k, e.Primary[k], true
		}
	}
	return "", "", false
}

// InputObjectives returns the objectives a set must carry a value for,
// i.e. everything except the "previous" sentinel.
func (e *Exercise) InputObjectives() []string {
	out := make([]string, 0, len(e.Objectives))
	for _, o := range e.Objectives {
		if o != ObjectivePrevious && strings.TrimSpace(o) != "" {
			out = append(out, o)
		}
	}
	return out
}

// References reports whether the exercise points at the given library item,
// either as primary or as an alternative.
func (e *Exercise) References(libraryID, name string) bool {
	if e.Primary[libraryID] == name {
		return true
	}
	for _, alt := range e.Alternatives[libraryID] {
		if alt == name {
			return true
		}
	}
	return false
}

// Set is an ordered child of an Exercise. Objective values are stored as
// top-level document fields (reps, intensity, ...).
type Set struct {
	ID         primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	ExerciseID primitive.ObjectID     `bson:"exerciseId" json:"exerciseId"`
	Order      int                    `bson:"order" json:"order"`
	Values     map[string]interface{} `bson:",inline" json:"values"`
	CreatedAt  time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time              `bson:"updatedAt" json:"updatedAt"`
}

// HasValue reports whether the set carries a non-empty value for field.
func (s *Set) HasValue(field string) bool {
	if s == nil || s.Values == nil {
		return false
	}
	switch v := s.Values[field].(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case int, int32, int64, float32, float64, bool:
		return true
	default:
		return strings.TrimSpace(fmt.Sprint(v)) != ""
	}
}

// FormatIntensity normalizes 7, "7" or "7/10" to "7/10".
// Empty input returns "" so an intensity can be cleared.
func FormatIntensity(raw interface{}) (string, error) {
	var n float64
	switch v := raw.(type) {
	case nil:
		return "", nil
	case int:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case float64:
		n = v
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return "", nil
		}
		s = strings.TrimSuffix(strings.ReplaceAll(s, " ", ""), "/10")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", ErrInvalidIntensity
		}
		n = f
	default:
		return "", ErrInvalidIntensity
	}
	if math.IsNaN(n) || n < 0 || n > 10 {
		return "", ErrInvalidIntensity
	}
	return strconv.FormatFloat(n, 'f', -1, 64) + "/10", nil
}
