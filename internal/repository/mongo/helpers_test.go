package mongo

import (
	"alcyxob/program-studio/internal/repository"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCheckSetValues(t *testing.T) {
	assert.NoError(t, checkSetValues(map[string]interface{}{"reps": "10", "intensity": "7/10"}))

	for _, bad := range []string{"", "_id", "exerciseId", "order", "$set", "a.b"} {
		err := checkSetValues(map[string]interface{}{bad: 1})
		assert.ErrorIs(t, err, repository.ErrInvalidField, "field %q", bad)
	}
}

func TestReferencingFilter(t *testing.T) {
	filter, err := referencingFilter("lib1", "Squat")
	require.NoError(t, err)
	assert.Equal(t, bson.M{"$or": bson.A{
		bson.M{"primary.lib1": "Squat"},
		bson.M{"alternatives.lib1": "Squat"},
	}}, filter)

	for _, bad := range []string{"", "a.b", "$where"} {
		_, err := referencingFilter(bad, "Squat")
		assert.Error(t, err, bad)
	}
}

func TestChangeDocumentSplitsUpdatedAndRemoved(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"operationType": "update",
		"updateDescription": bson.M{
			"updatedFields": bson.M{"title": "Week 2", "updatedAt": 1},
			"removedFields": bson.A{"isComplete"},
		},
	})
	require.NoError(t, err)

	var doc changeDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.ElementsMatch(t, []string{"title", "updatedAt"}, doc.updated())
	assert.Equal(t, []string{"isComplete"}, doc.UpdateDescription.RemovedFields)

	assert.Empty(t, (&changeDocument{}).updated())
}
