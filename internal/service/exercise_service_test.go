package service

import (
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/repository"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateExerciseInheritsParents(t *testing.T) {
	h := newHarness()
	defer h.close()
	tr := h.seedTree()
	svc := h.exerciseService()

	ex, err := svc.CreateExercise(context.Background(), tr.creator, tr.session, ExerciseInput{
		Primary:  map[string]string{"lib": "Row"},
		Measures: []string{"reps"},
	})
	require.NoError(t, err)
	assert.Equal(t, tr.program, ex.ProgramID)
	assert.Equal(t, tr.module, ex.ModuleID)
	assert.Equal(t, 1, ex.Order)
	assert.NotNil(t, ex.Alternatives)
}

func TestSetValuesAreNormalized(t *testing.T) {
	h := newHarness()
	defer h.close()
	tr := h.seedTree()
	svc := h.exerciseService()
	ctx := context.Background()

	set, err := svc.CreateSet(ctx, tr.creator, tr.exercise, map[string]interface{}{"reps": "8", "intensity": "7"})
	require.NoError(t, err)
	assert.Equal(t, "7/10", set.Values["intensity"])

	_, err = svc.CreateSet(ctx, tr.creator, tr.exercise, map[string]interface{}{"intensity": "12"})
	assert.ErrorIs(t, err, domain.ErrInvalidIntensity)

	updated, err := svc.UpdateSet(ctx, tr.creator, set.ID, map[string]interface{}{"intensity": 9})
	require.NoError(t, err)
	assert.Equal(t, "9/10", updated.Values["intensity"])
	assert.Equal(t, "8", updated.Values["reps"], "untouched values are kept")

	_, err = svc.UpdateSet(ctx, tr.creator, set.ID, map[string]interface{}{})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestSetEditsMarkAncestorsStale(t *testing.T) {
	h := newHarness()
	defer h.close()
	tr := h.seedTree()
	svc := h.exerciseService()
	ctx := context.Background()

	require.NoError(t, h.sessions.SetCompleteness(ctx, tr.session, boolPtr(true)))
	require.NoError(t, h.modules.SetCompleteness(ctx, tr.module, boolPtr(true)))
	h.state.Flags.Merge(map[string]bool{tr.session.Hex(): false, tr.module.Hex(): false})

	sets, err := svc.ListSets(ctx, tr.creator, tr.exercise)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	require.NoError(t, svc.DeleteSet(ctx, tr.creator, sets[0].ID))

	s, _ := h.sessions.GetByID(ctx, tr.session)
	m, _ := h.modules.GetByID(ctx, tr.module)
	assert.Nil(t, s.IsComplete)
	assert.Nil(t, m.IsComplete)
	assert.Equal(t, []string{tr.session.Hex(), tr.module.Hex()},
		h.state.Flags.Missing([]string{tr.session.Hex(), tr.module.Hex()}))
}

func TestReorderExercisesKeepsFlags(t *testing.T) {
	h := newHarness()
	defer h.close()
	tr := h.seedTree()
	svc := h.exerciseService()
	ctx := context.Background()

	second, err := svc.CreateExercise(ctx, tr.creator, tr.session, ExerciseInput{})
	require.NoError(t, err)
	h.state.Flags.Merge(map[string]bool{tr.session.Hex(): true})

	require.NoError(t, svc.ReorderExercises(ctx, tr.creator, tr.session, []primitive.ObjectID{second.ID, tr.exercise}))
	assert.Equal(t, []primitive.ObjectID{second.ID, tr.exercise}, h.exercises.orders(tr.session))
	assert.True(t, h.state.Flags.IsIncomplete(tr.session.Hex()))
}

func TestDeleteExerciseRemovesIt(t *testing.T) {
	h := newHarness()
	defer h.close()
	tr := h.seedTree()
	svc := h.exerciseService()
	ctx := context.Background()

	require.NoError(t, svc.DeleteExercise(ctx, tr.creator, tr.exercise))
	_, err := h.exercises.GetByID(ctx, tr.exercise)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = svc.DeleteExercise(ctx, tr.creator, tr.exercise)
	assert.ErrorIs(t, err, ErrExerciseNotFound)
}
