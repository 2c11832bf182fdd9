package completeness

import (
	"context"
	"errors"
	"sync"
	"testing"

	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubSource struct {
	mu         sync.Mutex
	sessions   map[primitive.ObjectID][]domain.Session
	exercises  map[primitive.ObjectID][]domain.Exercise
	sets       map[primitive.ObjectID][]domain.Set
	failModule primitive.ObjectID
	setCalls   int
}

func (s *stubSource) SessionsByModule(_ context.Context, moduleID primitive.ObjectID) ([]domain.Session, error) {
	if moduleID == s.failModule {
		return nil, errors.New("boom")
	}
	return s.sessions[moduleID], nil
}

func (s *stubSource) ExercisesBySession(_ context.Context, sessionID primitive.ObjectID) ([]domain.Exercise, error) {
	return s.exercises[sessionID], nil
}

func (s *stubSource) SetsByExercise(_ context.Context, exerciseID primitive.ObjectID) ([]domain.Set, error) {
	s.mu.Lock()
	s.setCalls++
	s.mu.Unlock()
	return s.sets[exerciseID], nil
}

type stubResolver map[LibraryKey]bool

func (r stubResolver) LibraryExerciseComplete(_ context.Context, libraryID, name string) (bool, error) {
	return r[LibraryKey{LibraryID: libraryID, Name: name}], nil
}

// fixture builds one module with a complete session and an incomplete one,
// plus a second module with no sessions.
type fixture struct {
	src             *stubSource
	lib             stubResolver
	module, emptyMd primitive.ObjectID
	good, bad       primitive.ObjectID
}

func newFixture() fixture {
	f := fixture{
		module:  primitive.NewObjectID(),
		emptyMd: primitive.NewObjectID(),
		good:    primitive.NewObjectID(),
		bad:     primitive.NewObjectID(),
		lib:     stubResolver(allComplete),
	}
	goodEx := *completeExercise()
	goodEx.ID = primitive.NewObjectID()
	badEx := *completeExercise()
	badEx.ID = primitive.NewObjectID()

	f.src = &stubSource{
		sessions: map[primitive.ObjectID][]domain.Session{
			f.module: {{ID: f.good, ModuleID: f.module}, {ID: f.bad, ModuleID: f.module}},
		},
		exercises: map[primitive.ObjectID][]domain.Exercise{
			f.good: {goodEx},
			f.bad:  {badEx},
		},
		sets: map[primitive.ObjectID][]domain.Set{
			goodEx.ID: filledSets(),
		},
	}
	return f
}

func TestEvaluatorModuleFlags(t *testing.T) {
	f := newFixture()
	eval := NewEvaluator(f.src, f.lib, Policy{})

	incomplete, sessions, err := eval.ModuleFlags(context.Background(), f.module)
	require.NoError(t, err)
	assert.True(t, incomplete)
	assert.Equal(t, map[string]bool{f.good.Hex(): false, f.bad.Hex(): true}, sessions)

	incomplete, sessions, err = eval.ModuleFlags(context.Background(), f.emptyMd)
	require.NoError(t, err)
	assert.False(t, incomplete)
	assert.Empty(t, sessions)
}

func TestEvaluatorEmptyModulePolicy(t *testing.T) {
	f := newFixture()
	eval := NewEvaluator(f.src, f.lib, Policy{EmptySession: EmptySessionIncomplete})

	incomplete, _, err := eval.ModuleFlags(context.Background(), f.emptyMd)
	require.NoError(t, err)
	assert.True(t, incomplete)
}

func TestEvaluatorEmptySessionNextToCompleteOne(t *testing.T) {
	f := newFixture()
	empty := primitive.NewObjectID()
	// Module holds S1 with no exercises and S2 that is complete.
	f.src.sessions[f.module] = []domain.Session{{ID: empty, ModuleID: f.module}, {ID: f.good, ModuleID: f.module}}

	for _, tt := range []struct {
		name          string
		policy        EmptySessionPolicy
		wantModule    bool
		wantEmptyFlag bool
	}{
		{name: "vacuously complete", policy: EmptySessionComplete, wantModule: false, wantEmptyFlag: false},
		{name: "empty counts as incomplete", policy: EmptySessionIncomplete, wantModule: true, wantEmptyFlag: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			eval := NewEvaluator(f.src, f.lib, Policy{EmptySession: tt.policy})
			incomplete, sessions, err := eval.ModuleFlags(context.Background(), f.module)
			require.NoError(t, err)
			assert.Equal(t, tt.wantModule, incomplete)
			assert.Equal(t, map[string]bool{empty.Hex(): tt.wantEmptyFlag, f.good.Hex(): false}, sessions)
		})
	}
}

func TestEvaluatorExerciseReasons(t *testing.T) {
	f := newFixture()
	eval := NewEvaluator(f.src, f.lib, Policy{})
	ex := f.src.exercises[f.bad][0]

	reasons, err := eval.ExerciseReasons(context.Background(), &ex)
	require.NoError(t, err)
	assert.Equal(t, []Reason{ReasonNoSets}, reasons)
}

func TestReconcilerMergesModulesAndSessions(t *testing.T) {
	f := newFixture()
	cache := NewFlagCache()
	r := NewReconciler(NewEvaluator(f.src, f.lib, Policy{}), cache, logger.Nop())

	result, err := r.Modules(context.Background(), []primitive.ObjectID{f.module, f.emptyMd})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{
		f.module.Hex():  true,
		f.emptyMd.Hex(): false,
		f.good.Hex():    false,
		f.bad.Hex():     true,
	}, result)
	assert.True(t, cache.IsIncomplete(f.module.Hex()))
	assert.Empty(t, cache.Missing([]string{f.good.Hex(), f.bad.Hex()}))
}

func TestReconcilerIsIdempotent(t *testing.T) {
	f := newFixture()
	cache := NewFlagCache()
	r := NewReconciler(NewEvaluator(f.src, f.lib, Policy{}), cache, logger.Nop())
	modules := []primitive.ObjectID{f.module, f.emptyMd}
	ids := []string{f.module.Hex(), f.emptyMd.Hex(), f.good.Hex(), f.bad.Hex()}

	first, err := r.Modules(context.Background(), modules)
	require.NoError(t, err)
	afterFirst := cache.Snapshot(ids)

	second, err := r.Modules(context.Background(), modules)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, afterFirst, cache.Snapshot(ids))
	assert.Equal(t, len(ids), cache.Len())
}

func TestReconcilerAppliesFailurePolicy(t *testing.T) {
	for _, tt := range []struct {
		policy Policy
		want   bool
	}{
		{policy: Policy{Failure: FailOpen}, want: false},
		{policy: Policy{Failure: FailClosed}, want: true},
	} {
		f := newFixture()
		f.src.failModule = f.module
		cache := NewFlagCache()
		r := NewReconciler(NewEvaluator(f.src, f.lib, tt.policy), cache, logger.Nop())

		result, err := r.Modules(context.Background(), []primitive.ObjectID{f.module, f.emptyMd})
		require.NoError(t, err)
		assert.Equal(t, tt.want, result[f.module.Hex()])
		assert.False(t, result[f.emptyMd.Hex()])
		_, known := cache.Lookup(f.good.Hex())
		assert.False(t, known, "children of a failed module stay unknown")
	}
}

func TestReconcilerDiscardsCancelledPass(t *testing.T) {
	f := newFixture()
	cache := NewFlagCache()
	r := NewReconciler(NewEvaluator(f.src, f.lib, Policy{}), cache, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Sessions(ctx, []primitive.ObjectID{f.good, f.bad})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, cache.Len())
}

func TestReconcilerEmptyInput(t *testing.T) {
	r := NewReconciler(NewEvaluator(&stubSource{}, stubResolver{}, Policy{}), NewFlagCache(), logger.Nop())
	result, err := r.Sessions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result)
}
