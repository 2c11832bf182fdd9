package completeness

import (
	"context"
	"fmt"

	"alcyxob/program-studio/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Source is the read surface the recursive check walks.
type Source interface {
	SessionsByModule(ctx context.Context, moduleID primitive.ObjectID) ([]domain.Session, error)
	ExercisesBySession(ctx context.Context, sessionID primitive.ObjectID) ([]domain.Exercise, error)
	SetsByExercise(ctx context.Context, exerciseID primitive.ObjectID) ([]domain.Set, error)
}

// LibraryResolver answers whether one library item is complete.
// A missing item is (false, nil), not an error.
type LibraryResolver interface {
	LibraryExerciseComplete(ctx context.Context, libraryID, name string) (bool, error)
}

// Evaluator recomputes completeness from the stored tree.
type Evaluator struct {
	src    Source
	lib    LibraryResolver
	policy Policy
}

func NewEvaluator(src Source, lib LibraryResolver, policy Policy) *Evaluator {
	return &Evaluator{src: src, lib: lib, policy: policy}
}

func (e *Evaluator) Policy() Policy { return e.policy }

// ExerciseReasons loads the exercise's sets and library items and returns
// every rule it fails.
func (e *Evaluator) ExerciseReasons(ctx context.Context, ex *domain.Exercise) ([]Reason, error) {
	sets, err := e.src.SetsByExercise(ctx, ex.ID)
	if err != nil {
		return nil, fmt.Errorf("load sets of exercise %s: %w", ex.ID.Hex(), err)
	}
	lookup, err := e.lookupFor(ctx, []domain.Exercise{*ex})
	if err != nil {
		return nil, err
	}
	return Reasons(ex, sets, lookup), nil
}

// SessionIncomplete walks exercises -> sets for one session.
func (e *Evaluator) SessionIncomplete(ctx context.Context, sessionID primitive.ObjectID) (bool, error) {
	exercises, err := e.src.ExercisesBySession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("load exercises of session %s: %w", sessionID.Hex(), err)
	}
	lookup, err := e.lookupFor(ctx, exercises)
	if err != nil {
		return false, err
	}
	loaded := make([]ExerciseWithSets, 0, len(exercises))
	for _, ex := range exercises {
		sets, err := e.src.SetsByExercise(ctx, ex.ID)
		if err != nil {
			return false, fmt.Errorf("load sets of exercise %s: %w", ex.ID.Hex(), err)
		}
		loaded = append(loaded, ExerciseWithSets{Exercise: ex, Sets: sets})
	}
	return SessionIncomplete(loaded, lookup, e.policy), nil
}

// ModuleFlags walks sessions -> exercises -> sets for one module and returns
// the module flag together with the flag of every session it contains.
func (e *Evaluator) ModuleFlags(ctx context.Context, moduleID primitive.ObjectID) (bool, map[string]bool, error) {
	sessions, err := e.src.SessionsByModule(ctx, moduleID)
	if err != nil {
		return false, nil, fmt.Errorf("load sessions of module %s: %w", moduleID.Hex(), err)
	}
	flags := make(map[string]bool, len(sessions))
	ordered := make([]bool, 0, len(sessions))
	for _, s := range sessions {
		incomplete, err := e.SessionIncomplete(ctx, s.ID)
		if err != nil {
			return false, nil, err
		}
		flags[s.ID.Hex()] = incomplete
		ordered = append(ordered, incomplete)
	}
	return ModuleIncomplete(ordered, e.policy), flags, nil
}

func (e *Evaluator) lookupFor(ctx context.Context, exercises []domain.Exercise) (StaticLookup, error) {
	lookup := StaticLookup{}
	for i := range exercises {
		for _, key := range LibraryKeys(&exercises[i]) {
			if _, seen := lookup[key]; seen {
				continue
			}
			complete, err := e.lib.LibraryExerciseComplete(ctx, key.LibraryID, key.Name)
			if err != nil {
				return nil, fmt.Errorf("resolve library item %s/%s: %w", key.LibraryID, key.Name, err)
			}
			lookup[key] = complete
		}
	}
	return lookup, nil
}
