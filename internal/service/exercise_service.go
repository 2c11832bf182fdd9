package service

import (
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/logger"
	"alcyxob/program-studio/internal/querycache"
	"alcyxob/program-studio/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExerciseInput carries the editable content of a program exercise.
type ExerciseInput struct {
	Primary               map[string]string
	Alternatives          domain.Alternatives
	Measures              []string
	Objectives            []string
	CustomMeasureLabels   map[string]string
	CustomObjectiveLabels map[string]string
}

func (in ExerciseInput) apply(ex *domain.Exercise) {
	ex.Primary = in.Primary
	ex.Alternatives = in.Alternatives
	if ex.Alternatives == nil {
		ex.Alternatives = domain.Alternatives{}
	}
	ex.Measures = in.Measures
	ex.Objectives = in.Objectives
	ex.CustomMeasureLabels = in.CustomMeasureLabels
	ex.CustomObjectiveLabels = in.CustomObjectiveLabels
}

// ExerciseService edits the exercises of a session and their sets.
type ExerciseService interface {
	CreateExercise(ctx context.Context, creatorID, sessionID primitive.ObjectID, in ExerciseInput) (*domain.Exercise, error)
	GetExercise(ctx context.Context, creatorID, exerciseID primitive.ObjectID) (*domain.Exercise, error)
	ListExercises(ctx context.Context, creatorID, sessionID primitive.ObjectID) ([]domain.Exercise, error)
	UpdateExercise(ctx context.Context, creatorID, exerciseID primitive.ObjectID, in ExerciseInput) (*domain.Exercise, error)
	DeleteExercise(ctx context.Context, creatorID, exerciseID primitive.ObjectID) error
	ReorderExercises(ctx context.Context, creatorID, sessionID primitive.ObjectID, orderedIDs []primitive.ObjectID) error

	CreateSet(ctx context.Context, creatorID, exerciseID primitive.ObjectID, values map[string]interface{}) (*domain.Set, error)
	ListSets(ctx context.Context, creatorID, exerciseID primitive.ObjectID) ([]domain.Set, error)
	UpdateSet(ctx context.Context, creatorID, setID primitive.ObjectID, values map[string]interface{}) (*domain.Set, error)
	DeleteSet(ctx context.Context, creatorID, setID primitive.ObjectID) error
	ReorderSets(ctx context.Context, creatorID, exerciseID primitive.ObjectID, orderedIDs []primitive.ObjectID) error
}

type exerciseService struct {
	store ContentStore
	stale staleMarker
	log   *logger.Logger
}

// NewExerciseService creates a new ExerciseService.
func NewExerciseService(store ContentStore, state FlagState, cache querycache.Cache, log *logger.Logger) ExerciseService {
	log = log.With("component", "service.exercise")
	return &exerciseService{store: store, stale: newStaleMarker(store, state, cache, log), log: log}
}

// --- Exercises ---

// CreateExercise appends an exercise to a session. Program, module and
// session ids are copied from the parent session.
func (s *exerciseService) CreateExercise(ctx context.Context, creatorID, sessionID primitive.ObjectID, in ExerciseInput) (*domain.Exercise, error) {
	session, err := s.store.ownedSession(ctx, creatorID, sessionID)
	if err != nil {
		return nil, err
	}
	exercise := &domain.Exercise{ProgramID: session.ProgramID, ModuleID: session.ModuleID, SessionID: sessionID}
	in.apply(exercise)

	id, err := s.store.Exercises.Create(ctx, exercise)
	if err != nil {
		return nil, err
	}
	s.stale.session(ctx, session.ProgramID, session.ModuleID, sessionID)
	return s.store.Exercises.GetByID(ctx, id)
}

// GetExercise returns the exercise if creatorID owns its program.
func (s *exerciseService) GetExercise(ctx context.Context, creatorID, exerciseID primitive.ObjectID) (*domain.Exercise, error) {
	return s.store.ownedExercise(ctx, creatorID, exerciseID)
}

// ListExercises returns the exercises of a session in order.
func (s *exerciseService) ListExercises(ctx context.Context, creatorID, sessionID primitive.ObjectID) ([]domain.Exercise, error) {
	if _, err := s.store.ownedSession(ctx, creatorID, sessionID); err != nil {
		return nil, err
	}
	return s.store.Exercises.GetBySessionID(ctx, sessionID)
}

// UpdateExercise replaces the library references, measures and objectives
// of the exercise and marks its session and module stale.
func (s *exerciseService) UpdateExercise(ctx context.Context, creatorID, exerciseID primitive.ObjectID, in ExerciseInput) (*domain.Exercise, error) {
	exercise, err := s.store.ownedExercise(ctx, creatorID, exerciseID)
	if err != nil {
		return nil, err
	}
	in.apply(exercise)
	if err := s.store.Exercises.Update(ctx, exercise); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	s.stale.session(ctx, exercise.ProgramID, exercise.ModuleID, exercise.SessionID)
	return exercise, nil
}

// DeleteExercise removes the exercise and its sets.
func (s *exerciseService) DeleteExercise(ctx context.Context, creatorID, exerciseID primitive.ObjectID) error {
	exercise, err := s.store.ownedExercise(ctx, creatorID, exerciseID)
	if err != nil {
		return err
	}
	if err := s.store.Exercises.Delete(ctx, exerciseID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrExerciseNotFound
		}
		return err
	}
	s.stale.session(ctx, exercise.ProgramID, exercise.ModuleID, exercise.SessionID)

	// Sets of the exercise are removed by the repository in the same call.
	remaining, err := s.store.Exercises.GetBySessionID(ctx, exercise.SessionID)
	if err != nil {
		return err
	}
	return densify(ctx, s.store.Exercises, exerciseOrders(remaining))
}

// ReorderExercises does not change completeness, so no flag is cleared.
func (s *exerciseService) ReorderExercises(ctx context.Context, creatorID, sessionID primitive.ObjectID, orderedIDs []primitive.ObjectID) error {
	if _, err := s.store.ownedSession(ctx, creatorID, sessionID); err != nil {
		return err
	}
	current, err := s.store.Exercises.GetBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := reorder(ctx, s.store.Exercises, exerciseOrders(current), orderedIDs); err != nil {
		s.log.Warn("exercise reorder failed", "session_id", sessionID.Hex(), "error", err)
		return err
	}
	return nil
}

// --- Sets ---

// normalizeSetValues rewrites intensity values to "N/10".
func normalizeSetValues(values map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		out[k] = v
	}
	if raw, ok := out[domain.ObjectiveIntensity]; ok {
		formatted, err := domain.FormatIntensity(raw)
		if err != nil {
			return nil, err
		}
		out[domain.ObjectiveIntensity] = formatted
	}
	return out, nil
}

// CreateSet appends a set to the exercise. Intensity is normalized.
func (s *exerciseService) CreateSet(ctx context.Context, creatorID, exerciseID primitive.ObjectID, values map[string]interface{}) (*domain.Set, error) {
	exercise, err := s.store.ownedExercise(ctx, creatorID, exerciseID)
	if err != nil {
		return nil, err
	}
	values, err = normalizeSetValues(values)
	if err != nil {
		return nil, err
	}
	set := &domain.Set{ExerciseID: exerciseID, Values: values}
	id, err := s.store.Sets.Create(ctx, set)
	if err != nil {
		return nil, err
	}
	s.stale.session(ctx, exercise.ProgramID, exercise.ModuleID, exercise.SessionID)
	return s.store.Sets.GetByID(ctx, id)
}

// ListSets returns the sets of an exercise in order.
func (s *exerciseService) ListSets(ctx context.Context, creatorID, exerciseID primitive.ObjectID) ([]domain.Set, error) {
	if _, err := s.store.ownedExercise(ctx, creatorID, exerciseID); err != nil {
		return nil, err
	}
	return s.store.Sets.GetByExerciseID(ctx, exerciseID)
}

// UpdateSet merges values into the set. Other objective values are kept.
func (s *exerciseService) UpdateSet(ctx context.Context, creatorID, setID primitive.ObjectID, values map[string]interface{}) (*domain.Set, error) {
	set, exercise, err := s.store.ownedSet(ctx, creatorID, setID)
	if err != nil {
		return nil, err
	}
	values, err = normalizeSetValues(values)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrValidationFailed // nothing to merge
	}
	if err := s.store.Sets.Update(ctx, &domain.Set{ID: setID, ExerciseID: set.ExerciseID, Values: values}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSetNotFound
		}
		return nil, err
	}
	// Return the merged view without reading the set back.
	if set.Values == nil {
		set.Values = map[string]interface{}{}
	}
	for k, v := range values {
		set.Values[k] = v
	}
	s.stale.session(ctx, exercise.ProgramID, exercise.ModuleID, exercise.SessionID)
	return set, nil
}

// DeleteSet removes a set and closes the gap in the order.
func (s *exerciseService) DeleteSet(ctx context.Context, creatorID, setID primitive.ObjectID) error {
	set, exercise, err := s.store.ownedSet(ctx, creatorID, setID)
	if err != nil {
		return err
	}
	if err := s.store.Sets.Delete(ctx, setID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSetNotFound
		}
		return err
	}
	s.stale.session(ctx, exercise.ProgramID, exercise.ModuleID, exercise.SessionID)

	remaining, err := s.store.Sets.GetByExerciseID(ctx, set.ExerciseID)
	if err != nil {
		return err
	}
	return densify(ctx, s.store.Sets, setOrders(remaining))
}

// ReorderSets writes a new set order. Order does not affect completeness.
func (s *exerciseService) ReorderSets(ctx context.Context, creatorID, exerciseID primitive.ObjectID, orderedIDs []primitive.ObjectID) error {
	if _, err := s.store.ownedExercise(ctx, creatorID, exerciseID); err != nil {
		return err
	}
	current, err := s.store.Sets.GetByExerciseID(ctx, exerciseID)
	if err != nil {
		return err
	}
	return reorder(ctx, s.store.Sets, setOrders(current), orderedIDs)
}
