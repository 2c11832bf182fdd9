package service

import (
	"alcyxob/program-studio/internal/completeness"
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/logger"
	"alcyxob/program-studio/internal/querycache"
	"alcyxob/program-studio/internal/repository"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrProgramNotFound  = errors.New("program not found")
	ErrModuleNotFound   = errors.New("module not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrSetNotFound      = errors.New("set not found")
	ErrAccessDenied     = errors.New("access denied: content belongs to another creator")
	ErrValidationFailed = errors.New("validation failed")
	ErrReorderMismatch  = errors.New("reorder ids must be exactly the current children")
)

// ContentStore groups the repositories of the program content tree.
type ContentStore struct {
	Programs  repository.ProgramRepository
	Modules   repository.ModuleRepository
	Sessions  repository.SessionRepository
	Exercises repository.ExerciseRepository
	Sets      repository.SetRepository
}

// FlagState is the completeness state shared by every service that edits content.
type FlagState struct {
	Flags   *completeness.FlagCache
	Tracker *completeness.Tracker
}

func programTaskKey(programID primitive.ObjectID) string { return "program:" + programID.Hex() }

func moduleTaskKey(moduleID primitive.ObjectID) string { return "module:" + moduleID.Hex() }

// --- Query cache keys ---

func programKey(programID primitive.ObjectID) querycache.Key {
	return querycache.Key{"program", programID.Hex()}
}

func programModulesKey(programID primitive.ObjectID) querycache.Key {
	return programKey(programID).Child("modules")
}

func moduleSessionsKey(programID, moduleID primitive.ObjectID) querycache.Key {
	return programKey(programID).Child("module", moduleID.Hex(), "sessions")
}

func libraryKey(libraryID string) querycache.Key {
	return querycache.Key{"library", libraryID}
}

func libraryCompleteKey(libraryID, name string) querycache.Key {
	return libraryKey(libraryID).Child("complete", name)
}

// --- Ownership ---

// ownedProgram loads a program and checks that creatorID owns it.
func (c ContentStore) ownedProgram(ctx context.Context, creatorID, programID primitive.ObjectID) (*domain.Program, error) {
	program, err := c.Programs.GetByID(ctx, programID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProgramNotFound
		}
		return nil, err
	}
	if program.CreatorID != creatorID {
		return nil, ErrAccessDenied
	}
	return program, nil
}

func (c ContentStore) ownedModule(ctx context.Context, creatorID, moduleID primitive.ObjectID) (*domain.Module, error) {
	module, err := c.Modules.GetByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrModuleNotFound
		}
		return nil, err
	}
	if _, err := c.ownedProgram(ctx, creatorID, module.ProgramID); err != nil {
		return nil, err
	}
	return module, nil
}

func (c ContentStore) ownedSession(ctx context.Context, creatorID, sessionID primitive.ObjectID) (*domain.Session, error) {
	session, err := c.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if _, err := c.ownedProgram(ctx, creatorID, session.ProgramID); err != nil {
		return nil, err
	}
	return session, nil
}

func (c ContentStore) ownedExercise(ctx context.Context, creatorID, exerciseID primitive.ObjectID) (*domain.Exercise, error) {
	exercise, err := c.Exercises.GetByID(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	if _, err := c.ownedProgram(ctx, creatorID, exercise.ProgramID); err != nil {
		return nil, err
	}
	return exercise, nil
}

func (c ContentStore) ownedSet(ctx context.Context, creatorID, setID primitive.ObjectID) (*domain.Set, *domain.Exercise, error) {
	set, err := c.Sets.GetByID(ctx, setID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrSetNotFound
		}
		return nil, nil, err
	}
	exercise, err := c.ownedExercise(ctx, creatorID, set.ExerciseID)
	if err != nil {
		return nil, nil, err
	}
	return set, exercise, nil
}

// --- Stale marking ---

// staleMarker drops the stored and cached completeness of the ancestors of
// a changed node, so the next view reconciles them. Passes already running
// for those ancestors read the old tree; they are cancelled before any flag
// is touched, so none of their results can land after the eviction.
type staleMarker struct {
	modules  repository.ModuleRepository
	sessions repository.SessionRepository
	flags    *completeness.FlagCache
	tracker  *completeness.Tracker
	cache    querycache.Cache
	log      *logger.Logger
}

func newStaleMarker(store ContentStore, state FlagState, cache querycache.Cache, log *logger.Logger) staleMarker {
	return staleMarker{
		modules:  store.Modules,
		sessions: store.Sessions,
		flags:    state.Flags,
		tracker:  state.Tracker,
		cache:    cache,
		log:      log,
	}
}

// session marks a session and its module stale.
func (m staleMarker) session(ctx context.Context, programID, moduleID, sessionID primitive.ObjectID) {
	m.cancel(programTaskKey(programID), moduleTaskKey(moduleID))
	m.clear(ctx, "session", sessionID, m.sessions)
	m.clear(ctx, "module", moduleID, m.modules)
	m.invalidate(ctx, programID)
}

// module marks a module stale and drops the program's cached listings.
func (m staleMarker) module(ctx context.Context, programID, moduleID primitive.ObjectID) {
	m.cancel(programTaskKey(programID), moduleTaskKey(moduleID))
	m.clear(ctx, "module", moduleID, m.modules)
	m.invalidate(ctx, programID)
}

// program drops cached listings of a program whose flags did not change.
func (m staleMarker) program(ctx context.Context, programID primitive.ObjectID) {
	m.cancel(programTaskKey(programID))
	m.invalidate(ctx, programID)
}

// removedModule forgets a deleted module.
func (m staleMarker) removedModule(ctx context.Context, programID, moduleID primitive.ObjectID) {
	m.cancel(programTaskKey(programID), moduleTaskKey(moduleID))
	m.flags.Evict(moduleID.Hex())
	m.invalidate(ctx, programID)
}

// removedSession forgets a deleted session and marks its module stale.
func (m staleMarker) removedSession(ctx context.Context, programID, moduleID, sessionID primitive.ObjectID) {
	m.cancel(programTaskKey(programID), moduleTaskKey(moduleID))
	m.flags.Evict(sessionID.Hex())
	m.clear(ctx, "module", moduleID, m.modules)
	m.invalidate(ctx, programID)
}

func (m staleMarker) cancel(keys ...string) {
	if m.tracker == nil {
		return
	}
	for _, key := range keys {
		m.tracker.Cancel(key)
	}
}

func (m staleMarker) invalidate(ctx context.Context, programID primitive.ObjectID) {
	if err := m.cache.Invalidate(ctx, programKey(programID)); err != nil {
		m.log.Warn("query cache invalidation failed", "program_id", programID.Hex(), "error", err)
	}
}

func (m staleMarker) clear(ctx context.Context, kind string, id primitive.ObjectID, repo repository.FlaggedRepository) {
	m.flags.Evict(id.Hex())
	if err := repo.SetCompleteness(ctx, id, nil); err != nil && !errors.Is(err, repository.ErrNotFound) {
		m.log.Warn("failed to clear completeness flag", "kind", kind, "id", id.Hex(), "error", err)
	}
}

// --- Ordering ---

// reorder writes the positions of orderedIDs. current is the sibling list as
// it was before the change; it is written back if the update fails.
func reorder(ctx context.Context, repo repository.OrderedRepository, current []domain.OrderUpdate, orderedIDs []primitive.ObjectID) error {
	if !sameMembers(current, orderedIDs) {
		return ErrReorderMismatch
	}
	updates := make([]domain.OrderUpdate, len(orderedIDs))
	for i, id := range orderedIDs {
		updates[i] = domain.OrderUpdate{ID: id, Order: i}
	}
	if err := repo.SetOrders(ctx, updates); err != nil {
		// The first batches may already be applied; restore the snapshot.
		if rbErr := repo.SetOrders(context.WithoutCancel(ctx), current); rbErr != nil {
			return fmt.Errorf("reorder: %w (rollback failed: %v)", err, rbErr)
		}
		return fmt.Errorf("reorder: %w", err)
	}
	return nil
}

// densify closes gaps left by a deleted sibling.
func densify(ctx context.Context, repo repository.OrderedRepository, remaining []domain.OrderUpdate) error {
	var updates []domain.OrderUpdate
	for i, s := range remaining {
		if s.Order != i {
			updates = append(updates, domain.OrderUpdate{ID: s.ID, Order: i})
		}
	}
	if len(updates) == 0 {
		return nil
	}
	return repo.SetOrders(ctx, updates)
}

func sameMembers(current []domain.OrderUpdate, ids []primitive.ObjectID) bool {
	if len(current) != len(ids) {
		return false
	}
	want := make(map[primitive.ObjectID]bool, len(current))
	for _, c := range current {
		want[c.ID] = true
	}
	for _, id := range ids {
		if !want[id] {
			return false
		}
		delete(want, id)
	}
	return len(want) == 0
}

func moduleOrders(modules []domain.Module) []domain.OrderUpdate {
	out := make([]domain.OrderUpdate, len(modules))
	for i, m := range modules {
		out[i] = domain.OrderUpdate{ID: m.ID, Order: m.Order}
	}
	return out
}

func sessionOrders(sessions []domain.Session) []domain.OrderUpdate {
	out := make([]domain.OrderUpdate, len(sessions))
	for i, s := range sessions {
		out[i] = domain.OrderUpdate{ID: s.ID, Order: s.Order}
	}
	return out
}

func exerciseOrders(exercises []domain.Exercise) []domain.OrderUpdate {
	out := make([]domain.OrderUpdate, len(exercises))
	for i, e := range exercises {
		out[i] = domain.OrderUpdate{ID: e.ID, Order: e.Order}
	}
	return out
}

func setOrders(sets []domain.Set) []domain.OrderUpdate {
	out := make([]domain.OrderUpdate, len(sets))
	for i, s := range sets {
		out[i] = domain.OrderUpdate{ID: s.ID, Order: s.Order}
	}
	return out
}
