package service

import (
	"alcyxob/program-studio/internal/completeness"
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/logger"
	"alcyxob/program-studio/internal/querycache"
	"alcyxob/program-studio/internal/realtime"
	"alcyxob/program-studio/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const unwriteTimeout = 5 * time.Second

// CompletenessView is the completeness of the children of one node.
// Ids that have not been computed yet are absent from Incomplete and listed
// in Pending; they render as complete until reconciliation fills them in.
type CompletenessView struct {
	Incomplete map[string]bool `json:"incomplete"`
	Pending    []string        `json:"pending"`
}

// ExerciseCompleteness explains the predicate result for one exercise.
// Reason is the first failing rule, Reasons lists all of them.
type ExerciseCompleteness struct {
	ExerciseID string                `json:"exerciseId"`
	Complete   bool                  `json:"complete"`
	Reason     completeness.Reason   `json:"reason,omitempty"`
	Reasons    []completeness.Reason `json:"reasons"`
}

// CompletenessService serves the denormalized completeness flags.
type CompletenessService interface {
	// ProgramCompleteness returns the module flags of a program. Modules with
	// no known flag are reconciled in the background unless wait is set.
	ProgramCompleteness(ctx context.Context, creatorID, programID primitive.ObjectID, wait bool) (*CompletenessView, error)
	// ModuleCompleteness returns the session flags of a module.
	ModuleCompleteness(ctx context.Context, creatorID, moduleID primitive.ObjectID, wait bool) (*CompletenessView, error)
	// RefreshModule recomputes the module and all its sessions and stores the flags.
	RefreshModule(ctx context.Context, creatorID, moduleID primitive.ObjectID) (*CompletenessView, error)
	ExerciseCompleteness(ctx context.Context, creatorID, exerciseID primitive.ObjectID) (*ExerciseCompleteness, error)
	// HandleChange keeps flags and cached listings in line with writes seen
	// on the change stream. It satisfies realtime.ChangeHook.
	HandleChange(ctx context.Context, programID primitive.ObjectID, ev realtime.ChangeEvent)
}

type completenessService struct {
	store      ContentStore
	eval       *completeness.Evaluator
	reconciler *completeness.Reconciler
	flags      *completeness.FlagCache
	tracker    *completeness.Tracker
	cache      querycache.Cache
	persist    bool
	log        *logger.Logger
}

// NewCompletenessService wires the reconciler to the content store.
// When persist is set, background passes write their results back.
func NewCompletenessService(store ContentStore, eval *completeness.Evaluator, state FlagState, cache querycache.Cache, persist bool, log *logger.Logger) CompletenessService {
	log = log.With("component", "service.completeness")
	return &completenessService{
		store:      store,
		eval:       eval,
		reconciler: completeness.NewReconciler(eval, state.Flags, log),
		flags:      state.Flags,
		tracker:    state.Tracker,
		cache:      cache,
		persist:    persist,
		log:        log,
	}
}

func (s *completenessService) ProgramCompleteness(ctx context.Context, creatorID, programID primitive.ObjectID, wait bool) (*CompletenessView, error) {
	if _, err := s.store.ownedProgram(ctx, creatorID, programID); err != nil {
		return nil, err
	}
	modules, err := s.store.Modules.GetByProgramID(ctx, programID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(modules))
	for i, m := range modules {
		ids[i] = m.ID.Hex()
		s.seed(ids[i], m.IsComplete)
	}

	missing := s.flags.Missing(ids)
	if len(missing) > 0 {
		task, started := s.tracker.Start(programTaskKey(programID), func(ctx context.Context) (map[string]bool, error) {
			return s.reconcileModules(ctx, programID, missing)
		})
		if started {
			s.log.Debug("reconciling modules", "program_id", programID.Hex(), "count", len(missing))
		}
		if wait {
			if _, err := task.Wait(ctx); err != nil && ctx.Err() != nil {
				return nil, err
			}
		}
	}
	return s.view(ids), nil
}

func (s *completenessService) ModuleCompleteness(ctx context.Context, creatorID, moduleID primitive.ObjectID, wait bool) (*CompletenessView, error) {
	module, err := s.store.ownedModule(ctx, creatorID, moduleID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.store.Sessions.GetByModuleID(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.ID.Hex()
		s.seed(ids[i], sess.IsComplete)
	}

	missing := s.flags.Missing(ids)
	if len(missing) > 0 {
		task, _ := s.tracker.Start(moduleTaskKey(moduleID), func(ctx context.Context) (map[string]bool, error) {
			return s.reconcileSessions(ctx, module.ProgramID, missing)
		})
		if wait {
			if _, err := task.Wait(ctx); err != nil && ctx.Err() != nil {
				return nil, err
			}
		}
	}
	return s.view(ids), nil
}

func (s *completenessService) RefreshModule(ctx context.Context, creatorID, moduleID primitive.ObjectID) (*CompletenessView, error) {
	module, err := s.store.ownedModule(ctx, creatorID, moduleID)
	if err != nil {
		return nil, err
	}

	// The refresh replaces any pass for the module so that a later mutation
	// can cancel it like any other.
	task := s.tracker.Replace(moduleTaskKey(moduleID), func(ctx context.Context) (map[string]bool, error) {
		result, err := s.reconciler.Modules(ctx, []primitive.ObjectID{moduleID})
		if err != nil {
			return nil, err
		}
		s.write(ctx, module.ProgramID, result, map[string]bool{moduleID.Hex(): true})
		return result, nil
	})
	result, err := task.Wait(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) && ctx.Err() == nil:
		// Superseded by a mutation; the module is pending again.
		s.log.Debug("module refresh superseded", "module_id", moduleID.Hex())
		return s.view([]string{moduleID.Hex()}), nil
	default:
		return nil, err
	}

	ids := make([]string, 0, len(result))
	for id := range result {
		ids = append(ids, id)
	}
	return s.view(ids), nil
}

// ExerciseCompleteness evaluates one exercise and lists every failing rule.
func (s *completenessService) ExerciseCompleteness(ctx context.Context, creatorID, exerciseID primitive.ObjectID) (*ExerciseCompleteness, error) {
	exercise, err := s.store.ownedExercise(ctx, creatorID, exerciseID)
	if err != nil {
		return nil, err
	}
	reasons, err := s.eval.ExerciseReasons(ctx, exercise)
	if err != nil {
		return nil, err
	}
	out := &ExerciseCompleteness{ExerciseID: exerciseID.Hex(), Complete: len(reasons) == 0, Reasons: reasons}
	if len(reasons) > 0 {
		out.Reason = reasons[0]
	}
	return out, nil
}

func (s *completenessService) HandleChange(ctx context.Context, programID primitive.ObjectID, ev realtime.ChangeEvent) {
	if ev.FlagOnly() {
		return
	}
	if ev.FlagCleared() {
		s.log.Debug("completeness flag cleared elsewhere", "collection", ev.Collection, "id", ev.DocumentID.Hex())
	}
	if err := s.cache.Invalidate(ctx, programKey(programID)); err != nil {
		s.log.Warn("query cache invalidation failed", "program_id", programID.Hex(), "error", err)
	}

	var stale []primitive.ObjectID
	switch ev.Collection {
	case "modules":
		stale = append(stale, ev.DocumentID)
	case "sessions":
		stale = append(stale, ev.DocumentID, ev.ModuleID)
	case "exercises":
		stale = append(stale, ev.SessionID, ev.ModuleID)
	}

	// Cancel first so no pass that read the old tree merges after the evict.
	s.tracker.Cancel(programTaskKey(programID))
	for _, id := range stale {
		if id != primitive.NilObjectID {
			s.tracker.Cancel(moduleTaskKey(id))
		}
	}
	for _, id := range stale {
		if id != primitive.NilObjectID {
			s.flags.Evict(id.Hex())
		}
	}
}

// NewCompletenessSource exposes the content repositories to the evaluator.
func NewCompletenessSource(store ContentStore) completeness.Source {
	return contentSource{store: store}
}

type contentSource struct {
	store ContentStore
}

func (c contentSource) SessionsByModule(ctx context.Context, moduleID primitive.ObjectID) ([]domain.Session, error) {
	return c.store.Sessions.GetByModuleID(ctx, moduleID)
}

func (c contentSource) ExercisesBySession(ctx context.Context, sessionID primitive.ObjectID) ([]domain.Exercise, error) {
	return c.store.Exercises.GetBySessionID(ctx, sessionID)
}

func (c contentSource) SetsByExercise(ctx context.Context, exerciseID primitive.ObjectID) ([]domain.Set, error) {
	return c.store.Sets.GetByExerciseID(ctx, exerciseID)
}

// --- helpers ---

// seed loads a persisted flag unless the cache already knows a fresher one.
func (s *completenessService) seed(id string, isComplete *bool) {
	if _, known := s.flags.Lookup(id); !known {
		s.flags.Seed(id, isComplete)
	}
}

func (s *completenessService) view(ids []string) *CompletenessView {
	return &CompletenessView{
		Incomplete: s.flags.Snapshot(ids),
		Pending:    s.flags.Missing(ids),
	}
}

func (s *completenessService) reconcileModules(ctx context.Context, programID primitive.ObjectID, hexIDs []string) (map[string]bool, error) {
	ids := toObjectIDs(hexIDs)
	result, err := s.reconciler.Modules(ctx, ids)
	if err != nil {
		return nil, err
	}
	if s.persist && ctx.Err() == nil {
		modules := make(map[string]bool, len(hexIDs))
		for _, id := range hexIDs {
			modules[id] = true
		}
		s.write(ctx, programID, result, modules)
	}
	return result, nil
}

func (s *completenessService) reconcileSessions(ctx context.Context, programID primitive.ObjectID, hexIDs []string) (map[string]bool, error) {
	result, err := s.reconciler.Sessions(ctx, toObjectIDs(hexIDs))
	if err != nil {
		return nil, err
	}
	if s.persist && ctx.Err() == nil {
		s.write(ctx, programID, result, nil)
	}
	return result, nil
}

// write stores reconciled flags. Ids in modules are module ids, every other
// id is a session. Failures are logged; the cache already holds the result.
//
// A mutation cancels ctx before it clears a stored flag. If ctx is done once
// the writes are issued, one of them may have landed after that clear, so
// every flag written here is cleared again.
func (s *completenessService) write(ctx context.Context, programID primitive.ObjectID, result map[string]bool, modules map[string]bool) {
	written := make(map[primitive.ObjectID]repository.FlaggedRepository, len(result))
	for hexID, incomplete := range result {
		if ctx.Err() != nil {
			break
		}
		id, err := primitive.ObjectIDFromHex(hexID)
		if err != nil {
			continue
		}
		isComplete := !incomplete
		var repo repository.FlaggedRepository = s.store.Sessions
		if modules[hexID] {
			repo = s.store.Modules
		}
		written[id] = repo
		if err := repo.SetCompleteness(ctx, id, &isComplete); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("failed to store completeness flag", "id", hexID, "error", err)
		}
	}
	if ctx.Err() != nil {
		s.unwrite(ctx, written)
		return
	}
	if err := s.cache.Invalidate(ctx, programKey(programID)); err != nil {
		s.log.Warn("query cache invalidation failed", "program_id", programID.Hex(), "error", err)
	}
}

// unwrite clears flags stored by a pass that was cancelled while writing.
func (s *completenessService) unwrite(ctx context.Context, written map[primitive.ObjectID]repository.FlaggedRepository) {
	if len(written) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unwriteTimeout)
	defer cancel()
	for id, repo := range written {
		if err := repo.SetCompleteness(ctx, id, nil); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("failed to clear superseded completeness flag", "id", id.Hex(), "error", err)
		}
	}
}

func toObjectIDs(hexIDs []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(hexIDs))
	for _, h := range hexIDs {
		if id, err := primitive.ObjectIDFromHex(h); err == nil {
			out = append(out, id)
		}
	}
	return out
}
