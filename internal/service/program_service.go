package service

import (
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/logger"
	"alcyxob/program-studio/internal/querycache"
	"alcyxob/program-studio/internal/realtime"
	"alcyxob/program-studio/internal/repository"
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrInvalidProgramStatus = errors.New("program status must be draft or published")

// ProgramService manages programs and their module/session structure.
type ProgramService interface {
	CreateProgram(ctx context.Context, creatorID primitive.ObjectID, title string) (*domain.Program, error)
	GetProgram(ctx context.Context, creatorID, programID primitive.ObjectID) (*domain.Program, error)
	ListPrograms(ctx context.Context, creatorID primitive.ObjectID) ([]domain.Program, error)
	PatchProgram(ctx context.Context, creatorID, programID primitive.ObjectID, patch domain.ProgramPatch) (*domain.Program, error)

	CreateModule(ctx context.Context, creatorID, programID primitive.ObjectID, title string, ref *domain.LibraryRef) (*domain.Module, error)
	ListModules(ctx context.Context, creatorID, programID primitive.ObjectID) ([]domain.Module, error)
	UpdateModule(ctx context.Context, creatorID, moduleID primitive.ObjectID, title string, ref *domain.LibraryRef) (*domain.Module, error)
	DeleteModule(ctx context.Context, creatorID, moduleID primitive.ObjectID) error
	ReorderModules(ctx context.Context, creatorID, programID primitive.ObjectID, orderedIDs []primitive.ObjectID) error

	CreateSession(ctx context.Context, creatorID, moduleID primitive.ObjectID, title string, ref *domain.LibraryRef) (*domain.Session, error)
	ListSessions(ctx context.Context, creatorID, moduleID primitive.ObjectID) ([]domain.Session, error)
	UpdateSession(ctx context.Context, creatorID, sessionID primitive.ObjectID, title string, ref *domain.LibraryRef) (*domain.Session, error)
	DeleteSession(ctx context.Context, creatorID, sessionID primitive.ObjectID) error
	ReorderSessions(ctx context.Context, creatorID, moduleID primitive.ObjectID, orderedIDs []primitive.ObjectID) error

	// LoadSnapshot reads the whole tree without an ownership check.
	// Callers check access with GetProgram first.
	LoadSnapshot(ctx context.Context, programID primitive.ObjectID) (*realtime.Snapshot, error)
}

type programService struct {
	store ContentStore
	cache querycache.Cache
	stale staleMarker
	log   *logger.Logger
}

// NewProgramService creates a new ProgramService.
func NewProgramService(store ContentStore, state FlagState, cache querycache.Cache, log *logger.Logger) ProgramService {
	log = log.With("component", "service.program")
	return &programService{
		store: store,
		cache: cache,
		stale: newStaleMarker(store, state, cache, log),
		log:   log,
	}
}

// --- Programs ---

// CreateProgram stores a new draft program owned by creatorID.
func (s *programService) CreateProgram(ctx context.Context, creatorID primitive.ObjectID, title string) (*domain.Program, error) {
	title = strings.TrimSpace(title)
	if title == "" || creatorID == primitive.NilObjectID {
		return nil, ErrValidationFailed
	}
	program := &domain.Program{
		CreatorID: creatorID,
		Title:     title,
		Status:    domain.ProgramDraft,
	}
	id, err := s.store.Programs.Create(ctx, program)
	if err != nil {
		return nil, err
	}
	s.log.Info("program created", "program_id", id.Hex(), "creator_id", creatorID.Hex())
	return s.store.Programs.GetByID(ctx, id)
}

// GetProgram returns the program if creatorID owns it.
func (s *programService) GetProgram(ctx context.Context, creatorID, programID primitive.ObjectID) (*domain.Program, error) {
	return s.store.ownedProgram(ctx, creatorID, programID)
}

// ListPrograms returns every program of the creator, newest first.
func (s *programService) ListPrograms(ctx context.Context, creatorID primitive.ObjectID) ([]domain.Program, error) {
	if creatorID == primitive.NilObjectID {
		return nil, errors.New("creator ID cannot be nil")
	}
	return s.store.Programs.GetByCreatorID(ctx, creatorID)
}

// PatchProgram applies a field-level update after validating it.
func (s *programService) PatchProgram(ctx context.Context, creatorID, programID primitive.ObjectID, patch domain.ProgramPatch) (*domain.Program, error) {
	if _, err := s.store.ownedProgram(ctx, creatorID, programID); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, ErrValidationFailed
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, ErrInvalidProgramStatus
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, ErrValidationFailed
	}
	if patch.Price != nil && *patch.Price < 0 {
		return nil, ErrValidationFailed
	}
	if patch.FreeTrial != nil && patch.FreeTrial.DurationDays < 0 {
		return nil, ErrValidationFailed
	}

	if err := s.store.Programs.Patch(ctx, programID, patch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProgramNotFound
		}
		return nil, err
	}
	s.stale.program(ctx, programID)
	return s.store.Programs.GetByID(ctx, programID)
}

// --- Modules ---

// CreateModule appends a module at the end of the program.
func (s *programService) CreateModule(ctx context.Context, creatorID, programID primitive.ObjectID, title string, ref *domain.LibraryRef) (*domain.Module, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrValidationFailed
	}
	if _, err := s.store.ownedProgram(ctx, creatorID, programID); err != nil {
		return nil, err
	}
	module := &domain.Module{ProgramID: programID, Title: title, LibraryModuleRef: ref}
	id, err := s.store.Modules.Create(ctx, module)
	if err != nil {
		return nil, err
	}
	// A new module has no sessions yet; its flag is computed on first view.
	s.stale.program(ctx, programID)
	return s.store.Modules.GetByID(ctx, id)
}

// ListModules is served through the query cache.
func (s *programService) ListModules(ctx context.Context, creatorID, programID primitive.ObjectID) ([]domain.Module, error) {
	if _, err := s.store.ownedProgram(ctx, creatorID, programID); err != nil {
		return nil, err
	}
	return querycache.GetOrLoad(ctx, s.cache, programModulesKey(programID), func(ctx context.Context) ([]domain.Module, error) {
		return s.store.Modules.GetByProgramID(ctx, programID)
	})
}

// UpdateModule changes the title and library reference of a module.
// Neither affects completeness, so stored flags are kept.
func (s *programService) UpdateModule(ctx context.Context, creatorID, moduleID primitive.ObjectID, title string, ref *domain.LibraryRef) (*domain.Module, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrValidationFailed
	}
	module, err := s.store.ownedModule(ctx, creatorID, moduleID)
	if err != nil {
		return nil, err
	}
	module.Title = title
	module.LibraryModuleRef = ref
	if err := s.store.Modules.Update(ctx, module); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrModuleNotFound
		}
		return nil, err
	}
	s.stale.program(ctx, module.ProgramID)
	return module, nil
}

// DeleteModule removes the module subtree and closes the gap in the order.
func (s *programService) DeleteModule(ctx context.Context, creatorID, moduleID primitive.ObjectID) error {
	module, err := s.store.ownedModule(ctx, creatorID, moduleID)
	if err != nil {
		return err
	}
	if err := s.store.Modules.Delete(ctx, moduleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrModuleNotFound
		}
		return err
	}
	s.stale.removedModule(ctx, module.ProgramID, moduleID)

	remaining, err := s.store.Modules.GetByProgramID(ctx, module.ProgramID)
	if err != nil {
		return err
	}
	return densify(ctx, s.store.Modules, moduleOrders(remaining))
}

// ReorderModules writes the order given by orderedIDs, which must name
// every module of the program exactly once. On failure the previous order
// is written back.
func (s *programService) ReorderModules(ctx context.Context, creatorID, programID primitive.ObjectID, orderedIDs []primitive.ObjectID) error {
	if _, err := s.store.ownedProgram(ctx, creatorID, programID); err != nil {
		return err
	}
	current, err := s.store.Modules.GetByProgramID(ctx, programID)
	if err != nil {
		return err
	}
	defer s.stale.program(ctx, programID)
	if err := reorder(ctx, s.store.Modules, moduleOrders(current), orderedIDs); err != nil {
		s.log.Warn("module reorder failed", "program_id", programID.Hex(), "error", err)
		return err
	}
	return nil
}

// --- Sessions ---

// CreateSession appends a session to the module and marks the module stale.
func (s *programService) CreateSession(ctx context.Context, creatorID, moduleID primitive.ObjectID, title string, ref *domain.LibraryRef) (*domain.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrValidationFailed
	}
	module, err := s.store.ownedModule(ctx, creatorID, moduleID)
	if err != nil {
		return nil, err
	}
	session := &domain.Session{ProgramID: module.ProgramID, ModuleID: moduleID, Title: title, LibrarySessionRef: ref}
	id, err := s.store.Sessions.Create(ctx, session)
	if err != nil {
		return nil, err
	}
	s.stale.module(ctx, module.ProgramID, moduleID)
	return s.store.Sessions.GetByID(ctx, id)
}

// ListSessions returns the sessions of a module through the query cache.
func (s *programService) ListSessions(ctx context.Context, creatorID, moduleID primitive.ObjectID) ([]domain.Session, error) {
	module, err := s.store.ownedModule(ctx, creatorID, moduleID)
	if err != nil {
		return nil, err
	}
	return querycache.GetOrLoad(ctx, s.cache, moduleSessionsKey(module.ProgramID, moduleID), func(ctx context.Context) ([]domain.Session, error) {
		return s.store.Sessions.GetByModuleID(ctx, moduleID)
	})
}

// UpdateSession renames a session.
func (s *programService) UpdateSession(ctx context.Context, creatorID, sessionID primitive.ObjectID, title string, ref *domain.LibraryRef) (*domain.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrValidationFailed
	}
	session, err := s.store.ownedSession(ctx, creatorID, sessionID)
	if err != nil {
		return nil, err
	}
	session.Title = title
	session.LibrarySessionRef = ref
	if err := s.store.Sessions.Update(ctx, session); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	s.stale.program(ctx, session.ProgramID)
	return session, nil
}

// DeleteSession removes the session with its exercises and sets and closes
// the gap in the module's order.
func (s *programService) DeleteSession(ctx context.Context, creatorID, sessionID primitive.ObjectID) error {
	session, err := s.store.ownedSession(ctx, creatorID, sessionID)
	if err != nil {
		return err
	}
	if err := s.store.Sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	s.stale.removedSession(ctx, session.ProgramID, session.ModuleID, sessionID)

	remaining, err := s.store.Sessions.GetByModuleID(ctx, session.ModuleID)
	if err != nil {
		return err
	}
	return densify(ctx, s.store.Sessions, sessionOrders(remaining))
}

// ReorderSessions is ReorderModules for the sessions of one module.
func (s *programService) ReorderSessions(ctx context.Context, creatorID, moduleID primitive.ObjectID, orderedIDs []primitive.ObjectID) error {
	module, err := s.store.ownedModule(ctx, creatorID, moduleID)
	if err != nil {
		return err
	}
	current, err := s.store.Sessions.GetByModuleID(ctx, moduleID)
	if err != nil {
		return err
	}
	defer s.stale.program(ctx, module.ProgramID)
	if err := reorder(ctx, s.store.Sessions, sessionOrders(current), orderedIDs); err != nil {
		s.log.Warn("session reorder failed", "module_id", moduleID.Hex(), "error", err)
		return err
	}
	return nil
}

// --- Snapshot ---

// LoadSnapshot reads the whole tree of a program for the realtime watcher.
// It does not check ownership; callers subscribe only after GetProgram.
func (s *programService) LoadSnapshot(ctx context.Context, programID primitive.ObjectID) (*realtime.Snapshot, error) {
	modules, err := s.store.Modules.GetByProgramID(ctx, programID)
	if err != nil {
		return nil, err
	}
	snap := &realtime.Snapshot{
		ProgramID: programID,
		Modules:   modules,
		Sessions:  []domain.Session{},
		Exercises: []domain.Exercise{},
	}
	for _, m := range modules {
		sessions, err := s.store.Sessions.GetByModuleID(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		snap.Sessions = append(snap.Sessions, sessions...)
		for _, sess := range sessions {
			exercises, err := s.store.Exercises.GetBySessionID(ctx, sess.ID)
			if err != nil {
				return nil, err
			}
			snap.Exercises = append(snap.Exercises, exercises...)
		}
	}
	return snap, nil
}
