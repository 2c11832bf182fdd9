package service

import (
	"alcyxob/program-studio/internal/completeness"
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/logger"
	"alcyxob/program-studio/internal/querycache"
	"alcyxob/program-studio/internal/repository"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errWriteConflict = errors.New("write conflict")

// memOrdered is an in-memory ordered child collection.
type memOrdered[T any] struct {
	mu     sync.Mutex
	items  map[primitive.ObjectID]*T
	id     func(*T) *primitive.ObjectID
	order  func(*T) *int
	parent func(*T) primitive.ObjectID

	// failSetOrders makes the first SetOrders call apply one update and fail.
	failSetOrders bool
	setOrderCalls int
}

func newOrdered[T any](id func(*T) *primitive.ObjectID, order func(*T) *int, parent func(*T) primitive.ObjectID) *memOrdered[T] {
	return &memOrdered[T]{items: map[primitive.ObjectID]*T{}, id: id, order: order, parent: parent}
}

func (m *memOrdered[T]) create(v *T) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	newID := primitive.NewObjectID()
	*m.id(&cp) = newID
	n := 0
	for _, it := range m.items {
		if m.parent(it) == m.parent(&cp) {
			n++
		}
	}
	*m.order(&cp) = n
	m.items[newID] = &cp
	return newID
}

func (m *memOrdered[T]) get(id primitive.ObjectID) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memOrdered[T]) children(parentID primitive.ObjectID) []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []T{}
	for _, it := range m.items {
		if m.parent(it) == parentID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return *m.order(&out[i]) < *m.order(&out[j]) })
	return out
}

func (m *memOrdered[T]) replace(v *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := *m.id(v)
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	cp := *v
	m.items[id] = &cp
	return nil
}

func (m *memOrdered[T]) remove(id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memOrdered[T]) SetOrders(_ context.Context, updates []domain.OrderUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setOrderCalls++
	if m.failSetOrders && m.setOrderCalls == 1 {
		if len(updates) > 0 {
			if it, ok := m.items[updates[0].ID]; ok {
				*m.order(it) = updates[0].Order
			}
		}
		return errWriteConflict
	}
	for _, u := range updates {
		if it, ok := m.items[u.ID]; ok {
			*m.order(it) = u.Order
		}
	}
	return nil
}

func (m *memOrdered[T]) orders(parentID primitive.ObjectID) []primitive.ObjectID {
	var ids []primitive.ObjectID
	for _, it := range m.children(parentID) {
		ids = append(ids, *m.id(&it))
	}
	return ids
}

// --- Programs ---

type memPrograms struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*domain.Program
}

func (m *memPrograms) Create(_ context.Context, p *domain.Program) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	cp.ID = primitive.NewObjectID()
	cp.CreatedAt = time.Now()
	m.items[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memPrograms) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPrograms) GetByCreatorID(_ context.Context, creatorID primitive.ObjectID) ([]domain.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Program
	for _, p := range m.items {
		if p.CreatorID == creatorID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memPrograms) Patch(_ context.Context, id primitive.ObjectID, patch domain.ProgramPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	return nil
}

// --- Modules and sessions ---

type memModules struct {
	*memOrdered[domain.Module]
}

func (m memModules) Create(_ context.Context, v *domain.Module) (primitive.ObjectID, error) {
	return m.create(v), nil
}
func (m memModules) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Module, error) {
	return m.get(id)
}
func (m memModules) GetByProgramID(_ context.Context, id primitive.ObjectID) ([]domain.Module, error) {
	return m.children(id), nil
}
func (m memModules) Update(_ context.Context, v *domain.Module) error { return m.replace(v) }
func (m memModules) Delete(_ context.Context, id primitive.ObjectID) error {
	return m.remove(id)
}
func (m memModules) SetCompleteness(_ context.Context, id primitive.ObjectID, isComplete *bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	it.IsComplete = isComplete
	return nil
}

type memSessions struct {
	*memOrdered[domain.Session]
}

func (m memSessions) Create(_ context.Context, v *domain.Session) (primitive.ObjectID, error) {
	return m.create(v), nil
}
func (m memSessions) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Session, error) {
	return m.get(id)
}
func (m memSessions) GetByModuleID(_ context.Context, id primitive.ObjectID) ([]domain.Session, error) {
	return m.children(id), nil
}
func (m memSessions) Update(_ context.Context, v *domain.Session) error { return m.replace(v) }
func (m memSessions) Delete(_ context.Context, id primitive.ObjectID) error {
	return m.remove(id)
}
func (m memSessions) SetCompleteness(_ context.Context, id primitive.ObjectID, isComplete *bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	it.IsComplete = isComplete
	return nil
}

// --- Exercises and sets ---

type memExercises struct {
	*memOrdered[domain.Exercise]
}

func (m memExercises) Create(_ context.Context, v *domain.Exercise) (primitive.ObjectID, error) {
	return m.create(v), nil
}
func (m memExercises) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	return m.get(id)
}
func (m memExercises) GetBySessionID(_ context.Context, id primitive.ObjectID) ([]domain.Exercise, error) {
	return m.children(id), nil
}
func (m memExercises) Update(_ context.Context, v *domain.Exercise) error { return m.replace(v) }
func (m memExercises) Delete(_ context.Context, id primitive.ObjectID) error {
	return m.remove(id)
}
func (m memExercises) FindReferencing(_ context.Context, libraryID, name string) ([]domain.Exercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Exercise
	for _, ex := range m.items {
		if ex.References(libraryID, name) {
			out = append(out, *ex)
		}
	}
	return out, nil
}
func (m memExercises) CountReferencing(ctx context.Context, libraryID, name string) (int64, error) {
	refs, err := m.FindReferencing(ctx, libraryID, name)
	return int64(len(refs)), err
}

type memSets struct {
	*memOrdered[domain.Set]
}

func (m memSets) Create(_ context.Context, v *domain.Set) (primitive.ObjectID, error) {
	cp := *v
	cp.Values = copyValues(v.Values)
	return m.create(&cp), nil
}
// Reads copy Values so a later Update cannot change what a caller already read.
func (m memSets) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Set, error) {
	set, err := m.get(id)
	if err != nil {
		return nil, err
	}
	set.Values = copyValues(set.Values)
	return set, nil
}
func (m memSets) GetByExerciseID(_ context.Context, id primitive.ObjectID) ([]domain.Set, error) {
	sets := m.children(id)
	for i := range sets {
		sets[i].Values = copyValues(sets[i].Values)
	}
	return sets, nil
}

func copyValues(values map[string]interface{}) map[string]interface{} {
	if values == nil {
		return nil
	}
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

// Update merges values like a $set on individual fields.
func (m memSets) Update(_ context.Context, v *domain.Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[v.ID]
	if !ok {
		return repository.ErrNotFound
	}
	merged := map[string]interface{}{}
	for k, val := range it.Values {
		merged[k] = val
	}
	for k, val := range v.Values {
		merged[k] = val
	}
	it.Values = merged
	return nil
}
func (m memSets) Delete(_ context.Context, id primitive.ObjectID) error {
	return m.remove(id)
}

// --- Library ---

type memLibrary struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]*domain.LibraryExercise
	reads int
}

func (m *memLibrary) Create(_ context.Context, item *domain.LibraryExercise) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.LibraryID == item.LibraryID && it.Name == item.Name {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	cp := *item
	cp.ID = primitive.NewObjectID()
	m.items[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memLibrary) GetByID(_ context.Context, id primitive.ObjectID) (*domain.LibraryExercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memLibrary) GetByName(_ context.Context, libraryID, name string) (*domain.LibraryExercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	for _, it := range m.items {
		if it.LibraryID == libraryID && it.Name == name {
			cp := *it
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memLibrary) GetByLibraryID(_ context.Context, libraryID string) ([]domain.LibraryExercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LibraryExercise
	for _, it := range m.items {
		if it.LibraryID == libraryID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (m *memLibrary) Update(_ context.Context, item *domain.LibraryExercise) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memLibrary) Delete(_ context.Context, id, creatorID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok || it.CreatorID != creatorID {
		return repository.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// --- Storage ---

type stubFiles struct {
	deleted []string
}

func (s *stubFiles) GeneratePresignedUploadURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://upload.example/" + key, nil
}

func (s *stubFiles) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://download.example/" + key, nil
}

func (s *stubFiles) DeleteObject(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

// --- Harness ---

type harness struct {
	store     ContentStore
	programs  *memPrograms
	modules   memModules
	sessions  memSessions
	exercises memExercises
	sets      memSets
	library   *memLibrary
	state     FlagState
	cache     querycache.Cache
	log       *logger.Logger
}

func newHarness() *harness {
	h := &harness{
		programs: &memPrograms{items: map[primitive.ObjectID]*domain.Program{}},
		modules: memModules{newOrdered(
			func(v *domain.Module) *primitive.ObjectID { return &v.ID },
			func(v *domain.Module) *int { return &v.Order },
			func(v *domain.Module) primitive.ObjectID { return v.ProgramID })},
		sessions: memSessions{newOrdered(
			func(v *domain.Session) *primitive.ObjectID { return &v.ID },
			func(v *domain.Session) *int { return &v.Order },
			func(v *domain.Session) primitive.ObjectID { return v.ModuleID })},
		exercises: memExercises{newOrdered(
			func(v *domain.Exercise) *primitive.ObjectID { return &v.ID },
			func(v *domain.Exercise) *int { return &v.Order },
			func(v *domain.Exercise) primitive.ObjectID { return v.SessionID })},
		sets: memSets{newOrdered(
			func(v *domain.Set) *primitive.ObjectID { return &v.ID },
			func(v *domain.Set) *int { return &v.Order },
			func(v *domain.Set) primitive.ObjectID { return v.ExerciseID })},
		library: &memLibrary{items: map[primitive.ObjectID]*domain.LibraryExercise{}},
		state:   FlagState{Flags: completeness.NewFlagCache(), Tracker: completeness.NewTracker(0)},
		cache:   querycache.NewMemory(0),
		log:     logger.Nop(),
	}
	h.store = ContentStore{
		Programs:  h.programs,
		Modules:   h.modules,
		Sessions:  h.sessions,
		Exercises: h.exercises,
		Sets:      h.sets,
	}
	return h
}

func (h *harness) close() { h.state.Tracker.Close() }

func (h *harness) programService() ProgramService {
	return NewProgramService(h.store, h.state, h.cache, h.log)
}

func (h *harness) exerciseService() ExerciseService {
	return NewExerciseService(h.store, h.state, h.cache, h.log)
}

func (h *harness) libraryService(files *stubFiles) LibraryService {
	if files == nil {
		return NewLibraryService(h.library, h.store, nil, h.state, h.cache, h.log)
	}
	return NewLibraryService(h.library, h.store, files, h.state, h.cache, h.log)
}

func (h *harness) completenessService(lib completeness.LibraryResolver, policy completeness.Policy) CompletenessService {
	eval := completeness.NewEvaluator(NewCompletenessSource(h.store), lib, policy)
	return NewCompletenessService(h.store, eval, h.state, h.cache, true, h.log)
}

// tree is one program with a module, a session and a complete exercise.
type tree struct {
	creator, program, module, session, exercise primitive.ObjectID
}

func (h *harness) seedTree() tree {
	ctx := context.Background()
	var t tree
	t.creator = primitive.NewObjectID()
	t.program, _ = h.programs.Create(ctx, &domain.Program{CreatorID: t.creator, Title: "Strength", Status: domain.ProgramDraft})
	t.module, _ = h.modules.Create(ctx, &domain.Module{ProgramID: t.program, Title: "Week 1"})
	t.session, _ = h.sessions.Create(ctx, &domain.Session{ProgramID: t.program, ModuleID: t.module, Title: "Day 1"})
	t.exercise, _ = h.exercises.Create(ctx, &domain.Exercise{
		ProgramID:    t.program,
		ModuleID:     t.module,
		SessionID:    t.session,
		Primary:      map[string]string{"lib": "Squat"},
		Alternatives: domain.Alternatives{"lib": {"Lunge"}},
		Measures:     []string{"reps"},
		Objectives:   []string{"reps"},
	})
	_, _ = h.sets.Create(ctx, &domain.Set{ExerciseID: t.exercise, Values: map[string]interface{}{"reps": "10"}})
	return t
}

// completeLibrary stores Squat and Lunge as complete items of library "lib".
func (h *harness) completeLibrary(creator primitive.ObjectID) {
	for _, name := range []string{"Squat", "Lunge"} {
		_, _ = h.library.Create(context.Background(), &domain.LibraryExercise{
			LibraryID:        "lib",
			CreatorID:        creator,
			Name:             name,
			VideoURL:         "https://video.example/" + name,
			MuscleActivation: map[string]float64{"quads": 70},
			Implements:       []string{"barbell"},
		})
	}
}

func boolPtr(b bool) *bool { return &b }
