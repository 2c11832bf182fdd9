package service

import (
	"alcyxob/program-studio/internal/completeness"
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/logger"
	"alcyxob/program-studio/internal/querycache"
	"alcyxob/program-studio/internal/repository"
	"alcyxob/program-studio/internal/storage"
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrLibraryExerciseNotFound = errors.New("library exercise not found")
	ErrLibraryExerciseExists   = errors.New("library already has an exercise with this name")
	ErrLibraryExerciseInUse    = errors.New("library exercise is referenced by program exercises")
	ErrLibraryAccessDenied     = errors.New("access denied to this library exercise")
	ErrNoVideo                 = errors.New("library exercise has no video")
	ErrInvalidVideoKey         = errors.New("object key does not belong to this library exercise")
	ErrUnsupportedVideoType    = errors.New("unsupported video content type")
	ErrInvalidMuscleActivation = errors.New("muscle activation values must be between 0 and 100")
	ErrStorageNotConfigured    = errors.New("object storage is not configured")
)

// LibraryExerciseInput carries the editable fields of a library exercise.
// Name is only used on create.
type LibraryExerciseInput struct {
	LibraryID        string
	Name             string
	Description      string
	VideoURL         string
	MuscleActivation map[string]float64
	Implements       []string
}

// VideoUpload is a presigned upload target.
type VideoUpload struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// LibraryService manages a creator's exercise library.
// It also answers completeness lookups for library items.
type LibraryService interface {
	completeness.LibraryResolver

	CreateLibraryExercise(ctx context.Context, creatorID primitive.ObjectID, in LibraryExerciseInput) (*domain.LibraryExercise, error)
	GetLibraryExercise(ctx context.Context, creatorID, id primitive.ObjectID) (*domain.LibraryExercise, error)
	ListLibraryExercises(ctx context.Context, creatorID primitive.ObjectID, libraryID string) ([]domain.LibraryExercise, error)
	UpdateLibraryExercise(ctx context.Context, creatorID, id primitive.ObjectID, in LibraryExerciseInput) (*domain.LibraryExercise, error)
	DeleteLibraryExercise(ctx context.Context, creatorID, id primitive.ObjectID) error

	RequestVideoUpload(ctx context.Context, creatorID, id primitive.ObjectID, fileName, contentType string) (*VideoUpload, error)
	ConfirmVideoUpload(ctx context.Context, creatorID, id primitive.ObjectID, objectKey string) (*domain.LibraryExercise, error)
	GetVideoURL(ctx context.Context, creatorID, id primitive.ObjectID) (string, error)
}

type libraryService struct {
	repo      repository.LibraryRepository
	exercises repository.ExerciseRepository
	files     storage.FileStorage // nil when storage is not configured
	cache     querycache.Cache
	stale     staleMarker
	log       *logger.Logger
}

// NewLibraryService creates a new LibraryService. files may be nil.
func NewLibraryService(repo repository.LibraryRepository, store ContentStore, files storage.FileStorage, state FlagState, cache querycache.Cache, log *logger.Logger) LibraryService {
	log = log.With("component", "service.library")
	return &libraryService{
		repo:      repo,
		exercises: store.Exercises,
		files:     files,
		cache:     cache,
		stale:     newStaleMarker(store, state, cache, log),
		log:       log,
	}
}

var allowedVideoTypes = map[string]bool{
	"video/mp4":       true,
	"video/quicktime": true,
	"video/webm":      true,
}

func validateLibraryInput(in LibraryExerciseInput) error {
	for _, pct := range in.MuscleActivation {
		if pct < 0 || pct > 100 {
			return ErrInvalidMuscleActivation
		}
	}
	return nil
}

// --- Library items ---

// CreateLibraryExercise adds an item to a library. An empty libraryId
// means the creator's own library.
func (s *libraryService) CreateLibraryExercise(ctx context.Context, creatorID primitive.ObjectID, in LibraryExerciseInput) (*domain.LibraryExercise, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || creatorID == primitive.NilObjectID {
		return nil, ErrValidationFailed
	}
	if strings.TrimSpace(in.LibraryID) == "" {
		// A creator's default library is keyed by the creator id.
		in.LibraryID = creatorID.Hex()
	}
	if err := validateLibraryInput(in); err != nil {
		return nil, err
	}

	item := &domain.LibraryExercise{
		LibraryID:        in.LibraryID,
		CreatorID:        creatorID,
		Name:             in.Name,
		Description:      in.Description,
		VideoURL:         in.VideoURL,
		MuscleActivation: in.MuscleActivation,
		Implements:       in.Implements,
	}
	id, err := s.repo.Create(ctx, item)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrLibraryExerciseExists
		}
		return nil, err
	}
	// Program exercises may already reference this name as a dangling ref.
	s.changed(ctx, item)
	return s.repo.GetByID(ctx, id)
}

// GetLibraryExercise returns an item the creator owns.
func (s *libraryService) GetLibraryExercise(ctx context.Context, creatorID, id primitive.ObjectID) (*domain.LibraryExercise, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLibraryExerciseNotFound
		}
		return nil, err
	}
	if item.CreatorID != creatorID {
		return nil, ErrLibraryAccessDenied
	}
	return item, nil
}

// ListLibraryExercises lists one library, sorted by name.
func (s *libraryService) ListLibraryExercises(ctx context.Context, creatorID primitive.ObjectID, libraryID string) ([]domain.LibraryExercise, error) {
	if libraryID == "" {
		libraryID = creatorID.Hex()
	}
	items, err := s.repo.GetByLibraryID(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	owned := make([]domain.LibraryExercise, 0, len(items))
	for _, it := range items {
		if it.CreatorID == creatorID {
			owned = append(owned, it)
		}
	}
	return owned, nil
}

// UpdateLibraryExercise replaces everything but the name. When the item's
// completeness flips, every program exercise that references it is marked
// stale.
func (s *libraryService) UpdateLibraryExercise(ctx context.Context, creatorID, id primitive.ObjectID, in LibraryExerciseInput) (*domain.LibraryExercise, error) {
	item, err := s.GetLibraryExercise(ctx, creatorID, id)
	if err != nil {
		return nil, err
	}
	if err := validateLibraryInput(in); err != nil {
		return nil, err
	}
	wasComplete := item.IsComplete()

	item.Description = in.Description
	item.VideoURL = in.VideoURL
	item.MuscleActivation = in.MuscleActivation
	item.Implements = in.Implements
	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLibraryExerciseNotFound
		}
		return nil, err
	}
	if item.IsComplete() != wasComplete {
		s.changed(ctx, item)
	}
	return item, nil
}

// DeleteLibraryExercise refuses while any program exercise still uses the item.
func (s *libraryService) DeleteLibraryExercise(ctx context.Context, creatorID, id primitive.ObjectID) error {
	item, err := s.GetLibraryExercise(ctx, creatorID, id)
	if err != nil {
		return err
	}
	n, err := s.exercises.CountReferencing(ctx, item.LibraryID, item.Name)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrLibraryExerciseInUse
	}
	if err := s.repo.Delete(ctx, id, creatorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLibraryExerciseNotFound
		}
		return err
	}
	s.invalidate(ctx, item.LibraryID)

	if item.VideoObjectKey != "" && s.files != nil {
		if err := s.files.DeleteObject(ctx, item.VideoObjectKey); err != nil {
			s.log.Warn("failed to delete video object", "key", item.VideoObjectKey, "error", err)
		}
	}
	return nil
}

// --- Video ---

// RequestVideoUpload returns a presigned PUT URL for a new video of the item.
// The video is attached once ConfirmVideoUpload is called with the key.
func (s *libraryService) RequestVideoUpload(ctx context.Context, creatorID, id primitive.ObjectID, fileName, contentType string) (*VideoUpload, error) {
	if s.files == nil {
		return nil, ErrStorageNotConfigured
	}
	if !allowedVideoTypes[contentType] {
		return nil, ErrUnsupportedVideoType
	}
	item, err := s.GetLibraryExercise(ctx, creatorID, id)
	if err != nil {
		return nil, err
	}
	key := storage.VideoObjectKey(item.LibraryID, fileName)
	url, err := s.files.GeneratePresignedUploadURL(ctx, key, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, err
	}
	return &VideoUpload{UploadURL: url, ObjectKey: key}, nil
}

// ConfirmVideoUpload attaches an uploaded object to the item, replacing any previous one.
func (s *libraryService) ConfirmVideoUpload(ctx context.Context, creatorID, id primitive.ObjectID, objectKey string) (*domain.LibraryExercise, error) {
	item, err := s.GetLibraryExercise(ctx, creatorID, id)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(objectKey, "videos/"+item.LibraryID+"/") {
		return nil, ErrInvalidVideoKey
	}
	wasComplete := item.IsComplete()
	previous := item.VideoObjectKey

	item.VideoObjectKey = objectKey
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	if item.IsComplete() != wasComplete {
		s.changed(ctx, item)
	}
	if previous != "" && previous != objectKey && s.files != nil {
		if err := s.files.DeleteObject(ctx, previous); err != nil {
			s.log.Warn("failed to delete replaced video", "key", previous, "error", err)
		}
	}
	return item, nil
}

// GetVideoURL returns a presigned playback URL, or the external URL if there is no upload.
func (s *libraryService) GetVideoURL(ctx context.Context, creatorID, id primitive.ObjectID) (string, error) {
	item, err := s.GetLibraryExercise(ctx, creatorID, id)
	if err != nil {
		return "", err
	}
	if item.VideoObjectKey != "" {
		if s.files == nil {
			return "", ErrStorageNotConfigured
		}
		return s.files.GeneratePresignedDownloadURL(ctx, item.VideoObjectKey, storage.DefaultPresignedURLExpiry)
	}
	if item.VideoURL != "" {
		return item.VideoURL, nil
	}
	return "", ErrNoVideo
}

// --- Completeness lookup ---

// LibraryExerciseComplete is cached per (library, name). A missing item is incomplete.
func (s *libraryService) LibraryExerciseComplete(ctx context.Context, libraryID, name string) (bool, error) {
	return querycache.GetOrLoad(ctx, s.cache, libraryCompleteKey(libraryID, name), func(ctx context.Context) (bool, error) {
		item, err := s.repo.GetByName(ctx, libraryID, name)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return item.IsComplete(), nil
	})
}

func (s *libraryService) invalidate(ctx context.Context, libraryID string) {
	if err := s.cache.Invalidate(ctx, libraryKey(libraryID)); err != nil {
		s.log.Warn("query cache invalidation failed", "library_id", libraryID, "error", err)
	}
}

// changed drops cached lookups of the item and marks every session that
// references it stale.
func (s *libraryService) changed(ctx context.Context, item *domain.LibraryExercise) {
	s.invalidate(ctx, item.LibraryID)
	refs, err := s.exercises.FindReferencing(ctx, item.LibraryID, item.Name)
	if err != nil {
		s.log.Warn("failed to find referencing exercises", "library_id", item.LibraryID, "name", item.Name, "error", err)
		return
	}
	seen := make(map[primitive.ObjectID]bool)
	for _, ex := range refs {
		if seen[ex.SessionID] {
			continue
		}
		seen[ex.SessionID] = true
		s.stale.session(ctx, ex.ProgramID, ex.ModuleID, ex.SessionID)
	}
}
