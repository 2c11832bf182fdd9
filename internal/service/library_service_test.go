package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateLibraryExerciseDefaults(t *testing.T) {
	h := newHarness()
	defer h.close()
	svc := h.libraryService(nil)
	ctx := context.Background()
	creator := primitive.NewObjectID()

	item, err := svc.CreateLibraryExercise(ctx, creator, LibraryExerciseInput{Name: " Squat "})
	require.NoError(t, err)
	assert.Equal(t, creator.Hex(), item.LibraryID)
	assert.Equal(t, "Squat", item.Name)

	_, err = svc.CreateLibraryExercise(ctx, creator, LibraryExerciseInput{Name: "Squat"})
	assert.ErrorIs(t, err, ErrLibraryExerciseExists)

	_, err = svc.CreateLibraryExercise(ctx, creator, LibraryExerciseInput{
		Name:             "Row",
		MuscleActivation: map[string]float64{"lats": 140},
	})
	assert.ErrorIs(t, err, ErrInvalidMuscleActivation)
}

func TestDeleteLibraryExerciseInUse(t *testing.T) {
	h := newHarness()
	defer h.close()
	tr := h.seedTree()
	h.completeLibrary(tr.creator)
	svc := h.libraryService(nil)
	ctx := context.Background()

	items, err := svc.ListLibraryExercises(ctx, tr.creator, "lib")
	require.NoError(t, err)
	require.Len(t, items, 2)

	for _, it := range items {
		assert.ErrorIs(t, svc.DeleteLibraryExercise(ctx, tr.creator, it.ID), ErrLibraryExerciseInUse, it.Name)
	}

	require.NoError(t, h.exercises.Delete(ctx, tr.exercise))
	assert.NoError(t, svc.DeleteLibraryExercise(ctx, tr.creator, items[0].ID))
}

func TestLibraryOwnership(t *testing.T) {
	h := newHarness()
	defer h.close()
	owner := primitive.NewObjectID()
	h.completeLibrary(owner)
	svc := h.libraryService(nil)
	ctx := context.Background()

	items, _ := h.library.GetByLibraryID(ctx, "lib")
	_, err := svc.GetLibraryExercise(ctx, primitive.NewObjectID(), items[0].ID)
	assert.ErrorIs(t, err, ErrLibraryAccessDenied)

	listed, err := svc.ListLibraryExercises(ctx, primitive.NewObjectID(), "lib")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestLibraryExerciseCompleteIsCached(t *testing.T) {
	h := newHarness()
	defer h.close()
	creator := primitive.NewObjectID()
	h.completeLibrary(creator)
	svc := h.libraryService(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := svc.LibraryExerciseComplete(ctx, "lib", "Squat")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, h.library.reads)

	ok, err := svc.LibraryExerciseComplete(ctx, "lib", "Missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLibraryCompletenessFlipMarksReferencesStale(t *testing.T) {
	h := newHarness()
	defer h.close()
	tr := h.seedTree()
	h.completeLibrary(tr.creator)
	svc := h.libraryService(nil)
	ctx := context.Background()

	require.NoError(t, h.sessions.SetCompleteness(ctx, tr.session, boolPtr(true)))
	h.state.Flags.Merge(map[string]bool{tr.session.Hex(): false})
	ok, _ := svc.LibraryExerciseComplete(ctx, "lib", "Squat")
	require.True(t, ok)

	squat, err := h.library.GetByName(ctx, "lib", "Squat")
	require.NoError(t, err)
	_, err = svc.UpdateLibraryExercise(ctx, tr.creator, squat.ID, LibraryExerciseInput{
		Description:      "no implements yet",
		VideoURL:         squat.VideoURL,
		MuscleActivation: squat.MuscleActivation,
	})
	require.NoError(t, err)

	s, _ := h.sessions.GetByID(ctx, tr.session)
	assert.Nil(t, s.IsComplete)
	_, known := h.state.Flags.Lookup(tr.session.Hex())
	assert.False(t, known)

	ok, err = svc.LibraryExerciseComplete(ctx, "lib", "Squat")
	require.NoError(t, err)
	assert.False(t, ok, "cached lookup was invalidated")
}

func TestVideoUploadFlow(t *testing.T) {
	h := newHarness()
	defer h.close()
	files := &stubFiles{}
	svc := h.libraryService(files)
	ctx := context.Background()
	creator := primitive.NewObjectID()

	item, err := svc.CreateLibraryExercise(ctx, creator, LibraryExerciseInput{LibraryID: "lib", Name: "Squat"})
	require.NoError(t, err)

	_, err = svc.RequestVideoUpload(ctx, creator, item.ID, "squat.gif", "image/gif")
	assert.ErrorIs(t, err, ErrUnsupportedVideoType)

	up, err := svc.RequestVideoUpload(ctx, creator, item.ID, "squat.mp4", "video/mp4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.ObjectKey, "videos/lib/"), up.ObjectKey)
	assert.Contains(t, up.UploadURL, up.ObjectKey)

	_, err = svc.ConfirmVideoUpload(ctx, creator, item.ID, "videos/other/x.mp4")
	assert.ErrorIs(t, err, ErrInvalidVideoKey)

	confirmed, err := svc.ConfirmVideoUpload(ctx, creator, item.ID, up.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, up.ObjectKey, confirmed.VideoObjectKey)

	url, err := svc.GetVideoURL(ctx, creator, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://download.example/"+up.ObjectKey, url)

	replacement, _ := svc.RequestVideoUpload(ctx, creator, item.ID, "squat2.mp4", "video/mp4")
	_, err = svc.ConfirmVideoUpload(ctx, creator, item.ID, replacement.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, []string{up.ObjectKey}, files.deleted)
}

func TestVideoWithoutStorage(t *testing.T) {
	h := newHarness()
	defer h.close()
	svc := h.libraryService(nil)
	ctx := context.Background()
	creator := primitive.NewObjectID()

	item, err := svc.CreateLibraryExercise(ctx, creator, LibraryExerciseInput{Name: "Squat"})
	require.NoError(t, err)

	_, err = svc.RequestVideoUpload(ctx, creator, item.ID, "squat.mp4", "video/mp4")
	assert.ErrorIs(t, err, ErrStorageNotConfigured)

	_, err = svc.GetVideoURL(ctx, creator, item.ID)
	assert.ErrorIs(t, err, ErrNoVideo)
}
