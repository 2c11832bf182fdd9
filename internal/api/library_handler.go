package api

import (
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/logger"
	"alcyxob/program-studio/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// LibraryHandler serves the creator's exercise library.
type LibraryHandler struct {
	libraryService service.LibraryService
	log            *logger.Logger
}

// NewLibraryHandler creates a new LibraryHandler.
func NewLibraryHandler(libraryService service.LibraryService, log *logger.Logger) *LibraryHandler {
	return &LibraryHandler{libraryService: libraryService, log: log}
}

// --- DTOs ---

// LibraryExerciseRequest is the body for creating or updating a library item.
type LibraryExerciseRequest struct {
	LibraryID        string             `json:"libraryId"`
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	VideoURL         string             `json:"videoUrl" binding:"omitempty,url"`
	MuscleActivation map[string]float64 `json:"muscleActivation"`
	Implements       []string           `json:"implements"`
}

func (r LibraryExerciseRequest) toInput() service.LibraryExerciseInput {
	return service.LibraryExerciseInput{
		LibraryID:        r.LibraryID,
		Name:             r.Name,
		Description:      r.Description,
		VideoURL:         r.VideoURL,
		MuscleActivation: r.MuscleActivation,
		Implements:       r.Implements,
	}
}

type VideoUploadRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

type ConfirmVideoRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
}

// LibraryExerciseResponse adds the computed completeness to the stored item.
type LibraryExerciseResponse struct {
	ID               string             `json:"id"`
	LibraryID        string             `json:"libraryId"`
	Name             string             `json:"name"`
	Description      string             `json:"description,omitempty"`
	VideoURL         string             `json:"videoUrl,omitempty"`
	HasVideo         bool               `json:"hasVideo"`
	MuscleActivation map[string]float64 `json:"muscleActivation,omitempty"`
	Implements       []string           `json:"implements,omitempty"`
	IsComplete       bool               `json:"isComplete"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// MapLibraryExerciseToResponse converts a domain.LibraryExercise to its DTO.
func MapLibraryExerciseToResponse(it *domain.LibraryExercise) LibraryExerciseResponse {
	if it == nil {
		return LibraryExerciseResponse{}
	}
	return LibraryExerciseResponse{
		ID:               it.ID.Hex(),
		LibraryID:        it.LibraryID,
		Name:             it.Name,
		Description:      it.Description,
		VideoURL:         it.VideoURL,
		HasVideo:         it.VideoURL != "" || it.VideoObjectKey != "",
		MuscleActivation: it.MuscleActivation,
		Implements:       it.Implements,
		IsComplete:       it.IsComplete(),
		CreatedAt:        it.CreatedAt,
		UpdatedAt:        it.UpdatedAt,
	}
}

// --- Handler Methods ---

// CreateLibraryExercise godoc
// @Summary Add an exercise to the creator's library
// @Tags Library
// @Failure 409 {object} gin.H "Name already used in this library"
// @Security BearerAuth
// @Router /library [post]
func (h *LibraryHandler) CreateLibraryExercise(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	var req LibraryExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	item, err := h.libraryService.CreateLibraryExercise(c.Request.Context(), uid, req.toInput())
	if err != nil {
		respondWithError(c, h.log, err, "create library exercise")
		return
	}
	c.JSON(http.StatusCreated, MapLibraryExerciseToResponse(item))
}

// ListLibraryExercises godoc
// @Summary List library exercises
// @Description Defaults to the caller's own library when libraryId is omitted.
// @Tags Library
// @Security BearerAuth
// @Param libraryId query string false "Library ID"
// @Router /library [get]
func (h *LibraryHandler) ListLibraryExercises(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	items, err := h.libraryService.ListLibraryExercises(c.Request.Context(), uid, c.Query("libraryId"))
	if err != nil {
		respondWithError(c, h.log, err, "list library exercises")
		return
	}
	out := make([]LibraryExerciseResponse, len(items))
	for i := range items {
		out[i] = MapLibraryExerciseToResponse(&items[i])
	}
	c.JSON(http.StatusOK, out)
}

// GetLibraryExercise godoc
// @Summary Get one library exercise
// @Tags Library
// @Security BearerAuth
// @Router /library/{id} [get]
func (h *LibraryHandler) GetLibraryExercise(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	item, err := h.libraryService.GetLibraryExercise(c.Request.Context(), uid, id)
	if err != nil {
		respondWithError(c, h.log, err, "get library exercise")
		return
	}
	c.JSON(http.StatusOK, MapLibraryExerciseToResponse(item))
}

// UpdateLibraryExercise godoc
// @Summary Update a library exercise
// @Tags Library
// @Description The name cannot change; program exercises reference it.
// @Security BearerAuth
// @Router /library/{id} [put]
func (h *LibraryHandler) UpdateLibraryExercise(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req LibraryExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	item, err := h.libraryService.UpdateLibraryExercise(c.Request.Context(), uid, id, req.toInput())
	if err != nil {
		respondWithError(c, h.log, err, "update library exercise")
		return
	}
	c.JSON(http.StatusOK, MapLibraryExerciseToResponse(item))
}

// DeleteLibraryExercise godoc
// @Summary Delete a library exercise
// @Failure 409 {object} gin.H "Still referenced by a program exercise"
// @Router /library/{id} [delete]
func (h *LibraryHandler) DeleteLibraryExercise(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.libraryService.DeleteLibraryExercise(c.Request.Context(), uid, id); err != nil {
		respondWithError(c, h.log, err, "delete library exercise")
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestVideoUpload returns a presigned PUT URL. The client uploads the file
// there and then confirms the object key.
func (h *LibraryHandler) RequestVideoUpload(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req VideoUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	upload, err := h.libraryService.RequestVideoUpload(c.Request.Context(), uid, id, req.FileName, req.ContentType)
	if err != nil {
		respondWithError(c, h.log, err, "create upload URL")
		return
	}
	c.JSON(http.StatusOK, upload)
}

// ConfirmVideoUpload godoc
// @Summary Attach an uploaded video to a library exercise
// @Tags Library
// @Security BearerAuth
// @Router /library/{id}/video [put]
func (h *LibraryHandler) ConfirmVideoUpload(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ConfirmVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	item, err := h.libraryService.ConfirmVideoUpload(c.Request.Context(), uid, id, req.ObjectKey)
	if err != nil {
		respondWithError(c, h.log, err, "attach video")
		return
	}
	c.JSON(http.StatusOK, MapLibraryExerciseToResponse(item))
}

// GetVideoURL godoc
// @Summary Get a temporary playback URL for the video
// @Tags Library
// @Failure 404 {object} gin.H "No video uploaded"
// @Security BearerAuth
// @Router /library/{id}/video [get]
func (h *LibraryHandler) GetVideoURL(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	url, err := h.libraryService.GetVideoURL(c.Request.Context(), uid, id)
	if err != nil {
		respondWithError(c, h.log, err, "get video URL")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
