package api

import (
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/logger"
	"alcyxob/program-studio/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ExerciseHandler serves a session's exercises and their sets.
type ExerciseHandler struct {
	exerciseService service.ExerciseService
	log             *logger.Logger
}

// NewExerciseHandler creates a new ExerciseHandler.
func NewExerciseHandler(exerciseService service.ExerciseService, log *logger.Logger) *ExerciseHandler {
	return &ExerciseHandler{exerciseService: exerciseService, log: log}
}

// --- DTOs for API (Data Transfer Objects) ---

// ExerciseRequest is the editable content of a program exercise.
// Alternatives accepts the legacy array shape and treats it as empty.
type ExerciseRequest struct {
	Primary               map[string]string   `json:"primary"`
	Alternatives          domain.Alternatives `json:"alternatives"`
	Measures              []string            `json:"measures"`
	Objectives            []string            `json:"objectives"`
	CustomMeasureLabels   map[string]string   `json:"customMeasureLabels"`
	CustomObjectiveLabels map[string]string   `json:"customObjectiveLabels"`
}

func (r ExerciseRequest) toInput() service.ExerciseInput {
	return service.ExerciseInput{
		Primary:               r.Primary,
		Alternatives:          r.Alternatives,
		Measures:              r.Measures,
		Objectives:            r.Objectives,
		CustomMeasureLabels:   r.CustomMeasureLabels,
		CustomObjectiveLabels: r.CustomObjectiveLabels,
	}
}

// SetRequest carries objective values keyed by objective name,
// e.g. {"values": {"reps": 10, "intensity": "7"}}.
type SetRequest struct {
	Values map[string]interface{} `json:"values" binding:"required"`
}

// --- Exercises ---

// CreateExercise godoc
// @Summary Append an exercise to a session
// @Tags Exercises
// @Security BearerAuth
// @Router /sessions/{id}/exercises [post]
func (h *ExerciseHandler) CreateExercise(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	exercise, err := h.exerciseService.CreateExercise(c.Request.Context(), uid, sessionID, req.toInput())
	if err != nil {
		respondWithError(c, h.log, err, "create exercise")
		return
	}
	c.JSON(http.StatusCreated, exercise)
}

// ListExercises godoc
// @Summary List the exercises of a session in order
// @Tags Exercises
// @Security BearerAuth
// @Router /sessions/{id}/exercises [get]
func (h *ExerciseHandler) ListExercises(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	exercises, err := h.exerciseService.ListExercises(c.Request.Context(), uid, sessionID)
	if err != nil {
		respondWithError(c, h.log, err, "list exercises")
		return
	}
	if exercises == nil {
		exercises = []domain.Exercise{}
	}
	c.JSON(http.StatusOK, exercises)
}

// GetExercise godoc
// @Summary Get one exercise
// @Tags Exercises
// @Security BearerAuth
// @Router /exercises/{id} [get]
func (h *ExerciseHandler) GetExercise(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	exerciseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	exercise, err := h.exerciseService.GetExercise(c.Request.Context(), uid, exerciseID)
	if err != nil {
		respondWithError(c, h.log, err, "get exercise")
		return
	}
	c.JSON(http.StatusOK, exercise)
}

// UpdateExercise godoc
// @Summary Update the library references, measures or objectives of an exercise
// @Tags Exercises
// @Security BearerAuth
// @Router /exercises/{id} [put]
func (h *ExerciseHandler) UpdateExercise(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	exerciseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	exercise, err := h.exerciseService.UpdateExercise(c.Request.Context(), uid, exerciseID, req.toInput())
	if err != nil {
		respondWithError(c, h.log, err, "update exercise")
		return
	}
	c.JSON(http.StatusOK, exercise)
}

// DeleteExercise godoc
// @Summary Delete an exercise and its sets
// @Tags Exercises
// @Success 204
// @Security BearerAuth
// @Router /exercises/{id} [delete]
func (h *ExerciseHandler) DeleteExercise(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	exerciseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.exerciseService.DeleteExercise(c.Request.Context(), uid, exerciseID); err != nil {
		respondWithError(c, h.log, err, "delete exercise")
		return
	}
	c.Status(http.StatusNoContent)
}

// ReorderExercises godoc
// @Summary Persist a drag-and-drop order of exercises
// @Tags Exercises
// @Success 204
// @Security BearerAuth
// @Router /sessions/{id}/exercises/order [put]
func (h *ExerciseHandler) ReorderExercises(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ids, ok := bindReorder(c)
	if !ok {
		return
	}
	if err := h.exerciseService.ReorderExercises(c.Request.Context(), uid, sessionID, ids); err != nil {
		respondWithError(c, h.log, err, "reorder exercises")
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Sets ---

// CreateSet godoc
// @Summary Append a set to an exercise
// @Description intensity accepts 7, "7" or "7/10" and is stored as "7/10".
// @Tags Sets
// @Security BearerAuth
// @Router /exercises/{id}/sets [post]
func (h *ExerciseHandler) CreateSet(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	exerciseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req SetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	set, err := h.exerciseService.CreateSet(c.Request.Context(), uid, exerciseID, req.Values)
	if err != nil {
		respondWithError(c, h.log, err, "create set")
		return
	}
	c.JSON(http.StatusCreated, set)
}

// ListSets godoc
// @Summary List the sets of an exercise in order
// @Tags Sets
// @Security BearerAuth
// @Router /exercises/{id}/sets [get]
func (h *ExerciseHandler) ListSets(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	exerciseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	sets, err := h.exerciseService.ListSets(c.Request.Context(), uid, exerciseID)
	if err != nil {
		respondWithError(c, h.log, err, "list sets")
		return
	}
	if sets == nil {
		sets = []domain.Set{}
	}
	c.JSON(http.StatusOK, sets)
}

// UpdateSet godoc
// @Summary Merge objective values into a set
// @Tags Sets
// @Description Intensity is normalized to "N/10". Values not named in the body are kept.
// @Security BearerAuth
// @Router /sets/{id} [patch]
func (h *ExerciseHandler) UpdateSet(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	setID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req SetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	set, err := h.exerciseService.UpdateSet(c.Request.Context(), uid, setID, req.Values)
	if err != nil {
		respondWithError(c, h.log, err, "update set")
		return
	}
	c.JSON(http.StatusOK, set)
}

// DeleteSet godoc
// @Summary Delete a set
// @Tags Sets
// @Success 204
// @Security BearerAuth
// @Router /sets/{id} [delete]
func (h *ExerciseHandler) DeleteSet(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	setID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.exerciseService.DeleteSet(c.Request.Context(), uid, setID); err != nil {
		respondWithError(c, h.log, err, "delete set")
		return
	}
	c.Status(http.StatusNoContent)
}

// ReorderSets godoc
// @Summary Persist a drag-and-drop order of sets
// @Tags Sets
// @Success 204
// @Security BearerAuth
// @Router /exercises/{id}/sets/order [put]
func (h *ExerciseHandler) ReorderSets(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	exerciseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ids, ok := bindReorder(c)
	if !ok {
		return
	}
	if err := h.exerciseService.ReorderSets(c.Request.Context(), uid, exerciseID, ids); err != nil {
		respondWithError(c, h.log, err, "reorder sets")
		return
	}
	c.Status(http.StatusNoContent)
}
