package api

import (
	"alcyxob/program-studio/internal/logger"
	"alcyxob/program-studio/internal/service"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// CompletenessHandler exposes the completeness flags of the content tree.
type CompletenessHandler struct {
	completenessService service.CompletenessService
	log                 *logger.Logger
}

// NewCompletenessHandler creates a new CompletenessHandler.
func NewCompletenessHandler(completenessService service.CompletenessService, log *logger.Logger) *CompletenessHandler {
	return &CompletenessHandler{completenessService: completenessService, log: log}
}

// ProgramCompleteness godoc
// @Summary Module flags of a program
// @Description Returns the known flags at once. Modules listed in pending are
// @Description being reconciled; pass wait=true to block until they are done.
// @Tags Completeness
// @Security BearerAuth
// @Param wait query bool false "Wait for reconciliation"
// @Success 200 {object} service.CompletenessView
// @Router /programs/{id}/completeness [get]
func (h *CompletenessHandler) ProgramCompleteness(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	programID, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.completenessService.ProgramCompleteness(c.Request.Context(), uid, programID, waitParam(c))
	if err != nil {
		respondWithError(c, h.log, err, "get program completeness")
		return
	}
	c.JSON(http.StatusOK, view)
}

// ModuleCompleteness godoc
// @Summary Session flags of a module
// @Tags Completeness
// @Param wait query bool false "Wait for reconciliation"
// @Success 200 {object} service.CompletenessView
// @Security BearerAuth
// @Router /modules/{id}/completeness [get]
func (h *CompletenessHandler) ModuleCompleteness(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	moduleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.completenessService.ModuleCompleteness(c.Request.Context(), uid, moduleID, waitParam(c))
	if err != nil {
		respondWithError(c, h.log, err, "get module completeness")
		return
	}
	c.JSON(http.StatusOK, view)
}

// RefreshModule godoc
// @Summary Recompute and store a module's flags
// @Tags Completeness
// @Success 200 {object} service.CompletenessView
// @Security BearerAuth
// @Router /modules/{id}/completeness/refresh [post]
func (h *CompletenessHandler) RefreshModule(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	moduleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.completenessService.RefreshModule(c.Request.Context(), uid, moduleID)
	if err != nil {
		respondWithError(c, h.log, err, "refresh module completeness")
		return
	}
	c.JSON(http.StatusOK, view)
}

// ExerciseCompleteness godoc
// @Summary Explain why an exercise is (in)complete
// @Tags Completeness
// @Success 200 {object} service.ExerciseCompleteness
// @Security BearerAuth
// @Router /exercises/{id}/completeness [get]
func (h *CompletenessHandler) ExerciseCompleteness(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	exerciseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.completenessService.ExerciseCompleteness(c.Request.Context(), uid, exerciseID)
	if err != nil {
		respondWithError(c, h.log, err, "check exercise completeness")
		return
	}
	c.JSON(http.StatusOK, result)
}

func waitParam(c *gin.Context) bool {
	wait, _ := strconv.ParseBool(c.Query("wait"))
	return wait
}
