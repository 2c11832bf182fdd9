package api

import (
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/logger"
	"alcyxob/program-studio/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProgramHandler serves programs and their module/session structure.
type ProgramHandler struct {
	programService service.ProgramService
	log            *logger.Logger
}

// NewProgramHandler creates a new ProgramHandler.
func NewProgramHandler(programService service.ProgramService, log *logger.Logger) *ProgramHandler {
	return &ProgramHandler{programService: programService, log: log}
}

// --- DTOs ---

type CreateProgramRequest struct {
	Title string `json:"title" binding:"required"`
}

// PatchProgramRequest holds the fields to change; omitted fields are kept.
type PatchProgramRequest struct {
	Title              *string                 `json:"title"`
	Status             *domain.ProgramStatus   `json:"status" binding:"omitempty,oneof=draft published"`
	Price              *float64                `json:"price" binding:"omitempty,gte=0"`
	Duration           *string                 `json:"duration"`
	DeliveryType       *string                 `json:"deliveryType"`
	FreeTrial          *domain.FreeTrial       `json:"freeTrial"`
	ProgramSettings    *domain.ProgramSettings `json:"programSettings"`
	AvailableLibraries []string                `json:"availableLibraries"`
	Tutorials          map[string][]string     `json:"tutorials"`
}

func (r PatchProgramRequest) toPatch() domain.ProgramPatch {
	return domain.ProgramPatch{
		Title:              r.Title,
		Status:             r.Status,
		Price:              r.Price,
		Duration:           r.Duration,
		DeliveryType:       r.DeliveryType,
		FreeTrial:          r.FreeTrial,
		ProgramSettings:    r.ProgramSettings,
		AvailableLibraries: r.AvailableLibraries,
		Tutorials:          r.Tutorials,
	}
}

// NodeRequest creates or renames a module or session.
type NodeRequest struct {
	Title      string             `json:"title" binding:"required"`
	LibraryRef *domain.LibraryRef `json:"libraryRef"`
}

// ReorderRequest lists every child id in its new order.
type ReorderRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

func (r ReorderRequest) objectIDs() ([]primitive.ObjectID, bool) {
	out := make([]primitive.ObjectID, len(r.IDs))
	for i, s := range r.IDs {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return nil, false
		}
		out[i] = id
	}
	return out, true
}

type ProgramResponse struct {
	ID                 string                 `json:"id"`
	CreatorID          string                 `json:"creatorId"`
	Title              string                 `json:"title"`
	Status             domain.ProgramStatus   `json:"status"`
	Price              float64                `json:"price"`
	Duration           string                 `json:"duration,omitempty"`
	DeliveryType       string                 `json:"deliveryType,omitempty"`
	FreeTrial          domain.FreeTrial       `json:"freeTrial"`
	ProgramSettings    domain.ProgramSettings `json:"programSettings"`
	AvailableLibraries []string               `json:"availableLibraries"`
	Tutorials          map[string][]string    `json:"tutorials,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
}

// MapProgramToResponse converts a domain.Program to its DTO.
func MapProgramToResponse(p *domain.Program) ProgramResponse {
	if p == nil {
		return ProgramResponse{}
	}
	libraries := p.AvailableLibraries
	if libraries == nil {
		libraries = []string{}
	}
	return ProgramResponse{
		ID:                 p.ID.Hex(),
		CreatorID:          p.CreatorID.Hex(),
		Title:              p.Title,
		Status:             p.Status,
		Price:              p.Price,
		Duration:           p.Duration,
		DeliveryType:       p.DeliveryType,
		FreeTrial:          p.FreeTrial,
		ProgramSettings:    p.ProgramSettings,
		AvailableLibraries: libraries,
		Tutorials:          p.Tutorials,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

// MapProgramsToResponse converts a slice of domain.Program to response DTOs.
func MapProgramsToResponse(programs []domain.Program) []ProgramResponse {
	out := make([]ProgramResponse, len(programs))
	for i := range programs {
		out[i] = MapProgramToResponse(&programs[i])
	}
	return out
}

// --- Programs ---

// CreateProgram godoc
// @Summary Create a draft program
// @Tags Programs
// @Security BearerAuth
// @Router /programs [post]
func (h *ProgramHandler) CreateProgram(c *gin.Context) {
	var req CreateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	program, err := h.programService.CreateProgram(c.Request.Context(), uid, req.Title)
	if err != nil {
		respondWithError(c, h.log, err, "create program")
		return
	}
	c.JSON(http.StatusCreated, MapProgramToResponse(program))
}

// ListPrograms godoc
// @Summary List the creator's programs
// @Tags Programs
// @Success 200 {array} ProgramResponse
// @Security BearerAuth
// @Router /programs [get]
func (h *ProgramHandler) ListPrograms(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	programs, err := h.programService.ListPrograms(c.Request.Context(), uid)
	if err != nil {
		respondWithError(c, h.log, err, "list programs")
		return
	}
	c.JSON(http.StatusOK, MapProgramsToResponse(programs))
}

// GetProgram godoc
// @Summary Get one program
// @Tags Programs
// @Param id path string true "Program ID"
// @Success 200 {object} ProgramResponse
// @Failure 403 {object} gin.H "Not the owner"
// @Failure 404 {object} gin.H "Program not found"
// @Security BearerAuth
// @Router /programs/{id} [get]
func (h *ProgramHandler) GetProgram(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	programID, ok := pathID(c, "id")
	if !ok {
		return
	}
	program, err := h.programService.GetProgram(c.Request.Context(), uid, programID)
	if err != nil {
		respondWithError(c, h.log, err, "get program")
		return
	}
	c.JSON(http.StatusOK, MapProgramToResponse(program))
}

// PatchProgram godoc
// @Summary Update program fields
// @Description Only the fields present in the body are changed.
// @Tags Programs
// @Security BearerAuth
// @Router /programs/{id} [patch]
func (h *ProgramHandler) PatchProgram(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	programID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req PatchProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	program, err := h.programService.PatchProgram(c.Request.Context(), uid, programID, req.toPatch())
	if err != nil {
		respondWithError(c, h.log, err, "update program")
		return
	}
	c.JSON(http.StatusOK, MapProgramToResponse(program))
}

// --- Modules ---

// CreateModule godoc
// @Summary Append a module to a program
// @Tags Modules
// @Param id path string true "Program ID"
// @Param module body NodeRequest true "Module details"
// @Security BearerAuth
// @Router /programs/{id}/modules [post]
func (h *ProgramHandler) CreateModule(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	programID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req NodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	module, err := h.programService.CreateModule(c.Request.Context(), uid, programID, req.Title, req.LibraryRef)
	if err != nil {
		respondWithError(c, h.log, err, "create module")
		return
	}
	c.JSON(http.StatusCreated, module)
}

// ListModules godoc
// @Summary List the modules of a program in order
// @Tags Modules
// @Security BearerAuth
// @Router /programs/{id}/modules [get]
func (h *ProgramHandler) ListModules(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	programID, ok := pathID(c, "id")
	if !ok {
		return
	}
	modules, err := h.programService.ListModules(c.Request.Context(), uid, programID)
	if err != nil {
		respondWithError(c, h.log, err, "list modules")
		return
	}
	if modules == nil {
		modules = []domain.Module{}
	}
	c.JSON(http.StatusOK, modules)
}

// UpdateModule godoc
// @Summary Rename a module or change its library reference
// @Tags Modules
// @Security BearerAuth
// @Router /modules/{id} [put]
func (h *ProgramHandler) UpdateModule(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	moduleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req NodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	module, err := h.programService.UpdateModule(c.Request.Context(), uid, moduleID, req.Title, req.LibraryRef)
	if err != nil {
		respondWithError(c, h.log, err, "update module")
		return
	}
	c.JSON(http.StatusOK, module)
}

// DeleteModule godoc
// @Summary Delete a module and everything under it
// @Tags Modules
// @Success 204
// @Security BearerAuth
// @Router /modules/{id} [delete]
func (h *ProgramHandler) DeleteModule(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	moduleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.programService.DeleteModule(c.Request.Context(), uid, moduleID); err != nil {
		respondWithError(c, h.log, err, "delete module")
		return
	}
	c.Status(http.StatusNoContent)
}

// ReorderModules godoc
// @Summary Persist a drag-and-drop reorder of a program's modules
// @Description ids must list every module of the program exactly once.
// @Tags Modules
// @Security BearerAuth
// @Router /programs/{id}/modules/order [put]
func (h *ProgramHandler) ReorderModules(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	programID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ids, ok := bindReorder(c)
	if !ok {
		return
	}
	if err := h.programService.ReorderModules(c.Request.Context(), uid, programID, ids); err != nil {
		respondWithError(c, h.log, err, "reorder modules")
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Sessions ---

// CreateSession godoc
// @Summary Append a session to a module
// @Tags Sessions
// @Security BearerAuth
// @Router /modules/{id}/sessions [post]
func (h *ProgramHandler) CreateSession(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	moduleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req NodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	session, err := h.programService.CreateSession(c.Request.Context(), uid, moduleID, req.Title, req.LibraryRef)
	if err != nil {
		respondWithError(c, h.log, err, "create session")
		return
	}
	c.JSON(http.StatusCreated, session)
}

// ListSessions godoc
// @Summary List the sessions of a module in order
// @Tags Sessions
// @Security BearerAuth
// @Router /modules/{id}/sessions [get]
func (h *ProgramHandler) ListSessions(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	moduleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	sessions, err := h.programService.ListSessions(c.Request.Context(), uid, moduleID)
	if err != nil {
		respondWithError(c, h.log, err, "list sessions")
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

// UpdateSession godoc
// @Summary Rename a session
// @Tags Sessions
// @Security BearerAuth
// @Router /sessions/{id} [put]
func (h *ProgramHandler) UpdateSession(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req NodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	session, err := h.programService.UpdateSession(c.Request.Context(), uid, sessionID, req.Title, req.LibraryRef)
	if err != nil {
		respondWithError(c, h.log, err, "update session")
		return
	}
	c.JSON(http.StatusOK, session)
}

// DeleteSession godoc
// @Summary Delete a session and its exercises
// @Tags Sessions
// @Success 204
// @Security BearerAuth
// @Router /sessions/{id} [delete]
func (h *ProgramHandler) DeleteSession(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.programService.DeleteSession(c.Request.Context(), uid, sessionID); err != nil {
		respondWithError(c, h.log, err, "delete session")
		return
	}
	c.Status(http.StatusNoContent)
}

// ReorderSessions godoc
// @Summary Persist a drag-and-drop order of sessions
// @Tags Sessions
// @Param order body ReorderRequest true "Every session id, in the new order"
// @Success 204
// @Security BearerAuth
// @Router /modules/{id}/sessions/order [put]
func (h *ProgramHandler) ReorderSessions(c *gin.Context) {
	uid, ok := creatorID(c)
	if !ok {
		return
	}
	moduleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ids, ok := bindReorder(c)
	if !ok {
		return
	}
	if err := h.programService.ReorderSessions(c.Request.Context(), uid, moduleID, ids); err != nil {
		respondWithError(c, h.log, err, "reorder sessions")
		return
	}
	c.Status(http.StatusNoContent)
}

// bindReorder reads a ReorderRequest and answers 400 itself on bad input.
func bindReorder(c *gin.Context) ([]primitive.ObjectID, bool) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return nil, false
	}
	ids, ok := req.objectIDs()
	if !ok {
		abortWithError(c, http.StatusBadRequest, "ids must be valid object ids.")
		return nil, false
	}
	return ids, true
}
