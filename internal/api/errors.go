package api

import (
	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/logger"
	"alcyxob/program-studio/internal/repository"
	"alcyxob/program-studio/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// statusFor maps service errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrProgramNotFound),
		errors.Is(err, service.ErrModuleNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrExerciseNotFound),
		errors.Is(err, service.ErrSetNotFound),
		errors.Is(err, service.ErrLibraryExerciseNotFound),
		errors.Is(err, service.ErrNoVideo):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAccessDenied),
		errors.Is(err, service.ErrLibraryAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrValidationFailed),
		errors.Is(err, service.ErrReorderMismatch),
		errors.Is(err, service.ErrInvalidProgramStatus),
		errors.Is(err, service.ErrInvalidVideoKey),
		errors.Is(err, service.ErrUnsupportedVideoType),
		errors.Is(err, service.ErrInvalidMuscleActivation),
		errors.Is(err, domain.ErrInvalidIntensity),
		errors.Is(err, repository.ErrInvalidField):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrLibraryExerciseInUse),
		errors.Is(err, service.ErrLibraryExerciseExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrStorageNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondWithError aborts with the status for err. Internal errors are
// logged and hidden from the client.
func respondWithError(c *gin.Context, log *logger.Logger, err error, action string) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error(action+" failed", "path", c.FullPath(), "error", err)
		abortWithError(c, code, "Failed to "+action+".")
		return
	}
	abortWithError(c, code, err.Error())
}
