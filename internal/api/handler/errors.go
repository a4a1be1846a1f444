package handler

import (
	"errors"
	"net/http"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/logger"

	"github.com/gin-gonic/gin"
)

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrInvalidOTP):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrUnauthorized), errors.Is(err, apperrors.ErrEmailNotVerified):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidTransition), errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrInvalidReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, apperrors.ErrTransientStore), errors.Is(err, apperrors.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleAPIError writes err as {"error", "code"} with the matching status. Internal details of
// store failures are logged, not returned.
func HandleAPIError(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": apperrors.Code(err)})
}

func badRequest(c *gin.Context, msg string) {
	HandleAPIError(c, apperrors.New(apperrors.ErrValidation, msg))
}
