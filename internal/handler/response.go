package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"storefront/internal/models"
)

const internalErrorMessage = "Internal server error"

func respondWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// handleServiceError maps service errors onto status codes. Anything that is
// not a known client error is logged and hidden behind a generic message.
func handleServiceError(c *gin.Context, logger log.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		respondWithError(c, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, models.ErrInvalidID):
		respondWithError(c, http.StatusBadRequest, "Invalid ID")
	case errors.Is(err, models.ErrNotFound):
		respondWithError(c, http.StatusNotFound, "Not found")
	default:
		_ = c.Error(err)
		level.Error(logger).Log("msg", "request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
		respondWithError(c, http.StatusInternalServerError, internalErrorMessage)
	}
}

// validationMessage drops the sentinel prefix so clients see e.g. "Title is required".
func validationMessage(err error) string {
	msg := err.Error()
	prefix := models.ErrValidation.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}
