package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"

	"storefront/internal/storage"
)

// MediaHandler streams stored images back to clients.
type MediaHandler struct {
	store  storage.Store
	logger log.Logger
}

func NewMediaHandler(store storage.Store, logger log.Logger) *MediaHandler {
	return &MediaHandler{store: store, logger: logger}
}

func (h *MediaHandler) Serve(c *gin.Context) {
	obj, err := h.store.Open(c.Request.Context(), c.Param("file"))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidReference) {
			respondWithError(c, http.StatusNotFound, "File not found")
			return
		}
		handleServiceError(c, h.logger, err)
		return
	}
	defer obj.Body.Close()

	c.DataFromReader(http.StatusOK, obj.Size, storage.ServedType(obj.ContentType), obj.Body, map[string]string{
		"Cache-Control":           "public, max-age=31536000, immutable",
		"X-Content-Type-Options":  "nosniff",
		"Content-Security-Policy": "default-src 'none'; sandbox",
	})
}
