package services

import (
	"strings"

	"storefront/internal/models"
)

// DefaultMaxUploadSize is 5 MiB.
const DefaultMaxUploadSize int64 = 5 << 20

// UploadValidator checks an incoming file before any bytes are stored.
type UploadValidator struct {
	MaxSize int64
}

func NewUploadValidator(maxSize int64) *UploadValidator {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	return &UploadValidator{MaxSize: maxSize}
}

// Validate accepts image/* files no larger than MaxSize. A nil file is not an error;
// whether an image is mandatory is decided per record kind.
func (v *UploadValidator) Validate(file *models.FileUpload) error {
	if file == nil {
		return nil
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(file.ContentType)), "image/") {
		return models.ErrUnsupportedMediaType
	}
	if file.Size > v.MaxSize {
		return models.ErrPayloadTooLarge
	}
	return nil
}
