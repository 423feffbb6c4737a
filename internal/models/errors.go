package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidID  = errors.New("invalid id")
	ErrValidation = errors.New("validation error")
	ErrDatabase   = errors.New("database error")

	ErrStorageWrite  = errors.New("storage write error")
	ErrStorageDelete = errors.New("storage delete error")

	ErrUnsupportedMediaType = fmt.Errorf("%w: only image files are allowed", ErrValidation)
	ErrPayloadTooLarge      = fmt.Errorf("%w: file too large", ErrValidation)
	ErrImageRequired        = fmt.Errorf("%w: Image file is required", ErrValidation)
)

// MissingFieldError reports a required form field that was empty.
func MissingFieldError(field string) error {
	return fmt.Errorf("%w: %s is required", ErrValidation, field)
}
