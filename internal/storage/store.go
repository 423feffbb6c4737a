// Package storage keeps uploaded image bytes and hands out the public
// references that catalog records point to.
package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Driver identifies a blob backend.
type Driver string

const (
	DriverDisk   Driver = "disk"
	DriverMemory Driver = "memory"
	DriverMinio  Driver = "minio"
)

// ErrInvalidReference is returned for public references that cannot name a stored file.
var ErrInvalidReference = errors.New("invalid media reference")

// MediaReference describes one stored binary asset.
type MediaReference struct {
	ID          string    `json:"id"`
	StoragePath string    `json:"-"`
	PublicRef   string    `json:"publicRef"`
	MimeType    string    `json:"mimeType"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PutOptions carries what the store needs to name and describe an upload.
type PutOptions struct {
	Extension   string
	ContentType string
	// Size is the declared length, -1 when unknown.
	Size int64
}

// Object is an opened blob. The caller closes Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Store persists upload bytes. Implementations are safe for concurrent use.
type Store interface {
	// Put writes r and returns its reference. The reference is only returned
	// once the bytes are fully written; on error nothing is left behind.
	Put(ctx context.Context, r io.Reader, opts PutOptions) (MediaReference, error)
	// Remove deletes the bytes behind publicRef. It reports false, nil when
	// they were already gone.
	Remove(ctx context.Context, publicRef string) (bool, error)
	// Open streams the bytes behind publicRef.
	Open(ctx context.Context, publicRef string) (*Object, error)
	Driver() Driver
}

// ErrObjectNotFound is returned by Open when nothing is stored under the reference.
var ErrObjectNotFound = errors.New("media object not found")

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// fileName builds "<id><ext>" for a new upload.
func fileName(id string, opts PutOptions) string {
	return id + cleanExtension(opts.Extension, opts.ContentType)
}

// cleanExtension derives the stored extension from the validated content
// type. The client's extension is only used when the type is unknown, and
// only if it names an image itself.
func cleanExtension(ext, contentType string) string {
	if contentType != "" {
		if mt := mimetype.Lookup(contentType); mt != nil && isImageType(mt.String()) {
			return mt.Extension()
		}
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if extPattern.MatchString(ext) && isImageType(mime.TypeByExtension(ext)) {
		return ext
	}
	return ""
}

func isImageType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}

// ServedType is the Content-Type an object may be served with. Anything
// that is not an image goes out as an opaque download.
func ServedType(contentType string) string {
	if isImageType(contentType) {
		return contentType
	}
	return "application/octet-stream"
}

func newID() string {
	return uuid.NewString()
}
