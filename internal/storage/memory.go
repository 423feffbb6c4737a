package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"storefront/internal/models"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore keeps uploads in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	objects  map[string]memoryObject
	resolver Resolver
}

func NewMemoryStore(mount string) *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string]memoryObject),
		resolver: NewResolver(mount, ""),
	}
}

func (s *MemoryStore) Driver() Driver { return DriverMemory }

func (s *MemoryStore) Put(ctx context.Context, r io.Reader, opts PutOptions) (MediaReference, error) {
	data, err := io.ReadAll(contextReader{ctx: ctx, r: r})
	if err != nil {
		return MediaReference{}, fmt.Errorf("%w: %v", models.ErrStorageWrite, err)
	}
	if err := ctx.Err(); err != nil {
		return MediaReference{}, fmt.Errorf("%w: %v", models.ErrStorageWrite, err)
	}

	id := newID()
	name := fileName(id, opts)

	s.mu.Lock()
	s.objects[name] = memoryObject{data: data, contentType: opts.ContentType}
	s.mu.Unlock()

	return MediaReference{
		ID:          id,
		StoragePath: name,
		PublicRef:   s.resolver.ToPublic(name),
		MimeType:    opts.ContentType,
		SizeBytes:   int64(len(data)),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *MemoryStore) Remove(_ context.Context, publicRef string) (bool, error) {
	name, err := s.resolver.ToStorage(publicRef)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[name]; !ok {
		return false, nil
	}
	delete(s.objects, name)
	return true, nil
}

func (s *MemoryStore) Open(_ context.Context, publicRef string) (*Object, error) {
	name, err := s.resolver.ToStorage(publicRef)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	obj, ok := s.objects[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	contentType := obj.contentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Object{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		Size:        int64(len(obj.data)),
		ContentType: contentType,
	}, nil
}

// Len reports how many objects are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
