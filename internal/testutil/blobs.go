package testutil

import (
	"context"
	"io"
	"sync"

	"storefront/internal/storage"
	"storefront/internal/utils"
)

// ErrMiss is what Cache.Get returns for absent keys.
var ErrMiss = utils.ErrCacheMiss

// FaultyStore wraps a real store and fails on demand.
type FaultyStore struct {
	storage.Store

	mu        sync.Mutex
	PutErr    error
	RemoveErr error
	removed   []string
}

func NewFaultyStore(inner storage.Store) *FaultyStore {
	return &FaultyStore{Store: inner}
}

func (f *FaultyStore) Put(ctx context.Context, r io.Reader, opts storage.PutOptions) (storage.MediaReference, error) {
	f.mu.Lock()
	err := f.PutErr
	f.mu.Unlock()
	if err != nil {
		return storage.MediaReference{}, err
	}
	return f.Store.Put(ctx, r, opts)
}

func (f *FaultyStore) Remove(ctx context.Context, publicRef string) (bool, error) {
	f.mu.Lock()
	err := f.RemoveErr
	f.removed = append(f.removed, publicRef)
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return f.Store.Remove(ctx, publicRef)
}

// Removed lists every reference Remove was called with.
func (f *FaultyStore) Removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

// Exists reports whether publicRef can still be opened.
func Exists(ctx context.Context, store storage.Store, publicRef string) bool {
	obj, err := store.Open(ctx, publicRef)
	if err != nil {
		return false
	}
	_ = obj.Body.Close()
	return true
}
