package services

import (
	"context"
	"time"
)

// Cache is the subset of the Redis wrapper the services rely on.
// Get must return utils.ErrCacheMiss for absent keys.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
