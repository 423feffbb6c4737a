package storage

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("/uploads")

	ref, err := store.Put(ctx, strings.NewReader("hello"), PutOptions{ContentType: "image/gif"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref.PublicRef, ".gif"))
	assert.Equal(t, 1, store.Len())

	obj, err := store.Open(ctx, ref.PublicRef)
	require.NoError(t, err)
	data, _ := io.ReadAll(obj.Body)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "image/gif", obj.ContentType)

	removed, err := store.Remove(ctx, ref.PublicRef)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = store.Remove(ctx, ref.PublicRef)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_ConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("/uploads")

	var wg sync.WaitGroup
	refs := make([]string, 50)
	for i := range refs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref, err := store.Put(ctx, strings.NewReader("x"), PutOptions{Extension: ".png"})
			assert.NoError(t, err)
			refs[i] = ref.PublicRef
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		seen[r] = struct{}{}
	}
	assert.Len(t, seen, len(refs))
	assert.Equal(t, len(refs), store.Len())
}
