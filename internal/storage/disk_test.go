package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTempDisk(t *testing.T) (*DiskStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "/uploads", log.NewNopLogger())
	require.NoError(t, err)
	return store, dir
}

func TestDiskStore_PutOpenRemove(t *testing.T) {
	ctx := context.Background()
	store, dir := newTempDisk(t)

	ref, err := store.Put(ctx, bytes.NewReader(pngHeader), PutOptions{Extension: ".png", ContentType: "image/png", Size: int64(len(pngHeader))})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref.PublicRef, "/uploads/"))
	assert.True(t, strings.HasSuffix(ref.PublicRef, ".png"))
	assert.Equal(t, int64(len(pngHeader)), ref.SizeBytes)
	assert.Equal(t, filepath.Join(dir, ref.ID+".png"), ref.StoragePath)

	obj, err := store.Open(ctx, ref.PublicRef)
	require.NoError(t, err)
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, obj.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Equal(t, "image/png", obj.ContentType)

	removed, err := store.Remove(ctx, ref.PublicRef)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Remove(ctx, ref.PublicRef)
	require.NoError(t, err)
	assert.False(t, removed, "second remove reports absence")

	_, err = store.Open(ctx, ref.PublicRef)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestDiskStore_DistinctNames(t *testing.T) {
	ctx := context.Background()
	store, _ := newTempDisk(t)

	a, err := store.Put(ctx, strings.NewReader("a"), PutOptions{Extension: ".jpg"})
	require.NoError(t, err)
	b, err := store.Put(ctx, strings.NewReader("b"), PutOptions{Extension: ".jpg"})
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicRef, b.PublicRef)
}

type failingReader struct{ after int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("connection reset")
	}
	n := f.after
	if n > len(p) {
		n = len(p)
	}
	for i := 0; i < n; i++ {
		p[i] = 'x'
	}
	f.after -= n
	return n, nil
}

func TestDiskStore_FailedWriteLeavesNothing(t *testing.T) {
	ctx := context.Background()
	store, dir := newTempDisk(t)

	_, err := store.Put(ctx, &failingReader{after: 10}, PutOptions{Extension: ".png"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrStorageWrite))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store, dir := newTempDisk(t)

	_, err := store.Put(ctx, strings.NewReader("data"), PutOptions{Extension: ".png"})
	assert.ErrorIs(t, err, models.ErrStorageWrite)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskStore_RemoveStaysInsideRoot(t *testing.T) {
	ctx := context.Background()
	store, dir := newTempDisk(t)

	outside := filepath.Join(filepath.Dir(dir), "keep.png")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	t.Cleanup(func() { _ = os.Remove(outside) })

	removed, err := store.Remove(ctx, "/uploads/../keep.png")
	require.NoError(t, err)
	assert.False(t, removed)
	_, err = os.Stat(outside)
	assert.NoError(t, err, "file outside the root must survive")
}

func TestDiskStore_NeverServesMarkup(t *testing.T) {
	ctx := context.Background()
	store, dir := newTempDisk(t)

	ref, err := store.Put(ctx, strings.NewReader("<script>alert(1)</script>"), PutOptions{Extension: ".html", ContentType: "image/png"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref.PublicRef, ".png"), ref.PublicRef)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy.html"), []byte("<html><script></script></html>"), 0o644))
	obj, err := store.Open(ctx, "/uploads/legacy.html")
	require.NoError(t, err)
	require.NoError(t, obj.Body.Close())
	assert.Equal(t, "application/octet-stream", obj.ContentType)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "noext"), pngHeader, 0o644))
	obj, err = store.Open(ctx, "/uploads/noext")
	require.NoError(t, err)
	require.NoError(t, obj.Body.Close())
	assert.Equal(t, "image/png", obj.ContentType)
}
