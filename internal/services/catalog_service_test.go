package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/storage"
	"storefront/internal/testutil"
)

type catalogFixture struct {
	svc   *CatalogService
	repo  *testutil.RecordRepository
	mem   *storage.MemoryStore
	blobs *testutil.FaultyStore
	cache *testutil.Cache
}

func newCatalogFixture(t *testing.T, kind models.RecordKind) *catalogFixture {
	t.Helper()
	f := &catalogFixture{
		repo:  testutil.NewRecordRepository(),
		mem:   storage.NewMemoryStore("/uploads"),
		cache: testutil.NewCache(),
	}
	f.blobs = testutil.NewFaultyStore(f.mem)
	f.svc = NewCatalogService(kind, f.repo, f.blobs, NewUploadValidator(DefaultMaxUploadSize), f.cache, time.Minute, log.NewNopLogger())
	return f
}

func jpeg(size int) *models.FileUpload {
	return &models.FileUpload{
		Filename:    "banner.jpg",
		ContentType: "image/jpeg",
		Size:        int64(size),
		Body:        bytes.NewReader(bytes.Repeat([]byte{0xff}, size)),
	}
}

func TestCatalogService_CreateThenRead(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.SliderKind)

	rec, err := f.svc.Create(ctx, map[string]interface{}{"title": "Summer Sale"}, jpeg(2<<20))
	require.NoError(t, err)
	require.NotNil(t, rec.Image)
	assert.Regexp(t, `^/uploads/[0-9a-f-]{36}\.jpg$`, rec.ImageRef())

	got, err := f.svc.Get(ctx, rec.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, rec.ImageRef(), got.ImageRef())
	assert.Equal(t, "Summer Sale", got.Fields["title"])
	assert.True(t, testutil.Exists(ctx, f.mem, rec.ImageRef()))
}

func TestCatalogService_CreateWithoutOptionalImage(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.ProductKind)

	rec, err := f.svc.Create(ctx, map[string]interface{}{"title": "Mug", "price": "9.99", "_id": "forged"}, nil)
	require.NoError(t, err)
	assert.Nil(t, rec.Image)
	assert.NotContains(t, rec.Fields, "_id")
	assert.Equal(t, 0, f.mem.Len())
}

func TestCatalogService_CreateCategoryDropsUnknownFields(t *testing.T) {
	f := newCatalogFixture(t, models.CategoryKind)

	rec, err := f.svc.Create(context.Background(), map[string]interface{}{"name": "Mugs", "slug": "mugs", "price": 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Mugs", "slug": "mugs"}, rec.Fields)
}

func TestCatalogService_UpdateCategoryDropsUnknownFields(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.CategoryKind)

	rec, err := f.svc.Create(ctx, map[string]interface{}{"name": "Mugs"}, nil)
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, rec.ID.Hex(), map[string]interface{}{"name": "Cups", "price": 4, "featured": true}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "Cups"}, updated.Fields)

	got, err := f.svc.Get(ctx, rec.ID.Hex())
	require.NoError(t, err)
	assert.NotContains(t, got.Fields, "price")
	assert.NotContains(t, got.Fields, "featured")
}

func TestCatalogService_SliderRequiresImage(t *testing.T) {
	f := newCatalogFixture(t, models.SliderKind)

	_, err := f.svc.Create(context.Background(), map[string]interface{}{"title": "Summer Sale"}, nil)
	assert.ErrorIs(t, err, models.ErrImageRequired)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, 0, f.repo.Len())
}

func TestCatalogService_SliderRequiresTitleBeforeWriting(t *testing.T) {
	f := newCatalogFixture(t, models.SliderKind)

	_, err := f.svc.Create(context.Background(), map[string]interface{}{"title": ""}, jpeg(10))
	require.Error(t, err)
	assert.EqualError(t, err, "validation error: Title is required")
	assert.Equal(t, 0, f.repo.Len())
	assert.Equal(t, 0, f.mem.Len(), "no blob may be written for a rejected request")
}

func TestCatalogService_RejectsNonImage(t *testing.T) {
	f := newCatalogFixture(t, models.ProductKind)
	file := jpeg(10)
	file.ContentType = "application/pdf"

	_, err := f.svc.Create(context.Background(), map[string]interface{}{"title": "x"}, file)
	assert.ErrorIs(t, err, models.ErrUnsupportedMediaType)
	assert.Equal(t, 0, f.mem.Len())
	assert.Equal(t, 0, f.repo.Len())
}

func TestCatalogService_CreateCompensatesFailedInsert(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.SliderKind)
	insertErr := errors.New("insert: connection refused")
	f.repo.InsertErr = insertErr

	_, err := f.svc.Create(ctx, map[string]interface{}{"title": "Summer Sale"}, jpeg(1024))
	assert.ErrorIs(t, err, insertErr)
	assert.Equal(t, 0, f.mem.Len(), "blob written before the failed insert must be removed")
	assert.Len(t, f.blobs.Removed(), 1)
}

func TestCatalogService_CompensationFailureKeepsOriginalError(t *testing.T) {
	f := newCatalogFixture(t, models.SliderKind)
	insertErr := errors.New("insert failed")
	f.repo.InsertErr = insertErr
	f.blobs.RemoveErr = errors.New("disk gone")

	_, err := f.svc.Create(context.Background(), map[string]interface{}{"title": "Summer Sale"}, jpeg(10))
	assert.ErrorIs(t, err, insertErr)
	assert.NotContains(t, err.Error(), "disk gone")
}

func TestCatalogService_CreateStorageFailure(t *testing.T) {
	f := newCatalogFixture(t, models.SliderKind)
	f.blobs.PutErr = errors.New("no space left on device")

	_, err := f.svc.Create(context.Background(), map[string]interface{}{"title": "Summer Sale"}, jpeg(10))
	assert.ErrorIs(t, err, models.ErrStorageWrite)
	assert.Equal(t, 0, f.repo.Len())
}

func TestCatalogService_CreateCancelledUpload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newCatalogFixture(t, models.SliderKind)

	_, err := f.svc.Create(ctx, map[string]interface{}{"title": "Summer Sale"}, jpeg(10))
	assert.ErrorIs(t, err, models.ErrStorageWrite)
	assert.Equal(t, 0, f.mem.Len())
	assert.Equal(t, 0, f.repo.Len())
}

func TestCatalogService_UpdateSupersedesImage(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.CategoryKind)

	rec, err := f.svc.Create(ctx, map[string]interface{}{"name": "Mugs"}, jpeg(10))
	require.NoError(t, err)
	oldRef := rec.ImageRef()

	updated, err := f.svc.Update(ctx, rec.ID.Hex(), map[string]interface{}{"description": "Ceramic"}, jpeg(20))
	require.NoError(t, err)
	f.svc.Wait()

	newRef := updated.ImageRef()
	assert.NotEqual(t, oldRef, newRef)
	assert.Equal(t, "Mugs", updated.Fields["name"])
	assert.Equal(t, "Ceramic", updated.Fields["description"])
	assert.False(t, testutil.Exists(ctx, f.mem, oldRef), "old image must be removed")
	assert.True(t, testutil.Exists(ctx, f.mem, newRef))

	stored, err := f.svc.Get(ctx, rec.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, newRef, stored.ImageRef())
}

func TestCatalogService_UpdateWithoutFileKeepsImage(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.CategoryKind)

	rec, err := f.svc.Create(ctx, map[string]interface{}{"name": "Mugs"}, jpeg(10))
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, rec.ID.Hex(), map[string]interface{}{"name": "Cups", "image": "/uploads/forged.png"}, nil)
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, "Cups", updated.Fields["name"])
	assert.Equal(t, rec.ImageRef(), updated.ImageRef())
	assert.True(t, testutil.Exists(ctx, f.mem, rec.ImageRef()))
	assert.Empty(t, f.blobs.Removed())
}

func TestCatalogService_UpdateFailureCompensates(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.CategoryKind)

	rec, err := f.svc.Create(ctx, map[string]interface{}{"name": "Mugs"}, jpeg(10))
	require.NoError(t, err)

	updateErr := errors.New("write conflict")
	f.repo.UpdateErr = updateErr
	_, err = f.svc.Update(ctx, rec.ID.Hex(), nil, jpeg(20))
	f.svc.Wait()

	assert.ErrorIs(t, err, updateErr)
	assert.Equal(t, 1, f.mem.Len(), "only the original image remains")
	assert.True(t, testutil.Exists(ctx, f.mem, rec.ImageRef()))
}

func TestCatalogService_UpdateMissingRecordWritesNothing(t *testing.T) {
	f := newCatalogFixture(t, models.CategoryKind)

	_, err := f.svc.Update(context.Background(), primitive.NewObjectID().Hex(), nil, jpeg(10))
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 0, f.mem.Len())
}

func TestCatalogService_UpdateBlankRequiredField(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.SliderKind)

	rec, err := f.svc.Create(ctx, map[string]interface{}{"title": "Summer Sale"}, jpeg(10))
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, rec.ID.Hex(), map[string]interface{}{"title": ""}, nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCatalogService_StaleRemovalFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.CategoryKind)

	rec, err := f.svc.Create(ctx, map[string]interface{}{"name": "Mugs"}, jpeg(10))
	require.NoError(t, err)

	f.blobs.RemoveErr = errors.New("permission denied")
	updated, err := f.svc.Update(ctx, rec.ID.Hex(), nil, jpeg(20))
	f.svc.Wait()

	require.NoError(t, err)
	assert.NotEqual(t, rec.ImageRef(), updated.ImageRef())
}

func TestCatalogService_DeleteThenRead(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.ProductKind)

	rec, err := f.svc.Create(ctx, map[string]interface{}{"title": "Mug"}, jpeg(10))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, rec.ID.Hex()))

	_, err = f.svc.Get(ctx, rec.ID.Hex())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, testutil.Exists(ctx, f.mem, rec.ImageRef()))
}

func TestCatalogService_DeleteMissingTouchesNoBlobs(t *testing.T) {
	f := newCatalogFixture(t, models.ProductKind)

	err := f.svc.Delete(context.Background(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, f.blobs.Removed())
}

func TestCatalogService_DeleteSucceedsWhenBlobRemovalFails(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.ProductKind)

	rec, err := f.svc.Create(ctx, map[string]interface{}{"title": "Mug"}, jpeg(10))
	require.NoError(t, err)
	f.blobs.RemoveErr = errors.New("io error")

	require.NoError(t, f.svc.Delete(ctx, rec.ID.Hex()))
	assert.Equal(t, 0, f.repo.Len())
}

func TestCatalogService_DeleteWithAlreadyMissingBlob(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.ProductKind)

	rec, err := f.svc.Create(ctx, map[string]interface{}{"title": "Mug"}, jpeg(10))
	require.NoError(t, err)
	_, err = f.mem.Remove(ctx, rec.ImageRef())
	require.NoError(t, err)

	assert.NoError(t, f.svc.Delete(ctx, rec.ID.Hex()))
}

func TestCatalogService_InvalidID(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.ProductKind)

	_, err := f.svc.Get(ctx, "not-an-id")
	assert.ErrorIs(t, err, models.ErrInvalidID)
	assert.ErrorIs(t, f.svc.Delete(ctx, "123"), models.ErrInvalidID)
	_, err = f.svc.Update(ctx, "zz", nil, jpeg(10))
	assert.ErrorIs(t, err, models.ErrInvalidID)
	assert.Equal(t, 0, f.mem.Len())
}

func TestCatalogService_BulkUpdateWithMissingID(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.ProductKind)

	a, err := f.svc.Create(ctx, map[string]interface{}{"title": "a", "status": "active"}, nil)
	require.NoError(t, err)
	c, err := f.svc.Create(ctx, map[string]interface{}{"title": "c", "status": "active"}, nil)
	require.NoError(t, err)
	missing := primitive.NewObjectID().Hex()

	res, err := f.svc.BulkUpdateStatus(ctx, []string{a.ID.Hex(), missing, c.ID.Hex()}, "archived")
	require.NoError(t, err)
	assert.Equal(t, models.BulkResult{MatchedCount: 2, ModifiedCount: 2}, res)

	got, err := f.svc.Get(ctx, a.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "archived", got.Fields["status"])
}

func TestCatalogService_BulkUpdateValidation(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.ProductKind)

	_, err := f.svc.BulkUpdateStatus(ctx, nil, "archived")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.BulkUpdateStatus(ctx, []string{primitive.NewObjectID().Hex()}, "")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.BulkUpdateStatus(ctx, []string{"bad"}, "archived")
	assert.ErrorIs(t, err, models.ErrInvalidID)
}

func TestCatalogService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.ProductKind)

	rec, err := f.svc.Create(ctx, map[string]interface{}{"title": "Mug"}, nil)
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(ctx, rec.ID.Hex(), "inactive")
	require.NoError(t, err)
	assert.Equal(t, "inactive", updated.Fields["status"])

	_, err = f.svc.UpdateStatus(ctx, primitive.NewObjectID().Hex(), "inactive")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCatalogService_ListCachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.ProductKind)

	_, err := f.svc.Create(ctx, map[string]interface{}{"title": "a"}, nil)
	require.NoError(t, err)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.True(t, f.cache.Has(models.ProductKind.CacheKey()))

	// served from cache even when the repository is down
	f.repo.FindErr = errors.New("down")
	list, err = f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	f.repo.FindErr = nil

	_, err = f.svc.Create(ctx, map[string]interface{}{"title": "b"}, nil)
	require.NoError(t, err)
	assert.False(t, f.cache.Has(models.ProductKind.CacheKey()))

	list, err = f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCatalogService_ListSurvivesCacheOutage(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t, models.ProductKind)
	f.cache.GetErr = errors.New("redis down")
	f.cache.SetErr = errors.New("redis down")

	_, err := f.svc.Create(ctx, map[string]interface{}{"title": "a"}, nil)
	require.NoError(t, err)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
