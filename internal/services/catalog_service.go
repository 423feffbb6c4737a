package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/storage"
	"storefront/internal/utils"
)

const blobCleanupTimeout = 30 * time.Second

type RecordRepository interface {
	Insert(ctx context.Context, record *models.CatalogRecord) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.CatalogRecord, error)
	FindAll(ctx context.Context) ([]models.CatalogRecord, error)
	UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.CatalogRecord, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
	UpdateMany(ctx context.Context, ids []primitive.ObjectID, set bson.M) (models.BulkResult, error)
}

// CatalogService ties uploaded images to the lifecycle of one kind of catalog record.
// The record store is the source of truth; blob cleanup is best-effort.
type CatalogService struct {
	kind      models.RecordKind
	repo      RecordRepository
	blobs     storage.Store
	validator *UploadValidator
	cache     Cache
	cacheTTL  time.Duration
	logger    log.Logger

	cleanup sync.WaitGroup
}

func NewCatalogService(
	kind models.RecordKind,
	repo RecordRepository,
	blobs storage.Store,
	validator *UploadValidator,
	cache Cache,
	cacheTTL time.Duration,
	logger log.Logger,
) *CatalogService {
	if cache == nil {
		cache = utils.NoopCache{}
	}
	if validator == nil {
		validator = NewUploadValidator(DefaultMaxUploadSize)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &CatalogService{
		kind:      kind,
		repo:      repo,
		blobs:     blobs,
		validator: validator,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    log.With(logger, "kind", kind.Name),
	}
}

func (s *CatalogService) Kind() models.RecordKind { return s.kind }

func (s *CatalogService) List(ctx context.Context) ([]models.CatalogRecord, error) {
	var cached []models.CatalogRecord
	err := s.cache.Get(ctx, s.kind.CacheKey(), &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, utils.ErrCacheMiss) {
		level.Warn(s.logger).Log("msg", "cache read failed", "key", s.kind.CacheKey(), "err", err)
	}

	records, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, s.kind.CacheKey(), records, s.cacheTTL); err != nil {
		level.Warn(s.logger).Log("msg", "cache write failed", "key", s.kind.CacheKey(), "err", err)
	}
	return records, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*models.CatalogRecord, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrInvalidID
	}
	return s.repo.FindByID(ctx, objID)
}

// Create validates the upload, stores the image and inserts the record.
// If the insert fails the stored image is removed again.
func (s *CatalogService) Create(ctx context.Context, fields map[string]interface{}, file *models.FileUpload) (*models.CatalogRecord, error) {
	fields = s.kind.Sanitize(fields)

	if err := s.validator.Validate(file); err != nil {
		return nil, err
	}
	if file == nil && s.kind.ImageRequired {
		return nil, models.ErrImageRequired
	}
	if err := s.kind.CheckRequired(fields); err != nil {
		return nil, err
	}

	record := &models.CatalogRecord{Fields: fields}

	var ref storage.MediaReference
	if file != nil {
		var err error
		ref, err = s.put(ctx, file)
		if err != nil {
			return nil, err
		}
		record.Image = &ref.PublicRef
	}

	if err := s.repo.Insert(ctx, record); err != nil {
		if file != nil {
			s.compensate(ctx, ref.PublicRef, err)
		}
		return nil, err
	}

	s.invalidate(ctx)
	level.Info(s.logger).Log("msg", "record created", "id", record.ID.Hex(), "image", record.ImageRef())
	return record, nil
}

// Update merges fields into the record. With a file, the new image replaces the
// old one, and the old one is removed in the background once the record points
// at the new one.
func (s *CatalogService) Update(ctx context.Context, id string, fields map[string]interface{}, file *models.FileUpload) (*models.CatalogRecord, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrInvalidID
	}
	fields = s.kind.Sanitize(fields)

	if err := s.validator.Validate(file); err != nil {
		return nil, err
	}
	if err := s.kind.CheckPresent(fields); err != nil {
		return nil, err
	}

	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}

	if file == nil {
		updated, err := s.repo.UpdateByID(ctx, objID, set)
		if err != nil {
			return nil, err
		}
		s.invalidate(ctx)
		return updated, nil
	}

	existing, err := s.repo.FindByID(ctx, objID)
	if err != nil {
		return nil, err
	}

	ref, err := s.put(ctx, file)
	if err != nil {
		return nil, err
	}
	set["image"] = ref.PublicRef

	updated, err := s.repo.UpdateByID(ctx, objID, set)
	if err != nil {
		s.compensate(ctx, ref.PublicRef, err)
		return nil, err
	}

	if old := existing.ImageRef(); old != "" && old != ref.PublicRef {
		s.removeStale(ctx, old)
	}

	s.invalidate(ctx)
	level.Info(s.logger).Log("msg", "record updated", "id", id, "image", ref.PublicRef, "replaced", existing.ImageRef())
	return updated, nil
}

// Delete removes the record first and then, best-effort, its image.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.ErrInvalidID
	}

	existing, err := s.repo.FindByID(ctx, objID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteByID(ctx, objID); err != nil {
		return err
	}
	s.invalidate(ctx)

	if ref := existing.ImageRef(); ref != "" {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), blobCleanupTimeout)
		defer cancel()
		s.removeBlob(cleanupCtx, ref, "deleted record")
	}

	level.Info(s.logger).Log("msg", "record deleted", "id", id)
	return nil
}

func (s *CatalogService) UpdateStatus(ctx context.Context, id string, status string) (*models.CatalogRecord, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrInvalidID
	}
	if status == "" {
		return nil, models.MissingFieldError("Status")
	}

	updated, err := s.repo.UpdateByID(ctx, objID, bson.M{"status": status})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// BulkUpdateStatus sets status on every listed record. Ids that match nothing
// are not an error; they simply do not count towards MatchedCount.
func (s *CatalogService) BulkUpdateStatus(ctx context.Context, ids []string, status string) (models.BulkResult, error) {
	if len(ids) == 0 {
		return models.BulkResult{}, fmt.Errorf("%w: ids must be a non-empty array", models.ErrValidation)
	}
	if status == "" {
		return models.BulkResult{}, models.MissingFieldError("Status")
	}

	objIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return models.BulkResult{}, fmt.Errorf("%w: %q", models.ErrInvalidID, id)
		}
		objIDs = append(objIDs, objID)
	}

	res, err := s.repo.UpdateMany(ctx, objIDs, bson.M{"status": status})
	if err != nil {
		return models.BulkResult{}, err
	}
	s.invalidate(ctx)
	return res, nil
}

// RefreshCache reloads the cached listing.
func (s *CatalogService) RefreshCache(ctx context.Context) error {
	records, err := s.repo.FindAll(ctx)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.kind.CacheKey(), records, s.cacheTTL)
}

// Wait blocks until background image cleanups have finished.
func (s *CatalogService) Wait() {
	s.cleanup.Wait()
}

func (s *CatalogService) put(ctx context.Context, file *models.FileUpload) (storage.MediaReference, error) {
	ref, err := s.blobs.Put(ctx, file.Body, storage.PutOptions{
		Extension:   filepath.Ext(file.Filename),
		ContentType: file.ContentType,
		Size:        file.Size,
	})
	if err != nil {
		level.Error(s.logger).Log("msg", "image write failed", "file", file.Filename, "err", err)
		if !errors.Is(err, models.ErrStorageWrite) {
			err = fmt.Errorf("%w: %v", models.ErrStorageWrite, err)
		}
		return storage.MediaReference{}, err
	}
	level.Debug(s.logger).Log("msg", "image stored", "ref", ref.PublicRef, "size", humanize.Bytes(uint64(ref.SizeBytes)))
	return ref, nil
}

// compensate removes an image written for a record that never got persisted.
func (s *CatalogService) compensate(ctx context.Context, publicRef string, cause error) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), blobCleanupTimeout)
	defer cancel()

	if _, err := s.blobs.Remove(cleanupCtx, publicRef); err != nil {
		level.Error(s.logger).Log("msg", "compensating image removal failed", "ref", publicRef, "cause", cause, "err", err)
		return
	}
	level.Warn(s.logger).Log("msg", "removed image of unsaved record", "ref", publicRef, "cause", cause)
}

func (s *CatalogService) removeStale(ctx context.Context, publicRef string) {
	ctx = context.WithoutCancel(ctx)
	s.cleanup.Add(1)
	go func() {
		defer s.cleanup.Done()
		cleanupCtx, cancel := context.WithTimeout(ctx, blobCleanupTimeout)
		defer cancel()
		s.removeBlob(cleanupCtx, publicRef, "superseded image")
	}()
}

func (s *CatalogService) removeBlob(ctx context.Context, publicRef, reason string) {
	removed, err := s.blobs.Remove(ctx, publicRef)
	if err != nil {
		level.Error(s.logger).Log("msg", "image removal failed", "ref", publicRef, "reason", reason, "err", err)
		return
	}
	if !removed {
		level.Warn(s.logger).Log("msg", "image already absent", "ref", publicRef, "reason", reason)
	}
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if err := s.cache.Delete(context.WithoutCancel(ctx), s.kind.CacheKey()); err != nil {
		level.Warn(s.logger).Log("msg", "cache invalidation failed", "key", s.kind.CacheKey(), "err", err)
	}
}
