// Package testutil holds in-memory doubles for the repositories, blob store
// and cache, with switches for injecting failures.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// RecordRepository keeps catalog records in a map.
type RecordRepository struct {
	mu      sync.RWMutex
	records map[primitive.ObjectID]models.CatalogRecord
	order   []primitive.ObjectID

	InsertErr error
	FindErr   error
	UpdateErr error
	DeleteErr error
}

func NewRecordRepository() *RecordRepository {
	return &RecordRepository{records: make(map[primitive.ObjectID]models.CatalogRecord)}
}

func (r *RecordRepository) Insert(_ context.Context, record *models.CatalogRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InsertErr != nil {
		return r.InsertErr
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	record.ID = primitive.NewObjectID()
	record.CreatedAt = now
	record.UpdatedAt = now
	r.records[record.ID] = clone(*record)
	r.order = append(r.order, record.ID)
	return nil
}

func (r *RecordRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.CatalogRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	rec, ok := r.records[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := clone(rec)
	return &out, nil
}

func (r *RecordRepository) FindAll(_ context.Context) ([]models.CatalogRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	out := make([]models.CatalogRecord, 0, len(r.records))
	for _, id := range r.order {
		if rec, ok := r.records[id]; ok {
			out = append(out, clone(rec))
		}
	}
	return out, nil
}

func (r *RecordRepository) UpdateByID(_ context.Context, id primitive.ObjectID, set bson.M) (*models.CatalogRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return nil, r.UpdateErr
	}
	rec, ok := r.records[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	rec = clone(rec)
	apply(&rec, set)
	r.records[id] = rec
	out := clone(rec)
	return &out, nil
}

func (r *RecordRepository) DeleteByID(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	if _, ok := r.records[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *RecordRepository) UpdateMany(_ context.Context, ids []primitive.ObjectID, set bson.M) (models.BulkResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return models.BulkResult{}, r.UpdateErr
	}
	var res models.BulkResult
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rec, ok := r.records[id]
		if !ok {
			continue
		}
		res.MatchedCount++
		before := clone(rec)
		rec = clone(rec)
		apply(&rec, set)
		if !reflect.DeepEqual(before.Fields, rec.Fields) || !reflect.DeepEqual(before.Image, rec.Image) {
			res.ModifiedCount++
		}
		r.records[id] = rec
	}
	return res, nil
}

// Len reports the number of stored records.
func (r *RecordRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Seed stores rec as is, assigning an id when it has none.
func (r *RecordRepository) Seed(rec models.CatalogRecord) models.CatalogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.Fields == nil {
		rec.Fields = map[string]interface{}{}
	}
	r.records[rec.ID] = clone(rec)
	r.order = append(r.order, rec.ID)
	return rec
}

func apply(rec *models.CatalogRecord, set bson.M) {
	for k, v := range set {
		switch k {
		case "image":
			ref := fmt.Sprint(v)
			rec.Image = &ref
		case "updatedAt", "_id", "createdAt":
		default:
			rec.Fields[k] = v
		}
	}
	rec.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
}

func clone(rec models.CatalogRecord) models.CatalogRecord {
	out := rec
	out.Fields = make(map[string]interface{}, len(rec.Fields))
	for k, v := range rec.Fields {
		out.Fields[k] = v
	}
	if rec.Image != nil {
		img := *rec.Image
		out.Image = &img
	}
	return out
}

// Cache is an in-memory stand-in for Redis with JSON round-tripping.
type Cache struct {
	mu    sync.Mutex
	items map[string][]byte

	GetErr    error
	SetErr    error
	DeleteErr error
	Deletes   int
}

func NewCache() *Cache {
	return &Cache{items: make(map[string][]byte)}
}

func (c *Cache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return c.GetErr
	}
	data, ok := c.items[key]
	if !ok {
		return ErrMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *Cache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SetErr != nil {
		return c.SetErr
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = data
	return nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Deletes++
	if c.DeleteErr != nil {
		return c.DeleteErr
	}
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}
