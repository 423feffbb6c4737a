package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// OrderRepository keeps orders in a map and mimics the Mongo query semantics.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[primitive.ObjectID]models.Order

	CreateErr error
	StatsErr  error
	StatsHits int
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[primitive.ObjectID]models.Order)}
}

func (r *OrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	order.ID = primitive.NewObjectID()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	r.orders[order.ID] = *order
	return nil
}

func (r *OrderRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &o, nil
}

// UpdateByID round-trips the document through BSON the way the driver
// would, so a $set that cannot decode back into an order fails here too.
func (r *OrderRepository) UpdateByID(_ context.Context, id primitive.ObjectID, set bson.M) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	raw, err := bson.Marshal(o)
	if err != nil {
		return nil, err
	}
	doc := bson.M{}
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	for k, v := range set {
		doc[k] = v
	}
	doc["updatedAt"] = time.Now().UTC().Truncate(time.Millisecond)
	if raw, err = bson.Marshal(doc); err != nil {
		return nil, err
	}

	var updated models.Order
	if err := bson.Unmarshal(raw, &updated); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDatabase, err)
	}
	r.orders[id] = updated
	return &updated, nil
}

// Seed stores an order as-is, bypassing the service rules.
func (r *OrderRepository) Seed(order models.Order) models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	r.orders[order.ID] = order
	return order
}

func (r *OrderRepository) DeleteByID(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r *OrderRepository) FindMany(_ context.Context, filter models.OrderFilter, page, pageSize int64) (*models.OrderPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	matched := make([]models.Order, 0)
	for _, o := range r.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.CustomerEmail != "" && o.CustomerInfo["email"] != filter.CustomerEmail {
			continue
		}
		if filter.From != nil && o.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && o.CreatedAt.After(*filter.To) {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return &models.OrderPage{
		Total:      total,
		Page:       page,
		TotalPages: (total + pageSize - 1) / pageSize,
		Data:       matched[start:end],
	}, nil
}

func (r *OrderRepository) Stats(_ context.Context) (*models.OrderStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StatsHits++
	if r.StatsErr != nil {
		return nil, r.StatsErr
	}
	stats := &models.OrderStats{TotalOrders: int64(len(r.orders))}
	for _, o := range r.orders {
		if o.Status == models.StatusCompleted {
			stats.TotalRevenue += float64(o.Total)
		}
	}
	return stats, nil
}
