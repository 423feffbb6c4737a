package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/utils"
)

const orderStatsCacheKey = "orders:stats"

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Order, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
	FindMany(ctx context.Context, filter models.OrderFilter, page, pageSize int64) (*models.OrderPage, error)
	Stats(ctx context.Context) (*models.OrderStats, error)
}

type OrderService struct {
	repo     OrderRepository
	cache    Cache
	cacheTTL time.Duration
	logger   log.Logger
}

func NewOrderService(repo OrderRepository, cache Cache, cacheTTL time.Duration, logger log.Logger) *OrderService {
	if cache == nil {
		cache = utils.NoopCache{}
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &OrderService{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Create stores a new order. Every order starts out pending whatever the
// client sent, and a missing total is computed from the cart.
func (s *OrderService) Create(ctx context.Context, order *models.Order) error {
	order.Status = models.StatusPending
	if err := order.Validate(); err != nil {
		return err
	}
	order.FillLinePrices()
	if order.Total == 0 {
		order.Total = order.ComputeTotal()
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	level.Info(s.logger).Log("msg", "order created", "id", order.ID.Hex(), "total", float64(order.Total))
	return nil
}

func (s *OrderService) Get(ctx context.Context, id string) (*models.Order, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrInvalidID
	}
	return s.repo.FindByID(ctx, objID)
}

func (s *OrderService) List(ctx context.Context, filter models.OrderFilter, page, limit int64) (*models.OrderPage, error) {
	if page > 1 && limit > 0 && page-1 > math.MaxInt64/limit {
		return nil, fmt.Errorf("%w: page out of range", models.ErrValidation)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, filter.Status)
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, fmt.Errorf("%w: startDate is after endDate", models.ErrValidation)
	}
	return s.repo.FindMany(ctx, filter, page, limit)
}

// Update applies a partial update. The patch is typed, so a field that would
// not decode back into an order is rejected before anything is written.
func (s *OrderService) Update(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrInvalidID
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateByID(ctx, objID, patch.Set())
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	return updated, nil
}

func (s *OrderService) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.ErrInvalidID
	}
	if err := s.repo.DeleteByID(ctx, objID); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}

func (s *OrderService) Stats(ctx context.Context) (*models.OrderStats, error) {
	var cached models.OrderStats
	err := s.cache.Get(ctx, orderStatsCacheKey, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, utils.ErrCacheMiss) {
		level.Warn(s.logger).Log("msg", "cache read failed", "key", orderStatsCacheKey, "err", err)
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, orderStatsCacheKey, stats, s.cacheTTL); err != nil {
		level.Warn(s.logger).Log("msg", "cache write failed", "key", orderStatsCacheKey, "err", err)
	}
	return stats, nil
}

// RefreshCache recomputes the cached stats.
func (s *OrderService) RefreshCache(ctx context.Context) error {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, orderStatsCacheKey, stats, s.cacheTTL)
}

func (s *OrderService) invalidateStats(ctx context.Context) {
	if err := s.cache.Delete(context.WithoutCancel(ctx), orderStatsCacheKey); err != nil {
		level.Warn(s.logger).Log("msg", "cache invalidation failed", "key", orderStatsCacheKey, "err", err)
	}
}
