package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"

	"storefront/internal/models"
)

type OrderService interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter models.OrderFilter, page, limit int64) (*models.OrderPage, error)
	Update(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.OrderStats, error)
}

type OrderHandler struct {
	svc    OrderService
	logger log.Logger
}

func NewOrderHandler(svc OrderService, logger log.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: log.With(logger, "kind", "order")}
}

// List handles GET /orders?status=&customerEmail=&startDate=&endDate=&page=&limit=
func (h *OrderHandler) List(c *gin.Context) {
	page, err := positiveInt(c.Query("page"), 1)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	limit, err := positiveInt(c.Query("limit"), 10)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	filter := models.OrderFilter{
		Status:        models.OrderStatus(c.Query("status")),
		CustomerEmail: c.Query("customerEmail"),
	}
	if filter.From, err = parseDate(c.Query("startDate"), false); err != nil {
		respondWithError(c, http.StatusBadRequest, "invalid startDate")
		return
	}
	if filter.To, err = parseDate(c.Query("endDate"), true); err != nil {
		respondWithError(c, http.StatusBadRequest, "invalid endDate")
		return
	}

	result, err := h.svc.List(c.Request.Context(), filter, page, limit)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *OrderHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Create(c *gin.Context) {
	var order models.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}

	if err := h.svc.Create(c.Request.Context(), &order); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) Update(c *gin.Context) {
	var patch models.OrderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}

	order, err := h.svc.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted successfully"})
}

func (h *OrderHandler) handleError(c *gin.Context, err error) {
	if errors.Is(err, models.ErrNotFound) {
		respondWithError(c, http.StatusNotFound, "Order not found")
		return
	}
	handleServiceError(c, h.logger, err)
}

func positiveInt(raw string, def int64) (int64, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return &t, nil
}
