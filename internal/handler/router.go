package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"

	"storefront/internal/storage"
	"storefront/internal/utils"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Products   CatalogService
	Categories CatalogService
	Sliders    CatalogService
	Orders     OrderService
	Media      storage.Store

	PublicMount  string
	MaxBodyBytes int64
	AllowOrigins []string

	Health  Pinger
	Metrics http.Handler
	Logger  log.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.RequestLogger(logger))
	router.Use(cors.New(corsConfig(cfg.AllowOrigins)))
	router.Use(utils.MaxBodySize(cfg.MaxBodyBytes))

	if cfg.Products != nil {
		h := NewCatalogHandler(cfg.Products, logger)
		products := router.Group("/products")
		{
			products.GET("", h.List)
			products.POST("", h.Create)
			products.PATCH("/bulk", h.BulkUpdateStatus)
			products.GET("/:id", h.Get)
			products.PUT("/:id", h.Update)
			products.PATCH("/:id", h.UpdateStatus)
			products.DELETE("/:id", h.Delete)
		}
	}

	if cfg.Categories != nil {
		registerCatalog(router.Group("/categories"), NewCatalogHandler(cfg.Categories, logger))
	}
	if cfg.Sliders != nil {
		registerCatalog(router.Group("/sliders"), NewCatalogHandler(cfg.Sliders, logger))
	}

	if cfg.Orders != nil {
		h := NewOrderHandler(cfg.Orders, logger)
		orders := router.Group("/orders")
		{
			orders.GET("", h.List)
			orders.POST("", h.Create)
			orders.GET("/stats", h.Stats)
			orders.GET("/:id", h.Get)
			orders.PATCH("/:id", h.Update)
			orders.DELETE("/:id", h.Delete)
		}
	}

	if cfg.Media != nil {
		mount := storage.NewResolver(cfg.PublicMount, "").Mount()
		media := NewMediaHandler(cfg.Media, logger)
		router.GET(mount+"/*file", media.Serve)
		router.HEAD(mount+"/*file", media.Serve)
	}

	router.GET("/healthz", healthz(cfg.Health))
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	return router
}

func registerCatalog(group *gin.RouterGroup, h *CatalogHandler) {
	group.GET("", h.List)
	group.POST("", h.Create)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func healthz(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
