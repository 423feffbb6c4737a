package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/services"
	"storefront/internal/storage"
	"storefront/internal/utils"
	"storefront/internal/utils/mongodb"
)

// exitCode is a process termination code.
type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1
)

// multipart framing on top of the largest accepted file
const multipartOverhead = 1 << 20

// version is set from the git tag at build time.
var version = ""

var errSignal = errors.New("signal received")

func main() {
	os.Exit(int(gracefulMain()))
}

// gracefulMain returns instead of calling os.Exit so deferred cleanup runs.
func gracefulMain() exitCode {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	showVersion := fs.Bool("v", false, "Show version")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		fmt.Fprintln(os.Stderr, "parsing cli flags failed:", err)
		return exitFailure
	}
	if *showVersion {
		fmt.Println(version)
		return exitSuccess
	}

	cfg, err := config.NewConfig()
	if err != nil {
		utils.NewLogger(os.Stderr, "info").Log("msg", "cannot load config", "err", err)
		return exitFailure
	}

	logger := utils.NewLogger(os.Stderr, cfg.Log.Level)
	defer monitorPanic(logger)

	ctx := context.Background()
	shutdown := utils.NewShutdownManager(logger)

	maxUpload, _ := cfg.MaxUploadBytes()

	mongo := mongodb.NewConnector(cfg.MongoDB)
	db, err := mongo.Database(ctx)
	if err != nil {
		level.Error(logger).Log("msg", "mongodb unavailable", "err", err)
		return exitFailure
	}
	shutdown.Register("mongodb", mongo.Close)

	var cache services.Cache = utils.NoopCache{}
	if cfg.Redis.URL != "" {
		rdb, err := utils.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			level.Error(logger).Log("msg", "redis unavailable", "err", err)
			_ = shutdown.Shutdown(ctx)
			return exitFailure
		}
		shutdown.Register("redis", func(context.Context) error { return rdb.Close() })
		cache = rdb
	} else {
		level.Info(logger).Log("msg", "REDIS_URL not set, caching disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer, err := storage.NewPrometheusObserver("storefront", reg)
	if err != nil {
		level.Error(logger).Log("msg", "metrics setup failed", "err", err)
		_ = shutdown.Shutdown(ctx)
		return exitFailure
	}

	storeOpts := cfg.StorageOptions()
	storeOpts.Logger = logger
	storeOpts.Observer = observer
	blobs, err := storage.Open(ctx, storeOpts)
	if err != nil {
		level.Error(logger).Log("msg", "blob store unavailable", "err", err)
		_ = shutdown.Shutdown(ctx)
		return exitFailure
	}

	validator := services.NewUploadValidator(maxUpload)
	newCatalog := func(kind models.RecordKind) *services.CatalogService {
		return services.NewCatalogService(
			kind,
			repository.NewRecordRepository(db, kind),
			blobs,
			validator,
			cache,
			cfg.Redis.CacheTTL,
			log.With(logger, "component", kind.Name),
		)
	}
	products := newCatalog(models.ProductKind)
	categories := newCatalog(models.CategoryKind)
	sliders := newCatalog(models.SliderKind)
	orders := services.NewOrderService(
		repository.NewOrderRepository(db),
		cache,
		cfg.Redis.CacheTTL,
		log.With(logger, "component", "order"),
	)

	shutdown.Register("image cleanup", func(context.Context) error {
		products.Wait()
		categories.Wait()
		sliders.Wait()
		return nil
	})

	router := handler.NewRouter(handler.RouterConfig{
		Products:     products,
		Categories:   categories,
		Sliders:      sliders,
		Orders:       orders,
		Media:        blobs,
		PublicMount:  cfg.Storage.PublicMount,
		MaxBodyBytes: maxUpload + multipartOverhead,
		AllowOrigins: cfg.CORS.AllowOrigins,
		Health:       mongo,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:       logger,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	shutdown.Register("http server", server.Shutdown)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-sig:
			level.Info(logger).Log("msg", "terminating", "signal", s)
			return fmt.Errorf("%w: %s", errSignal, s)
		}
	})

	if cfg.Redis.URL != "" {
		refresher := services.NewCacheRefresher(cfg.Redis.StatsRefreshInterval, logger)
		refresher.Add("products", products)
		refresher.Add("categories", categories)
		refresher.Add("sliders", sliders)
		refresher.Add("order stats", orders)
		group.Go(func() error {
			refresher.Run(ctx)
			return nil
		})
	}

	group.Go(func() error {
		level.Info(logger).Log("msg", "http server listening", "addr", server.Addr, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		level.Info(logger).Log("msg", "graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdown.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, errSignal) {
		level.Error(logger).Log("msg", "stopped with error", "err", err)
		return exitFailure
	}

	level.Info(logger).Log("msg", "stopped")
	return exitSuccess
}

// monitorPanic logs a panic before letting it continue.
func monitorPanic(logger log.Logger) {
	if rec := recover(); rec != nil {
		err := fmt.Sprintf("panic: %v \n stack trace: %s", rec, debug.Stack())
		level.Error(logger).Log("err", err)
		panic(err)
	}
}
