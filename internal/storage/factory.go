package storage

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Options selects and configures a blob driver.
type Options struct {
	Driver Driver
	Dir    string
	Mount  string
	Minio  MinioOptions
	Logger log.Logger
	// Observer receives per-operation metrics. Nil disables instrumentation.
	Observer *PrometheusObserver
}

// Open builds the configured store.
func Open(ctx context.Context, opts Options) (Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if opts.Mount == "" {
		opts.Mount = "/uploads"
	}

	var store Store
	switch opts.Driver {
	case DriverDisk, "":
		disk, err := NewDiskStore(opts.Dir, opts.Mount, logger)
		if err != nil {
			return nil, err
		}
		store = disk
	case DriverMemory:
		store = NewMemoryStore(opts.Mount)
	case DriverMinio:
		client, err := NewMinioClient(ctx, opts.Minio)
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		store = NewMinioStore(client, opts.Minio.Bucket, opts.Mount, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", opts.Driver)
	}

	level.Info(logger).Log("msg", "blob store ready", "driver", store.Driver(), "mount", opts.Mount)

	if opts.Observer != nil {
		return Instrument(store, opts.Observer.ForDriver(store.Driver())), nil
	}
	return store, nil
}
