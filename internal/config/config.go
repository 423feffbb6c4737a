package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/dustin/go-humanize"
	_ "github.com/joho/godotenv/autoload"

	"storefront/internal/storage"
	"storefront/internal/utils/mongodb"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	MongoDB mongodb.Config
	Redis   RedisConfig
	Storage StorageConfig
	Minio   MinioConfig
	CORS    CORSConfig
	Log     LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" envDefault:"5000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// RedisConfig holds cache configuration. An empty URL disables caching.
type RedisConfig struct {
	URL                  string        `env:"REDIS_URL"`
	CacheTTL             time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	StatsRefreshInterval time.Duration `env:"STATS_REFRESH_INTERVAL" envDefault:"5m"`
}

// StorageConfig selects where uploads are kept.
type StorageConfig struct {
	Driver        string `env:"STORAGE_DRIVER" envDefault:"disk"`
	UploadsDir    string `env:"UPLOADS_DIR" envDefault:"uploads"`
	PublicMount   string `env:"PUBLIC_MOUNT" envDefault:"/uploads"`
	MaxUploadSize string `env:"MAX_UPLOAD_SIZE" envDefault:"5MiB"`
}

// MinioConfig is only read when STORAGE_DRIVER=minio.
type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET"`
	Secure    bool   `env:"MINIO_SECURE"`
}

type CORSConfig struct {
	AllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envDefault:"*" envSeparator:","`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// NewConfig creates a new Config
func NewConfig() (*Config, error) {
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := new(Config)
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// Validate checks values that env parsing alone cannot.
func (c *Config) Validate() error {
	switch storage.Driver(c.Storage.Driver) {
	case storage.DriverDisk, storage.DriverMemory:
	case storage.DriverMinio:
		if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
			return errors.New("MINIO_ENDPOINT and MINIO_BUCKET are required for the minio driver")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}

	if _, err := c.MaxUploadBytes(); err != nil {
		return err
	}
	if c.Server.Port == "" {
		return errors.New("SERVER_PORT must not be empty")
	}
	return nil
}

// MaxUploadBytes parses MAX_UPLOAD_SIZE, e.g. "5MiB" or "5242880".
func (c *Config) MaxUploadBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.Storage.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("invalid MAX_UPLOAD_SIZE %q: %w", c.Storage.MaxUploadSize, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	return int64(n), nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

// StorageOptions maps the config onto the blob store options.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Driver: storage.Driver(c.Storage.Driver),
		Dir:    c.Storage.UploadsDir,
		Mount:  c.Storage.PublicMount,
		Minio: storage.MinioOptions{
			Endpoint:  c.Minio.Endpoint,
			AccessKey: c.Minio.AccessKey,
			SecretKey: c.Minio.SecretKey,
			Bucket:    c.Minio.Bucket,
			Secure:    c.Minio.Secure,
		},
	}
}
