package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/storage"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, ":5000", cfg.Addr())
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, "insertDB", cfg.MongoDB.DBName)
	assert.Equal(t, 5*time.Second, cfg.MongoDB.ConnectTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowOrigins)
	assert.Equal(t, storage.DriverDisk, cfg.StorageOptions().Driver)

	limit, err := cfg.MaxUploadBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(5242880), limit)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{
		"SERVER_PORT":        "8080",
		"STORAGE_DRIVER":     "memory",
		"MAX_UPLOAD_SIZE":    "1 MB",
		"CORS_ALLOW_ORIGINS": "http://a.test,http://b.test",
	}})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, storage.DriverMemory, cfg.StorageOptions().Driver)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowOrigins)
	limit, err := cfg.MaxUploadBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1000000), limit)
}

func TestValidate(t *testing.T) {
	base := Config{
		Server:  ServerConfig{Port: "5000"},
		Storage: StorageConfig{Driver: "disk", MaxUploadSize: "5MiB"},
	}
	assert.NoError(t, base.Validate())

	bad := base
	bad.Storage.Driver = "tape"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Storage.MaxUploadSize = "lots"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Storage.Driver = "minio"
	assert.Error(t, bad.Validate(), "minio needs an endpoint and bucket")

	bad.Minio = MinioConfig{Endpoint: "localhost:9000", Bucket: "media"}
	assert.NoError(t, bad.Validate())
}
