package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluginverse/storefront/pkg/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.Equal(t, "filesystem", cfg.Storage.BlobBackend)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.OTelEnabled)
	assert.Equal(t, "admin", cfg.AdminUsername)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("STOREFRONT_PORT", "9000")
	t.Setenv("STOREFRONT_DB_DRIVER", "postgres")
	t.Setenv("STOREFRONT_DB_DSN", "postgres://localhost/storefront?sslmode=disable")
	t.Setenv("STOREFRONT_LOG_LEVEL", "debug")
	t.Setenv("STOREFRONT_READ_TIMEOUT", "30s")
	t.Setenv("STOREFRONT_CACHE_ENABLED", "true")
	t.Setenv("STOREFRONT_REDIS_ADDR", "localhost:6379")
	t.Setenv("STOREFRONT_ADMIN_EMAIL", "admin@example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Storage.CacheEnabled)
	assert.Equal(t, "admin@example.com", cfg.AdminEmail)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "same ports",
			mutate:  func(c *Config) { c.Server.HealthPort = c.Server.Port },
			wantErr: "must be different",
		},
		{
			name:    "bad driver",
			mutate:  func(c *Config) { c.Storage.Driver = "mysql" },
			wantErr: "invalid database driver",
		},
		{
			name:    "missing dsn",
			mutate:  func(c *Config) { c.Storage.DSN = "" },
			wantErr: "DSN is required",
		},
		{
			name:    "bad blob backend",
			mutate:  func(c *Config) { c.Storage.BlobBackend = "ftp" },
			wantErr: "invalid blob backend",
		},
		{
			name: "s3 without bucket",
			mutate: func(c *Config) {
				c.Storage.BlobBackend = "s3"
				c.Storage.S3Bucket = ""
			},
			wantErr: "S3 bucket is required",
		},
		{
			name: "cache without redis",
			mutate: func(c *Config) {
				c.Storage.CacheEnabled = true
				c.Storage.RedisAddr = ""
			},
			wantErr: "redis address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, observability.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, observability.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, observability.ErrorLevel, parseLogLevel("ERROR"))
	assert.Equal(t, observability.InfoLevel, parseLogLevel("unknown"))
}
