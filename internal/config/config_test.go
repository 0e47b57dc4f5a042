package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, "memory", cfg.Blob.Type)
	assert.Equal(t, int64(100<<20), cfg.Uploads.MaxSizeBytes)
	assert.Equal(t, 15*time.Minute, cfg.Uploads.PresignTTL)
	assert.Zero(t, cfg.RateLimit.Burst, "burst defaults only when limiting is on")
}

func TestApplyDefaultsPreservesExplicit(t *testing.T) {
	cfg := &Config{}
	cfg.Logging.Level = "debug"
	cfg.HTTP.Addr = ":9999"
	cfg.RateLimit.RequestsPerSecond = 5
	ApplyDefaults(cfg)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(validConfig()))

	cfg := validConfig()
	cfg.Auth.JWTSecret = ""
	assert.Error(t, Validate(cfg), "missing JWT secret")

	cfg = validConfig()
	cfg.Auth.JWTSecret = "too-short"
	assert.Error(t, Validate(cfg), "short JWT secret")

	cfg = validConfig()
	cfg.Blob.Type = "s3"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region and bucket")

	cfg = validConfig()
	cfg.Blob.Type = "s3"
	cfg.Blob.S3.Region = "us-east-1"
	cfg.Blob.S3.Bucket = "noteleaf-files"
	assert.NoError(t, Validate(cfg))

	cfg = validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, Validate(cfg))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
http:
  addr: "127.0.0.1:0"
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
rate_limit:
  requests_per_second: 20
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:0", cfg.HTTP.Addr)
	assert.Equal(t, "memory", cfg.Blob.Type)
	assert.Equal(t, float64(20), cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 40, cfg.RateLimit.Burst)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NOTELEAF_AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("NOTELEAF_HTTP_ADDR", ":7070")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Auth.JWTSecret)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
