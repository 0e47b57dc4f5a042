// Package config loads the noteleaf server configuration from a file,
// environment variables (NOTELEAF_*) and defaults, in that precedence order,
// and validates the result.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the complete server configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum level to output: DEBUG, INFO, WARN or ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	// Format is text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// HTTPConfig controls the HTTP listener.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// StorageConfig controls the SQLite database location.
type StorageConfig struct {
	// DataDir is the directory holding the database and its WAL files.
	DataDir string `mapstructure:"data_dir" validate:"required"`
}

// BlobConfig selects and configures the object store holding file bytes.
type BlobConfig struct {
	// Type is s3 or memory. Memory is for development and tests only.
	Type string       `mapstructure:"type" validate:"required,oneof=s3 memory"`
	S3   S3BlobConfig `mapstructure:"s3"`
}

// S3BlobConfig configures the S3-backed blob store. Endpoint is optional and
// enables S3-compatible servers.
type S3BlobConfig struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
}

// UploadsConfig controls the upload lifecycle.
type UploadsConfig struct {
	// MaxSizeBytes caps the declared size of any upload.
	MaxSizeBytes int64 `mapstructure:"max_size_bytes" validate:"required,gt=0"`
	// PresignTTL is the validity window of minted upload URLs.
	PresignTTL time.Duration `mapstructure:"presign_ttl" validate:"required,gt=0"`
}

// AuthConfig controls request authentication.
type AuthConfig struct {
	// JWTSecret signs and verifies bearer tokens. Required outside dev mode.
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=16"`
}

// RateLimitConfig controls per-owner request throttling.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained per-owner rate. Zero disables limiting.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=0"`
}

var validate = validator.New()

// Load reads the configuration, applies defaults and validates it.
// configPath may be empty; environment variables and defaults then apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NOTELEAF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Viper only resolves environment variables for keys it knows about, so
	// bind every supported key up front.
	for _, key := range []string{
		"logging.level", "logging.format",
		"http.addr", "http.shutdown_timeout",
		"storage.data_dir",
		"blob.type", "blob.s3.region", "blob.s3.bucket", "blob.s3.key_prefix",
		"blob.s3.access_key_id", "blob.s3.secret_access_key", "blob.s3.endpoint",
		"uploads.max_size_bytes", "uploads.presign_ttl",
		"auth.jwt_secret",
		"rate_limit.requests_per_second", "rate_limit.burst",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with sensible defaults. Explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Blob.Type == "" {
		cfg.Blob.Type = "memory"
	}
	if cfg.Uploads.MaxSizeBytes == 0 {
		cfg.Uploads.MaxSizeBytes = 100 << 20 // 100 MiB
	}
	if cfg.Uploads.PresignTTL == 0 {
		cfg.Uploads.PresignTTL = 15 * time.Minute
	}
	if cfg.RateLimit.RequestsPerSecond > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = int(cfg.RateLimit.RequestsPerSecond) * 2
	}
}

// Validate checks the configuration via struct tags plus rules tags cannot
// express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	if cfg.Blob.Type == "s3" {
		if cfg.Blob.S3.Region == "" || cfg.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob.s3: region and bucket are required when blob.type is s3")
		}
	}
	return nil
}

func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
