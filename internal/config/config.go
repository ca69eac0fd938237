// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration. Every field maps to one
// TFD_* environment variable.
type Config struct {
	Env             string        `mapstructure:"TFD_ENV"`
	HTTPAddr        string        `mapstructure:"TFD_HTTP_ADDR"`
	Timezone        string        `mapstructure:"TFD_TIMEZONE"`
	ShutdownTimeout time.Duration `mapstructure:"TFD_SHUTDOWN_TIMEOUT"`

	StorageDriver string `mapstructure:"TFD_STORAGE_DRIVER"`
	SQLitePath    string `mapstructure:"TFD_SQLITE_PATH"`
	PostgresDSN   string `mapstructure:"TFD_POSTGRES_DSN"`
	SupabaseURL   string `mapstructure:"TFD_SUPABASE_URL"`
	SupabaseKey   string `mapstructure:"TFD_SUPABASE_KEY"`

	BlobDriver     string `mapstructure:"TFD_BLOB_DRIVER"`
	BlobFSRoot     string `mapstructure:"TFD_BLOB_FS_ROOT"`
	S3Bucket       string `mapstructure:"TFD_BLOB_S3_BUCKET"`
	S3Region       string `mapstructure:"TFD_BLOB_S3_REGION"`
	S3Endpoint     string `mapstructure:"TFD_BLOB_S3_ENDPOINT"`
	S3PathStyle    bool   `mapstructure:"TFD_BLOB_S3_PATH_STYLE"`
	S3Prefix       string `mapstructure:"TFD_BLOB_S3_PREFIX"`
	S3AccessKey    string `mapstructure:"AWS_ACCESS_KEY_ID"`
	S3SecretKey    string `mapstructure:"AWS_SECRET_ACCESS_KEY"`
	S3SessionToken string `mapstructure:"AWS_SESSION_TOKEN"`

	BackupRetention int           `mapstructure:"TFD_BACKUP_RETENTION"`
	BackupInterval  time.Duration `mapstructure:"TFD_BACKUP_INTERVAL"`

	PersistMaxRetries int           `mapstructure:"TFD_PERSIST_MAX_RETRIES"`
	PersistBackoff    time.Duration `mapstructure:"TFD_PERSIST_BACKOFF"`
}

var defaults = map[string]any{
	"TFD_ENV":                 "development",
	"TFD_HTTP_ADDR":           ":8080",
	"TFD_TIMEZONE":            "America/Fortaleza",
	"TFD_SHUTDOWN_TIMEOUT":    "10s",
	"TFD_STORAGE_DRIVER":      "sqlite",
	"TFD_SQLITE_PATH":         "tfdcore.db",
	"TFD_BLOB_DRIVER":         "fs",
	"TFD_BLOB_FS_ROOT":        "./backups",
	"TFD_BLOB_S3_REGION":      "us-east-1",
	"TFD_BLOB_S3_PATH_STYLE":  false,
	"TFD_BACKUP_RETENTION":    5,
	"TFD_BACKUP_INTERVAL":     "0s",
	"TFD_PERSIST_MAX_RETRIES": 3,
	"TFD_PERSIST_BACKOFF":     "200ms",
}

var keys = []string{
	"TFD_ENV", "TFD_HTTP_ADDR", "TFD_TIMEZONE", "TFD_SHUTDOWN_TIMEOUT",
	"TFD_STORAGE_DRIVER", "TFD_SQLITE_PATH", "TFD_POSTGRES_DSN", "TFD_SUPABASE_URL", "TFD_SUPABASE_KEY",
	"TFD_BLOB_DRIVER", "TFD_BLOB_FS_ROOT", "TFD_BLOB_S3_BUCKET", "TFD_BLOB_S3_REGION",
	"TFD_BLOB_S3_ENDPOINT", "TFD_BLOB_S3_PATH_STYLE", "TFD_BLOB_S3_PREFIX",
	"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN",
	"TFD_BACKUP_RETENTION", "TFD_BACKUP_INTERVAL",
	"TFD_PERSIST_MAX_RETRIES", "TFD_PERSIST_BACKOFF",
}

// Load reads envFile into the process environment when it exists, then
// resolves every key from the environment with defaults applied. An empty
// envFile means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.BlobDriver = strings.ToLower(strings.TrimSpace(cfg.BlobDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case "memory", "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("TFD_POSTGRES_DSN is required for the postgres driver"))
		}
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			errs = append(errs, errors.New("TFD_SUPABASE_URL and TFD_SUPABASE_KEY are required for the supabase driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TFD_STORAGE_DRIVER %q", c.StorageDriver))
	}
	switch c.BlobDriver {
	case "fs", "memory":
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("TFD_BLOB_S3_BUCKET is required for the s3 blob driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TFD_BLOB_DRIVER %q", c.BlobDriver))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TFD_TIMEZONE: %w", err))
	}
	if c.BackupRetention < 0 {
		errs = append(errs, errors.New("TFD_BACKUP_RETENTION must not be negative"))
	}
	if c.PersistMaxRetries < 0 || c.PersistBackoff < 0 || c.BackupInterval < 0 {
		errs = append(errs, errors.New("retry and interval settings must not be negative"))
	}
	return errors.Join(errs...)
}

// IsDev reports whether the development profile is active.
func (c *Config) IsDev() bool { return c.Env == "development" }

// Location resolves the configured timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
