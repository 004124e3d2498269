package application

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultMaxRows        = 100000
	defaultLockTimeout    = 30 * time.Minute
	defaultExportTitle    = "Borehole trajectory"
)

// Config defines geometry service tuning.
type Config struct {
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	MaxRows          int           `yaml:"max_rows"`
	LockTimeout      time.Duration `yaml:"lock_timeout"`
	ExportTitle      string        `yaml:"export_title"`
	SchemaAutocreate bool          `yaml:"schema_autocreate"`
}

// LoadConfig loads config from yaml (GEOMETRY_CONFIG) and env overrides.
func LoadConfig() (Config, error) {
	cfg := Config{
		MaxUploadBytes:   defaultMaxUploadBytes,
		MaxRows:          defaultMaxRows,
		LockTimeout:      defaultLockTimeout,
		ExportTitle:      defaultExportTitle,
		SchemaAutocreate: true,
	}

	if path := os.Getenv("GEOMETRY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.MaxUploadBytes = getenvInt64Default("GEOMETRY_MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.MaxRows = int(getenvInt64Default("GEOMETRY_MAX_ROWS", int64(cfg.MaxRows)))
	cfg.LockTimeout = getenvDurationDefault("GEOMETRY_LOCK_TIMEOUT", cfg.LockTimeout)
	cfg.ExportTitle = getenvDefault("GEOMETRY_EXPORT_TITLE", cfg.ExportTitle)
	cfg.SchemaAutocreate = getenvBoolDefault("GEOMETRY_SCHEMA_AUTOCREATE", cfg.SchemaAutocreate)

	if cfg.MaxUploadBytes <= 0 {
		return cfg, errors.New("geometry: max_upload_bytes must be positive")
	}
	if cfg.MaxRows <= 0 {
		return cfg, errors.New("geometry: max_rows must be positive")
	}
	if cfg.LockTimeout < 0 {
		return cfg, errors.New("geometry: lock_timeout must not be negative")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt64Default(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
