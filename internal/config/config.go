package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	PredictionTimeout  time.Duration
	MaxRequestBodySize int64

	// Model manifest (YAML) listing the classifier handles to preload
	ModelManifestPath string
	// Shared library used by ONNX-format models; empty uses the runtime default
	ONNXRuntimeLibrary string

	// Empty DatabaseURL selects the in-memory prediction repository
	DatabaseURL string
	// database/sql driver for DatabaseURL: "pgx" or "postgres" (lib/pq)
	DatabaseDriver string

	AzureStorageAccount string
	AzureStorageKey     string

	AllowedOrigins []string

	// Remote schemes clients may reference (http, https, azblob)
	AllowedSourceSchemes []string
	// Local image directory exposed to clients; empty disables local paths
	ImageRoot string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// SourceSchemes lists the image reference schemes the API accepts. Plain
// paths ("") and file:// are only included when ImageRoot is set.
func (c *Config) SourceSchemes() []string {
	schemes := make([]string, 0, len(c.AllowedSourceSchemes)+2)
	for _, s := range c.AllowedSourceSchemes {
		if s != "file" {
			schemes = append(schemes, s)
		}
	}
	if c.ImageRoot != "" {
		schemes = append(schemes, "", "file")
	}
	return schemes
}

// AzureEnabled reports whether blob sources can be resolved.
func (c *Config) AzureEnabled() bool {
	return c.AzureStorageAccount != "" && c.AzureStorageKey != ""
}

// LoadFromEnv reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables take precedence over it.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Host:                getEnvOrDefault("HOST", "0.0.0.0"),
		Port:                getEnvOrDefault("PORT", "8080"),
		RequestTimeout:      parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		PredictionTimeout:   parseDurationOrDefault("PREDICTION_TIMEOUT", 20*time.Second),
		MaxRequestBodySize:  parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		ModelManifestPath:   getEnvOrDefault("MODEL_MANIFEST", "models/models.yaml"),
		ONNXRuntimeLibrary:  os.Getenv("ONNXRUNTIME_LIB"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		DatabaseDriver:      getEnvOrDefault("DATABASE_DRIVER", "pgx"),
		AzureStorageAccount: os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureStorageKey:     os.Getenv("AZURE_STORAGE_KEY"),
		AllowedOrigins:      parseListOrDefault("ALLOWED_ORIGINS", []string{"*"}),
		AllowedSourceSchemes: parseListOrDefault("ALLOWED_SOURCE_SCHEMES",
			[]string{"http", "https", "azblob"}),
		ImageRoot: strings.TrimSpace(os.Getenv("IMAGE_ROOT")),
	}

	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.RequestTimeout <= 0 || cfg.PredictionTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, prediction=%s)",
			cfg.RequestTimeout, cfg.PredictionTimeout)
	}
	if strings.TrimSpace(cfg.ModelManifestPath) == "" {
		return nil, fmt.Errorf("MODEL_MANIFEST must not be empty")
	}
	if cfg.DatabaseDriver != "pgx" && cfg.DatabaseDriver != "postgres" {
		return nil, fmt.Errorf("DATABASE_DRIVER must be pgx or postgres (got %q)", cfg.DatabaseDriver)
	}
	for i, scheme := range cfg.AllowedSourceSchemes {
		scheme = strings.ToLower(scheme)
		cfg.AllowedSourceSchemes[i] = scheme
		switch scheme {
		case "http", "https", "azblob":
		case "file":
			if cfg.ImageRoot == "" {
				return nil, fmt.Errorf("ALLOWED_SOURCE_SCHEMES includes file but IMAGE_ROOT is not set")
			}
		default:
			return nil, fmt.Errorf("unsupported source scheme %q in ALLOWED_SOURCE_SCHEMES", scheme)
		}
	}
	if cfg.ImageRoot != "" {
		if info, err := os.Stat(cfg.ImageRoot); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("IMAGE_ROOT %q is not a directory", cfg.ImageRoot)
		}
	}
	if (cfg.AzureStorageAccount == "") != (cfg.AzureStorageKey == "") {
		return nil, fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set together")
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
