// Package config loads service settings from an optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Loader   LoaderConfig
	Vision   VisionConfig
	CORS     CORSConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

type CacheConfig struct {
	Enabled bool
	Type    string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig selects the key-value backend for handles, recents and the store cache
type StorageConfig struct {
	Backend string
	Path    string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	LogLevel string
}

type LoaderConfig struct {
	RecentLimit       int
	ImageRegistrySize int
	ExtraTags         []string
	// UploadDir holds spooled uploads; empty means the system temp dir
	UploadDir       string
	UploadRetention int
}

type VisionConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type MetricsConfig struct {
	Enabled bool
}

// Load reads .env when present, then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only
func FromEnv() (*Config, error) {
	var errs []error
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("HOST", "0.0.0.0"),
			Port:         getInt("PORT", 8080, &errs),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second, &errs),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 120*time.Second, &errs),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Cache: CacheConfig{
			Enabled: getBool("CACHE_ENABLED", true, &errs),
			Type:    getEnv("CACHE_TYPE", "store"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getInt("REDIS_PORT", 6379, &errs),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0, &errs),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", "bolt"),
			Path:    getEnv("STORAGE_PATH", "data/loader.db"),
		},
		Database: DatabaseConfig{
			Enabled:  getBool("DATABASE_ENABLED", false, &errs),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getInt("DB_PORT", 5432, &errs),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "study_loader"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			LogLevel: getEnv("DB_LOG_LEVEL", "warn"),
		},
		Loader: LoaderConfig{
			RecentLimit:       getInt("RECENT_LIMIT", 10, &errs),
			ImageRegistrySize: getInt("IMAGE_REGISTRY_SIZE", 4096, &errs),
			ExtraTags:         getList("EXTRA_TAGS", nil),
			UploadDir:         getEnv("UPLOAD_DIR", ""),
			UploadRetention:   getInt("UPLOAD_RETENTION", 16, &errs),
		},
		Vision: VisionConfig{
			Enabled: getBool("VISION_ENABLED", false, &errs),
			BaseURL: getEnv("VISION_BASE_URL", "http://127.0.0.1:8765"),
			Timeout: getDuration("VISION_TIMEOUT", 120*time.Second, &errs),
		},
		CORS: CORSConfig{
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
			AllowedHeaders: getList("CORS_ALLOWED_HEADERS", []string{"Accept", "Content-Type", "X-Request-ID"}),
		},
		Metrics: MetricsConfig{
			Enabled: getBool("METRICS_ENABLED", true, &errs),
		},
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Server.Port)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %q", c.Log.Format)
	}
	switch c.Cache.Type {
	case "memory", "redis", "store":
	default:
		return fmt.Errorf("invalid CACHE_TYPE: %q", c.Cache.Type)
	}
	switch c.Storage.Backend {
	case "memory":
	case "bolt", "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("STORAGE_PATH is required for the %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND: %q", c.Storage.Backend)
	}
	if c.Loader.RecentLimit <= 0 {
		return fmt.Errorf("RECENT_LIMIT must be positive")
	}
	if c.Loader.ImageRegistrySize <= 0 {
		return fmt.Errorf("IMAGE_REGISTRY_SIZE must be positive")
	}
	if c.Loader.UploadRetention <= 0 {
		return fmt.Errorf("UPLOAD_RETENTION must be positive")
	}
	if c.Database.Enabled && c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME is required when DATABASE_ENABLED is set")
	}
	if c.Vision.Enabled && c.Vision.BaseURL == "" {
		return fmt.Errorf("VISION_BASE_URL is required when VISION_ENABLED is set")
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func getBool(key string, def bool, errs *[]error) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}

func getList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
