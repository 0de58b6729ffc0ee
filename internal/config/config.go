package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Scraper  ScraperConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig holds the S3-compatible object store credentials used for
// mirroring gallery images behind the CDN.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	MediaRoot string
}

type ScraperConfig struct {
	Workers        int
	TimeoutSeconds int
	MaxRetries     int
	CacheTTL       time.Duration
	SlugCacheTTL   time.Duration
	Currency       string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8086),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "rent_scraper"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 20)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET_NAME", "yachts"),
			UseSSL:    getEnvBool("S3_USE_SSL", true),
			MediaRoot: getEnv("MEDIA_ROOT", "/app/media/boats"),
		},
		Scraper: ScraperConfig{
			Workers:        getEnvInt("SCRAPER_WORKERS", 5),
			TimeoutSeconds: getEnvInt("SCRAPER_TIMEOUT", 30),
			MaxRetries:     getEnvInt("SCRAPER_MAX_RETRIES", 3),
			CacheTTL:       time.Duration(getEnvInt("PARSE_CACHE_TTL_HOURS", 24)) * time.Hour,
			SlugCacheTTL:   time.Duration(getEnvInt("SLUG_CACHE_TTL_HOURS", 6)) * time.Hour,
			Currency:       getEnv("SCRAPER_CURRENCY", "EUR"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Scraper.Workers < 1 {
		return fmt.Errorf("at least 1 worker is required")
	}

	if c.Scraper.CacheTTL <= 0 {
		return fmt.Errorf("parse cache TTL must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
