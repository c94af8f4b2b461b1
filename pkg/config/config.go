package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all runtime settings, loaded from the environment
type Config struct {
	Environment string
	Port        string

	// Database
	UseLocalDB   bool
	LocalDataDir string
	PostgresDSN  string

	// Auth
	JWTSecret string

	// Object storage for item images
	MinioEndpoint       string
	MinioPublicEndpoint string
	MinioAccessKey      string
	MinioSecretKey      string
	MinioBucket         string
	MinioUseSSL         bool

	AllowedOrigins []string
	Debug          bool
}

var (
	cached     *Config
	cachedOnce sync.Once
)

// Load reads configuration from the environment, loading .env first when
// present. Missing optional values fall back to development defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),

		UseLocalDB:   getEnvBool("USE_LOCAL_DB", false),
		LocalDataDir: getEnv("LOCAL_DATA_DIR", "./data"),
		PostgresDSN:  getEnv("DATABASE_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		MinioEndpoint:       getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioPublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", ""),
		MinioAccessKey:      getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey:      getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:         getEnv("MINIO_BUCKET", "reunitems-images"),
		MinioUseSSL:         getEnvBool("MINIO_USE_SSL", false),

		AllowedOrigins: splitEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		Debug:          getEnvBool("DEBUG", false),
	}
}

// GetCached returns the process-wide config, loading it once
func GetCached() *Config {
	cachedOnce.Do(func() {
		cached = Load()
	})
	return cached
}

// Validate checks settings that have no safe default
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if c.PostgresDSN == "" && !c.UseLocalDB {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitEnv(key, fallback string) []string {
	value := getEnv(key, fallback)
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
