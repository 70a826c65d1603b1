// Package config loads environment variables into a typed configuration struct.
// Follows the IFCATLAS_* naming convention.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all API configuration from environment variables.
type Config struct {
	// Server
	Env      string // dev | prod | test
	BindHost string
	BindPort int

	// PostgreSQL
	PostgresURL string

	// Object storage (S3-compatible)
	ObjectStoreEndpoint       string
	ObjectStoreBucket         string
	ObjectStoreAccessKeyID    string
	ObjectStoreSecretKey      string
	ObjectStoreRegion         string
	ObjectStoreForcePathStyle bool

	// Upload
	MaxFileSizeMB             int64
	PresignedURLExpirySeconds int
	SingleFileReplacement     bool

	// Rate limit
	RateLimitWindowMS  int
	RateLimitMaxReqs   int
	UploadRateLimitMax int

	// CORS
	CORSAllowedOrigins []string

	// Broker (Redis/Celery)
	BrokerURL      string
	BrokerHost     string
	BrokerPort     int
	BrokerPassword string
	BrokerDB       int

	// Advisory query cache (same Redis instance by default)
	CacheEnabled bool

	// Paths
	MigrationsDir string

	// Logging
	LogLevel string
}

// Load reads all environment variables and returns a Config.
func Load() *Config {
	c := &Config{
		Env:      env("IFCATLAS_ENV", "dev"),
		BindHost: env("IFCATLAS_SERVER_BIND_HOST", "127.0.0.1"),
		BindPort: envInt("IFCATLAS_SERVER_BIND_PORT", 4000),

		PostgresURL: buildPostgresURL(),

		ObjectStoreEndpoint:       env("IFCATLAS_OBJECTSTORE_ENDPOINT", "http://127.0.0.1:9000"),
		ObjectStoreBucket:         env("IFCATLAS_OBJECTSTORE_BUCKET", "ifc-models"),
		ObjectStoreAccessKeyID:    env("AWS_ACCESS_KEY_ID", ""),
		ObjectStoreSecretKey:      env("AWS_SECRET_ACCESS_KEY", ""),
		ObjectStoreRegion:         env("IFCATLAS_OBJECTSTORE_REGION", "us-east-1"),
		ObjectStoreForcePathStyle: envBool("IFCATLAS_OBJECTSTORE_FORCE_PATH_STYLE", true),

		MaxFileSizeMB:             envInt64("IFCATLAS_UPLOAD_MAX_FILE_SIZE_MB", 100),
		PresignedURLExpirySeconds: envInt("IFCATLAS_UPLOAD_PRESIGNED_URL_EXPIRY_SECONDS", 900),
		SingleFileReplacement:     envBool("IFCATLAS_UPLOAD_SINGLE_FILE_REPLACEMENT", true),

		RateLimitWindowMS:  envInt("IFCATLAS_RATE_LIMIT_WINDOW_MS", 60_000),
		RateLimitMaxReqs:   envInt("IFCATLAS_RATE_LIMIT_MAX_REQUESTS", 120),
		UploadRateLimitMax: envInt("IFCATLAS_RATE_LIMIT_UPLOAD_MAX_REQUESTS", 10),

		CORSAllowedOrigins: splitCSV(env("IFCATLAS_CORS_ORIGIN", "http://localhost:3000")),

		BrokerURL:      env("IFCATLAS_BROKER_URL", ""),
		BrokerHost:     env("IFCATLAS_BROKER_HOST", "127.0.0.1"),
		BrokerPort:     envInt("IFCATLAS_BROKER_PORT", 6379),
		BrokerPassword: env("IFCATLAS_BROKER_PASSWORD", ""),
		BrokerDB:       envInt("IFCATLAS_BROKER_DB", 0),

		CacheEnabled: envBool("IFCATLAS_CACHE_ENABLED", true),

		MigrationsDir: env("IFCATLAS_MIGRATIONS_DIR", "/app/migrations"),

		LogLevel: env("IFCATLAS_LOG_LEVEL", "info"),
	}

	return c
}

// IsProduction reports whether the service is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "prod"
}

func buildPostgresURL() string {
	explicit := os.Getenv("IFCATLAS_POSTGRES_URL")
	if explicit != "" {
		return explicit
	}

	host := env("PGHOST", "127.0.0.1")
	port := env("PGPORT", "5432")
	user := env("PGUSER", "ifcatlas")
	pass := env("PGPASSWORD", "")
	dbname := env("PGDATABASE", "ifcatlas")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + dbname + "?sslmode=disable"
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
