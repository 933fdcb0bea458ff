package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ServerPort      string
	Env             string
	LogLevel        string
	AdminKey        string
	AllowedOrigins  []string
	RequireJoin     bool
	PresenceEnabled bool
	MaxFileSize     int64
	SendBuffer      int
	RateLimitRPS    float64
	RateLimitBurst  int

	HistoryBackend string
	HistoryFile    string

	RedisURL string
	RedisKey string

	DBHost string
	DBPort string
	DBUser string
	DBPass string
	DBName string

	BlobBackend     string
	UploadDir       string
	UploadURLPrefix string
	MinioURL        string
	MinioPublicURL  string
	MinioUser       string
	MinioPassword   string
	MinioBucket     string
}

const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	BlobLocal = "local"
	BlobMinio = "minio"
)

func LoadConfig() Config {
	return Config{
		ServerPort:      getEnv("SERVER_PORT", getEnv("PORT", "3000")),
		Env:             getEnv("ENV", "dev"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		AdminKey:        getEnv("ADMIN_KEY", ""),
		AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RequireJoin:     getEnvAsBool("REQUIRE_JOIN", false),
		PresenceEnabled: getEnvAsBool("PRESENCE_ENABLED", true),
		MaxFileSize:     getEnvAsInt64("MAX_FILE_SIZE", 100*1024*1024), // 100MB default
		SendBuffer:      getEnvAsInt("SEND_BUFFER", 256),
		RateLimitRPS:    getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 10),

		HistoryBackend: strings.ToLower(getEnv("HISTORY_BACKEND", BackendFile)),
		HistoryFile:    getEnv("HISTORY_FILE", "messages.json"),

		RedisURL: getEnv("REDIS_URL", "redis:6379"),
		RedisKey: getEnv("REDIS_KEY", "coderoom:history"),

		DBHost: getEnv("DB_HOST", "postgres"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBUser: getEnv("DB_USER", "postgres"),
		DBPass: getEnv("DB_PASSWORD", "password"),
		DBName: getEnv("DB_NAME", "coderoom"),

		BlobBackend:     strings.ToLower(getEnv("BLOB_BACKEND", BlobLocal)),
		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		UploadURLPrefix: getEnv("UPLOAD_URL_PREFIX", "/uploads"),
		MinioURL:        getEnv("MINIO_URL", "localhost:9000"),
		MinioPublicURL:  getEnv("MINIO_PUBLIC_URL", ""),
		MinioUser:       getEnv("MINIO_USER", "minioadmin"),
		MinioPassword:   getEnv("MINIO_PASSWORD", "minioadmin"),
		MinioBucket:     getEnv("MINIO_BUCKET", "coderoom-files"),
	}
}

// AdminEnabled reports whether privileged features can be unlocked at all.
func (c *Config) AdminEnabled() bool {
	return c.AdminKey != ""
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPass, c.DBName, c.DBPort,
	)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.ParseInt(value, 10, 64); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.ParseFloat(value, 64); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return v
		}
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
