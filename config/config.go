package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Env Environment

	// Server configuration
	ServerPort string
	ServerHost string

	// Database configuration
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisURL      string

	// JWT configuration
	JWTSecret string
	TokenTTL  time.Duration

	// Media storage. S3 is used when S3BucketName is set.
	MediaDir     string
	MediaURL     string
	S3BucketName string
	AWSRegion    string

	// API behaviour
	PageSize             int
	SubscriptionPageSize int
	RecipesLimit         int
	CORSOrigins          []string
	RecipeCreationLimit  int
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// LoadConfig creates a new Config from the .env file, environment variables
// and Docker secrets, in that order of precedence (reversed for sensitive
// values in production).
func LoadConfig() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	env := GetEnvironment()
	src := source{env: env}
	cfg := &Config{Env: env}

	cfg.ServerHost = src.get("SERVER_HOST", "server_host", "0.0.0.0")
	cfg.ServerPort = src.get("SERVER_PORT", "server_port", "8080")

	cfg.DBDriver = strings.ToLower(src.get("DB_DRIVER", "", defaultDriver(env)))
	cfg.DBHost = src.get("DB_HOST", "db_host", "localhost")
	cfg.DBPort = src.get("DB_PORT", "db_port", "5432")
	cfg.DBUser = src.get("DB_USER", "db_user", "")
	cfg.DBPassword = src.get("DB_PASSWORD", "db_password", "")
	cfg.DBName = src.get("DB_NAME", "db_name", "foodgram")
	cfg.DBSSLMode = src.get("DB_SSL_MODE", "db_ssl_mode", "disable")
	cfg.SQLitePath = src.get("SQLITE_PATH", "", "foodgram.db")

	cfg.RedisHost = src.get("REDIS_HOST", "redis_host", "")
	cfg.RedisPort = src.get("REDIS_PORT", "redis_port", "6379")
	cfg.RedisPassword = src.get("REDIS_PASSWORD", "redis_password", "")
	cfg.RedisURL = src.get("REDIS_URL", "redis_url", "")

	cfg.JWTSecret = src.get("JWT_SECRET", "jwt_secret", defaultSecret(env))
	cfg.MediaDir = src.get("MEDIA_DIR", "", "media")
	cfg.MediaURL = src.get("MEDIA_URL", "", "/media/")
	cfg.S3BucketName = src.get("S3_BUCKET_NAME", "s3_bucket_name", "")
	cfg.AWSRegion = src.get("AWS_REGION", "", "")
	cfg.CORSOrigins = splitList(src.get("CORS_ORIGINS", "", "http://localhost:3000"))

	var err error
	if cfg.RedisDB, err = src.getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = src.getDuration("TOKEN_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = src.getInt("PAGE_SIZE", 9); err != nil {
		return nil, err
	}
	if cfg.SubscriptionPageSize, err = src.getInt("SUBSCRIPTION_PAGE_SIZE", 3); err != nil {
		return nil, err
	}
	if cfg.RecipesLimit, err = src.getInt("RECIPES_LIMIT", 3); err != nil {
		return nil, err
	}
	if cfg.RecipeCreationLimit, err = src.getInt("RECIPE_CREATION_LIMIT", 30); err != nil {
		return nil, err
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// PostgresDSN builds the lib/pq style connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// RedisEnabled reports whether any Redis endpoint was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != "" || c.RedisHost != ""
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

func defaultDriver(env Environment) string {
	if env == Production {
		return DriverPostgres
	}
	return DriverSQLite
}

func defaultSecret(env Environment) string {
	if env == Development || env == Test {
		return "foodgram-development-secret"
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// source resolves a single setting from the environment and Docker secrets.
type source struct {
	env Environment
}

func (s source) get(envKey, secretName, def string) string {
	fromEnv := strings.TrimSpace(os.Getenv(envKey))
	fromSecret := ""
	if secretName != "" && s.env.readsSecrets() {
		fromSecret = readSecret(secretName)
	}

	first, second := fromEnv, fromSecret
	if s.env.preferSecrets() {
		first, second = fromSecret, fromEnv
	}
	switch {
	case first != "":
		return first
	case second != "":
		return second
	default:
		return def
	}
}

func (s source) getInt(envKey string, def int) (int, error) {
	raw := s.get(envKey, "", "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ValidationError{Field: envKey, Message: fmt.Sprintf("must be an integer, got %q", raw)}
	}
	return v, nil
}

func (s source) getDuration(envKey string, def time.Duration) (time.Duration, error) {
	raw := s.get(envKey, "", "")
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, ValidationError{Field: envKey, Message: fmt.Sprintf("must be a duration, got %q", raw)}
	}
	return v, nil
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	if data, err := os.ReadFile(filepath.Join(secretsDir, name)); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
