package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	lines := make([]string, len(e))
	for i, v := range e {
		lines[i] = v.Error()
	}
	return strings.Join(lines, "\n")
}

// ValidateConfig checks if the configuration meets the requirements for its environment
func ValidateConfig(cfg *Config) error {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if port, err := strconv.Atoi(cfg.ServerPort); err != nil || port <= 0 || port > 65535 {
		add("SERVER_PORT", fmt.Sprintf("invalid port %q", cfg.ServerPort))
	}

	switch cfg.DBDriver {
	case DriverPostgres:
		if cfg.DBHost == "" {
			add("DB_HOST", "required for the postgres driver")
		}
		if cfg.DBUser == "" {
			add("DB_USER", "required for the postgres driver")
		}
		if cfg.DBName == "" {
			add("DB_NAME", "required for the postgres driver")
		}
	case DriverSQLite:
		if cfg.Env == Production {
			add("DB_DRIVER", "sqlite is not allowed in production")
		}
		if cfg.SQLitePath == "" {
			add("SQLITE_PATH", "required for the sqlite driver")
		}
	default:
		add("DB_DRIVER", fmt.Sprintf("unsupported driver %q", cfg.DBDriver))
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == Production {
			add("jwt_secret", "secret is required")
		} else {
			add("JWT_SECRET", "environment variable is required")
		}
	}
	if cfg.Env == Production && cfg.DBPassword == "" {
		add("db_password", "secret is required")
	}

	if cfg.TokenTTL <= 0 {
		add("TOKEN_TTL", "must be positive")
	}
	if cfg.PageSize <= 0 {
		add("PAGE_SIZE", "must be positive")
	}
	if cfg.SubscriptionPageSize <= 0 {
		add("SUBSCRIPTION_PAGE_SIZE", "must be positive")
	}
	if cfg.RecipesLimit < 0 {
		add("RECIPES_LIMIT", "must not be negative")
	}
	if cfg.RecipeCreationLimit <= 0 {
		add("RECIPE_CREATION_LIMIT", "must be positive")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
