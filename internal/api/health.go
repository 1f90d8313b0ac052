package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logger"
)

const version = "v1.0.0"

// HealthHandler reports whether the backing stores are reachable.
type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewHealthHandler builds the health endpoint. redisClient may be nil when
// Redis is not configured.
func NewHealthHandler(db *gorm.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

func (h *HealthHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.HealthCheck)
	router.GET("/api/health", h.HealthCheck)
}

// HealthCheck answers 503 when the database is down. Redis is optional and
// only reported.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{
		"status":   "healthy",
		"message":  "Foodgram API is running",
		"version":  version,
		"database": "ok",
		"redis":    "disabled",
	}

	if err := database.HealthCheck(ctx, h.db); err != nil {
		logger.Error("database health check failed", "error", err)
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["database"] = "unreachable"
	}
	if h.redis != nil {
		body["redis"] = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis health check failed", "error", err)
			body["redis"] = "unreachable"
		}
	}

	c.JSON(status, body)
}
