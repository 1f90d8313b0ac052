package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/api"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/server"
	"github.com/pageza/foodgram/backend/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Env == config.Development {
		level = slog.LevelDebug
	}
	logger.Init(cfg.Env == config.Production, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Redis is optional; token revocation and rate limiting fall back to
	// in-process state without it.
	var redisClient *redis.Client
	var blacklist service.TokenBlacklist
	if cfg.RedisEnabled() {
		redisClient, err = database.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("redis unavailable, using in-process state", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			blacklist = service.NewRedisBlacklist(redisClient)
		}
	}

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to configure image storage", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg, db, redisClient, api.Services{
		Auth:          service.NewAuthService(db, cfg.JWTSecret, cfg.TokenTTL, blacklist),
		Users:         service.NewUserService(db),
		Recipes:       service.NewRecipeService(db, images),
		Tags:          service.NewTagService(db),
		Ingredients:   service.NewIngredientService(db),
		RecipeLimiter: middleware.NewRecipeCreationRateLimiter(redisClient, cfg.RecipeCreationLimit),
	})

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// newImageStore uses S3 when a bucket is configured and the local media
// directory otherwise.
func newImageStore(ctx context.Context, cfg *config.Config) (service.ImageStore, error) {
	if cfg.S3BucketName == "" {
		logger.Info("storing images locally", "dir", cfg.MediaDir, "url", cfg.MediaURL)
		return service.NewLocalImageStore(cfg.MediaDir, cfg.MediaURL), nil
	}
	s3Config, err := config.NewS3Config(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("storing images in S3", "bucket", cfg.S3BucketName)
	return service.NewS3ImageStore(s3Config), nil
}
