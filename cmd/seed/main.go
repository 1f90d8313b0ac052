// Command seed loads reference data and optional demo content.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/seed"
)

func main() {
	ingredientsPath := flag.String("ingredients", "data/ingredients.json", "JSON file of ingredients to import (empty to skip)")
	withTags := flag.Bool("tags", true, "Create the default tags")
	users := flag.Int("demo-users", 0, "Number of demo users to generate")
	recipes := flag.Int("demo-recipes", 3, "Recipes per demo user")
	fakerSeed := flag.Int64("seed", 0, "Seed for reproducible demo data (0 for random)")
	flag.Parse()

	logger.Init(false, slog.LevelInfo)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	db, err := database.New(cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if *ingredientsPath != "" {
		if err := importIngredients(ctx, *ingredientsPath, db); err != nil {
			logger.Error("ingredient import failed", "path", *ingredientsPath, "error", err)
			os.Exit(1)
		}
	}

	if *withTags {
		n, err := seed.CreateDefaultTags(ctx, db)
		if err != nil {
			logger.Error("tag seeding failed", "error", err)
			os.Exit(1)
		}
		logger.Info("tags created", "inserted", n)
	}

	if *users > 0 {
		opts := seed.Options{Users: *users, RecipesPerUser: *recipes, Seed: *fakerSeed}
		if err := seed.Demo(ctx, db, opts); err != nil {
			logger.Error("demo seeding failed", "error", err)
			os.Exit(1)
		}
		logger.Info("demo accounts share one password", "password", seed.DemoPassword)
	}
}

func importIngredients(ctx context.Context, path string, db *gorm.DB) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := seed.LoadIngredients(f)
	if err != nil {
		return err
	}
	_, err = seed.ImportIngredients(ctx, db, records)
	return err
}
