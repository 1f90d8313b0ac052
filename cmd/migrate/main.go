package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/migrations"
)

func main() {
	rollback := flag.Bool("rollback", false, "Rollback the last migration")
	dir := flag.String("dir", "migrations", "Directory holding the SQL migrations")
	flag.Parse()

	logger.Init(false, slog.LevelInfo)

	// DATABASE_URL wins over the discrete DB_* settings.
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			logger.Error("failed to load configuration", "error", err)
			os.Exit(1)
		}
		dsn = cfg.PostgresDSN()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	runner := migrations.NewRunner(db, os.DirFS(*dir))
	if *rollback {
		name, err := runner.Rollback(ctx)
		switch {
		case errors.Is(err, migrations.ErrNothingToRollback):
			logger.Info("no migrations to roll back")
		case err != nil:
			logger.Error("rollback failed", "error", err)
			os.Exit(1)
		default:
			logger.Info("successfully rolled back migration", "file", name)
		}
		return
	}

	applied, err := runner.Up(ctx)
	if err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("all migrations applied", "applied", len(applied))
}
