package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ukydev/ev-warranty/internal/auth"
	"github.com/ukydev/ev-warranty/internal/config"
	"github.com/ukydev/ev-warranty/internal/db"
	"github.com/ukydev/ev-warranty/internal/fixture"
	"github.com/ukydev/ev-warranty/internal/service"
)

const defaultFixture = "cmd/seed/fixture.yaml"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	path := os.Getenv("SEED_FILE")
	if path == "" {
		path = defaultFixture
	}
	f, err := fixture.LoadFile(path)
	if err != nil {
		logger.WithError(err).WithField("file", path).Fatal("Failed to read fixture")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, closeStore, err := db.Open(ctx, cfg.Store, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open store")
	}
	defer closeStore(context.Background())
	if cfg.Store == config.StoreMemory {
		logger.Warn("Seeding the in-memory store, nothing is persisted")
	}

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create auth service")
	}
	seeder := fixture.NewSeeder(store, service.NewCatalogService(store, logger), authService, logger)
	if _, err := seeder.Apply(ctx, f); err != nil {
		logger.WithError(err).WithField("file", path).Fatal("Failed to apply fixture")
	}
}
