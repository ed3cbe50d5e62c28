package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ecatalogue/internal/config"
	"ecatalogue/internal/database"
	"ecatalogue/internal/logger"
	"ecatalogue/internal/repository"
	"ecatalogue/internal/service"

	"go.uber.org/zap"
)

const usage = `usage: backfill <command>

commands:
  backfill-tags    attach tag-only products to the category matching their tag
  recount          recompute every category's product count
  migrate-status   print the schema migration status`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if err := run(os.Args[1], cfg, log); err != nil {
		log.Error("Command failed", zap.String("command", os.Args[1]), zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(command string, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbService, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	defer dbService.Close()
	db := dbService.DB()

	categories := repository.NewCategoryRepository(db)
	products := repository.NewProductRepository(db)
	consistency := service.NewConsistencyMaintainer(categories, products, log)

	switch command {
	case "backfill-tags":
		report, err := service.NewBackfillService(products, categories, consistency, log).MigrateTagsToCategories(ctx)
		if err != nil {
			return err
		}
		log.Info("Tag backfill finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("migrated", report.Migrated),
			zap.Int("repaired", report.Repaired),
			zap.Strings("unmatched", report.Unmatched),
		)

	case "recount":
		updated, err := consistency.RecomputeAll(ctx)
		if err != nil {
			return err
		}
		log.Info("Product counts recomputed", zap.Int("updated", updated))

	case "migrate-status":
		return database.MigrationStatus(ctx, db, cfg.Server.MigrationsDir)

	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	return nil
}
