package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func useDialect() error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

// RunMigrations applies every pending migration in dir and logs the
// resulting schema version
func RunMigrations(ctx context.Context, db *sql.DB, dir string, logger *zap.Logger) error {
	if err := useDialect(); err != nil {
		return err
	}

	before, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to run migrations from %s: %w", dir, err)
	}

	after, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if after == before {
		logger.Info("Schema is up to date", zap.Int64("version", after))
	} else {
		logger.Info("Schema migrated", zap.Int64("from", before), zap.Int64("to", after))
	}
	return nil
}

// MigrationStatus prints the applied state of each migration in dir
func MigrationStatus(ctx context.Context, db *sql.DB, dir string) error {
	if err := useDialect(); err != nil {
		return err
	}
	return goose.StatusContext(ctx, db, dir)
}
