package database

import (
	"context"
	"fmt"

	"hotpot-chat/internal/config"
	"hotpot-chat/pkg/logger"
)

// Open returns the store selected by cfg.Driver, applying migrations first
// when AutoMigrate is set for postgres.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Database, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn().Msg("Using in-memory store, data is lost on restart")
		return NewMemoryDB(), nil
	case "postgres":
		if cfg.AutoMigrate {
			if err := RunMigrations(cfg.URL, cfg.MigrationsPath); err != nil {
				return nil, err
			}
		}
		return NewPostgresDB(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
