package main

import (
	"flag"

	"hotpot-chat/internal/config"
	"hotpot-chat/internal/database"
	"hotpot-chat/pkg/logger"
)

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Database.Driver != "postgres" {
		logger.Fatal().Str("driver", cfg.Database.Driver).Msg("Migrations only apply to the postgres driver")
	}

	direction := flag.Arg(0)
	if direction == "" {
		direction = "up"
	}

	switch direction {
	case "up":
		err = database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath)
	case "down":
		err = database.RollbackMigrations(cfg.Database.URL, cfg.Database.MigrationsPath, *steps)
	default:
		logger.Fatal().Str("command", direction).Msg("Usage: migrate [-steps N] up|down")
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", direction).Msg("Migration failed")
	}
}
