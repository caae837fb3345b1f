package main

import (
	"errors"
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog/log"

	"github.com/crowdlend/crowdlend-api/internal/config"
	"github.com/crowdlend/crowdlend-api/internal/pkg/database"
	"github.com/crowdlend/crowdlend-api/internal/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	dir := flag.String("dir", cfg.MigrationsDir, "directory with *.up.sql / *.down.sql files")
	steps := flag.Int("steps", 0, "number of migrations to apply, negative to roll back, 0 for all pending")
	down := flag.Bool("down", false, "roll back every migration")
	flag.Parse()

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	m, err := database.NewMigrator(db, *dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare migrations")
	}

	if *down {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Error().Err(err).Msg("Rollback failed")
			os.Exit(1)
		}
		log.Info().Msg("All migrations rolled back")
		return
	}

	if err := database.Migrate(m, *steps); err != nil {
		log.Error().Err(err).Msg("Migration failed")
		os.Exit(1)
	}
}
