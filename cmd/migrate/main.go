package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/indifarm/indifarm/internal/database"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		command       string
		steps         int
		migrationsDir string
		databaseURL   string
	)

	flag.StringVar(&command, "command", "up", "Migration command: up, down, version")
	flag.IntVar(&steps, "steps", 1, "Number of migrations to roll back with -command down")
	flag.StringVar(&migrationsDir, "dir", "migrations", "Path to migrations directory")
	flag.StringVar(&databaseURL, "database", "", "Database URL (overrides DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable or -database flag is required")
	}

	absPath, err := filepath.Abs(migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get absolute path for migrations directory")
	}

	log.Info().
		Str("dir", absPath).
		Str("command", command).
		Msg("Starting migration")

	switch command {
	case "up":
		if err := database.RunMigrationsFromPath(databaseURL, absPath); err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
	case "down":
		if err := database.RollbackMigration(databaseURL, absPath, steps); err != nil {
			log.Fatal().Err(err).Msg("Rollback failed")
		}
	case "version":
		version, dirty, err := database.GetMigrationVersion(databaseURL, absPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to get version")
		}
		if version == 0 {
			log.Info().Msg("No migrations have been applied yet")
			return
		}
		log.Info().
			Uint("version", version).
			Bool("dirty", dirty).
			Msg("Current migration version")
		return
	default:
		log.Fatal().Str("command", command).Msg("Unknown command")
	}

	log.Info().Msg("Migration completed successfully")
}
