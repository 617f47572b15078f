package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"library/internal/config"
	"library/internal/logger"
	"library/internal/storage/migrations"
)

func main() {
	command := flag.String("command", "up", "Migration command: up, down or status")
	flag.Parse()

	config.LoadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration: " + err.Error())
		os.Exit(1)
	}

	l, err := logger.SetupSLog(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	if cfg.Storage != config.StoragePostgres {
		l.Error("Migrations only apply to postgres storage")
		os.Exit(1)
	}

	ctx := context.Background()

	pg, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		l.Error("Failed to connect to database: " + err.Error())
		os.Exit(1)
	}
	defer pg.Close()

	switch *command {
	case "up":
		err = migrations.Up(ctx, pg)
	case "down":
		err = migrations.Down(ctx, pg)
	case "status":
		err = migrations.Status(ctx, pg)
	default:
		l.Error("Unknown command " + *command + ", use up, down or status")
		os.Exit(2)
	}

	if err != nil {
		l.Error("Migration " + *command + " failed: " + err.Error())
		os.Exit(1)
	}

	l.Info("Migration " + *command + " done")
}
