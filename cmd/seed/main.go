package main

import (
	"context"
	"log/slog"
	"os"

	"library/internal/config"
	"library/internal/library"
	"library/internal/logger"
	"library/internal/seed"
	"library/internal/storage/backend"
)

func main() {
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

	ctx := context.Background()

	be, err := backend.Open(ctx, cfg, l)
	if err != nil {
		l.Error("Failed to open storage: " + err.Error())
		os.Exit(1)
	}
	defer be.Close()

	res, err := seed.Run(ctx, seed.Sample(),
		library.NewAuthorService(be.Tx, be.Authors, be.Books, l),
		library.NewBookService(be.Tx, be.Authors, be.Books, l),
		l,
	)
	if err != nil {
		l.Error("Seeding failed: " + err.Error())
		os.Exit(1)
	}

	l.Info("Seeding done",
		slog.Int("authors_created", res.AuthorsCreated),
		slog.Int("books_created", res.BooksCreated),
		slog.Int("skipped", res.Skipped),
	)
}
