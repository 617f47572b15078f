// Package backend opens the storage selected by the configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"library/internal/config"
	"library/internal/logger"
	"library/internal/storage"
	"library/internal/storage/authors"
	"library/internal/storage/books"
	"library/internal/storage/memory"
	"library/internal/storage/migrations"
)

type Backend struct {
	Tx      storage.Transactor
	Authors authors.Repository
	Books   books.Repository
	Pinger  interface {
		Ping(ctx context.Context) error
	}
	// Pool is nil for the memory storage
	Pool *pgxpool.Pool
}

func (b *Backend) Close() {
	if b.Pool != nil {
		b.Pool.Close()
	}
}

func Open(ctx context.Context, cfg *config.Config, l *slog.Logger) (*Backend, error) {
	if cfg.Storage == config.StorageMemory {
		l.Warn("Using in-memory storage, data is lost on exit")

		st := memory.NewStore()
		return &Backend{Tx: st, Authors: st.Authors(), Books: st.Books(), Pinger: st}, nil
	}

	pgCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	pgCfg.ConnConfig.Tracer = logger.NewPGXTracer(l)

	pg, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	if err = pg.Ping(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if cfg.MigrateOnStart {
		if err = migrations.Up(ctx, pg); err != nil {
			pg.Close()
			return nil, err
		}
	}

	return &Backend{
		Tx:      storage.NewPGXTransactor(pg, l),
		Authors: authors.NewPGXRepository(pg, l),
		Books:   books.NewPGXRepository(pg, l),
		Pinger:  pg,
		Pool:    pg,
	}, nil
}
