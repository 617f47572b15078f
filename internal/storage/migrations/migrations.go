// Package migrations carries the database schema as goose SQL migrations
// embedded into the binary.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var migrationFS embed.FS

const dir = "sql"

func open(pg *pgxpool.Pool) (*sql.DB, error) {
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, err
	}

	return stdlib.OpenDBFromPool(pg), nil
}

// Up applies all pending migrations.
func Up(ctx context.Context, pg *pgxpool.Pool) error {
	db, err := open(pg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err = goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}

// Down rolls back the latest migration.
func Down(ctx context.Context, pg *pgxpool.Pool) error {
	db, err := open(pg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err = goose.DownContext(ctx, db, dir); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}

	return nil
}

func Status(ctx context.Context, pg *pgxpool.Pool) error {
	db, err := open(pg)
	if err != nil {
		return err
	}
	defer db.Close()

	return goose.StatusContext(ctx, db, dir)
}
