package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgCodeUniqueViolation      = "23505"
	pgCodeForeignKeyViolation  = "23503"
	pgCodeSerializationFailure = "40001"
)

// DB is the part of pgxpool.Pool and pgx.Tx used by the repositories.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// Conn returns the transaction started by InTx if ctx carries one, the pool otherwise.
func Conn(ctx context.Context, pg *pgxpool.Pool) DB {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}

	return pg
}

// TranslateError maps postgres constraint and serialization errors onto the
// storage sentinels, keeping the original error in the chain.
func TranslateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgCodeUniqueViolation:
		return fmt.Errorf("%w (%s): %w", ErrDuplicate, pgErr.ConstraintName, err)
	case pgCodeForeignKeyViolation:
		return fmt.Errorf("%w (%s): %w", ErrForeignKey, pgErr.ConstraintName, err)
	case pgCodeSerializationFailure:
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	return err
}

func NewPGXTransactor(pg *pgxpool.Pool, l *slog.Logger) Transactor {
	return &pgxTransactor{pg: pg, l: l}
}

type pgxTransactor struct {
	pg *pgxpool.Pool
	l  *slog.Logger
}

func (t *pgxTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested calls join the outer transaction
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.pg.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	err = fn(context.WithValue(ctx, txKey{}, tx))
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			t.l.ErrorContext(ctx, "Failed to roll back transaction: "+rbErr.Error())
		}

		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", TranslateError(err))
	}

	return nil
}
