package storage

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrDuplicate     = errors.New("duplicate key")
	ErrForeignKey    = errors.New("foreign key violation")
	ErrSerialization = errors.New("concurrent modification, transaction aborted")
)

// Transactor runs a unit of work atomically. Repository calls made with the context
// handed to fn take part in the same transaction; if fn returns an error nothing it
// wrote is kept.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EscapeLike trims s and escapes the LIKE wildcards in it.
func EscapeLike(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(s),
		"\\", "\\\\"),
		"_", "\\_"),
		"%", "\\%")
}
