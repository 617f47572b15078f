package library

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"library/internal/storage/memory"
)

func newServices(t *testing.T) (*AuthorService, *BookService) {
	t.Helper()

	st := memory.NewStore()
	l := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewAuthorService(st, st.Authors(), st.Books(), l),
		NewBookService(st, st.Authors(), st.Books(), l)
}

func ptr[T any](v T) *T {
	return &v
}

func mustAuthor(t *testing.T, as *AuthorService, name string) int64 {
	t.Helper()

	a, err := as.Create(context.Background(), NewAuthor{Name: name, Country: "UK", BirthYear: 1900})
	require.NoError(t, err)

	return a.Id
}

func mustBook(t *testing.T, bs *BookService, isbn string, copies int, authorIds ...int64) int64 {
	t.Helper()

	b, err := bs.Create(context.Background(), NewBook{
		Title:           "Book " + isbn,
		Isbn:            isbn,
		PublicationYear: 1990,
		AvailableCopies: copies,
		AuthorIds:       authorIds,
	})
	require.NoError(t, err)

	return b.Id
}
