package seed

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/library"
	"library/internal/storage/memory"
)

func TestRun_IsRepeatable(t *testing.T) {
	st := memory.NewStore()
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	as := library.NewAuthorService(st, st.Authors(), st.Books(), l)
	bs := library.NewBookService(st, st.Authors(), st.Books(), l)

	data := Sample()

	res, err := Run(ctx, data, as, bs, l)
	require.NoError(t, err)
	assert.Equal(t, Result{AuthorsCreated: len(data.Authors), BooksCreated: len(data.Books)}, res)

	res, err = Run(ctx, data, as, bs, l)
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: len(data.Authors) + len(data.Books)}, res)

	omens, err := bs.List(ctx, library.BookFilter{Isbn: "9780060853983"})
	require.NoError(t, err)
	require.Len(t, omens, 1)
	assert.Len(t, omens[0].AuthorIds, 2)
}

func TestRun_UnknownAuthor(t *testing.T) {
	st := memory.NewStore()
	l := slog.New(slog.NewTextHandler(io.Discard, nil))

	as := library.NewAuthorService(st, st.Authors(), st.Books(), l)
	bs := library.NewBookService(st, st.Authors(), st.Books(), l)

	_, err := Run(context.Background(), Data{
		Books: []Book{{NewBook: library.NewBook{Title: "Orphan", Isbn: "1234567890", PublicationYear: 2000}, Authors: []string{"Nobody"}}},
	}, as, bs, l)
	assert.ErrorContains(t, err, "unknown author Nobody")
}
