package library

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/types"
)

func TestAuthorService_CreateThenGet(t *testing.T) {
	as, _ := newServices(t)
	ctx := context.Background()

	created, err := as.Create(ctx, NewAuthor{Name: "  Jorge Luis Borges ", Country: "Argentina", BirthYear: 1899})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Id)

	got, err := as.Get(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, &types.Author{
		Id:        created.Id,
		Name:      "Jorge Luis Borges",
		Country:   "Argentina",
		BirthYear: 1899,
		BookIds:   []int64{},
	}, got)

	again, err := as.Get(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestAuthorService_CreateDuplicateName(t *testing.T) {
	as, _ := newServices(t)
	ctx := context.Background()

	mustAuthor(t, as, "Isaac Asimov")

	_, err := as.Create(ctx, NewAuthor{Name: "Isaac Asimov", Country: "USA"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	// names are matched exactly
	_, err = as.Create(ctx, NewAuthor{Name: "isaac asimov", Country: "USA"})
	assert.NoError(t, err)
}

func TestAuthorService_CreateInvalidFields(t *testing.T) {
	as, _ := newServices(t)
	ctx := context.Background()

	_, err := as.Create(ctx, NewAuthor{Name: "X", Country: ""})
	require.ErrorIs(t, err, ErrInvalidField)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "name", verr.Fields[0].Field)
	assert.Equal(t, "name must be at least 2 characters", verr.Fields[0].Message)
	assert.Equal(t, "country", verr.Fields[1].Field)

	all, err := as.List(ctx, AuthorFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAuthorService_List(t *testing.T) {
	as, _ := newServices(t)
	ctx := context.Background()

	for _, in := range []NewAuthor{
		{Name: "Gabriel Garcia Marquez", Country: "Colombia", BirthYear: 1927},
		{Name: "Julio Cortazar", Country: "Argentina", BirthYear: 1914},
		{Name: "Adolfo Bioy Casares", Country: "argentina", BirthYear: 1914},
	} {
		_, err := as.Create(ctx, in)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter AuthorFilter
		want   []string
	}{
		{name: "no filter", filter: AuthorFilter{}, want: []string{"Gabriel Garcia Marquez", "Julio Cortazar", "Adolfo Bioy Casares"}},
		{name: "country ignores case", filter: AuthorFilter{Country: "ARGENTINA"}, want: []string{"Julio Cortazar", "Adolfo Bioy Casares"}},
		{name: "name substring", filter: AuthorFilter{Name: "cortaz"}, want: []string{"Julio Cortazar"}},
		{name: "birth year and country", filter: AuthorFilter{Country: "Argentina", BirthYear: ptr(1914)}, want: []string{"Julio Cortazar", "Adolfo Bioy Casares"}},
		{name: "no matches", filter: AuthorFilter{Country: "Peru"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := as.List(ctx, tt.filter)
			require.NoError(t, err)
			require.NotNil(t, rows)

			names := make([]string, 0, len(rows))
			for _, a := range rows {
				names = append(names, a.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestAuthorService_GetMissing(t *testing.T) {
	as, _ := newServices(t)

	_, err := as.Get(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthorService_Update(t *testing.T) {
	as, _ := newServices(t)
	ctx := context.Background()

	id := mustAuthor(t, as, "Mary Shelley")
	other := mustAuthor(t, as, "Percy Shelley")

	updated, err := as.Update(ctx, id, types.AuthorPatch{BirthYear: ptr(1797)})
	require.NoError(t, err)
	assert.Equal(t, "Mary Shelley", updated.Name)
	assert.Equal(t, "UK", updated.Country)
	assert.Equal(t, 1797, updated.BirthYear)

	_, err = as.Update(ctx, id, types.AuthorPatch{Name: ptr("Percy Shelley"), Country: ptr("England")})
	assert.ErrorIs(t, err, ErrDuplicateName)

	got, err := as.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Mary Shelley", got.Name)
	assert.Equal(t, "UK", got.Country)

	// keeping its own name is not a collision
	updated, err = as.Update(ctx, other, types.AuthorPatch{Name: ptr("Percy Shelley"), Country: ptr("England")})
	require.NoError(t, err)
	assert.Equal(t, "England", updated.Country)

	_, err = as.Update(ctx, id, types.AuthorPatch{Country: ptr("")})
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = as.Update(ctx, 99, types.AuthorPatch{BirthYear: ptr(1)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthorService_DeleteGuard(t *testing.T) {
	as, bs := newServices(t)
	ctx := context.Background()

	id := mustAuthor(t, as, "Ray Bradbury")
	b1 := mustBook(t, bs, "9781451673319", 2, id)
	mustBook(t, bs, "9780380973835", 1, id)

	err := as.Delete(ctx, id)
	require.ErrorIs(t, err, ErrHasDependentBooks)

	var depErr *HasDependentBooksError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, 2, depErr.Count)
	assert.Equal(t, "cannot delete author 'Ray Bradbury': 2 book(s) still reference it", depErr.Error())

	got, err := as.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got.BookIds, 2)

	books, err := as.Books(ctx, id)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, b1, books[0].Id)

	require.NoError(t, bs.Delete(ctx, b1))

	err = as.Delete(ctx, id)
	require.ErrorIs(t, err, ErrHasDependentBooks)
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, 1, depErr.Count)
}

func TestAuthorService_DeleteMissing(t *testing.T) {
	as, _ := newServices(t)

	assert.ErrorIs(t, as.Delete(context.Background(), 3), ErrNotFound)

	_, err := as.Books(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNotFound)
}
