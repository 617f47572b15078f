package authors

import (
	"context"

	"library/internal/types"
)

type Filter struct {
	Country   string // case-insensitive equality
	Name      string // case-insensitive substring
	BirthYear *int
}

// Repository methods return (nil, nil) when the requested author does not exist.
type Repository interface {
	Insert(ctx context.Context, author *types.Author) (*types.Author, error)

	GetById(ctx context.Context, id int64) (*types.Author, error)
	// GetByIds shall return map with NON-NULLS!
	GetByIds(ctx context.Context, ids ...int64) (map[int64]*types.Author, error)
	GetByName(ctx context.Context, name string) (*types.Author, error)

	Search(ctx context.Context, filter Filter) ([]*types.Author, error)

	Update(ctx context.Context, id int64, patch types.AuthorPatch) (*types.Author, error)
	DeleteById(ctx context.Context, id int64) (bool, error)
}
