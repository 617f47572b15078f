package books

import (
	"context"

	"library/internal/types"
)

type Filter struct {
	Title    string // case-insensitive substring
	Isbn     string
	Year     *int
	AuthorId *int64
}

// Repository methods return (nil, nil) when the requested book does not exist.
//
// Authors of a book are kept as link records; AuthorIds of the returned books is
// ordered by the time each link was made.
type Repository interface {
	Insert(ctx context.Context, book *types.Book) (*types.Book, error)

	GetById(ctx context.Context, id int64) (*types.Book, error)
	// GetByIds shall return map with NON-NULLS!
	GetByIds(ctx context.Context, ids ...int64) (map[int64]*types.Book, error)
	GetByIsbn(ctx context.Context, isbn string) (*types.Book, error)

	Search(ctx context.Context, filter Filter) ([]*types.Book, error)

	// Update ignores patch.AuthorIds, see Link and Unlink.
	Update(ctx context.Context, id int64, patch types.BookPatch) (*types.Book, error)
	DeleteById(ctx context.Context, id int64) (bool, error)

	// Link is a no-op when the link already exists
	Link(ctx context.Context, bookId, authorId int64) error
	Unlink(ctx context.Context, bookId, authorId int64) (bool, error)
	AuthorIds(ctx context.Context, bookId int64) ([]int64, error)
	BookIds(ctx context.Context, authorId int64) ([]int64, error)
	CountByAuthor(ctx context.Context, authorId int64) (int, error)
}
