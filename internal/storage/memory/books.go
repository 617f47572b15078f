package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"library/internal/storage/books"
	"library/internal/types"
)

type bookRepo struct {
	s *Store
}

func (r *bookRepo) Insert(ctx context.Context, book *types.Book) (*types.Book, error) {
	var ret *types.Book

	err := r.s.write(ctx, func(st *state) error {
		if st.isbnTaken(book.Isbn, 0) {
			return duplicate("book_isbn_key")
		}

		b := types.Book{
			Id:              st.nextBookId,
			Title:           book.Title,
			Isbn:            book.Isbn,
			PublicationYear: book.PublicationYear,
			AvailableCopies: book.AvailableCopies,
		}
		st.nextBookId++
		st.books[b.Id] = b

		ret = st.bookWithLinks(b)
		return nil
	})

	return ret, err
}

func (r *bookRepo) GetById(ctx context.Context, id int64) (ret *types.Book, _ error) {
	r.s.read(ctx, func(st *state) {
		if b, ok := st.books[id]; ok {
			ret = st.bookWithLinks(b)
		}
	})

	return ret, nil
}

func (r *bookRepo) GetByIds(ctx context.Context, ids ...int64) (map[int64]*types.Book, error) {
	ret := make(map[int64]*types.Book, len(ids))

	r.s.read(ctx, func(st *state) {
		for _, id := range ids {
			if b, ok := st.books[id]; ok {
				ret[id] = st.bookWithLinks(b)
			}
		}
	})

	return ret, nil
}

func (r *bookRepo) GetByIsbn(ctx context.Context, isbn string) (ret *types.Book, _ error) {
	r.s.read(ctx, func(st *state) {
		for _, b := range st.books {
			if b.Isbn == isbn {
				ret = st.bookWithLinks(b)
				return
			}
		}
	})

	return ret, nil
}

func (r *bookRepo) Search(ctx context.Context, filter books.Filter) ([]*types.Book, error) {
	title := strings.ToLower(strings.TrimSpace(filter.Title))
	isbn := strings.TrimSpace(filter.Isbn)

	ret := make([]*types.Book, 0)

	r.s.read(ctx, func(st *state) {
		for _, b := range st.books {
			if title != "" && !strings.Contains(strings.ToLower(b.Title), title) {
				continue
			}
			if isbn != "" && b.Isbn != isbn {
				continue
			}
			if filter.Year != nil && b.PublicationYear != *filter.Year {
				continue
			}
			if filter.AuthorId != nil && !slices.Contains(st.links[b.Id], *filter.AuthorId) {
				continue
			}
			ret = append(ret, st.bookWithLinks(b))
		}
	})

	slices.SortFunc(ret, func(a, b *types.Book) int {
		return cmp.Compare(a.Id, b.Id)
	})

	return ret, nil
}

func (r *bookRepo) Update(ctx context.Context, id int64, patch types.BookPatch) (*types.Book, error) {
	var ret *types.Book

	err := r.s.write(ctx, func(st *state) error {
		b, ok := st.books[id]
		if !ok {
			return nil
		}

		patch.AuthorIds = nil
		patch.Apply(&b)
		if st.isbnTaken(b.Isbn, id) {
			return duplicate("book_isbn_key")
		}
		st.books[id] = b

		ret = st.bookWithLinks(b)
		return nil
	})

	return ret, err
}

func (r *bookRepo) DeleteById(ctx context.Context, id int64) (bool, error) {
	deleted := false

	err := r.s.write(ctx, func(st *state) error {
		if _, ok := st.books[id]; !ok {
			return nil
		}

		if len(st.links[id]) > 0 {
			return foreignKey("book_author_book_id_fkey")
		}

		delete(st.books, id)
		delete(st.links, id)
		deleted = true
		return nil
	})

	return deleted, err
}

func (r *bookRepo) Link(ctx context.Context, bookId, authorId int64) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.books[bookId]; !ok {
			return foreignKey("book_author_book_id_fkey")
		}
		if _, ok := st.authors[authorId]; !ok {
			return foreignKey("book_author_author_id_fkey")
		}

		if !slices.Contains(st.links[bookId], authorId) {
			st.links[bookId] = append(st.links[bookId], authorId)
		}

		return nil
	})
}

func (r *bookRepo) Unlink(ctx context.Context, bookId, authorId int64) (bool, error) {
	removed := false

	err := r.s.write(ctx, func(st *state) error {
		ids := st.links[bookId]
		i := slices.Index(ids, authorId)
		if i < 0 {
			return nil
		}

		ids = slices.Delete(ids, i, i+1)
		if len(ids) == 0 {
			delete(st.links, bookId)
		} else {
			st.links[bookId] = ids
		}

		removed = true
		return nil
	})

	return removed, err
}

func (r *bookRepo) AuthorIds(ctx context.Context, bookId int64) (ids []int64, _ error) {
	r.s.read(ctx, func(st *state) {
		ids = slices.Clone(st.links[bookId])
	})

	if ids == nil {
		ids = make([]int64, 0)
	}

	return ids, nil
}

func (r *bookRepo) BookIds(ctx context.Context, authorId int64) (ids []int64, _ error) {
	r.s.read(ctx, func(st *state) {
		ids = st.bookIdsOf(authorId)
	})

	return ids, nil
}

func (r *bookRepo) CountByAuthor(ctx context.Context, authorId int64) (n int, _ error) {
	r.s.read(ctx, func(st *state) {
		n = len(st.bookIdsOf(authorId))
	})

	return n, nil
}
