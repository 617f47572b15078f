package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"library/internal/storage"
	"library/internal/storage/authors"
	"library/internal/storage/books"
	"library/internal/types"
)

type BookFilter = books.Filter

type NewBook struct {
	Title           string
	Isbn            string
	PublicationYear int
	AvailableCopies int
	AuthorIds       []int64
}

type BookService struct {
	tx storage.Transactor
	ar authors.Repository
	br books.Repository
	l  *slog.Logger
}

func NewBookService(tx storage.Transactor, ar authors.Repository, br books.Repository, l *slog.Logger) *BookService {
	return &BookService{tx: tx, ar: ar, br: br, l: l}
}

// Create checks the isbn shape, the copy count, the remaining fields and the
// author references, in that order, before touching the store. Either the book
// and all of its author links are stored, or nothing is.
func (s *BookService) Create(ctx context.Context, in NewBook) (*types.Book, error) {
	book := &types.Book{
		Title:           strings.TrimSpace(in.Title),
		Isbn:            strings.TrimSpace(in.Isbn),
		PublicationYear: in.PublicationYear,
		AvailableCopies: in.AvailableCopies,
	}

	if !ValidIsbn(book.Isbn) {
		return nil, ErrInvalidIsbn
	}
	if book.AvailableCopies < 0 {
		return nil, ErrInvalidCopies
	}
	if err := ValidateStruct(book); err != nil {
		return nil, err
	}

	authorIds := uniqueIds(in.AuthorIds)

	var created *types.Book

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.resolveAuthors(ctx, authorIds); err != nil {
			return err
		}

		existing, err := s.br.GetByIsbn(ctx, book.Isbn)
		if err != nil {
			return fmt.Errorf("looking up book by isbn: %w", err)
		}
		if existing != nil {
			return ErrDuplicateIsbn
		}

		inserted, err := s.br.Insert(ctx, book)
		if errors.Is(err, storage.ErrDuplicate) {
			return ErrDuplicateIsbn
		}
		if err != nil {
			return fmt.Errorf("inserting book: %w", err)
		}

		if err = s.link(ctx, inserted.Id, authorIds); err != nil {
			return err
		}

		created, err = s.mustGet(ctx, inserted.Id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.l.InfoContext(ctx, "Created book", slog.Int64("id", created.Id), slog.String("isbn", created.Isbn))

	return created, nil
}

// List never reports ErrNotFound, no matches is an empty slice.
func (s *BookService) List(ctx context.Context, filter BookFilter) ([]*types.Book, error) {
	rows, err := s.br.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("searching books: %w", err)
	}

	if rows == nil {
		rows = make([]*types.Book, 0)
	}

	return rows, nil
}

func (s *BookService) Get(ctx context.Context, id int64) (*types.Book, error) {
	book, err := s.br.GetById(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	if book == nil {
		return nil, ErrNotFound
	}

	return book, nil
}

// Update applies patch in full or not at all. A non-nil patch.AuthorIds
// replaces the author list of the book.
func (s *BookService) Update(ctx context.Context, id int64, patch types.BookPatch) (*types.Book, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		patch.Title = &title
	}
	if patch.Isbn != nil {
		isbn := strings.TrimSpace(*patch.Isbn)
		patch.Isbn = &isbn
	}

	var (
		updated   *types.Book
		authorIds []int64
	)
	if patch.AuthorIds != nil {
		authorIds = uniqueIds(*patch.AuthorIds)
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}

		if err = s.resolveAuthors(ctx, authorIds); err != nil {
			return err
		}

		if patch.Isbn != nil && !ValidIsbn(*patch.Isbn) {
			return ErrInvalidIsbn
		}

		next := *current
		patch.Apply(&next)
		if next.AvailableCopies < 0 {
			return ErrInvalidCopies
		}
		if err = ValidateStruct(&next); err != nil {
			return err
		}

		if next.Isbn != current.Isbn {
			other, err := s.br.GetByIsbn(ctx, next.Isbn)
			if err != nil {
				return fmt.Errorf("looking up book by isbn: %w", err)
			}
			if other != nil && other.Id != id {
				return ErrDuplicateIsbn
			}
		}

		if patch.HasFields() {
			res, err := s.br.Update(ctx, id, patch)
			if errors.Is(err, storage.ErrDuplicate) {
				return ErrDuplicateIsbn
			}
			if err != nil {
				return fmt.Errorf("updating book: %w", err)
			}
			if res == nil {
				return ErrNotFound
			}
		}

		if patch.AuthorIds != nil {
			if err = s.replaceAuthors(ctx, current, authorIds); err != nil {
				return err
			}
		}

		updated, err = s.mustGet(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes the author links of the book, then the book itself.
func (s *BookService) Delete(ctx context.Context, id int64) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		book, err := s.Get(ctx, id)
		if err != nil {
			return err
		}

		for _, authorId := range book.AuthorIds {
			if _, err = s.br.Unlink(ctx, id, authorId); err != nil {
				return fmt.Errorf("unlinking author %d: %w", authorId, err)
			}
		}

		deleted, err := s.br.DeleteById(ctx, id)
		if err != nil {
			return fmt.Errorf("deleting book: %w", err)
		}
		if !deleted {
			return ErrNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.l.InfoContext(ctx, "Deleted book", slog.Int64("id", id))

	return nil
}

// LinkAuthor adds the author to the book. Linking an already linked author changes nothing.
func (s *BookService) LinkAuthor(ctx context.Context, bookId, authorId int64) (*types.Book, error) {
	var book *types.Book

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.Get(ctx, bookId); err != nil {
			return err
		}
		if err := s.resolveAuthors(ctx, []int64{authorId}); err != nil {
			return err
		}

		if err := s.link(ctx, bookId, []int64{authorId}); err != nil {
			return err
		}

		var err error
		book, err = s.mustGet(ctx, bookId)
		return err
	})
	if err != nil {
		return nil, err
	}

	return book, nil
}

// UnlinkAuthor removes the author from the book. Unlinking an author that is not
// linked changes nothing.
func (s *BookService) UnlinkAuthor(ctx context.Context, bookId, authorId int64) (*types.Book, error) {
	var book *types.Book

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.Get(ctx, bookId); err != nil {
			return err
		}
		if err := s.resolveAuthors(ctx, []int64{authorId}); err != nil {
			return err
		}

		if _, err := s.br.Unlink(ctx, bookId, authorId); err != nil {
			return fmt.Errorf("unlinking author %d: %w", authorId, err)
		}

		var err error
		book, err = s.mustGet(ctx, bookId)
		return err
	})
	if err != nil {
		return nil, err
	}

	return book, nil
}

// resolveAuthors fails with ErrAuthorNotFound naming the first id that does not exist.
func (s *BookService) resolveAuthors(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	found, err := s.ar.GetByIds(ctx, ids...)
	if err != nil {
		return fmt.Errorf("resolving authors: %w", err)
	}

	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return fmt.Errorf("%w: %d", ErrAuthorNotFound, id)
		}
	}

	return nil
}

func (s *BookService) link(ctx context.Context, bookId int64, authorIds []int64) error {
	for _, authorId := range authorIds {
		err := s.br.Link(ctx, bookId, authorId)
		if errors.Is(err, storage.ErrForeignKey) {
			return fmt.Errorf("%w: %d", ErrAuthorNotFound, authorId)
		}
		if err != nil {
			return fmt.Errorf("linking author %d: %w", authorId, err)
		}
	}

	return nil
}

// replaceAuthors makes authorIds the author list of book, keeping their order.
// The ids must have been resolved already.
func (s *BookService) replaceAuthors(ctx context.Context, book *types.Book, authorIds []int64) error {
	for _, authorId := range book.AuthorIds {
		if _, err := s.br.Unlink(ctx, book.Id, authorId); err != nil {
			return fmt.Errorf("unlinking author %d: %w", authorId, err)
		}
	}

	return s.link(ctx, book.Id, authorIds)
}

func (s *BookService) mustGet(ctx context.Context, id int64) (*types.Book, error) {
	book, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("book %d vanished inside its own transaction", id)
	}

	return book, err
}

func uniqueIds(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	ret := make([]int64, 0, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ret = append(ret, id)
	}

	return ret
}
