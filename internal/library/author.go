// Package library holds the catalog rules: unique author names, unique and
// well-formed isbns, non-negative copy counts, author references that always
// resolve and authors that cannot be deleted while books reference them.
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

type AuthorFilter = authors.Filter

type NewAuthor struct {
	Name      string
	Country   string
	BirthYear int
}

type AuthorService struct {
	tx storage.Transactor
	ar authors.Repository
	br books.Repository
	l  *slog.Logger
}

func NewAuthorService(tx storage.Transactor, ar authors.Repository, br books.Repository, l *slog.Logger) *AuthorService {
	return &AuthorService{tx: tx, ar: ar, br: br, l: l}
}

func (s *AuthorService) Create(ctx context.Context, in NewAuthor) (*types.Author, error) {
	author := &types.Author{
		Name:      strings.TrimSpace(in.Name),
		Country:   strings.TrimSpace(in.Country),
		BirthYear: in.BirthYear,
	}
	if err := ValidateStruct(author); err != nil {
		return nil, err
	}

	var created *types.Author

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.ar.GetByName(ctx, author.Name)
		if err != nil {
			return fmt.Errorf("looking up author by name: %w", err)
		}
		if existing != nil {
			return ErrDuplicateName
		}

		created, err = s.ar.Insert(ctx, author)
		if errors.Is(err, storage.ErrDuplicate) {
			return ErrDuplicateName
		}
		if err != nil {
			return fmt.Errorf("inserting author: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.l.InfoContext(ctx, "Created author", slog.Int64("id", created.Id), slog.String("name", created.Name))

	return created, nil
}

// List never reports ErrNotFound, no matches is an empty slice.
func (s *AuthorService) List(ctx context.Context, filter AuthorFilter) ([]*types.Author, error) {
	rows, err := s.ar.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("searching authors: %w", err)
	}

	if rows == nil {
		rows = make([]*types.Author, 0)
	}

	return rows, nil
}

func (s *AuthorService) Get(ctx context.Context, id int64) (*types.Author, error) {
	author, err := s.ar.GetById(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting author: %w", err)
	}
	if author == nil {
		return nil, ErrNotFound
	}

	return author, nil
}

// Update applies the fields present in patch. Renaming onto the name of another
// author fails with ErrDuplicateName.
func (s *AuthorService) Update(ctx context.Context, id int64, patch types.AuthorPatch) (*types.Author, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if patch.Country != nil {
		country := strings.TrimSpace(*patch.Country)
		patch.Country = &country
	}

	var updated *types.Author

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}

		next := *current
		patch.Apply(&next)
		if err = ValidateStruct(&next); err != nil {
			return err
		}

		if next.Name != current.Name {
			other, err := s.ar.GetByName(ctx, next.Name)
			if err != nil {
				return fmt.Errorf("looking up author by name: %w", err)
			}
			if other != nil && other.Id != id {
				return ErrDuplicateName
			}
		}

		if patch.IsEmpty() {
			updated = current
			return nil
		}

		updated, err = s.ar.Update(ctx, id, patch)
		if errors.Is(err, storage.ErrDuplicate) {
			return ErrDuplicateName
		}
		if err != nil {
			return fmt.Errorf("updating author: %w", err)
		}
		if updated == nil {
			return ErrNotFound
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete fails with *HasDependentBooksError while any book is linked to the author.
func (s *AuthorService) Delete(ctx context.Context, id int64) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		author, err := s.Get(ctx, id)
		if err != nil {
			return err
		}

		count, err := s.br.CountByAuthor(ctx, id)
		if err != nil {
			return fmt.Errorf("counting books of author: %w", err)
		}
		if count > 0 {
			return &HasDependentBooksError{AuthorId: id, Name: author.Name, Count: count}
		}

		deleted, err := s.ar.DeleteById(ctx, id)
		if errors.Is(err, storage.ErrForeignKey) {
			// linked by a concurrent transaction after the count
			return &HasDependentBooksError{AuthorId: id, Name: author.Name, Count: 1}
		}
		if err != nil {
			return fmt.Errorf("deleting author: %w", err)
		}
		if !deleted {
			return ErrNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.l.InfoContext(ctx, "Deleted author", slog.Int64("id", id))

	return nil
}

// Books returns the books linked to the author, ordered by id.
func (s *AuthorService) Books(ctx context.Context, id int64) ([]*types.Book, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.br.Search(ctx, books.Filter{AuthorId: &id})
	if err != nil {
		return nil, fmt.Errorf("searching books of author: %w", err)
	}

	if rows == nil {
		rows = make([]*types.Book, 0)
	}

	return rows, nil
}
