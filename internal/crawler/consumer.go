package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"library/internal/library"
	"library/internal/types"
)

type Consumer interface {
	ConsumeBooks(ctx context.Context, books []*FeedBook, fetchAuthor AuthorFetcher) error
}

// LoggerConsumer only reports what it was given. It is what a dry run uses.
type LoggerConsumer struct {
	Logger *slog.Logger
}

func (c *LoggerConsumer) ConsumeBooks(ctx context.Context, books []*FeedBook, fetchAuthor AuthorFetcher) error {
	for _, b := range books {
		var authors_ string
		if len(b.Authors) > 0 {
			sb := strings.Builder{}
			if len(b.Authors) > 1 {
				sb.WriteString("by authors ")
			} else {
				sb.WriteString("by author ")
			}
			for ix, a := range b.Authors {
				if ix != 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(a.Name)

				if _, err := fetchAuthor(ctx, a); err != nil {
					c.Logger.Warn("Author of " + b.Isbn + " cannot be resolved: " + err.Error())
				}
			}
			authors_ = sb.String()
		} else {
			authors_ = "without authors"
		}

		c.Logger.Info("Consumed book " + b.Isbn + " (" + b.Title + ") " + authors_)
	}

	return nil
}

type AuthorStore interface {
	Create(ctx context.Context, in library.NewAuthor) (*types.Author, error)
	List(ctx context.Context, filter library.AuthorFilter) ([]*types.Author, error)
}

type BookStore interface {
	Create(ctx context.Context, in library.NewBook) (*types.Book, error)
}

// StoringConsumer creates the consumed books through the library services.
// Books whose isbn is already known are left untouched, and so are books with
// an author that can be neither found by name nor fetched.
type StoringConsumer struct {
	Logger  *slog.Logger
	Authors AuthorStore
	Books   BookStore

	Stats Stats
}

type Stats struct {
	AuthorsCreated int
	BooksCreated   int
	Skipped        int
}

func (s *StoringConsumer) ConsumeBooks(ctx context.Context, books []*FeedBook, fetchAuthor AuthorFetcher) error {
	for _, b := range books {
		ids := make([]int64, 0, len(b.Authors))
		resolved := true

		for _, a := range b.Authors {
			id, err := s.author(ctx, a, fetchAuthor)
			if err != nil {
				s.Logger.Warn("Skip book "+b.Isbn+": "+err.Error(), slog.String("author", a.Name))
				resolved = false
				break
			}
			ids = append(ids, id)
		}

		if !resolved {
			s.Stats.Skipped++
			continue
		}

		_, err := s.Books.Create(ctx, library.NewBook{
			Title:           b.Title,
			Isbn:            b.Isbn,
			PublicationYear: b.Year,
			AvailableCopies: b.Copies,
			AuthorIds:       ids,
		})
		switch {
		case errors.Is(err, library.ErrDuplicateIsbn):
			s.Stats.Skipped++
			s.Logger.Debug("Book already present: " + b.Isbn)
		case errors.Is(err, library.ErrInvalidField):
			s.Stats.Skipped++
			s.Logger.Warn("Skip invalid book " + b.Isbn + ": " + err.Error())
		case err != nil:
			return fmt.Errorf("saving book %s: %w", b.Isbn, err)
		default:
			s.Stats.BooksCreated++
		}
	}

	return nil
}

func (s *StoringConsumer) author(ctx context.Context, a FeedAuthor, fetchAuthor AuthorFetcher) (int64, error) {
	if id, ok, err := s.findAuthor(ctx, a.Name); err != nil || ok {
		return id, err
	}

	fetched, err := fetchAuthor(ctx, a)
	if err != nil {
		return 0, err
	}

	created, err := s.Authors.Create(ctx, library.NewAuthor{
		Name:      a.Name,
		Country:   fetched.Country,
		BirthYear: fetched.BirthYear,
	})
	if errors.Is(err, library.ErrDuplicateName) {
		id, ok, err := s.findAuthor(ctx, a.Name)
		if err == nil && !ok {
			err = fmt.Errorf("author %s reported as duplicate but not found", a.Name)
		}
		return id, err
	}
	if err != nil {
		return 0, fmt.Errorf("saving author %s: %w", a.Name, err)
	}

	s.Stats.AuthorsCreated++
	return created.Id, nil
}

func (s *StoringConsumer) findAuthor(ctx context.Context, name string) (int64, bool, error) {
	rows, err := s.Authors.List(ctx, library.AuthorFilter{Name: name})
	if err != nil {
		return 0, false, fmt.Errorf("looking up author %s: %w", name, err)
	}

	for _, a := range rows {
		if a.Name == name {
			return a.Id, true, nil
		}
	}

	return 0, false, nil
}
