// Package seed fills an empty catalog with a few well known books.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"library/internal/library"
	"library/internal/types"
)

type Book struct {
	library.NewBook
	Authors []string
}

type Data struct {
	Authors []library.NewAuthor
	Books   []Book
}

// Sample returns the catalog loaded by cmd/seed.
func Sample() Data {
	return Data{
		Authors: []library.NewAuthor{
			{Name: "Arthur Conan Doyle", Country: "UK", BirthYear: 1859},
			{Name: "Agatha Christie", Country: "UK", BirthYear: 1890},
			{Name: "Gabriel Garcia Marquez", Country: "Colombia", BirthYear: 1927},
			{Name: "Neil Gaiman", Country: "UK", BirthYear: 1960},
			{Name: "Terry Pratchett", Country: "UK", BirthYear: 1948},
		},
		Books: []Book{
			{
				NewBook: library.NewBook{Title: "A Study in Scarlet", Isbn: "9780140439083", PublicationYear: 1887, AvailableCopies: 3},
				Authors: []string{"Arthur Conan Doyle"},
			},
			{
				NewBook: library.NewBook{Title: "The Hound of the Baskervilles", Isbn: "9780140437867", PublicationYear: 1902, AvailableCopies: 2},
				Authors: []string{"Arthur Conan Doyle"},
			},
			{
				NewBook: library.NewBook{Title: "Murder on the Orient Express", Isbn: "9780062693662", PublicationYear: 1934, AvailableCopies: 4},
				Authors: []string{"Agatha Christie"},
			},
			{
				NewBook: library.NewBook{Title: "One Hundred Years of Solitude", Isbn: "9780060883287", PublicationYear: 1967, AvailableCopies: 1},
				Authors: []string{"Gabriel Garcia Marquez"},
			},
			{
				NewBook: library.NewBook{Title: "Good Omens", Isbn: "9780060853983", PublicationYear: 1990, AvailableCopies: 0},
				Authors: []string{"Terry Pratchett", "Neil Gaiman"},
			},
		},
	}
}

type AuthorCreator interface {
	Create(ctx context.Context, in library.NewAuthor) (*types.Author, error)
	List(ctx context.Context, filter library.AuthorFilter) ([]*types.Author, error)
}

type BookCreator interface {
	Create(ctx context.Context, in library.NewBook) (*types.Book, error)
}

type Result struct {
	AuthorsCreated int
	BooksCreated   int
	Skipped        int
}

// Run creates data through the services. Authors and books already present are skipped.
func Run(ctx context.Context, data Data, as AuthorCreator, bs BookCreator, l *slog.Logger) (Result, error) {
	var res Result
	ids := make(map[string]int64, len(data.Authors))

	for _, in := range data.Authors {
		author, err := as.Create(ctx, in)
		switch {
		case errors.Is(err, library.ErrDuplicateName):
			author, err = findAuthor(ctx, as, in.Name)
			if err != nil {
				return res, err
			}
			res.Skipped++
			l.Debug("Author already present: " + in.Name)
		case err != nil:
			return res, fmt.Errorf("creating author %s: %w", in.Name, err)
		default:
			res.AuthorsCreated++
		}

		ids[author.Name] = author.Id
	}

	for _, in := range data.Books {
		book := in.NewBook
		book.AuthorIds = make([]int64, 0, len(in.Authors))
		for _, name := range in.Authors {
			id, ok := ids[name]
			if !ok {
				return res, fmt.Errorf("book %s references unknown author %s", in.Title, name)
			}
			book.AuthorIds = append(book.AuthorIds, id)
		}

		_, err := bs.Create(ctx, book)
		switch {
		case errors.Is(err, library.ErrDuplicateIsbn):
			res.Skipped++
			l.Debug("Book already present: " + in.Isbn)
		case err != nil:
			return res, fmt.Errorf("creating book %s: %w", in.Title, err)
		default:
			res.BooksCreated++
		}
	}

	return res, nil
}

func findAuthor(ctx context.Context, as AuthorCreator, name string) (*types.Author, error) {
	rows, err := as.List(ctx, library.AuthorFilter{Name: name})
	if err != nil {
		return nil, err
	}

	for _, a := range rows {
		if a.Name == name {
			return a, nil
		}
	}

	return nil, fmt.Errorf("author %s reported as duplicate but not found", name)
}
