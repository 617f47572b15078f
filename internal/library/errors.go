package library

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateName  = errors.New("author with this name already exists")
	ErrDuplicateIsbn  = errors.New("book with this isbn already exists")
	ErrInvalidIsbn    = errors.New("isbn must consist of 10 or 13 digits")
	ErrInvalidCopies  = errors.New("available copies cannot be negative")
	ErrAuthorNotFound = errors.New("author not found")

	ErrHasDependentBooks = errors.New("author has dependent books")
	ErrInvalidField      = errors.New("invalid field")
)

// HasDependentBooksError is returned when deleting an author that books still reference.
type HasDependentBooksError struct {
	AuthorId int64
	Name     string
	Count    int
}

func (e *HasDependentBooksError) Error() string {
	return fmt.Sprintf("cannot delete author '%s': %d book(s) still reference it", e.Name, e.Count)
}

func (e *HasDependentBooksError) Is(target error) bool {
	return target == ErrHasDependentBooks
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}

	return "invalid fields: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidField
}
