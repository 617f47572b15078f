// Package memory keeps the catalog in process memory. It enforces the same
// unique and foreign key constraints as the postgres schema and reports
// violations with the storage sentinels.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"library/internal/storage"
	"library/internal/storage/authors"
	"library/internal/storage/books"
	"library/internal/types"
)

type state struct {
	authors map[int64]types.Author
	books   map[int64]types.Book
	// book id -> author ids in link order
	links map[int64][]int64

	nextAuthorId int64
	nextBookId   int64
}

func (s *state) clone() *state {
	c := &state{
		authors:      make(map[int64]types.Author, len(s.authors)),
		books:        make(map[int64]types.Book, len(s.books)),
		links:        make(map[int64][]int64, len(s.links)),
		nextAuthorId: s.nextAuthorId,
		nextBookId:   s.nextBookId,
	}

	for id, a := range s.authors {
		c.authors[id] = a
	}
	for id, b := range s.books {
		c.books[id] = b
	}
	for id, ids := range s.links {
		c.links[id] = slices.Clone(ids)
	}

	return c
}

type Store struct {
	// txMu serialises writers, mu guards st. st only ever holds committed state.
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state
}

func NewStore() *Store {
	return &Store{st: &state{
		authors:      make(map[int64]types.Author),
		books:        make(map[int64]types.Book),
		links:        make(map[int64][]int64),
		nextAuthorId: 1,
		nextBookId:   1,
	}}
}

func (s *Store) Authors() authors.Repository {
	return &authorRepo{s: s}
}

func (s *Store) Books() books.Repository {
	return &bookRepo{s: s}
}

// Ping never fails, it exists so the store can back readiness checks.
func (s *Store) Ping(context.Context) error {
	return nil
}

type txKey struct{}

// tx is the working copy of one transaction.
type tx struct {
	s  *Store
	st *state
}

func (s *Store) txOf(ctx context.Context) *tx {
	if t, ok := ctx.Value(txKey{}).(*tx); ok && t.s == s {
		return t
	}

	return nil
}

// InTx runs fn against a private copy of the store, other writers wait for it.
// The copy replaces the committed state only if fn succeeds, so readers outside
// the transaction never observe its changes before that.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txOf(ctx) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	t := &tx{s: s, st: s.st.clone()}
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = t.st
	s.mu.Unlock()

	return nil
}

var _ storage.Transactor = (*Store)(nil)

func (s *Store) read(ctx context.Context, fn func(st *state)) {
	if t := s.txOf(ctx); t != nil {
		fn(t.st)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	fn(s.st)
}

// write applies fn to the transaction in ctx, or commits it right away when
// there is none. fn must check everything before it changes st.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if t := s.txOf(ctx); t != nil {
		return fn(t.st)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(s.st)
}

func (st *state) bookWithLinks(b types.Book) *types.Book {
	b.AuthorIds = slices.Clone(st.links[b.Id])
	if b.AuthorIds == nil {
		b.AuthorIds = make([]int64, 0)
	}

	return &b
}

func (st *state) authorWithLinks(a types.Author) *types.Author {
	a.BookIds = st.bookIdsOf(a.Id)

	return &a
}

func (st *state) bookIdsOf(authorId int64) []int64 {
	ids := make([]int64, 0)
	for bookId, authorIds := range st.links {
		if slices.Contains(authorIds, authorId) {
			ids = append(ids, bookId)
		}
	}
	slices.Sort(ids)

	return ids
}

func (st *state) nameTaken(name string, exceptId int64) bool {
	for id, a := range st.authors {
		if id != exceptId && a.Name == name {
			return true
		}
	}

	return false
}

func (st *state) isbnTaken(isbn string, exceptId int64) bool {
	for id, b := range st.books {
		if id != exceptId && b.Isbn == isbn {
			return true
		}
	}

	return false
}

func duplicate(what string) error {
	return fmt.Errorf("%w (%s)", storage.ErrDuplicate, what)
}

func foreignKey(what string) error {
	return fmt.Errorf("%w (%s)", storage.ErrForeignKey, what)
}
