package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"library/internal/catalog"
	"library/internal/library"
	"library/internal/response"
	"library/internal/types"
)

type AuthorService interface {
	Create(ctx context.Context, in library.NewAuthor) (*types.Author, error)
	List(ctx context.Context, filter library.AuthorFilter) ([]*types.Author, error)
	Get(ctx context.Context, id int64) (*types.Author, error)
	Update(ctx context.Context, id int64, patch types.AuthorPatch) (*types.Author, error)
	Delete(ctx context.Context, id int64) error
	Books(ctx context.Context, id int64) ([]*types.Book, error)
}

type BookService interface {
	Create(ctx context.Context, in library.NewBook) (*types.Book, error)
	List(ctx context.Context, filter library.BookFilter) ([]*types.Book, error)
	Get(ctx context.Context, id int64) (*types.Book, error)
	Update(ctx context.Context, id int64, patch types.BookPatch) (*types.Book, error)
	Delete(ctx context.Context, id int64) error
	LinkAuthor(ctx context.Context, bookId, authorId int64) (*types.Book, error)
	UnlinkAuthor(ctx context.Context, bookId, authorId int64) (*types.Book, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the JSON API, it is meant to be mounted under /api.
func Handler(as AuthorService, bs BookService, rr *response.Responder) http.Handler {
	r := chi.NewRouter()

	r.Route("/authors", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req authorRequest
			if err := decodeAndValidate(r, &req); err != nil {
				respondError(rr, w, r.Context(), err)
				return
			}

			author, err := as.Create(r.Context(), req.intoNew())
			if err != nil {
				respondError(rr, w, r.Context(), err)
				return
			}

			w.Header().Set("Location", fmt.Sprintf("%s/%d", strings.TrimSuffix(r.URL.Path, "/"), author.Id))
			rr.SendJsonStatus(w, r.Context(), http.StatusCreated, author)
		})

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()

			birthYear, err := queryInt(q, "birth_year")
			if err != nil {
				respondError(rr, w, r.Context(), err)
				return
			}

			rows, err := as.List(r.Context(), library.AuthorFilter{
				Country:   q.Get("country"),
				Name:      q.Get("name"),
				BirthYear: birthYear,
			})
			if err != nil {
				respondError(rr, w, r.Context(), err)
				return
			}

			rr.SendJson(w, r.Context(), struct {
				Authors []*types.Author `json:"authors"`
			}{Authors: rows})
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				id, err := pathId(r, "id")
				if err != nil {
					respondError(rr, w, r.Context(), err)
					return
				}

				author, err := as.Get(r.Context(), id)
				if err != nil {
					respondError(rr, w, r.Context(), fmt.Errorf("author %d: %w", id, err))
					return
				}

				rr.SendJson(w, r.Context(), author)
			})

			r.Put("/", func(w http.ResponseWriter, r *http.Request) {
				var req authorRequest
				updateAuthor(as, rr, &req, func() types.AuthorPatch { return req.intoPatch() })(w, r)
			})

			r.Patch("/", func(w http.ResponseWriter, r *http.Request) {
				var req authorPatchRequest
				updateAuthor(as, rr, &req, func() types.AuthorPatch { return req.intoPatch() })(w, r)
			})

			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				id, err := pathId(r, "id")
				if err != nil {
					respondError(rr, w, r.Context(), err)
					return
				}

				if err = as.Delete(r.Context(), id); err != nil {
					respondError(rr, w, r.Context(), fmt.Errorf("author %d: %w", id, err))
					return
				}

				rr.NoContent(w)
			})

			r.Get("/books", func(w http.ResponseWriter, r *http.Request) {
				id, err := pathId(r, "id")
				if err != nil {
					respondError(rr, w, r.Context(), err)
					return
				}

				rows, err := as.Books(r.Context(), id)
				if err != nil {
					respondError(rr, w, r.Context(), fmt.Errorf("author %d: %w", id, err))
					return
				}

				rr.SendJson(w, r.Context(), struct {
					Books []*types.Book `json:"books"`
				}{Books: rows})
			})
		})
	})

	r.Route("/books", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req bookRequest
			if err := decodeAndValidate(r, &req); err != nil {
				respondError(rr, w, r.Context(), err)
				return
			}

			book, err := bs.Create(r.Context(), req.intoNew())
			if err != nil {
				respondError(rr, w, r.Context(), err)
				return
			}

			w.Header().Set("Location", fmt.Sprintf("%s/%d", strings.TrimSuffix(r.URL.Path, "/"), book.Id))
			rr.SendJsonStatus(w, r.Context(), http.StatusCreated, book)
		})

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			filter, err := bookFilter(r)
			if err != nil {
				respondError(rr, w, r.Context(), err)
				return
			}

			rows, err := bs.List(r.Context(), filter)
			if err != nil {
				respondError(rr, w, r.Context(), err)
				return
			}

			rr.SendJson(w, r.Context(), struct {
				Books []*types.Book `json:"books"`
			}{Books: rows})
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				id, err := pathId(r, "id")
				if err != nil {
					respondError(rr, w, r.Context(), err)
					return
				}

				book, err := bs.Get(r.Context(), id)
				if err != nil {
					respondError(rr, w, r.Context(), fmt.Errorf("book %d: %w", id, err))
					return
				}

				rr.SendJson(w, r.Context(), book)
			})

			r.Put("/", func(w http.ResponseWriter, r *http.Request) {
				var req bookRequest
				updateBook(bs, rr, &req, func() types.BookPatch { return req.intoPatch() })(w, r)
			})

			r.Patch("/", func(w http.ResponseWriter, r *http.Request) {
				var req bookPatchRequest
				updateBook(bs, rr, &req, func() types.BookPatch { return req.intoPatch() })(w, r)
			})

			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				id, err := pathId(r, "id")
				if err != nil {
					respondError(rr, w, r.Context(), err)
					return
				}

				if err = bs.Delete(r.Context(), id); err != nil {
					respondError(rr, w, r.Context(), fmt.Errorf("book %d: %w", id, err))
					return
				}

				rr.NoContent(w)
			})

			r.Put("/authors/{authorId}", linkHandler(bs.LinkAuthor, rr))
			r.Delete("/authors/{authorId}", linkHandler(bs.UnlinkAuthor, rr))
		})
	})

	return r
}

// updateAuthor decodes the body into req, then applies the patch intoPatch builds from it.
func updateAuthor(as AuthorService, rr *response.Responder, req any, intoPatch func() types.AuthorPatch) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathId(r, "id")
		if err != nil {
			respondError(rr, w, r.Context(), err)
			return
		}

		if err = decodeAndValidate(r, req); err != nil {
			respondError(rr, w, r.Context(), err)
			return
		}

		author, err := as.Update(r.Context(), id, intoPatch())
		if err != nil {
			respondError(rr, w, r.Context(), fmt.Errorf("author %d: %w", id, err))
			return
		}

		rr.SendJson(w, r.Context(), author)
	}
}

func updateBook(bs BookService, rr *response.Responder, req any, intoPatch func() types.BookPatch) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathId(r, "id")
		if err != nil {
			respondError(rr, w, r.Context(), err)
			return
		}

		if err = decodeAndValidate(r, req); err != nil {
			respondError(rr, w, r.Context(), err)
			return
		}

		book, err := bs.Update(r.Context(), id, intoPatch())
		if err != nil {
			respondError(rr, w, r.Context(), fmt.Errorf("book %d: %w", id, err))
			return
		}

		rr.SendJson(w, r.Context(), book)
	}
}

func linkHandler(op func(ctx context.Context, bookId, authorId int64) (*types.Book, error), rr *response.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookId, err := pathId(r, "id")
		if err != nil {
			respondError(rr, w, r.Context(), err)
			return
		}

		authorId, err := pathId(r, "authorId")
		if err != nil {
			respondError(rr, w, r.Context(), err)
			return
		}

		book, err := op(r.Context(), bookId, authorId)
		if err != nil {
			respondError(rr, w, r.Context(), fmt.Errorf("book %d: %w", bookId, err))
			return
		}

		rr.SendJson(w, r.Context(), book)
	}
}

func bookFilter(r *http.Request) (library.BookFilter, error) {
	q := r.URL.Query()

	year, err := queryInt(q, "year")
	if err != nil {
		return library.BookFilter{}, err
	}

	authorId, err := queryInt64(q, "author")
	if err != nil {
		return library.BookFilter{}, err
	}

	return library.BookFilter{
		Title:    q.Get("title"),
		Isbn:     q.Get("isbn"),
		Year:     year,
		AuthorId: authorId,
	}, nil
}

// OPDS serves the catalog feed, it is meant to be mounted under /opds.
func OPDS(fb *catalog.Builder, rr *response.Responder) http.Handler {
	r := chi.NewRouter()

	r.Get("/books", func(w http.ResponseWriter, r *http.Request) {
		filter, err := bookFilter(r)
		if err != nil {
			respondError(rr, w, r.Context(), err)
			return
		}

		feed, err := fb.Feed(r.Context(), filter)
		if err != nil {
			respondError(rr, w, r.Context(), err)
			return
		}

		bs, err := catalog.Marshal(feed)
		if err != nil {
			rr.RespondAndLogError(w, r.Context(), err)
			return
		}

		w.Header().Set("Content-Type", "application/atom+xml;profile=opds-catalog;kind=acquisition; charset=utf-8")
		_, _ = w.Write(bs)
	})

	return r
}

// Health registers the welcome, liveness and readiness routes.
func Health(r chi.Router, p Pinger, rr *response.Responder) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		rr.SendJson(w, r.Context(), map[string]string{"message": "Welcome to the library API"})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := p.Ping(r.Context()); err != nil {
			rr.RespondAndLogCustom(w, r.Context(), fmt.Errorf("store is not ready: %w", err), slog.LevelWarn, http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ready"))
	})
}
