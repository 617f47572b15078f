package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"library/internal/library"
	"library/internal/types"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *badRequestError) Unwrap() error {
	return e.err
}

func badRequest(msg string, err error) error {
	return &badRequestError{msg: msg, err: err}
}

// decodeJSON reads exactly one JSON value into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("invalid request body", errEmptyBody)
		}
		return badRequest("invalid request body", err)
	}

	if dec.More() {
		return badRequest("invalid request body", errors.New("unexpected data after JSON value"))
	}

	return nil
}

type authorRequest struct {
	Name      *string `json:"name" validate:"required"`
	Country   *string `json:"country" validate:"required"`
	BirthYear *int    `json:"birth_year" validate:"required"`
}

type authorPatchRequest struct {
	Name      *string `json:"name"`
	Country   *string `json:"country"`
	BirthYear *int    `json:"birth_year"`
}

func (a authorRequest) intoNew() library.NewAuthor {
	return library.NewAuthor{Name: *a.Name, Country: *a.Country, BirthYear: *a.BirthYear}
}

func (a authorRequest) intoPatch() types.AuthorPatch {
	return types.AuthorPatch{Name: a.Name, Country: a.Country, BirthYear: a.BirthYear}
}

func (a authorPatchRequest) intoPatch() types.AuthorPatch {
	return types.AuthorPatch{Name: a.Name, Country: a.Country, BirthYear: a.BirthYear}
}

type bookRequest struct {
	Title           *string `json:"title" validate:"required"`
	Isbn            *string `json:"isbn" validate:"required"`
	PublicationYear *int    `json:"publication_year" validate:"required"`
	AvailableCopies *int    `json:"available_copies" validate:"required"`
	// AuthorId is shorthand for a single element AuthorIds
	AuthorId  *int64  `json:"author_id" validate:"omitempty,gt=0"`
	AuthorIds []int64 `json:"author_ids" validate:"dive,gt=0"`
}

type bookPatchRequest struct {
	Title           *string `json:"title"`
	Isbn            *string `json:"isbn"`
	PublicationYear *int    `json:"publication_year"`
	AvailableCopies *int    `json:"available_copies"`
	AuthorId        *int64  `json:"author_id" validate:"omitempty,gt=0"`
	AuthorIds       []int64 `json:"author_ids" validate:"dive,gt=0"`
}

// authorIds merges author_id into author_ids. The result is nil when neither was sent.
func authorIds(authorId *int64, ids []int64) []int64 {
	if authorId == nil {
		return ids
	}

	return append([]int64{*authorId}, ids...)
}

func (b bookRequest) intoNew() library.NewBook {
	return library.NewBook{
		Title:           *b.Title,
		Isbn:            *b.Isbn,
		PublicationYear: *b.PublicationYear,
		AvailableCopies: *b.AvailableCopies,
		AuthorIds:       authorIds(b.AuthorId, b.AuthorIds),
	}
}

// intoPatch keeps the current authors unless author_id or author_ids was sent.
func (b bookRequest) intoPatch() types.BookPatch {
	return bookPatchRequest{
		Title:           b.Title,
		Isbn:            b.Isbn,
		PublicationYear: b.PublicationYear,
		AvailableCopies: b.AvailableCopies,
		AuthorId:        b.AuthorId,
		AuthorIds:       b.AuthorIds,
	}.intoPatch()
}

func (b bookPatchRequest) intoPatch() types.BookPatch {
	patch := types.BookPatch{
		Title:           b.Title,
		Isbn:            b.Isbn,
		PublicationYear: b.PublicationYear,
		AvailableCopies: b.AvailableCopies,
	}

	if ids := authorIds(b.AuthorId, b.AuthorIds); ids != nil {
		patch.AuthorIds = &ids
	}

	return patch
}

// decodeAndValidate decodes the body into dst and checks its validate tags.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}

	return library.ValidateStruct(dst)
}

func pathId(r *http.Request, key string) (int64, error) {
	raw := chi.URLParam(r, key)

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(fmt.Sprintf("invalid %s %q", key, raw), nil)
	}

	return id, nil
}

func queryInt(q url.Values, key string) (*int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, badRequest(fmt.Sprintf("invalid %s %q", key, raw), nil)
	}

	return &v, nil
}

func queryInt64(q url.Values, key string) (*int64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, badRequest(fmt.Sprintf("invalid %s %q", key, raw), nil)
	}

	return &v, nil
}
