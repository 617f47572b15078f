package server

import (
	"context"
	"errors"
	"net/http"

	"library/internal/library"
	"library/internal/response"
	"library/internal/storage"
)

// statusFor maps an error onto the response status. Zero means the error is
// unexpected and must be logged.
func statusFor(err error) int {
	var badReq *badRequestError

	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrInvalidField),
		errors.Is(err, library.ErrInvalidIsbn),
		errors.Is(err, library.ErrInvalidCopies),
		errors.Is(err, library.ErrHasDependentBooks):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrNotFound),
		errors.Is(err, library.ErrAuthorNotFound):
		return http.StatusNotFound
	case errors.Is(err, library.ErrDuplicateName),
		errors.Is(err, library.ErrDuplicateIsbn),
		errors.Is(err, storage.ErrDuplicate),
		errors.Is(err, storage.ErrForeignKey),
		errors.Is(err, storage.ErrSerialization):
		return http.StatusConflict
	}

	return 0
}

func respondError(rr *response.Responder, w http.ResponseWriter, ctx context.Context, err error) {
	status := statusFor(err)
	if status == 0 {
		rr.RespondAndLogError(w, ctx, err)
		return
	}

	var details any
	var verr *library.ValidationError
	if errors.As(err, &verr) {
		details = verr.Fields
	}

	rr.RespondClientError(w, ctx, status, err, details)
}
