package response

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Responder renders JSON bodies. With DebugMode unset, messages of server errors
// are replaced by a generic one carrying the error id.
type Responder struct {
	DebugMode bool
}

type errorBody struct {
	Error   string `json:"error"`
	ErrorId string `json:"error_id"`
	Details any    `json:"details,omitempty"`
}

// RespondAndLogError will respond with generic error code (500) and log with slog.LevelError level
func (rr *Responder) RespondAndLogError(w http.ResponseWriter, ctx context.Context, err error) {
	errId := uuid.NewString()
	log(ctx, slog.LevelError, err.Error(), slog.String("err_id", errId))
	rr.renderError(w, ctx, http.StatusInternalServerError, err.Error(), errId, nil)
}

func (rr *Responder) RespondAndLogCustom(w http.ResponseWriter, ctx context.Context, err error, lvl slog.Level, status int) {
	errId := uuid.NewString()
	log(ctx, lvl, err.Error(), slog.String("err_id", errId))
	rr.renderError(w, ctx, status, err.Error(), errId, nil)
}

// RespondClientError reports a 4xx outcome. Its message is shown regardless of DebugMode.
func (rr *Responder) RespondClientError(w http.ResponseWriter, ctx context.Context, status int, err error, details any) {
	errId := uuid.NewString()
	log(ctx, slog.LevelDebug, err.Error(), slog.String("err_id", errId), slog.Int("status", status))
	rr.renderError(w, ctx, status, err.Error(), errId, details)
}

func (rr *Responder) SendJson(w http.ResponseWriter, ctx context.Context, data any) {
	rr.SendJsonStatus(w, ctx, http.StatusOK, data)
}

func (rr *Responder) SendJsonStatus(w http.ResponseWriter, ctx context.Context, status int, data any) {
	bs, err := json.Marshal(data)
	if err != nil {
		rr.RespondAndLogError(w, ctx, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.Copy(w, bytes.NewReader(bs))
}

func (rr *Responder) NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func (rr *Responder) renderError(w http.ResponseWriter, ctx context.Context, status int, message, errId string, details any) {
	data := errorBody{ErrorId: errId, Details: details}

	if rr.DebugMode || status < http.StatusInternalServerError {
		r, s := utf8.DecodeRuneInString(message)
		data.Error = string(unicode.ToUpper(r)) + message[s:]
	} else {
		data.Error = "Unknown error occurred while processing your request. Error ID: " + errId
	}

	bs, err := json.Marshal(data)
	if err == nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	} else {
		log(ctx, slog.LevelError, "cannot marshall error response body: "+err.Error())
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		bs = []byte("unknown error")
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.Copy(w, bytes.NewReader(bs))
}

// Needed because it skips one more frame item than the slog.Log
func log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	l := slog.Default()

	if !l.Enabled(ctx, level) {
		return
	}

	var pc uintptr
	var pcs [1]uintptr
	// skip [runtime.Callers, this function, this function's caller]
	runtime.Callers(3, pcs[:])
	pc = pcs[0]

	r := slog.NewRecord(time.Now(), level, msg, pc)
	r.AddAttrs(attrs...)
	_ = l.Handler().Handle(ctx, r)
}
