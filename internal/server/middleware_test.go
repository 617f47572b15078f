package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/response"
)

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	h := AccessLog(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/books", nil))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "access", rec["msg"])
	assert.Equal(t, "GET", rec["method"])
	assert.Equal(t, "/api/books", rec["path"])
	assert.Equal(t, float64(http.StatusTeapot), rec["status"])
	assert.Equal(t, float64(len("short and stout")), rec["bytes"])
}

func TestAccessLog_ImplicitOK(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	h := AccessLog(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, float64(http.StatusOK), rec["status"])
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 0.001, 2, time.Minute, &response.Responder{})
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, request("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1:5002"))

	// other clients have their own bucket
	assert.Equal(t, http.StatusOK, request("10.0.0.2:5000"))
}

func TestRateLimiter_NonPositiveIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, idle := range []time.Duration{0, -time.Second} {
		rl := NewRateLimiter(ctx, 1, 1, idle, &response.Responder{})
		assert.Equal(t, defaultIdle, rl.idle)
	}
}
