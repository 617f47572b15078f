package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reqIdKey struct{}

func newJsonLogger(t *testing.T, buf *bytes.Buffer, lvl slog.Level) *slog.Logger {
	t.Helper()

	_, thisFile, _, _ := runtime.Caller(0)

	l, err := New(Options{
		Level:        lvl,
		Format:       "json",
		RootPath:     filepath.Dir(thisFile),
		RequestIdKey: reqIdKey{},
		Output:       buf,
	})
	require.NoError(t, err)

	return l
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &rec))

	return rec
}

func TestHandler_SourceAndRequestId(t *testing.T) {
	var buf bytes.Buffer
	l := newJsonLogger(t, &buf, slog.LevelInfo)

	ctx := context.WithValue(context.Background(), reqIdKey{}, "host/abc-000001")
	l.InfoContext(ctx, "hello")

	rec := lastRecord(t, &buf)
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "host/abc-000001", rec["request_id"])

	source, ok := rec["source"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "logger_test.go", source["file"])
}

func TestHandler_WithAttrsKeepsRequestId(t *testing.T) {
	var buf bytes.Buffer
	l := newJsonLogger(t, &buf, slog.LevelInfo).With("component", "test").WithGroup("g")

	ctx := context.WithValue(context.Background(), reqIdKey{}, "req-2")
	l.InfoContext(ctx, "grouped", "k", "v")

	rec := lastRecord(t, &buf)
	assert.Equal(t, "test", rec["component"])

	// attrs added while handling land in the open group
	g, ok := rec["g"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v", g["k"])
	assert.Equal(t, "req-2", g["request_id"])
}

func TestHandler_NoRequestId(t *testing.T) {
	var buf bytes.Buffer
	l := newJsonLogger(t, &buf, slog.LevelInfo)

	l.Info("plain")

	assert.NotContains(t, lastRecord(t, &buf), "request_id")
}

func TestNew_RejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestPGXTracer(t *testing.T) {
	var buf bytes.Buffer
	tr := NewPGXTracer(newJsonLogger(t, &buf, slog.LevelDebug))

	tr.Logger.Log(context.Background(), tracelog.LogLevelInfo, "Query", map[string]any{
		"sql":  "select 1",
		"args": []any{1},
		"pid":  uint32(42),
	})

	rec := lastRecord(t, &buf)
	assert.Equal(t, "Query", rec["msg"])
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "select 1", rec["sql"])
	assert.NotContains(t, rec, "args")
	assert.NotContains(t, rec, "pid")
}

func TestPGXTracer_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	tr := NewPGXTracer(newJsonLogger(t, &buf, slog.LevelInfo))

	tr.Logger.Log(context.Background(), tracelog.LogLevelDebug, "Query", map[string]any{"sql": "select 1"})
	assert.Empty(t, buf.String())

	tr.Logger.Log(context.Background(), tracelog.LogLevelError, "Query", map[string]any{"err": "boom"})
	assert.Equal(t, "ERROR", lastRecord(t, &buf)["level"])
}
