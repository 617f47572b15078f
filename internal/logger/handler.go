package logger

import (
	"context"
	"fmt"
	"go/build"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

type Options struct {
	Level slog.Level
	// Format is either "text" or "json"
	Format string
	// RootPath is stripped from the source file paths
	RootPath string
	// RequestIdKey is the context key under which the request id string is stored
	RequestIdKey any
	// Output defaults to os.Stderr
	Output io.Writer
}

// New builds a logger with format depending on opts.Format and which strips common
// prefix from file paths (opts.RootPath or GOPATH).
func New(opts Options) (*slog.Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	ho := slog.HandlerOptions{
		Level: opts.Level,
	}

	var h slog.Handler
	switch opts.Format {
	case "json":
		h = slog.NewJSONHandler(out, &ho)
	case "text", "":
		h = slog.NewTextHandler(out, &ho)
	default:
		return nil, fmt.Errorf("log format must be json or text, got %q", opts.Format)
	}

	gopath := os.Getenv("GOPATH")
	if gopath == "" {
		gopath = build.Default.GOPATH
	}

	return slog.New(&handler{
		baseHandler:  h,
		rootPath:     strings.TrimSuffix(opts.RootPath, "/") + "/",
		goPath:       strings.TrimSuffix(gopath, "/") + "/",
		requestIdKey: opts.RequestIdKey,
	}), nil
}

// SetupSLog installs the logger built from opts as the slog default and returns it.
func SetupSLog(opts Options) (*slog.Logger, error) {
	l, err := New(opts)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(l)

	return l, nil
}

type handler struct {
	baseHandler  slog.Handler
	rootPath     string
	goPath       string
	requestIdKey any
}

func (e *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return e.baseHandler.Enabled(ctx, level)
}

func (e *handler) Handle(ctx context.Context, record slog.Record) error {
	record = record.Clone()

	if record.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{record.PC})
		f, _ := fs.Next()
		file := f.File
		if strings.HasPrefix(file, e.rootPath) {
			file = file[len(e.rootPath):]
		} else if strings.HasPrefix(file, e.goPath) {
			file = file[len(e.goPath):]
		}
		record.AddAttrs(slog.Any(slog.SourceKey, &slog.Source{
			Function: f.Function,
			File:     file,
			Line:     f.Line,
		}))
	}

	if e.requestIdKey != nil {
		if requestId, ok := ctx.Value(e.requestIdKey).(string); ok && requestId != "" {
			record.AddAttrs(slog.String("request_id", requestId))
		}
	}

	return e.baseHandler.Handle(ctx, record)
}

func (e *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *e
	c.baseHandler = e.baseHandler.WithAttrs(attrs)
	return &c
}

func (e *handler) WithGroup(name string) slog.Handler {
	c := *e
	c.baseHandler = e.baseHandler.WithGroup(name)
	return &c
}
