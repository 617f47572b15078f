package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"library/internal/catalog"
	"library/internal/config"
	"library/internal/library"
	"library/internal/logger"
	"library/internal/response"
	"library/internal/server"
	"library/internal/storage/backend"
)

func main() {
	_, thisFile, _, _ := runtime.Caller(0)

	config.LoadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration: " + err.Error())
		os.Exit(1)
	}

	l, err := logger.SetupSLog(logger.Options{
		Level:        cfg.LogLevel,
		Format:       cfg.LogFormat,
		RootPath:     path.Dir(path.Dir(path.Dir(thisFile))),
		RequestIdKey: middleware.RequestIDKey,
	})
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := backend.Open(ctx, cfg, l)
	if err != nil {
		l.Error("Failed to open storage: " + err.Error())
		os.Exit(1)
	}
	defer be.Close()

	as := library.NewAuthorService(be.Tx, be.Authors, be.Books, l)
	bs := library.NewBookService(be.Tx, be.Authors, be.Books, l)
	rr := &response.Responder{DebugMode: cfg.DebugMode}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(server.AccessLog(l))
	r.Use(middleware.Recoverer)
	if cfg.RateLimitRPS > 0 {
		r.Use(server.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, 5*time.Minute, rr).Middleware)
	}

	server.Health(r, be.Pinger, rr)
	r.Mount("/api", server.Handler(as, bs, rr))
	r.Mount("/opds", server.OPDS(catalog.NewBuilder(bs, be.Authors, cfg.PublicURL), rr))

	srv := &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error("Failed to shut down gracefully: " + err.Error())
		}
	}()

	l.Info("Listening on " + cfg.BindAddr)

	if err = srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("aborting: " + err.Error())
		os.Exit(1)
	}

	l.Info("Server stopped")
}
