package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"
	"time"

	"library/internal/config"
	"library/internal/crawler"
	"library/internal/library"
	"library/internal/logger"
	"library/internal/storage/backend"
)

func main() {
	_, thisFile, _, _ := runtime.Caller(0)

	config.LoadEnvFiles()

	feedUrl := flag.String("feed", os.Getenv("FEED_URL"), "OPDS acquisition feed to import, e.g. http://host/opds/books")
	dryRun := flag.Bool("dry-run", false, "Only log the books found in the feed")
	maxPages := flag.Int("max-pages", 0, "Stop after this many feed pages (0 means 100)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration: " + err.Error())
		os.Exit(1)
	}

	l, err := logger.SetupSLog(logger.Options{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		RootPath: path.Dir(path.Dir(path.Dir(thisFile))),
	})
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	if *feedUrl == "" {
		l.Error("No feed given, use -feed or FEED_URL")
		os.Exit(1)
	}

	feed, err := url.Parse(*feedUrl)
	if err != nil {
		l.Error("Failed to parse feed url: " + err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cr := crawler.Crawler{
		Client:   &http.Client{Timeout: 30 * time.Second},
		Logger:   l,
		MaxPages: *maxPages,
	}

	if *dryRun {
		if err := cr.Crawl(ctx, feed, &crawler.LoggerConsumer{Logger: l}); err != nil {
			l.Error("Crawl failed: " + err.Error())
			os.Exit(1)
		}
		return
	}

	be, err := backend.Open(ctx, cfg, l)
	if err != nil {
		l.Error("Failed to open storage: " + err.Error())
		os.Exit(1)
	}
	defer be.Close()

	consumer := crawler.StoringConsumer{
		Logger:  l,
		Authors: library.NewAuthorService(be.Tx, be.Authors, be.Books, l),
		Books:   library.NewBookService(be.Tx, be.Authors, be.Books, l),
	}

	err = cr.Crawl(ctx, feed, &consumer)

	l.Info("Import finished",
		slog.Int("authors_created", consumer.Stats.AuthorsCreated),
		slog.Int("books_created", consumer.Stats.BooksCreated),
		slog.Int("skipped", consumer.Stats.Skipped),
	)

	if err != nil {
		l.Error("Crawl failed: " + err.Error())
		be.Close()
		os.Exit(1)
	}
}
