package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"

	"bookcatalog/internal/catalog"
	"bookcatalog/internal/config"
	"bookcatalog/internal/importer"
	"bookcatalog/internal/logger"
	"bookcatalog/internal/storage/books"
	"bookcatalog/internal/storage/pgschema"
)

// Imports an OPDS feed (SEED_OPDS_FEED) straight into the PostgreSQL catalog. Without
// DATABASE_URL the feed is only parsed and logged.
func main() {
	_, thisFile, _, _ := runtime.Caller(0)

	cfg, err := config.Load()
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	if err := logger.SetupSLog(cfg.LogLevel, cfg.LogFormat, path.Dir(path.Dir(path.Dir(thisFile))), nil); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	if cfg.SeedOPDSFeed == "" {
		slog.Error("You need to specify SEED_OPDS_FEED env var")
		os.Exit(1)
	}

	feed, err := url.Parse(cfg.SeedOPDSFeed)
	if err != nil {
		slog.Error("Invalid URL in SEED_OPDS_FEED: " + err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	im := importer.Importer{Client: &http.Client{Timeout: 30 * time.Second}, Logger: slog.Default()}

	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is not set, doing a dry run")
		if err := im.Crawl(ctx, feed, &importer.LoggerConsumer{Logger: slog.Default()}); err != nil {
			slog.Error("Import failed: " + err.Error())
			os.Exit(1)
		}
		return
	}

	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to parse DATABASE_URL: " + err.Error())
		os.Exit(1)
	}

	pcfg.ConnConfig.Tracer = logger.NewPGXTracer(slog.Default())

	pg, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		slog.Error("failed to create postgres pool: " + err.Error())
		os.Exit(1)
	}
	defer pg.Close()

	if err := pgschema.Apply(ctx, pg); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	consumer := importer.StoringConsumer{
		Logger:  slog.Default(),
		Catalog: catalog.New(books.NewPGXRepository(pg, slog.Default()), catalog.Delays{}, slog.Default()),
	}

	if err := im.Crawl(ctx, feed, &consumer); err != nil {
		slog.Error("Import failed: " + err.Error())
		os.Exit(1)
	}

	slog.Info("Import finished", slog.Int("books", consumer.Stored))
}
