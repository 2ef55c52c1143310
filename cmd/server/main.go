package main

import (
	"context"
	"crypto/rand"
	"errors"
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
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"

	"bookcatalog/internal/catalog"
	"bookcatalog/internal/config"
	"bookcatalog/internal/importer"
	"bookcatalog/internal/logger"
	"bookcatalog/internal/response"
	"bookcatalog/internal/seed"
	"bookcatalog/internal/server"
	"bookcatalog/internal/session"
	"bookcatalog/internal/storage/books"
	"bookcatalog/internal/storage/pgschema"
	"bookcatalog/internal/storage/state"
	"bookcatalog/internal/storage/users"
	"bookcatalog/internal/theme"
	"bookcatalog/internal/types"
)

func main() {
	_, thisFile, _, _ := runtime.Caller(0)

	cfg, err := config.Load()
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	if err := logger.SetupSLog(cfg.LogLevel, cfg.LogFormat, path.Dir(path.Dir(path.Dir(thisFile))), middleware.RequestIDKey); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("aborting: " + err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	l := slog.Default()

	br, ur, closeRepos, err := repositories(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer closeRepos()

	sr, closeState, err := stateRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeState()

	secret := cfg.SecretKey
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return errors.New("failed to generate SECRET_KEY: " + err.Error())
		}
		l.Warn("SECRET_KEY is not set, persisted sessions will not survive a restart")
	}

	cs := catalog.New(br, catalog.ScaledDelays(cfg.SimulatedLatency), l)
	ss := session.New(ur, sr, cs, session.Options{
		SecretKey:  secret,
		TokenTTL:   cfg.TokenTTL,
		BcryptCost: cfg.BcryptCost,
		Delays:     session.ScaledDelays(cfg.SimulatedLatency),
	}, l)
	ts := theme.New(sr, l)

	cs.Subscribe(func(bs []*types.Book) {
		l.Debug("Catalog changed", slog.Uint64("version", cs.Version()), slog.Int("books", len(bs)))
	})
	ss.Subscribe(func(u *types.User) {
		if u == nil {
			l.Debug("Session is anonymous")
			return
		}
		l.Debug("Session bound", slog.Int64("user_id", u.Id))
	})
	ts.Subscribe(func(t types.Theme) {
		l.Debug("Theme changed", slog.String("theme", string(t)))
	})

	if err := ss.Restore(ctx); err != nil {
		return err
	}
	if err := ts.Load(ctx); err != nil {
		return err
	}

	if cfg.SeedOPDSFeed != "" {
		if err := importFeed(ctx, cfg.SeedOPDSFeed, cs, l); err != nil {
			l.Error("Failed to import OPDS feed: " + err.Error())
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(server.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, &response.Responder{DebugMode: cfg.DebugMode}))

	r.Mount("/api", server.Handler(cs, ss, ts, &response.Responder{DebugMode: cfg.DebugMode}))

	srv := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("Listening on " + cfg.BindAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	l.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// repositories picks PostgreSQL when DATABASE_URL is set and in-memory stores otherwise. Both
// start with the demo catalog and accounts.
func repositories(ctx context.Context, cfg *config.Config, l *slog.Logger) (books.Repository, users.Repository, func(), error) {
	accounts, err := seed.Users(cfg.BcryptCost)
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.DatabaseURL == "" {
		l.Info("DATABASE_URL is not set, keeping books and users in memory")
		return books.NewCollection(seed.Books()...), users.NewDirectory(accounts...), func() {}, nil
	}

	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, errors.New("failed to parse DATABASE_URL: " + err.Error())
	}

	pcfg.ConnConfig.Tracer = logger.NewPGXTracer(l)

	pg, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, nil, errors.New("failed to create postgres pool: " + err.Error())
	}

	if err := pgschema.Apply(ctx, pg); err != nil {
		pg.Close()
		return nil, nil, nil, err
	}

	br := books.NewPGXRepository(pg, l)
	ur := users.NewPGXRepository(pg, l)

	empty, err := pgschema.Empty(ctx, pg)
	if err != nil {
		pg.Close()
		return nil, nil, nil, err
	}

	if empty {
		l.Info("Seeding empty database")
		if err := br.Insert(ctx, seed.Books()...); err != nil {
			pg.Close()
			return nil, nil, nil, err
		}
		if err := ur.Insert(ctx, accounts...); err != nil {
			pg.Close()
			return nil, nil, nil, err
		}
	}

	return br, ur, pg.Close, nil
}

func stateRepository(ctx context.Context, cfg *config.Config) (state.Repository, func(), error) {
	if cfg.StateDB == "" {
		return state.NewMemoryRepository(), func() {}, nil
	}

	db, err := state.OpenSQLite(ctx, cfg.StateDB)
	if err != nil {
		return nil, nil, err
	}

	return state.NewSQLiteRepository(db), func() { _ = db.Close() }, nil
}

func importFeed(ctx context.Context, feed string, cs *catalog.Service, l *slog.Logger) error {
	u, err := url.Parse(feed)
	if err != nil {
		return errors.New("invalid URL in SEED_OPDS_FEED: " + err.Error())
	}

	im := &importer.Importer{
		Client: &http.Client{Timeout: 30 * time.Second},
		Logger: l.With(slog.String("component", "importer")),
	}

	consumer := &importer.StoringConsumer{Logger: l, Catalog: cs}
	if err := im.Crawl(ctx, u, consumer); err != nil {
		return err
	}

	l.Info("Imported books from OPDS feed", slog.Int("count", consumer.Stored))
	return nil
}
