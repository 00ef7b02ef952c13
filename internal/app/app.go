package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	myhttp "github.com/vadimbarashkov/shortlink-core/internal/api/http"
	"github.com/vadimbarashkov/shortlink-core/internal/config"
	"github.com/vadimbarashkov/shortlink-core/internal/database/postgres"
	"github.com/vadimbarashkov/shortlink-core/internal/geo"
	"github.com/vadimbarashkov/shortlink-core/internal/models"
	"github.com/vadimbarashkov/shortlink-core/internal/resolver"
	"github.com/vadimbarashkov/shortlink-core/internal/service"
	"github.com/vadimbarashkov/shortlink-core/internal/session"
	"github.com/vadimbarashkov/shortlink-core/internal/slug"
	"github.com/vadimbarashkov/shortlink-core/internal/visit"
)

// Run wires the whole service together and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := httplog.NewLogger("shortlink-core", httplog.Options{
		LogLevel: slog.LevelInfo,
		JSON:     cfg.Env == config.EnvProd,
		Concise:  cfg.Env != config.EnvProd,
	})

	db, err := postgres.New(cfg.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	db.SetConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime.Std())
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime.Std())
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)

	if err := postgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	repo := postgres.NewRepository(db)

	generator := slug.NewGenerator(repo, slug.AlphabetOptions{
		Lowercase: cfg.Slugs.Lowercase,
		Uppercase: cfg.Slugs.Uppercase,
		Digits:    cfg.Slugs.Digits,
		Special:   cfg.Slugs.Special,
	}, cfg.Slugs.CaseSensitive)

	var geoProvider geo.Provider
	if cfg.Geo.Enabled && cfg.Geo.Endpoint != "" {
		geoProvider = geo.NewHTTPProvider(cfg.Geo.Endpoint, cfg.Geo.Timeout.Std())
	}
	geoResolver := geo.NewResolver(geoProvider, cfg.Geo.Timeout.Std(), logger.Logger)

	recorder := visit.NewRecorder(repo, geoResolver, visit.Options{
		TrackingEnabled: cfg.Tracking.Enabled,
		FilterBots:      cfg.Tracking.FilterBots,
		AnonymizeIPs:    cfg.Tracking.AnonymizeIPs,
		ExcludeIPs:      cfg.Tracking.ExcludeIPs,
	}, logger.Logger)

	dispatcher := visit.NewDispatcher(recorder, cfg.Tracking.QueueSize, cfg.Tracking.Workers, logger.Logger)
	defer dispatcher.Stop()

	unlocks, closeUnlocks, err := newUnlockStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: failed to initialize unlock store: %w", op, err)
	}
	defer closeUnlocks()

	redirectResolver := resolver.New(repo, unlocks, dispatcher, resolver.Options{
		CaseSensitiveSlugs: cfg.Slugs.CaseSensitive,
		UnlockTTL:          cfg.Sessions.UnlockTTL.Std(),
	}, logger.Logger)

	linkSvc := service.NewLinkService(repo, generator, cfg.Slugs.Length,
		cfg.Slugs.CaseSensitive, models.ParseRedirectKind(cfg.Redirects.DefaultKind))
	groupSvc := service.NewGroupService(repo)

	r := myhttp.NewRouter(logger, linkSvc, groupSvc, redirectResolver, nil)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        r,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout.Std(),
		WriteTimeout:   cfg.HTTPServer.WriteTimeout.Std(),
		IdleTimeout:    cfg.HTTPServer.IdleTimeout.Std(),
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		runRetentionSweeper(ctx, repo, cfg.Tracking, logger.Logger)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

func newUnlockStore(ctx context.Context, cfg *config.Config) (session.UnlockStore, func(), error) {
	if cfg.Sessions.Store == config.SessionStoreRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, err
		}

		return session.NewRedisStore(client), func() { _ = client.Close() }, nil
	}

	store := session.NewMemoryStore()
	return store, func() { _ = store.Close() }, nil
}

// visitCleaner is the slice of the repository the sweeper needs.
type visitCleaner interface {
	CleanupVisits(ctx context.Context, retentionDays int) (int64, error)
}

// runRetentionSweeper periodically purges visits older than the retention
// window. A non-positive retention disables the sweep entirely.
func runRetentionSweeper(ctx context.Context, cleaner visitCleaner, cfg config.Tracking, logger *slog.Logger) {
	if cfg.RetentionDays <= 0 {
		return
	}

	interval := cfg.CleanupInterval.Std()
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, err := cleaner.CleanupVisits(ctx, cfg.RetentionDays)
			if err != nil {
				logger.Warn("visit retention sweep failed", slog.Any("err", err))
				continue
			}
			if deleted > 0 {
				logger.Info("visit retention sweep completed", slog.Int64("deleted", deleted))
			}
		case <-ctx.Done():
			return
		}
	}
}
