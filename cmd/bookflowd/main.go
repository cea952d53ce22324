// Command bookflowd runs the booking pipeline service: the HTTP API,
// the Prometheus metrics endpoint, and the expiry scheduler, against
// the store selected by the environment.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/gigguin/bookflow/internal/config"
	"github.com/gigguin/bookflow/internal/engine"
	"github.com/gigguin/bookflow/internal/httpapi"
	"github.com/gigguin/bookflow/internal/metrics"
	"github.com/gigguin/bookflow/internal/tenant"
	"github.com/gigguin/bookflow/pkg/api"
	"github.com/gigguin/bookflow/pkg/scheduler"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		zerolog.New(os.Stderr).Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("daemon exited")
		os.Exit(1)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("service", "bookflowd").Logger()
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := api.Options{
		Observer: api.NewCompositeObserver(
			api.NewLoggingObserver(logger),
			metrics.New(registry),
		),
		Dispatcher: newDispatcher(logger),
	}

	eng, domains, cleanup, err := buildEngine(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	if domains == nil {
		mem := tenant.NewInMemoryDomainStore()
		for key, org := range cfg.Tenants {
			if strings.Contains(key, ".") {
				mem.AddDomain(key, org)
			} else {
				mem.AddSubdomain(key, org)
			}
		}
		domains = mem
	}
	resolver := tenant.NewResolver(cfg.BaseDomain, domains)

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           httpapi.New(eng, resolver, logger, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweeper := scheduler.New(eng, scheduler.Config{
		PollInterval: cfg.SweepInterval,
		Logger:       logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", cfg.Listen).Str("store", cfg.Store).Msg("starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		stop()
		shutdownErr := shutdown(server)
		if shutdownErr != nil {
			logger.Error().Err(shutdownErr).Msg("shutdown failed")
		}
		return err
	}

	return shutdown(server)
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// buildEngine opens the configured store. The returned DomainStore is
// non-nil only for stores that carry their own domain table (sqlite).
func buildEngine(ctx context.Context, cfg config.Config, opts api.Options) (api.Engine, tenant.DomainStore, func(), error) {
	noop := func() {}

	switch cfg.Store {
	case config.StoreMemory:
		return engine.NewInMemoryEngineWithOptions(opts), nil, noop, nil

	case config.StoreSQLite:
		db, err := sql.Open("sqlite", "file:"+cfg.SQLitePath+"?_journal=WAL")
		if err != nil {
			return nil, nil, noop, err
		}
		eng, err := engine.NewSQLiteEngineWithOptions(db, opts)
		if err != nil {
			db.Close()
			return nil, nil, noop, err
		}
		domains, err := tenant.NewSQLiteDomainStore(db)
		if err != nil {
			db.Close()
			return nil, nil, noop, err
		}
		return eng, domains, func() { db.Close() }, nil

	case config.StorePostgres:
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, noop, err
		}
		eng, err := engine.NewPostgresEngineWithOptions(db, opts)
		if err != nil {
			db.Close()
			return nil, nil, noop, err
		}
		return eng, nil, func() { db.Close() }, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return engine.NewRedisEngineWithOptions(client, opts), nil, func() { client.Close() }, nil

	case config.StoreMongo:
		client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, noop, err
		}
		eng := engine.NewMongoEngineWithOptions(client.Database(cfg.MongoDB), opts)
		return eng, nil, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		return nil, nil, noop, errors.New("unknown store " + cfg.Store)
	}
}

// newDispatcher registers handlers for every hook the stage table can
// emit. The notification integrations live outside this service, so
// the handlers record intent; the identifiers and ordering are what
// the engine guarantees.
func newDispatcher(logger zerolog.Logger) api.Dispatcher {
	d := api.NewRegistryDispatcher()

	hooks := []api.Hook{
		api.HookSendHoldNotice,
		api.HookReleaseHold,
		api.HookSendOfferEmail,
		api.HookSendContract,
		api.HookNotifyArtistConfirmed,
		api.HookPublishEventPage,
		api.HookScheduleAnnouncements,
		api.HookRecordSettlement,
		api.HookSendRecapEmail,
		api.HookNotifyCancellation,
	}
	for _, hook := range hooks {
		hook := hook
		d.Register(hook, func(ctx context.Context, hc api.HookContext) error {
			logger.Info().
				Str("hook", string(hook)).
				Str("event_id", hc.EventID).
				Str("organization_id", hc.OrganizationID).
				Str("actor", hc.Actor).
				Msg("automation_hook")
			return nil
		})
	}

	return d
}
