// Package app wires configuration, storage, cache, messaging and the query
// facade into a running service. The serve and mcp commands share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/echomindr/echomindr/internal/analytics"
	"github.com/echomindr/echomindr/internal/analytics/store"
	"github.com/echomindr/echomindr/internal/api"
	"github.com/echomindr/echomindr/internal/loader"
	"github.com/echomindr/echomindr/internal/query"
	"github.com/echomindr/echomindr/internal/searcher/cache"
	"github.com/echomindr/echomindr/pkg/config"
	"github.com/echomindr/echomindr/pkg/health"
	"github.com/echomindr/echomindr/pkg/kafka"
	"github.com/echomindr/echomindr/pkg/metrics"
	"github.com/echomindr/echomindr/pkg/middleware"
	"github.com/echomindr/echomindr/pkg/postgres"
	pkgredis "github.com/echomindr/echomindr/pkg/redis"
	"github.com/echomindr/echomindr/pkg/resilience"
)

type Options struct {
	// Source overrides the configured moment source.
	Source loader.Source
	// Metrics replaces the collectors built from cfg.Metrics.
	Metrics *metrics.Metrics
}

type App struct {
	cfg *config.Config

	Facade     *query.Facade
	Reloader   *loader.Reloader
	Aggregator *analytics.Aggregator
	Collector  *analytics.Collector
	Metrics    *metrics.Metrics
	Health     *health.Checker

	snapshots *store.Store
	consumers []*kafka.Consumer
	closers   []func() error
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// New builds every component selected by cfg. Optional dependencies that
// cannot be reached (Redis, analytics Postgres) are logged and skipped;
// the moment source is required.
func New(cfg *config.Config, opts Options) (*App, error) {
	a := &App{
		cfg:     cfg,
		Metrics: opts.Metrics,
		Health:  health.NewChecker(),
		logger:  slog.Default().With("component", "app"),
	}
	if a.Metrics == nil && cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
	}

	queryCache := a.openCache()

	a.Aggregator = analytics.NewAggregator()
	collectorCfg := analytics.CollectorConfig{BufferSize: cfg.Analytics.BufferSize}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		a.closers = append(a.closers, producer.Close)
		a.Collector = analytics.NewCollector(producer, nil, collectorCfg, a.Metrics)
		a.consumers = append(a.consumers,
			kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(a.Aggregator)))
		a.Health.Register("kafka", health.DegradedPingCheck(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		}))
	} else {
		a.Collector = analytics.NewCollector(nil, a.Aggregator, collectorCfg, a.Metrics)
	}

	facadeOpts := []query.Option{
		query.WithMetrics(a.Metrics),
		query.WithObserver(func(ctx context.Context, o query.Observation) {
			a.Collector.Track(analytics.EventFromObservation(ctx, o))
		}),
	}
	if queryCache != nil {
		facadeOpts = append(facadeOpts, query.WithCache(queryCache))
	}
	facade, err := query.New(query.FromConfig(cfg), facadeOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Facade = facade
	a.Health.Register("snapshot", health.PingCheck(func(context.Context) error {
		_, err := facade.Snapshot()
		return err
	}))

	src := opts.Source
	if src == nil {
		opened, closeSrc, err := loader.Open(cfg)
		a.closers = append(a.closers, closeSrc)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening moment source: %w", err)
		}
		src = opened
	}
	a.Reloader = loader.NewReloader(src, facade, loader.ReloaderConfig{
		Timeout:     cfg.Reload.Timeout,
		MaxAttempts: cfg.Reload.MaxAttempts,
	}, a.Metrics)
	if cfg.Kafka.Enabled && cfg.Kafka.Topics.CorpusReload != "" {
		a.consumers = append(a.consumers,
			kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusReload, a.Reloader.HandleMessage))
	}

	if cfg.Analytics.Persist {
		a.openSnapshotStore()
	}
	return a, nil
}

func (a *App) openCache() *cache.QueryCache {
	if !a.cfg.Redis.Enabled {
		return nil
	}
	client, err := pkgredis.NewClient(a.cfg.Redis)
	if err != nil {
		a.logger.Warn("redis unavailable, query caching disabled", "error", err)
		return nil
	}
	a.closers = append(a.closers, client.Close)
	a.Health.Register("redis", health.DegradedPingCheck(client.Ping))
	a.logger.Info("query cache enabled", "addr", a.cfg.Redis.Addr, "ttl", a.cfg.Redis.CacheTTL)

	m := a.Metrics
	return cache.NewWithBreaker(client, a.cfg.Redis.CacheTTL, resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(name string, _, to resilience.State) {
			m.SetBreakerState(name, to.String())
		},
	})
}

func (a *App) openSnapshotStore() {
	client, err := postgres.New(a.cfg.Postgres)
	if err != nil {
		a.logger.Warn("postgres unavailable, analytics will not be persisted", "error", err)
		return
	}
	a.closers = append(a.closers, client.Close)
	a.Health.Register("postgres", health.DegradedPingCheck(client.Ping))

	st := store.New(client, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.EnsureSchema(ctx); err != nil {
		a.logger.Warn("analytics schema unavailable", "error", err)
		return
	}
	if err := st.Restore(ctx, a.Aggregator); err != nil {
		a.logger.Warn("analytics restore failed", "error", err)
	}
	a.snapshots = st
}

// Start loads the corpus and launches the background workers. It fails
// only when the first load fails.
func (a *App) Start(ctx context.Context) error {
	if _, err := a.Reloader.Reload(ctx); err != nil {
		return fmt.Errorf("initial corpus load: %w", err)
	}
	a.Collector.Start(ctx)

	for _, c := range a.consumers {
		a.wg.Add(1)
		go func(c *kafka.Consumer) {
			defer a.wg.Done()
			if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("kafka consumer stopped", "topic", c.Topic(), "error", err)
			}
		}(c)
	}

	if a.snapshots != nil {
		interval := a.cfg.Analytics.SnapshotInterval
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		done := a.snapshots.StartPeriodicSave(ctx, a.Aggregator, interval)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			<-done
		}()
	}
	return nil
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Handler:   api.New(a.Facade, a.Reloader, a.cfg.Server.PublicURL),
		Analytics: analytics.NewHandler(a.Aggregator),
		Health:    a.Health,
		Metrics:   a.Metrics,
		Timeout:   a.cfg.Server.WriteTimeout,
		CORS:      middleware.DefaultCORSConfig(),
	})
}

// ServeHTTP runs the API, and the metrics endpoint when enabled, until ctx
// is done.
func (a *App) ServeHTTP(ctx context.Context) error {
	if a.cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(a.cfg.Metrics.Port, a.corpusStatus)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      a.Handler(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout + time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	a.logger.Info("api listening", "addr", ln.Addr().String())
	return a.serve(ctx, server, ln)
}

// serve runs server on ln until ctx is done. It returns only after Shutdown
// has drained in-flight requests, so Close never races a running handler.
func (a *App) serve(ctx context.Context, server *http.Server, ln net.Listener) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		a.logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", "error", err)
		}
	}()

	if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	<-drained
	return nil
}

func (a *App) corpusStatus() metrics.CorpusStatus {
	snap, err := a.Facade.Snapshot()
	if err != nil {
		return metrics.CorpusStatus{}
	}
	return metrics.CorpusStatus{Ready: true, Version: snap.Version, Moments: snap.Store.Len()}
}

// Close flushes analytics, waits for background workers and releases
// connections in reverse order of acquisition.
func (a *App) Close() error {
	if a.Collector != nil {
		a.Collector.Close()
	}
	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Debug("kafka consumer close", "topic", c.Topic(), "error", err)
		}
	}
	a.wg.Wait()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
