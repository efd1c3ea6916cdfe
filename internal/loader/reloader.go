package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/echomindr/echomindr/internal/indexer"
	"github.com/echomindr/echomindr/internal/moment"
	apperrors "github.com/echomindr/echomindr/pkg/errors"
	"github.com/echomindr/echomindr/pkg/kafka"
	"github.com/echomindr/echomindr/pkg/metrics"
	"github.com/echomindr/echomindr/pkg/resilience"
	"github.com/echomindr/echomindr/pkg/tracing"
)

// Target receives a freshly loaded corpus. query.Facade satisfies it.
type Target interface {
	Load(ctx context.Context, moments []moment.Moment) (*indexer.Snapshot, error)
}

type ReloaderConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	// RetryDelay is the first backoff; zero uses the resilience default.
	RetryDelay time.Duration
}

// ReloadResult is reported after a successful reload.
type ReloadResult struct {
	Report     Report        `json:"report"`
	Version    uint64        `json:"version"`
	Moments    int           `json:"moments"`
	DurationMs int64         `json:"duration_ms"`
	Duration   time.Duration `json:"-"`
}

// ReloadRequest is the Kafka message body on the reload topic.
type ReloadRequest struct {
	Reason string `json:"reason"`
}

// Reloader loads the corpus from a Source and hands it to a Target. Reads
// from the source are retried; validation failures are not. The whole
// reload is bounded by Timeout.
type Reloader struct {
	src     Source
	target  Target
	cfg     ReloaderConfig
	metrics *metrics.Metrics

	mu     sync.Mutex
	last   *ReloadResult
	logger *slog.Logger
}

func NewReloader(src Source, target Target, cfg ReloaderConfig, m *metrics.Metrics) *Reloader {
	return &Reloader{
		src:     src,
		target:  target,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "reloader"),
	}
}

// Reload reads the source and swaps in the new corpus. On failure the
// target keeps serving its previous snapshot.
func (r *Reloader) Reload(ctx context.Context) (*ReloadResult, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "corpus_reload")
	span.SetAttr("source", r.src.Name())
	defer span.Log(r.logger)

	result, err := resilience.Bounded(ctx, r.cfg.Timeout, "corpus reload", func(ctx context.Context) (*ReloadResult, error) {
		var moments []moment.Moment
		var report Report
		readCtx, read := tracing.StartChildSpan(ctx, "read_source")
		attempts, err := resilience.Retry(readCtx, "load "+r.src.Name(), resilience.RetryConfig{
			MaxAttempts: r.cfg.MaxAttempts,
			Backoff:     resilience.Backoff{Initial: r.cfg.RetryDelay},
			Retryable:   retryable,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				r.metrics.ObserveReloadRetry()
				r.logger.Warn("source read failed, retrying",
					"source", r.src.Name(), "attempt", attempt, "error", err, "next_delay", delay)
			},
		}, func(ctx context.Context, _ int) error {
			var err error
			moments, report, err = Load(ctx, r.src)
			return err
		})
		read.SetAttr("attempts", attempts)
		read.SetAttr("skipped", report.Skipped)
		read.End(err)
		if err != nil {
			return nil, err
		}

		buildCtx, build := tracing.StartChildSpan(ctx, "build_snapshot")
		snap, err := r.target.Load(buildCtx, moments)
		build.End(err)
		if err != nil {
			return nil, fmt.Errorf("building snapshot: %w", err)
		}
		build.SetAttr("version", snap.Version)
		return &ReloadResult{
			Report:  report,
			Version: snap.Version,
			Moments: snap.Store.Len(),
		}, nil
	})
	elapsed := time.Since(start)
	span.End(err)
	if err != nil {
		r.metrics.ObserveReload(elapsed, 0, err)
		r.logger.Error("reload failed", "source", r.src.Name(), "error", err)
		return nil, err
	}
	result.Duration = elapsed
	result.DurationMs = elapsed.Milliseconds()
	r.metrics.ObserveReload(elapsed, result.Report.Skipped, nil)

	r.mu.Lock()
	r.last = result
	r.mu.Unlock()

	r.logger.Info("reload complete",
		"version", result.Version,
		"moments", result.Moments,
		"skipped", result.Report.Skipped,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

// Last returns the most recent successful reload, or nil.
func (r *Reloader) Last() *ReloadResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// HandleMessage adapts Reload to the corpus-reload Kafka topic. A failed
// reload is returned so the message is not committed and gets redelivered.
func (r *Reloader) HandleMessage(ctx context.Context, key, value []byte) error {
	req := ReloadRequest{}
	if len(value) > 0 {
		decoded, err := kafka.DecodeJSON[ReloadRequest](value)
		if err != nil {
			r.logger.Warn("reload request undecodable, reloading anyway", "error", err)
		} else {
			req = decoded
		}
	}
	r.logger.Info("reload requested", "key", string(key), "reason", req.Reason)
	_, err := r.Reload(ctx)
	return err
}

func retryable(err error) bool {
	return !errors.Is(err, apperrors.ErrInvalidInput) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
