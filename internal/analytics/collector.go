package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/echomindr/echomindr/pkg/kafka"
	"github.com/echomindr/echomindr/pkg/metrics"
)

// Publisher is the part of kafka.Producer the collector uses.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Recorder consumes events locally. *Aggregator implements it.
type Recorder interface {
	Record(event QueryEvent)
}

type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers query events off the request path. Track never
// blocks: when the buffer is full the event is dropped and counted. A
// background loop flushes batches to the Publisher, or to the local
// Recorder when no publisher is configured.
type Collector struct {
	publisher Publisher
	local     Recorder
	cfg       CollectorConfig
	metrics   *metrics.Metrics

	eventCh   chan QueryEvent
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
	started   atomic.Bool
	logger    *slog.Logger
}

func NewCollector(publisher Publisher, local Recorder, cfg CollectorConfig, m *metrics.Metrics) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	return &Collector{
		publisher: publisher,
		local:     local,
		cfg:       cfg,
		metrics:   m,
		eventCh:   make(chan QueryEvent, cfg.BufferSize),
		done:      make(chan struct{}),
		logger:    slog.Default().With("component", "analytics-collector"),
	}
}

// Start launches the flush loop. It exits once ctx is done or Close is
// called, flushing whatever is still buffered.
func (c *Collector) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.cfg.FlushInterval)
		defer ticker.Stop()

		batch := make([]QueryEvent, 0, c.cfg.BatchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(context.Background(), batch)
					return
				}
				batch = append(batch, event)
				if len(batch) >= c.cfg.BatchSize {
					c.flush(ctx, batch)
					batch = batch[:0]
				}
			case <-ticker.C:
				c.flush(ctx, batch)
				batch = batch[:0]
			case <-ctx.Done():
				batch = c.drain(batch)
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx, batch)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", c.cfg.BufferSize,
		"batch_size", c.cfg.BatchSize,
		"kafka", c.publisher != nil,
	)
}

// Track enqueues event without blocking. Events tracked after Close are
// dropped.
func (c *Collector) Track(event QueryEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.count("dropped", 1)
		return
	}
	select {
	case c.eventCh <- event:
		c.count("tracked", 1)
	default:
		c.count("dropped", 1)
		c.logger.Warn("analytics event dropped (buffer full)", "operation", event.Operation)
	}
}

// Close stops accepting events and waits for the final flush. It is safe to
// call more than once.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	if c.started.Load() {
		<-c.done
	}
}

func (c *Collector) drain(batch []QueryEvent) []QueryEvent {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, event)
		default:
			return batch
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []QueryEvent) {
	if len(batch) == 0 {
		return
	}
	if c.publisher == nil {
		if c.local != nil {
			for _, e := range batch {
				c.local.Record(e)
			}
		}
		return
	}
	events := make([]kafka.Event, len(batch))
	for i, e := range batch {
		events[i] = kafka.Event{Key: e.Operation, Value: e}
	}
	if err := c.publisher.PublishBatch(ctx, events); err != nil {
		c.count("failed", len(batch))
		c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
		return
	}
	c.count("published", len(batch))
}

func (c *Collector) count(outcome string, n int) {
	if c.metrics == nil {
		return
	}
	c.metrics.AnalyticsEventsTotal.WithLabelValues(outcome).Add(float64(n))
}
