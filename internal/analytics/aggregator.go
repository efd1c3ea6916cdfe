package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/echomindr/echomindr/pkg/kafka"
)

// latencyWindow bounds the samples kept for percentiles.
const latencyWindow = 10000

// recentWindow bounds the request log served by Recent.
const recentWindow = 200

type OperationStats struct {
	Count       int64 `json:"count"`
	Errors      int64 `json:"errors"`
	ZeroResults int64 `json:"zero_results"`
}

type AggregatedStats struct {
	TotalQueries      int64                     `json:"total_queries"`
	Errors            int64                     `json:"errors"`
	CacheHits         int64                     `json:"cache_hits"`
	CacheMisses       int64                     `json:"cache_misses"`
	ZeroResultCount   int64                     `json:"zero_result_count"`
	ByOperation       map[string]OperationStats `json:"by_operation"`
	BySource          map[string]int64          `json:"by_source"`
	AvgLatencyMs      float64                   `json:"avg_latency_ms"`
	P50LatencyMs      float64                   `json:"p50_latency_ms"`
	P95LatencyMs      float64                   `json:"p95_latency_ms"`
	P99LatencyMs      float64                   `json:"p99_latency_ms"`
	TopQueries        []QueryCount              `json:"top_queries"`
	ZeroResultQueries []QueryCount              `json:"zero_result_queries"`
	QueriesPerMinute  float64                   `json:"queries_per_minute"`
	Since             time.Time                 `json:"since"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds query events into dashboard statistics. It is safe for
// concurrent use.
type Aggregator struct {
	mu                sync.RWMutex
	total             int64
	errors            int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	byOperation       map[string]*OperationStats
	bySource          map[string]int64
	latencies         []float64
	latencyNext       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	recent            []QueryEvent
	recentNext        int
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byOperation:       make(map[string]*OperationStats),
		bySource:          make(map[string]int64),
		latencies:         make([]float64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts the aggregator to the analytics Kafka topic.
// Undecodable messages are logged and committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	op := a.byOperation[event.Operation]
	if op == nil {
		op = &OperationStats{}
		a.byOperation[event.Operation] = op
	}
	op.Count++
	if event.Source != "" {
		a.bySource[event.Source]++
	}

	if event.Failed() {
		a.errors++
		op.Errors++
	} else {
		if event.CacheHit {
			a.cacheHits++
		} else {
			a.cacheMisses++
		}
		query := normalizeQuery(event.Query)
		if query != "" {
			a.queryCounts[query]++
		}
		if event.Returned == 0 {
			a.zeroResults++
			op.ZeroResults++
			if query != "" {
				a.zeroResultQueries[query]++
			}
		}
		a.addLatency(event.LatencyMs)
	}

	if len(a.recent) < recentWindow {
		a.recent = append(a.recent, event)
	} else {
		a.recent[a.recentNext] = event
		a.recentNext = (a.recentNext + 1) % recentWindow
	}
}

func (a *Aggregator) addLatency(ms float64) {
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, ms)
		return
	}
	a.latencies[a.latencyNext] = ms
	a.latencyNext = (a.latencyNext + 1) % latencyWindow
}

// Restore seeds the counters from a persisted snapshot so totals survive a
// restart. Latency samples and the recent log are not restored.
func (a *Aggregator) Restore(st AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total += st.TotalQueries
	a.errors += st.Errors
	a.cacheHits += st.CacheHits
	a.cacheMisses += st.CacheMisses
	a.zeroResults += st.ZeroResultCount
	for name, s := range st.ByOperation {
		op := a.byOperation[name]
		if op == nil {
			op = &OperationStats{}
			a.byOperation[name] = op
		}
		op.Count += s.Count
		op.Errors += s.Errors
		op.ZeroResults += s.ZeroResults
	}
	for src, n := range st.BySource {
		a.bySource[src] += n
	}
	for _, q := range st.TopQueries {
		a.queryCounts[q.Query] += q.Count
	}
	for _, q := range st.ZeroResultQueries {
		a.zeroResultQueries[q.Query] += q.Count
	}
	if !st.Since.IsZero() && st.Since.Before(a.startTime) {
		a.startTime = st.Since
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries:    a.total,
		Errors:          a.errors,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		ByOperation:     make(map[string]OperationStats, len(a.byOperation)),
		BySource:        make(map[string]int64, len(a.bySource)),
		Since:           a.startTime,
	}
	for name, op := range a.byOperation {
		stats.ByOperation[name] = *op
	}
	for src, n := range a.bySource {
		stats.BySource[src] = n
	}
	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Float64s(sorted)

		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

// Recent returns up to n of the latest events, newest first.
func (a *Aggregator) Recent(n int) []QueryEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	size := len(a.recent)
	if n <= 0 || n > size {
		n = size
	}
	out := make([]QueryEvent, 0, n)
	newest := size - 1
	if size == recentWindow {
		newest = (a.recentNext - 1 + recentWindow) % recentWindow
	}
	for i := 0; i < n; i++ {
		out = append(out, a.recent[(newest-i+size)%size])
	}
	return out
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
