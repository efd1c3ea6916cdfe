// Package analytics records one event per served query and aggregates
// them into the dashboard served at /api/v1/analytics. Events travel
// through Kafka when it is configured and straight into the in-process
// Aggregator otherwise.
package analytics

import (
	"context"
	"time"

	"github.com/echomindr/echomindr/internal/query"
	apperrors "github.com/echomindr/echomindr/pkg/errors"
	"github.com/echomindr/echomindr/pkg/logger"
)

// QueryEvent describes one query served by the facade.
type QueryEvent struct {
	Operation string    `json:"operation"`
	Query     string    `json:"query"`
	Stage     string    `json:"stage,omitempty"`
	Type      string    `json:"type,omitempty"`
	Podcast   string    `json:"podcast,omitempty"`
	Returned  int       `json:"returned"`
	TotalHits int       `json:"total_hits"`
	LatencyMs float64   `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	ErrorCode string    `json:"error_code,omitempty"`
	Source    string    `json:"source,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Failed reports whether the query ended in an error.
func (e QueryEvent) Failed() bool {
	return e.ErrorCode != ""
}

// EventFromObservation turns a facade observation into the event that is
// collected for the dashboard.
func EventFromObservation(ctx context.Context, o query.Observation) QueryEvent {
	e := QueryEvent{
		Operation: o.Operation,
		Query:     o.Query,
		Stage:     string(o.Filters.Stage),
		Type:      string(o.Filters.Type),
		Podcast:   o.Filters.Podcast,
		Returned:  o.Returned,
		TotalHits: o.Total,
		LatencyMs: float64(o.Latency.Microseconds()) / 1000,
		CacheHit:  o.CacheHit,
		Source:    o.Source,
		RequestID: logger.RequestIDFromContext(ctx),
		Timestamp: time.Now().UTC(),
	}
	if o.Err != nil {
		e.ErrorCode = apperrors.Code(o.Err)
	}
	return e
}
