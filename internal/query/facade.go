// Package query is the single entry point to the retrieval engine. A Facade
// serves keyword search, situation matching, similar-moment lookups and
// detail reads against the snapshot it currently holds, and swaps in a new
// snapshot atomically when the corpus is reloaded.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/echomindr/echomindr/internal/indexer"
	"github.com/echomindr/echomindr/internal/moment"
	"github.com/echomindr/echomindr/internal/searcher/cache"
	"github.com/echomindr/echomindr/internal/searcher/executor"
	"github.com/echomindr/echomindr/internal/searcher/parser"
	"github.com/echomindr/echomindr/internal/searcher/ranker"
	"github.com/echomindr/echomindr/internal/similarity"
	"github.com/echomindr/echomindr/internal/situation"
	apperrors "github.com/echomindr/echomindr/pkg/errors"
	"github.com/echomindr/echomindr/pkg/logger"
	"github.com/echomindr/echomindr/pkg/metrics"
)

// Operation names used in cache keys, metrics and observations.
const (
	OpSearch    = "search"
	OpSituation = "situation"
	OpSimilar   = "similar"
	OpDetail    = "detail"
)

// Observation describes one served query.
type Observation struct {
	Operation string
	Source    string
	Query     string
	Filters   executor.Filters
	Returned  int
	Total     int
	CacheHit  bool
	Latency   time.Duration
	Err       error
}

type sourceKey struct{}

// WithSource tags ctx with the surface a query arrived through, such as
// "http" or "mcp". It is copied into every Observation.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func SourceFromContext(ctx context.Context) string {
	source, _ := ctx.Value(sourceKey{}).(string)
	return source
}

// ReloadListener is called after a new snapshot has been swapped in.
type ReloadListener func(ctx context.Context, snap *indexer.Snapshot)

type Option func(*Facade)

func WithCache(c *cache.QueryCache) Option {
	return func(f *Facade) { f.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Facade) { f.metrics = m }
}

// WithObserver registers fn to receive an Observation for every query.
// fn runs on the request goroutine and must not block.
func WithObserver(fn func(ctx context.Context, o Observation)) Option {
	return func(f *Facade) { f.observers = append(f.observers, fn) }
}

type Facade struct {
	cfg       Config
	executor  *executor.Executor
	matcher   *situation.Matcher
	similar   *similarity.Engine
	cache     *cache.QueryCache
	metrics   *metrics.Metrics
	observers []func(ctx context.Context, o Observation)

	current atomic.Pointer[indexer.Snapshot]

	reloadMu  sync.Mutex
	version   uint64
	listeners []ReloadListener

	logger *slog.Logger
}

func New(cfg Config, opts ...Option) (*Facade, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query config: %w", err)
	}
	f := &Facade{
		cfg:      cfg,
		executor: executor.New(cfg.Weights),
		matcher:  situation.New(cfg.Matcher),
		similar:  similarity.New(),
		logger:   slog.Default().With("component", "query-facade"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// OnReload registers l to run after every successful Load.
func (f *Facade) OnReload(l ReloadListener) {
	f.reloadMu.Lock()
	defer f.reloadMu.Unlock()
	f.listeners = append(f.listeners, l)
}

// Load builds a snapshot of moments and makes it current. Reloads are
// serialized; queries keep reading the previous snapshot until the swap and
// never observe a partially built one. On error the current snapshot is
// left in place.
func (f *Facade) Load(ctx context.Context, moments []moment.Moment) (*indexer.Snapshot, error) {
	f.reloadMu.Lock()
	defer f.reloadMu.Unlock()

	snap, err := indexer.Build(ctx, f.version+1, moments)
	if err != nil {
		return nil, err
	}
	f.version = snap.Version
	f.current.Store(snap)
	f.metrics.SetSnapshot(snap.Version, snap.Store.Len(), snap.Lexical.TermCount(), snap.Tags.Len())

	if f.cache != nil {
		if _, err := f.cache.Invalidate(ctx); err != nil {
			f.logger.Warn("cache invalidation after reload failed", "version", snap.Version, "error", err)
		}
	}
	for _, l := range f.listeners {
		l(ctx, snap)
	}
	f.logger.Info("snapshot swapped", "version", snap.Version, "moments", snap.Store.Len())
	return snap, nil
}

// Snapshot returns the snapshot currently served, or ErrNotReady before
// the first Load.
func (f *Facade) Snapshot() (*indexer.Snapshot, error) {
	snap := f.current.Load()
	if snap == nil {
		return nil, apperrors.New(apperrors.ErrNotReady, http.StatusServiceUnavailable, "corpus not loaded yet")
	}
	return snap, nil
}

func (f *Facade) Ready() bool {
	return f.current.Load() != nil
}

func (f *Facade) Config() Config {
	return f.cfg
}

func (f *Facade) CacheStats() cache.Stats {
	return f.cache.Stats()
}

// InvalidateCache drops every cached result.
func (f *Facade) InvalidateCache(ctx context.Context) (int64, error) {
	return f.cache.Invalidate(ctx)
}

// Search runs a keyword query. Stage and type filters are parsed against
// their enumerations; an empty query lists the filtered corpus in load
// order.
func (f *Facade) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()
	resp, hit, err := f.search(ctx, req)
	o := Observation{Operation: OpSearch, Query: req.Query, CacheHit: hit, Latency: time.Since(start), Err: err}
	if resp != nil {
		o.Filters, o.Returned, o.Total = resp.Filters, resp.Count, resp.Total
	}
	f.observe(ctx, o)
	return resp, err
}

func (f *Facade) search(ctx context.Context, req SearchRequest) (*SearchResponse, bool, error) {
	snap, err := f.Snapshot()
	if err != nil {
		return nil, false, err
	}
	limit, err := resolveLimit(req.Limit, f.cfg.SearchLimits)
	if err != nil {
		return nil, false, err
	}
	if req.Offset < 0 || req.Offset > f.cfg.MaxOffset {
		return nil, false, apperrors.LimitOutOfRange("offset must be between 0 and %d, got %d", f.cfg.MaxOffset, req.Offset)
	}
	filters, err := ParseFilters(req.Stage, req.Type, req.Podcast)
	if err != nil {
		return nil, false, err
	}

	plan := parser.Parse(req.Query)
	key := cache.Key{
		Op:      OpSearch,
		Version: snap.Version,
		Params: strings.Join([]string{
			plan.Normalized(),
			string(filters.Stage),
			string(filters.Type),
			strings.ToLower(filters.Podcast),
			strconv.Itoa(limit),
			strconv.Itoa(req.Offset),
		}, "\x1f"),
	}
	resp, hit, err := cache.GetOrCompute(ctx, f.cache, key, func() (SearchResponse, error) {
		res, err := f.executor.Execute(ctx, snap, executor.Request{
			Plan:    plan,
			Filters: filters,
			Limit:   limit,
			Offset:  req.Offset,
		})
		if err != nil {
			return SearchResponse{}, err
		}
		out := SearchResponse{
			Filters: filters,
			Terms:   res.Terms,
			Total:   res.TotalHits,
			Offset:  req.Offset,
			Moments: make([]ScoredMoment, 0, len(res.Results)),
		}
		for _, doc := range res.Results {
			out.Moments = append(out.Moments, ScoredMoment{
				Moment: snap.Store.At(doc.Ordinal),
				Score:  ranker.Normalize(doc.Score, res.MaxScore),
			})
		}
		out.Count = len(out.Moments)
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	resp.Query = req.Query
	return &resp, hit, nil
}

// Match ranks moments against a free-text situation. A situation that
// reaches no moment above the relevance threshold yields an empty list.
func (f *Facade) Match(ctx context.Context, req MatchRequest) (*SituationResponse, error) {
	start := time.Now()
	resp, hit, err := f.match(ctx, req)
	o := Observation{Operation: OpSituation, Query: req.Situation, CacheHit: hit, Latency: time.Since(start), Err: err}
	if resp != nil {
		o.Filters = executor.Filters{Stage: resp.StageFilter, Type: resp.TypeFilter}
		o.Returned, o.Total = resp.Count, resp.Total
	}
	f.observe(ctx, o)
	return resp, err
}

func (f *Facade) match(ctx context.Context, req MatchRequest) (*SituationResponse, bool, error) {
	snap, err := f.Snapshot()
	if err != nil {
		return nil, false, err
	}
	if strings.TrimSpace(req.Situation) == "" {
		return nil, false, apperrors.InvalidInput("situation must not be empty")
	}
	limit, err := resolveLimit(req.Limit, f.cfg.SituationLimits)
	if err != nil {
		return nil, false, err
	}
	filters, err := ParseFilters(req.Stage, req.Type, "")
	if err != nil {
		return nil, false, err
	}

	key := cache.Key{
		Op:      OpSituation,
		Version: snap.Version,
		Params: strings.Join([]string{
			strings.Join(strings.Fields(strings.ToLower(req.Situation)), " "),
			string(filters.Stage),
			string(filters.Type),
			strconv.Itoa(limit),
		}, "\x1f"),
	}
	resp, hit, err := cache.GetOrCompute(ctx, f.cache, key, func() (SituationResponse, error) {
		res, err := f.matcher.Match(ctx, snap, situation.Request{
			Text:  req.Situation,
			Stage: filters.Stage,
			Type:  filters.Type,
			Limit: limit,
		})
		if err != nil {
			return SituationResponse{}, err
		}
		bound := f.matcher.Config().MaxScore()
		out := SituationResponse{
			Keywords:    res.Keywords,
			StageFilter: filters.Stage,
			TypeFilter:  filters.Type,
			Total:       res.TotalHits,
			Moments:     make([]ScoredMoment, 0, len(res.Matches)),
		}
		for _, m := range res.Matches {
			out.Moments = append(out.Moments, ScoredMoment{
				Moment:      snap.Store.At(m.Ordinal),
				Score:       ranker.Normalize(m.Score, bound),
				MatchedTags: m.MatchedTags,
			})
		}
		out.Count = len(out.Moments)
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	resp.Situation = req.Situation
	return &resp, hit, nil
}

// Similar ranks moments by tag overlap with the moment id.
func (f *Facade) Similar(ctx context.Context, id string, limit int) (*SimilarResponse, error) {
	start := time.Now()
	resp, hit, err := f.similarTo(ctx, id, limit)
	o := Observation{Operation: OpSimilar, Query: id, CacheHit: hit, Latency: time.Since(start), Err: err}
	if resp != nil {
		o.Returned, o.Total = resp.Count, resp.Total
	}
	f.observe(ctx, o)
	return resp, err
}

func (f *Facade) similarTo(ctx context.Context, id string, limit int) (*SimilarResponse, bool, error) {
	snap, err := f.Snapshot()
	if err != nil {
		return nil, false, err
	}
	limit, err = resolveLimit(limit, f.cfg.SimilarLimits)
	if err != nil {
		return nil, false, err
	}
	id = strings.TrimSpace(id)
	if _, ok := snap.Store.Ordinal(id); !ok {
		return nil, false, apperrors.NotFound(id)
	}

	key := cache.Key{Op: OpSimilar, Version: snap.Version, Params: id + "\x1f" + strconv.Itoa(limit)}
	resp, hit, err := cache.GetOrCompute(ctx, f.cache, key, func() (SimilarResponse, error) {
		res, err := f.similar.Similar(ctx, snap, id, limit)
		if err != nil {
			return SimilarResponse{}, err
		}
		out := SimilarResponse{
			SourceID:   res.SourceID,
			SourceTags: res.SourceTags,
			Total:      res.TotalHits,
			Moments:    make([]ScoredMoment, 0, len(res.Matches)),
		}
		for _, m := range res.Matches {
			out.Moments = append(out.Moments, ScoredMoment{
				Moment:      snap.Store.At(m.Ordinal),
				Score:       ranker.Round(m.Score),
				MatchedTags: m.SharedTags,
			})
		}
		out.Count = len(out.Moments)
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	return &resp, hit, nil
}

// Get returns a single moment by id.
func (f *Facade) Get(ctx context.Context, id string) (moment.Moment, error) {
	start := time.Now()
	snap, err := f.Snapshot()
	var m moment.Moment
	if err == nil {
		m, err = snap.Store.Get(strings.TrimSpace(id))
	}
	o := Observation{Operation: OpDetail, Query: id, Latency: time.Since(start), Err: err}
	if err == nil {
		o.Returned, o.Total = 1, 1
	}
	f.observe(ctx, o)
	return m, err
}

// Stats returns corpus totals of the current snapshot.
func (f *Facade) Stats() (moment.Stats, error) {
	snap, err := f.Snapshot()
	if err != nil {
		return moment.Stats{}, err
	}
	return snap.Stats, nil
}

func (f *Facade) observe(ctx context.Context, o Observation) {
	o.Source = SourceFromContext(ctx)
	f.metrics.ObserveQuery(o.Operation, o.Returned, o.CacheHit, o.Latency, o.Err)
	log := logger.FromContext(ctx).With("component", "query-facade")
	if o.Err != nil {
		level := slog.LevelWarn
		if apperrors.HTTPStatusCode(o.Err) >= 500 {
			level = slog.LevelError
		}
		log.Log(ctx, level, "query failed",
			"operation", o.Operation,
			"source", o.Source,
			"query", o.Query,
			"error", o.Err,
		)
	} else {
		log.Info("query completed",
			"operation", o.Operation,
			"source", o.Source,
			"query", o.Query,
			"returned", o.Returned,
			"total", o.Total,
			"cache_hit", o.CacheHit,
			"latency_ms", o.Latency.Milliseconds(),
		)
	}
	for _, fn := range f.observers {
		fn(ctx, o)
	}
}

// ParseFilters validates raw filter values. Empty values mean no filter.
func ParseFilters(stage, typ, podcast string) (executor.Filters, error) {
	var filters executor.Filters
	if strings.TrimSpace(stage) != "" {
		s, err := moment.ParseStage(stage)
		if err != nil {
			return filters, err
		}
		filters.Stage = s
	}
	if strings.TrimSpace(typ) != "" {
		t, err := moment.ParseType(typ)
		if err != nil {
			return filters, err
		}
		filters.Type = t
	}
	filters.Podcast = strings.TrimSpace(podcast)
	return filters, nil
}

func resolveLimit(limit int, l Limits) (int, error) {
	switch {
	case limit < 0:
		return 0, apperrors.LimitOutOfRange("limit must not be negative, got %d", limit)
	case limit == 0:
		return l.Default, nil
	case limit > l.Max:
		return l.Max, nil
	}
	return limit, nil
}
