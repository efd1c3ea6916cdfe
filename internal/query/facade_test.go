package query

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/echomindr/echomindr/internal/indexer"
	"github.com/echomindr/echomindr/internal/moment"
	"github.com/echomindr/echomindr/internal/moment/momenttest"
	"github.com/echomindr/echomindr/internal/searcher/cache"
	apperrors "github.com/echomindr/echomindr/pkg/errors"
	"github.com/echomindr/echomindr/pkg/metrics"
	pkgredis "github.com/echomindr/echomindr/pkg/redis"
)

func newFacade(t *testing.T, opts ...Option) *Facade {
	t.Helper()
	f, err := New(DefaultConfig(), opts...)
	require.NoError(t, err)
	_, err = f.Load(context.Background(), momenttest.Corpus())
	require.NoError(t, err)
	return f
}

func momentIDs(ms []ScoredMoment) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestNotReadyBeforeLoad(t *testing.T) {
	f, err := New(DefaultConfig())
	require.NoError(t, err)
	require.False(t, f.Ready())

	_, err = f.Search(context.Background(), SearchRequest{Query: "pricing"})
	require.ErrorIs(t, err, apperrors.ErrNotReady)
	_, err = f.Get(context.Background(), "m1")
	require.ErrorIs(t, err, apperrors.ErrNotReady)
	_, err = f.Stats()
	require.ErrorIs(t, err, apperrors.ErrNotReady)
}

func TestSearchWithStageFilter(t *testing.T) {
	f := newFacade(t)
	resp, err := f.Search(context.Background(), SearchRequest{Query: "pricing", Stage: "mvp"})
	require.NoError(t, err)
	require.Equal(t, []string{"m1"}, momentIDs(resp.Moments))
	require.Equal(t, 1.0, resp.Moments[0].Score)
	require.Equal(t, moment.StageMVP, resp.Filters.Stage)

	resp, err = f.Search(context.Background(), SearchRequest{Query: "pricing", Stage: " Seed "})
	require.NoError(t, err)
	require.Equal(t, []string{"m1"}, momentIDs(resp.Moments))
}

func TestSearchFilterCorrectness(t *testing.T) {
	f := newFacade(t)
	for _, q := range []string{"", "pricing", "the founders", "team"} {
		resp, err := f.Search(context.Background(), SearchRequest{Query: q, Stage: "traction", Limit: 100})
		require.NoError(t, err)
		for _, m := range resp.Moments {
			require.Equal(t, moment.StageTraction, m.Stage, "query %q", q)
		}
	}
}

func TestSearchRejectsUnknownFilters(t *testing.T) {
	f := newFacade(t)
	_, err := f.Search(context.Background(), SearchRequest{Query: "pricing", Stage: "unicorn"})
	require.ErrorIs(t, err, apperrors.ErrInvalidFilter)
	_, err = f.Search(context.Background(), SearchRequest{Query: "pricing", Type: "rant"})
	require.ErrorIs(t, err, apperrors.ErrInvalidFilter)
	_, err = f.Match(context.Background(), MatchRequest{Situation: "pricing", Stage: "unicorn"})
	require.ErrorIs(t, err, apperrors.ErrInvalidFilter)
}

func TestSearchLimits(t *testing.T) {
	f := newFacade(t)
	ctx := context.Background()

	_, err := f.Search(ctx, SearchRequest{Limit: -1})
	require.ErrorIs(t, err, apperrors.ErrLimitOutOfRange)
	_, err = f.Search(ctx, SearchRequest{Offset: -1})
	require.ErrorIs(t, err, apperrors.ErrLimitOutOfRange)
	_, err = f.Search(ctx, SearchRequest{Offset: 10001})
	require.ErrorIs(t, err, apperrors.ErrLimitOutOfRange)

	resp, err := f.Search(ctx, SearchRequest{})
	require.NoError(t, err)
	require.Equal(t, 5, resp.Count)
	require.Equal(t, 7, resp.Total)

	resp, err = f.Search(ctx, SearchRequest{Limit: 5000})
	require.NoError(t, err)
	require.Equal(t, 7, resp.Count)

	resp, err = f.Search(ctx, SearchRequest{Offset: 50})
	require.NoError(t, err)
	require.Empty(t, resp.Moments)
	require.Equal(t, 7, resp.Total)
}

func TestSearchPaginationConsistency(t *testing.T) {
	f := newFacade(t)
	ctx := context.Background()
	for _, q := range []string{"", "pricing leadership customers founders"} {
		first, err := f.Search(ctx, SearchRequest{Query: q, Limit: 2})
		require.NoError(t, err)
		second, err := f.Search(ctx, SearchRequest{Query: q, Limit: 2, Offset: 2})
		require.NoError(t, err)
		whole, err := f.Search(ctx, SearchRequest{Query: q, Limit: 4})
		require.NoError(t, err)
		require.Equal(t, momentIDs(whole.Moments), append(momentIDs(first.Moments), momentIDs(second.Moments)...), "query %q", q)
	}
}

func TestSearchIsDeterministic(t *testing.T) {
	f := newFacade(t)
	req := SearchRequest{Query: "pricing leadership customers founders", Limit: 10}
	want, err := f.Search(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, []string{"m1", "m3", "m4", "m2"}, momentIDs(want.Moments))
	for i := 0; i < 20; i++ {
		got, err := f.Search(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, want.Moments, got.Moments)
	}
}

func TestScoresArePublicRange(t *testing.T) {
	f := newFacade(t)
	resp, err := f.Search(context.Background(), SearchRequest{Query: "We switched from usage pricing", Limit: 20})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Moments)
	for _, m := range resp.Moments {
		require.GreaterOrEqual(t, m.Score, 0.0)
		require.LessOrEqual(t, m.Score, 1.0)
	}
}

func TestMatch(t *testing.T) {
	f := newFacade(t)
	resp, err := f.Match(context.Background(), MatchRequest{Situation: "founder worried about customers not paying for pilots"})
	require.NoError(t, err)
	require.Equal(t, []string{"m1", "m2"}, momentIDs(resp.Moments))
	require.InDelta(t, 0.32, resp.Moments[0].Score, 1e-9)
	require.InDelta(t, 0.24, resp.Moments[1].Score, 1e-9)
	require.Equal(t, []string{"pricing"}, resp.Moments[0].MatchedTags)
	require.Equal(t, 2, resp.Count)

	_, err = f.Match(context.Background(), MatchRequest{Situation: "  "})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	resp, err = f.Match(context.Background(), MatchRequest{Situation: "quantum zebra xylophone"})
	require.NoError(t, err)
	require.Empty(t, resp.Moments)
	require.NotNil(t, resp.Moments)
}

func TestSimilar(t *testing.T) {
	f := newFacade(t)
	resp, err := f.Similar(context.Background(), "m1", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"m2"}, momentIDs(resp.Moments))
	require.Equal(t, 0.3333, resp.Moments[0].Score)
	require.Equal(t, []string{"pricing", "saas"}, resp.SourceTags)

	_, err = f.Similar(context.Background(), "missing", 5)
	require.ErrorIs(t, err, apperrors.ErrMomentNotFound)
	_, err = f.Similar(context.Background(), "m1", -3)
	require.ErrorIs(t, err, apperrors.ErrLimitOutOfRange)
}

func TestGet(t *testing.T) {
	f := newFacade(t)
	m, err := f.Get(context.Background(), "m3")
	require.NoError(t, err)
	require.Equal(t, "How I Built This", m.Source.Podcast)

	_, err = f.Get(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrMomentNotFound)
}

func TestReloadSwapsSnapshot(t *testing.T) {
	f := newFacade(t)
	var seen []uint64
	f.OnReload(func(_ context.Context, snap *indexer.Snapshot) {
		seen = append(seen, snap.Version)
	})

	replacement := []moment.Moment{{
		ID: "n1", Type: moment.TypeAdvice, Stage: moment.StageIdea,
		Summary: "Talk to users before writing code.", Tags: []string{"customer discovery"},
	}}
	snap, err := f.Load(context.Background(), replacement)
	require.NoError(t, err)
	require.Equal(t, uint64(2), snap.Version)
	require.Equal(t, []uint64{2}, seen)

	_, err = f.Get(context.Background(), "m1")
	require.ErrorIs(t, err, apperrors.ErrMomentNotFound)
	st, err := f.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, st.TotalMoments)
}

func TestFailedReloadKeepsSnapshot(t *testing.T) {
	f := newFacade(t)
	dup := []moment.Moment{
		{ID: "x", Type: moment.TypeLesson, Stage: moment.StageIdea, Summary: "a"},
		{ID: "x", Type: moment.TypeLesson, Stage: moment.StageIdea, Summary: "b"},
	}
	_, err := f.Load(context.Background(), dup)
	require.Error(t, err)

	snap, err := f.Snapshot()
	require.NoError(t, err)
	require.Equal(t, uint64(1), snap.Version)
	_, err = f.Get(context.Background(), "m1")
	require.NoError(t, err)
}

func TestQueriesDuringReload(t *testing.T) {
	f := newFacade(t)
	ctx := context.Background()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				resp, err := f.Search(ctx, SearchRequest{Query: "pricing", Limit: 10})
				if err != nil || len(resp.Moments) != 2 {
					t.Errorf("unexpected search result: %v", err)
					return
				}
			}
		}()
	}
	for i := 0; i < 10; i++ {
		_, err := f.Load(ctx, momenttest.Corpus())
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

type memBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (m *memBackend) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, strings.TrimSuffix(pattern, "*")) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestCachedResultsAndObservations(t *testing.T) {
	backend := &memBackend{data: make(map[string]string)}
	var mu sync.Mutex
	var observed []Observation
	f := newFacade(t,
		WithCache(cache.New(backend, time.Minute)),
		WithMetrics(metrics.NewWithRegistry(prometheus.NewRegistry())),
		WithObserver(func(_ context.Context, o Observation) {
			mu.Lock()
			observed = append(observed, o)
			mu.Unlock()
		}),
	)
	ctx := WithSource(context.Background(), "http")

	first, err := f.Search(ctx, SearchRequest{Query: "Pricing", Stage: "mvp"})
	require.NoError(t, err)
	second, err := f.Search(ctx, SearchRequest{Query: "pricing", Stage: "MVP"})
	require.NoError(t, err)
	require.Equal(t, first.Moments, second.Moments)
	require.Equal(t, "pricing", second.Query)

	m, err := f.Match(ctx, MatchRequest{Situation: "founder worried about customers not paying for pilots"})
	require.NoError(t, err)
	m2, err := f.Match(ctx, MatchRequest{Situation: "Founder  worried about customers not paying for pilots"})
	require.NoError(t, err)
	require.Equal(t, m.Moments, m2.Moments)

	_, err = f.Get(ctx, "nope")
	require.Error(t, err)

	mu.Lock()
	require.Len(t, observed, 5)
	require.False(t, observed[0].CacheHit)
	require.True(t, observed[1].CacheHit)
	require.True(t, observed[3].CacheHit)
	require.Equal(t, OpDetail, observed[4].Operation)
	require.Equal(t, "http", observed[4].Source)
	require.Error(t, observed[4].Err)
	mu.Unlock()

	_, err = f.Load(ctx, momenttest.Corpus())
	require.NoError(t, err)
	require.Empty(t, backend.data)
	st := f.CacheStats()
	require.True(t, st.Enabled)
	require.Equal(t, int64(2), st.Hits)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.SearchLimits = Limits{Default: 10, Max: 5}
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxOffset = -1
	require.Error(t, cfg.Validate())
	_, err := New(cfg)
	require.Error(t, err)
}
