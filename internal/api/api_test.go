package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/echomindr/echomindr/internal/analytics"
	"github.com/echomindr/echomindr/internal/loader"
	"github.com/echomindr/echomindr/internal/moment/momenttest"
	"github.com/echomindr/echomindr/internal/query"
	"github.com/echomindr/echomindr/pkg/health"
	"github.com/echomindr/echomindr/pkg/middleware"
)

type fakeReloader struct {
	calls int
}

func (r *fakeReloader) Reload(ctx context.Context) (*loader.ReloadResult, error) {
	r.calls++
	return &loader.ReloadResult{Version: 2, Moments: 7}, nil
}

type server struct {
	handler http.Handler
	agg     *analytics.Aggregator
	reload  *fakeReloader
}

func newServer(t *testing.T, load bool) *server {
	t.Helper()
	agg := analytics.NewAggregator()
	f, err := query.New(query.DefaultConfig(), query.WithObserver(func(ctx context.Context, o query.Observation) {
		agg.Record(analytics.QueryEvent{Operation: o.Operation, Query: o.Query, Returned: o.Returned, Source: o.Source})
	}))
	require.NoError(t, err)
	if load {
		_, err = f.Load(context.Background(), momenttest.Corpus())
		require.NoError(t, err)
	}
	checker := health.NewChecker()
	checker.Register("snapshot", health.PingCheck(func(context.Context) error {
		_, err := f.Snapshot()
		return err
	}))
	rl := &fakeReloader{}
	return &server{
		handler: NewRouter(RouterConfig{
			Handler:   New(f, rl, "https://api.echomindr.test"),
			Analytics: analytics.NewHandler(agg),
			Health:    checker,
			CORS:      middleware.DefaultCORSConfig(),
		}),
		agg:    agg,
		reload: rl,
	}
}

func (s *server) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func ids(ms []query.ScoredMoment) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestSearchEndpoint(t *testing.T) {
	s := newServer(t, true)
	rec := s.do(t, http.MethodGet, "/api/v1/search?q=pricing&stage=mvp", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	resp := decode[query.SearchResponse](t, rec)
	require.Equal(t, []string{"m1"}, ids(resp.Moments))
	require.Equal(t, "pricing", resp.Query)
}

func TestSearchEndpointErrors(t *testing.T) {
	s := newServer(t, true)

	rec := s.do(t, http.MethodGet, "/api/v1/search?q=pricing&stage=unicorn", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_FILTER", decode[errorBody](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/api/v1/search?q=pricing&limit=ten", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "LIMIT_OUT_OF_RANGE", decode[errorBody](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/api/v1/search?q=pricing&offset=-1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSituationEndpoint(t *testing.T) {
	s := newServer(t, true)
	rec := s.do(t, http.MethodPost, "/api/v1/situation",
		`{"situation": "founder worried about customers not paying for pilots"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[query.SituationResponse](t, rec)
	require.Equal(t, []string{"m1", "m2"}, ids(resp.Moments))
	require.Equal(t, []string{"pricing"}, resp.Moments[0].MatchedTags)

	rec = s.do(t, http.MethodPost, "/api/v1/situation", `{"situation": "   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_INPUT", decode[errorBody](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/api/v1/situation", `{"situation":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/situation", `{"situation": "quantum zebra xylophone"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[query.SituationResponse](t, rec).Moments)
}

func TestSimilarAndMomentEndpoints(t *testing.T) {
	s := newServer(t, true)

	rec := s.do(t, http.MethodGet, "/api/v1/similar/m1?limit=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sim := decode[query.SimilarResponse](t, rec)
	require.Equal(t, []string{"m2"}, ids(sim.Moments))
	require.Equal(t, 0.3333, sim.Moments[0].Score)

	rec = s.do(t, http.MethodGet, "/api/v1/similar/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", decode[errorBody](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/api/v1/moments/m3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":"m3"`)

	rec = s.do(t, http.MethodGet, "/api/v1/moments/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsAndReadiness(t *testing.T) {
	s := newServer(t, false)
	rec := s.do(t, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "NOT_READY", decode[errorBody](t, rec).Error)
	require.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/health/ready", "").Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", "").Code)

	s = newServer(t, true)
	rec = s.do(t, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total_moments":7`)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", "").Code)
}

func TestReloadEndpoint(t *testing.T) {
	s := newServer(t, true)
	rec := s.do(t, http.MethodPost, "/api/v1/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, s.reload.calls)
	require.Contains(t, rec.Body.String(), `"version":2`)

	require.Equal(t, http.StatusMethodNotAllowed, s.do(t, http.MethodGet, "/api/v1/reload", "").Code)
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	s := newServer(t, true)
	rec := s.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"enabled":false`)

	rec = s.do(t, http.MethodPost, "/api/v1/cache/invalidate", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyticsEndpointSeesHTTPQueries(t *testing.T) {
	s := newServer(t, true)
	s.do(t, http.MethodGet, "/api/v1/search?q=hiring", "")
	s.do(t, http.MethodGet, "/api/v1/moments/m1", "")

	rec := s.do(t, http.MethodGet, "/api/v1/analytics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[analytics.AggregatedStats](t, rec)
	require.Equal(t, int64(2), st.TotalQueries)
	require.Equal(t, int64(2), st.BySource["http"])
}

func TestLLMsTxt(t *testing.T) {
	s := newServer(t, true)
	rec := s.do(t, http.MethodGet, "/llms.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "https://api.echomindr.test/api/v1/situation")
	require.NotContains(t, rec.Body.String(), "{{base}}")

	rec = s.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusFound, rec.Code)
}
