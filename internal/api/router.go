package api

import (
	"net/http"
	"time"

	"github.com/echomindr/echomindr/internal/analytics"
	"github.com/echomindr/echomindr/internal/query"
	"github.com/echomindr/echomindr/pkg/health"
	"github.com/echomindr/echomindr/pkg/metrics"
	"github.com/echomindr/echomindr/pkg/middleware"
)

type RouterConfig struct {
	Handler   *Handler
	Analytics *analytics.Handler
	Health    *health.Checker
	Metrics   *metrics.Metrics
	Timeout   time.Duration
	CORS      middleware.CORSConfig
}

// NewRouter builds the HTTP handler with all routes and middleware.
//
// Route table:
//
//	GET    /api/v1/search               keyword search
//	POST   /api/v1/situation            situation match
//	GET    /api/v1/similar/{id}         similar moments
//	GET    /api/v1/moments/{id}         moment detail
//	GET    /api/v1/stats                corpus totals
//	POST   /api/v1/reload               reload the corpus
//	GET    /api/v1/cache/stats          cache counters
//	POST   /api/v1/cache/invalidate     drop cached results
//	GET    /api/v1/analytics            query dashboard
//	GET    /api/v1/analytics/recent     latest queries
//	GET    /llms.txt                    agent-facing API description
//	GET    /health/live, /health/ready  probes
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → Timeout → mux
func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handler
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/situation", h.Situation)
	mux.HandleFunc("GET /api/v1/similar/{id}", h.Similar)
	mux.HandleFunc("GET /api/v1/moments/{id}", h.Moment)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/reload", h.Reload)

	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)

	if cfg.Analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", cfg.Analytics.Stats)
		mux.HandleFunc("GET /api/v1/analytics/recent", cfg.Analytics.Recent)
	}

	mux.HandleFunc("GET /llms.txt", h.LLMsTxt)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/llms.txt", http.StatusFound)
	})

	checker := cfg.Health
	if checker == nil {
		checker = health.NewChecker()
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Timeout)(chain)
	chain = middleware.Metrics(cfg.Metrics)(chain)
	chain = middleware.CORS(cfg.CORS)(chain)
	chain = tagSource(chain)
	chain = middleware.RequestID(chain)
	return chain
}

// tagSource marks queries served here as HTTP traffic in analytics.
func tagSource(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(query.WithSource(r.Context(), "http")))
	})
}
