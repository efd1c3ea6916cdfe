// Package api exposes the query facade over HTTP.
package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/echomindr/echomindr/internal/loader"
	"github.com/echomindr/echomindr/internal/moment"
	"github.com/echomindr/echomindr/internal/query"
	"github.com/echomindr/echomindr/internal/searcher/cache"
	apperrors "github.com/echomindr/echomindr/pkg/errors"
	"github.com/echomindr/echomindr/pkg/logger"
)

//go:embed llms.txt
var llmsTxt string

// maxBodyBytes caps POST bodies.
const maxBodyBytes = 64 << 10

// Engine is the part of query.Facade the HTTP layer uses.
type Engine interface {
	Search(ctx context.Context, req query.SearchRequest) (*query.SearchResponse, error)
	Match(ctx context.Context, req query.MatchRequest) (*query.SituationResponse, error)
	Similar(ctx context.Context, id string, limit int) (*query.SimilarResponse, error)
	Get(ctx context.Context, id string) (moment.Moment, error)
	Stats() (moment.Stats, error)
	CacheStats() cache.Stats
	InvalidateCache(ctx context.Context) (int64, error)
}

type Reloader interface {
	Reload(ctx context.Context) (*loader.ReloadResult, error)
}

type Handler struct {
	engine    Engine
	reloader  Reloader
	publicURL string
	logger    *slog.Logger
}

// New returns a Handler. reloader may be nil, in which case POST
// /api/v1/reload answers 503.
func New(engine Engine, reloader Reloader, publicURL string) *Handler {
	return &Handler{
		engine:    engine,
		reloader:  reloader,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    slog.Default().With("component", "api-handler"),
	}
}

type situationBody struct {
	Situation string `json:"situation"`
	Stage     string `json:"stage"`
	Type      string `json:"type"`
	Limit     int    `json:"limit"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, err := intParam(q.Get("offset"), "offset")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp, err := h.engine.Search(r.Context(), query.SearchRequest{
		Query:   q.Get("q"),
		Stage:   q.Get("stage"),
		Type:    q.Get("type"),
		Podcast: q.Get("podcast"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Situation(w http.ResponseWriter, r *http.Request) {
	var body situationBody
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			h.writeError(w, r, apperrors.InvalidInput("request body is required"))
			return
		}
		h.writeError(w, r, apperrors.InvalidInput("malformed JSON body: %v", err))
		return
	}
	resp, err := h.engine.Match(r.Context(), query.MatchRequest{
		Situation: body.Situation,
		Stage:     body.Stage,
		Type:      body.Type,
		Limit:     body.Limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp, err := h.engine.Similar(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Moment(w http.ResponseWriter, r *http.Request) {
	m, err := h.engine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Stats()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrNotReady, http.StatusServiceUnavailable, "reload is not configured"))
		return
	}
	// A client disconnect must not abort a reload. The reloader applies its
	// own timeout.
	res, err := h.reloader.Reload(context.WithoutCancel(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.CacheStats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.InvalidateCache(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys": n})
}

func (h *Handler) LLMsTxt(w http.ResponseWriter, r *http.Request) {
	base := h.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, strings.ReplaceAll(llmsTxt, "{{base}}", base))
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperrors.LimitOutOfRange("%s must be an integer, got %q", name, raw)
	}
	return n, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, map[string]string{
		"error":   apperrors.Code(err),
		"message": apperrors.PublicMessage(err),
	})
}
