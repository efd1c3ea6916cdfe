// Package executor runs keyword queries against an index snapshot: filters
// are applied as hard predicates, matching terms are OR-combined and scored
// by the ranker, and the requested page is cut from the full ranking.
package executor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/echomindr/echomindr/internal/indexer"
	"github.com/echomindr/echomindr/internal/indexer/index"
	"github.com/echomindr/echomindr/internal/moment"
	"github.com/echomindr/echomindr/internal/searcher/merger"
	"github.com/echomindr/echomindr/internal/searcher/parser"
	"github.com/echomindr/echomindr/internal/searcher/ranker"
)

// Filters restrict results. Zero values mean "no filter". Podcast is a
// case-insensitive substring match.
type Filters struct {
	Stage   moment.Stage `json:"stage,omitempty"`
	Type    moment.Type  `json:"type,omitempty"`
	Podcast string       `json:"podcast,omitempty"`
}

func (f Filters) IsZero() bool {
	return f.Stage == "" && f.Type == "" && f.Podcast == ""
}

// Matcher returns a predicate equivalent to f with the podcast needle
// lower-cased once.
func (f Filters) Matcher() func(m moment.Moment) bool {
	needle := strings.ToLower(strings.TrimSpace(f.Podcast))
	return func(m moment.Moment) bool {
		if f.Stage != "" && m.Stage != f.Stage {
			return false
		}
		if f.Type != "" && m.Type != f.Type {
			return false
		}
		if needle != "" && !strings.Contains(strings.ToLower(m.Source.Podcast), needle) {
			return false
		}
		return true
	}
}

type Request struct {
	Plan    *parser.QueryPlan
	Filters Filters
	Limit   int
	Offset  int
}

type SearchResult struct {
	Query     string             `json:"query"`
	Terms     []string           `json:"terms"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	MaxScore  float64            `json:"max_score"`
	TermStats map[string]int     `json:"term_stats"`
}

type Executor struct {
	weights ranker.Weights
	logger  *slog.Logger
}

func New(weights ranker.Weights) *Executor {
	return &Executor{
		weights: weights,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Execute ranks every moment that passes the filters and matches at least
// one term, then returns the page at req.Offset of size req.Limit. Limit
// and offset must already be validated.
func (e *Executor) Execute(ctx context.Context, snap *indexer.Snapshot, req Request) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plan := req.Plan
	match := req.Filters.Matcher()
	if plan.Empty() {
		return e.browse(ctx, snap, req, match)
	}

	postingsPerTerm := make(map[string]index.PostingList, len(plan.Terms))
	termStats := make(map[string]int, len(plan.Terms))
	for _, term := range plan.Terms {
		postings := snap.Lexical.Lookup(term)
		if len(postings) > 0 {
			postingsPerTerm[term] = postings
			termStats[term] = len(postings)
		}
	}

	verdicts := make(map[int]bool)
	keep := func(p index.Posting) bool {
		ok, seen := verdicts[p.Ordinal]
		if !seen {
			ok = match(snap.Store.At(p.Ordinal))
			verdicts[p.Ordinal] = ok
		}
		return ok
	}
	var bonus func(int) bool
	if plan.Phrase != "" && e.weights.PhraseBonus > 0 {
		bonus = func(ordinal int) bool {
			return snap.Lexical.SummaryContains(ordinal, plan.Phrase)
		}
	}
	candidates := ranker.Rank(postingsPerTerm, e.weights, keep, bonus)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page := merger.Page(candidates, req.Offset, req.Limit)

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"candidates", len(candidates),
		"results", len(page),
	)
	return &SearchResult{
		Query:     plan.RawQuery,
		Terms:     plan.Terms,
		TotalHits: len(candidates),
		Results:   page,
		MaxScore:  e.weights.MaxScore(len(plan.Terms), plan.Phrase != ""),
		TermStats: termStats,
	}, nil
}

// browse serves an empty query: every moment passing the filters, in
// insertion order, with a zero score.
func (e *Executor) browse(ctx context.Context, snap *indexer.Snapshot, req Request, match func(moment.Moment) bool) (*SearchResult, error) {
	results := make([]ranker.ScoredDoc, 0, req.Limit)
	total := 0
	ordinal := 0
	for m := range snap.Store.All() {
		if ordinal%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if match(m) {
			if total >= req.Offset && len(results) < req.Limit {
				results = append(results, ranker.ScoredDoc{DocID: m.ID, Ordinal: ordinal})
			}
			total++
		}
		ordinal++
	}
	return &SearchResult{
		Query:     req.Plan.RawQuery,
		Terms:     []string{},
		TotalHits: total,
		Results:   results,
		TermStats: map[string]int{},
	}, nil
}
