// Package similarity ranks moments by how much of their tag set they share
// with a source moment.
package similarity

import (
	"context"
	"log/slog"
	"sort"

	"github.com/echomindr/echomindr/internal/indexer"
	"github.com/echomindr/echomindr/internal/searcher/merger"
	"github.com/echomindr/echomindr/internal/searcher/ranker"
)

// Match is a related moment. Score is the Jaccard index of the two tag sets
// and Secondary the number of shared tags.
type Match struct {
	ranker.ScoredDoc
	SharedTags []string
}

type Result struct {
	SourceID   string
	SourceTags []string
	TotalHits  int
	Matches    []Match
}

type Engine struct {
	logger *slog.Logger
}

func New() *Engine {
	return &Engine{logger: slog.Default().With("component", "similarity")}
}

// Similar returns up to limit moments sharing at least one tag with the
// moment id, best first. Only moments reachable through the source's tags
// are considered. An unknown id is ErrMomentNotFound; a source without tags
// has no similar moments.
func (e *Engine) Similar(ctx context.Context, snap *indexer.Snapshot, id string, limit int) (*Result, error) {
	source, err := snap.Store.Get(id)
	if err != nil {
		return nil, err
	}
	self, _ := snap.Store.Ordinal(id)
	res := &Result{
		SourceID:   source.ID,
		SourceTags: source.Tags,
		Matches:    []Match{},
	}
	if len(source.Tags) == 0 {
		return res, nil
	}

	shared := make(map[int][]string)
	for _, tag := range source.Tags {
		for _, ordinal := range snap.Tags.MomentsWithTag(tag) {
			if ordinal == self {
				continue
			}
			shared[ordinal] = append(shared[ordinal], tag)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := make([]ranker.ScoredDoc, 0, len(shared))
	for ordinal, tags := range shared {
		cand := snap.Store.At(ordinal)
		inter := len(tags)
		union := len(source.Tags) + len(cand.Tags) - inter
		docs = append(docs, ranker.ScoredDoc{
			DocID:     cand.ID,
			Ordinal:   ordinal,
			Score:     float64(inter) / float64(union),
			Secondary: float64(inter),
		})
	}

	res.TotalHits = len(docs)
	for _, doc := range merger.Top(docs, limit) {
		tags := shared[doc.Ordinal]
		sort.Strings(tags)
		res.Matches = append(res.Matches, Match{ScoredDoc: doc, SharedTags: tags})
	}

	e.logger.Debug("similar computed",
		"source", id,
		"candidates", len(docs),
		"results", len(res.Matches),
	)
	return res, nil
}

// Jaccard is |a ∩ b| / |a ∪ b| over two tag sets; empty sets score 0.
func Jaccard(a, b []string) float64 {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
