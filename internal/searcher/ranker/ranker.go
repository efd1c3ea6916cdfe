// Package ranker scores keyword matches with per-field weights and defines
// the single total order every result list in the engine is sorted by.
package ranker

import (
	"fmt"
	"math"
	"sort"

	"github.com/echomindr/echomindr/internal/indexer/index"
)

// Weights are the per-field contributions of a matched term. A term found
// in several fields of the same moment counts once, at the highest weight
// among those fields.
type Weights struct {
	Tags        float64
	Summary     float64
	Situation   float64
	Lesson      float64
	Decision    float64
	Outcome     float64
	Quote       float64
	PhraseBonus float64
}

func DefaultWeights() Weights {
	return Weights{
		Tags:        3.0,
		Summary:     2.0,
		Situation:   1.5,
		Lesson:      1.0,
		Decision:    1.0,
		Outcome:     1.0,
		Quote:       0.5,
		PhraseBonus: 1.0,
	}
}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"tags": w.Tags, "summary": w.Summary, "situation": w.Situation,
		"lesson": w.Lesson, "decision": w.Decision, "outcome": w.Outcome,
		"quote": w.Quote, "phraseBonus": w.PhraseBonus,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight %s must be a non-negative number, got %v", name, v)
		}
	}
	if w.maxField() == 0 {
		return fmt.Errorf("at least one field weight must be positive")
	}
	return nil
}

func (w Weights) of(f index.Field) float64 {
	switch f {
	case index.FieldTags:
		return w.Tags
	case index.FieldSummary:
		return w.Summary
	case index.FieldSituation:
		return w.Situation
	case index.FieldLesson:
		return w.Lesson
	case index.FieldDecision:
		return w.Decision
	case index.FieldOutcome:
		return w.Outcome
	case index.FieldQuote:
		return w.Quote
	}
	return 0
}

// FieldWeight returns the highest weight among the fields set in f.
func (w Weights) FieldWeight(f index.Field) float64 {
	if i := w.bestField(f); i >= 0 {
		return w.of(index.AllFields[i])
	}
	return 0
}

// bestField returns the position in index.AllFields of the highest weighted
// field set in f, or -1 when f is empty. Ties go to the earlier field.
func (w Weights) bestField(f index.Field) int {
	best, bestWeight := -1, 0.0
	for i, bit := range index.AllFields {
		if f.Has(bit) && (best < 0 || w.of(bit) > bestWeight) {
			best, bestWeight = i, w.of(bit)
		}
	}
	return best
}

func (w Weights) maxField() float64 {
	return w.FieldWeight(index.FieldSummary | index.FieldQuote | index.FieldDecision |
		index.FieldOutcome | index.FieldLesson | index.FieldSituation | index.FieldTags)
}

// MaxScore is the best raw score a query with termCount distinct terms can
// reach. It is the upper bound used to map scores into [0,1].
func (w Weights) MaxScore(termCount int, hasPhrase bool) float64 {
	bound := float64(termCount) * w.maxField()
	if hasPhrase {
		bound += w.PhraseBonus
	}
	return bound
}

type ScoredDoc struct {
	DocID     string  `json:"doc_id"`
	Ordinal   int     `json:"-"`
	Score     float64 `json:"score"`
	Secondary float64 `json:"-"`
}

// Less reports whether a ranks ahead of b: higher score first, then higher
// secondary score, then ascending moment id.
func Less(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Secondary != b.Secondary {
		return a.Secondary > b.Secondary
	}
	return a.DocID < b.DocID
}

// Sort orders docs in place by Less.
func Sort(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		return Less(docs[i], docs[j])
	})
}

// Rank scores the documents in postingsPerTerm. Each matched term is
// tallied against the best field it hit; the score is the weighted sum of
// those tallies taken in field order, so equal matches give bit-identical
// scores whatever order the terms are visited in. Only postings accepted by
// keep are scored. A non-nil bonus is consulted once per scored document
// and adds PhraseBonus when it returns true. The result is unordered.
func Rank(
	postingsPerTerm map[string]index.PostingList,
	w Weights,
	keep func(p index.Posting) bool,
	bonus func(ordinal int) bool,
) []ScoredDoc {
	type tally struct {
		doc  ScoredDoc
		hits []int
	}
	tallies := make(map[int]*tally)
	for _, postings := range postingsPerTerm {
		for _, p := range postings {
			if keep != nil && !keep(p) {
				continue
			}
			field := w.bestField(p.Fields)
			if field < 0 {
				continue
			}
			t, ok := tallies[p.Ordinal]
			if !ok {
				t = &tally{
					doc:  ScoredDoc{DocID: p.DocID, Ordinal: p.Ordinal},
					hits: make([]int, len(index.AllFields)),
				}
				tallies[p.Ordinal] = t
			}
			t.hits[field]++
		}
	}
	result := make([]ScoredDoc, 0, len(tallies))
	for _, t := range tallies {
		for i, n := range t.hits {
			if n > 0 {
				t.doc.Score += float64(n) * w.of(index.AllFields[i])
			}
		}
		if bonus != nil && bonus(t.doc.Ordinal) {
			t.doc.Score += w.PhraseBonus
		}
		result = append(result, t.doc)
	}
	return result
}

// Normalize maps a raw score into [0,1] against bound and rounds it to four
// decimals.
func Normalize(score, bound float64) float64 {
	if bound <= 0 || score <= 0 {
		return 0
	}
	return Round(math.Min(score/bound, 1))
}

func Round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
