// Package parser turns raw keyword queries into a QueryPlan. Queries are
// OR-matched bags of terms; words such as AND, OR and NOT carry no special
// meaning and are searched like any other token.
package parser

import (
	"sort"
	"strings"

	"github.com/echomindr/echomindr/internal/indexer/tokenizer"
)

type QueryPlan struct {
	// Terms are the distinct query tokens in first-seen order.
	Terms []string
	// Phrase is the full token sequence joined by single spaces. A one-word
	// query has a one-word phrase.
	Phrase   string
	RawQuery string
}

func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:    make([]string, 0),
		RawQuery: query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	words := tokenizer.Words(query)
	plan.Terms = tokenizer.Terms(query)
	plan.Phrase = strings.Join(words, " ")
	return plan
}

// Empty reports whether the query has no searchable tokens.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Normalized returns a canonical form of the query for cache keys: sorted
// distinct terms plus the phrase.
func (p *QueryPlan) Normalized() string {
	terms := append([]string(nil), p.Terms...)
	sort.Strings(terms)
	return strings.Join(terms, ",") + "|" + p.Phrase
}
