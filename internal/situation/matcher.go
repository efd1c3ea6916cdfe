// Package situation matches a free-text description of a founder's
// circumstance against the corpus. The score blends how many situation
// keywords appear in a moment's situation or summary text with how many of
// them land on one of its curated tags.
package situation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/echomindr/echomindr/internal/indexer"
	"github.com/echomindr/echomindr/internal/indexer/index"
	"github.com/echomindr/echomindr/internal/indexer/tokenizer"
	"github.com/echomindr/echomindr/internal/moment"
	"github.com/echomindr/echomindr/internal/searcher/merger"
	"github.com/echomindr/echomindr/internal/searcher/ranker"
	apperrors "github.com/echomindr/echomindr/pkg/errors"
)

type Config struct {
	LexicalWeight float64
	TagWeight     float64
	// MinScore discards moments whose blended score is below it.
	MinScore float64
	// Synonyms maps a keyword to tags it stands for.
	Synonyms map[string][]string
}

func DefaultConfig() Config {
	return Config{
		LexicalWeight: 0.4,
		TagWeight:     0.6,
		MinScore:      0.1,
		Synonyms:      DefaultSynonyms(),
	}
}

// DefaultSynonyms maps everyday situation words to the curated tags they
// usually stand for.
func DefaultSynonyms() map[string][]string {
	return map[string][]string{
		"paying":      {"pricing", "monetization"},
		"pay":         {"pricing", "monetization"},
		"paid":        {"pricing", "monetization"},
		"price":       {"pricing"},
		"prices":      {"pricing"},
		"pilot":       {"pricing", "sales"},
		"pilots":      {"pricing", "sales"},
		"trial":       {"pricing", "conversion"},
		"trials":      {"pricing", "conversion"},
		"revenue":     {"monetization", "pricing"},
		"investor":    {"fundraising"},
		"investors":   {"fundraising"},
		"vc":          {"fundraising", "venture capital"},
		"raise":       {"fundraising"},
		"raising":     {"fundraising"},
		"cofounder":   {"co-founders"},
		"cofounders":  {"co-founders"},
		"hire":        {"hiring"},
		"hires":       {"hiring"},
		"churn":       {"retention"},
		"customers":   {"customer acquisition"},
		"burnout":     {"mental health"},
		"competitors": {"competition"},
	}
}

// MergeSynonyms overlays extra onto base. An extra entry with no tags
// removes the keyword.
func MergeSynonyms(base, extra map[string][]string) map[string][]string {
	out := make(map[string][]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		if len(v) == 0 {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

func (c Config) Validate() error {
	if c.LexicalWeight < 0 || c.TagWeight < 0 {
		return fmt.Errorf("situation weights must not be negative")
	}
	if c.LexicalWeight+c.TagWeight == 0 {
		return fmt.Errorf("situation weights must not both be zero")
	}
	if c.MinScore < 0 {
		return fmt.Errorf("situation min score must not be negative")
	}
	return nil
}

// MaxScore is the blended score of a perfect match.
func (c Config) MaxScore() float64 {
	return c.LexicalWeight + c.TagWeight
}

type Request struct {
	Text  string
	Stage moment.Stage
	Type  moment.Type
	Limit int
}

// Match is one scored moment with the parts of its score.
type Match struct {
	ranker.ScoredDoc
	Lexical     float64
	TagAffinity float64
	MatchedTags []string
}

type Result struct {
	Keywords  []string
	TotalHits int
	Matches   []Match
}

type Matcher struct {
	cfg      Config
	synonyms map[string][]string
	logger   *slog.Logger
}

func New(cfg Config) *Matcher {
	syn := make(map[string][]string, len(cfg.Synonyms))
	for k, tags := range cfg.Synonyms {
		key := strings.ToLower(strings.TrimSpace(k))
		for _, t := range tags {
			if n := tokenizer.NormalizeTag(t); n != "" {
				syn[key] = append(syn[key], n)
			}
		}
	}
	return &Matcher{
		cfg:      cfg,
		synonyms: syn,
		logger:   slog.Default().With("component", "situation-matcher"),
	}
}

func (m *Matcher) Config() Config {
	return m.cfg
}

type candidate struct {
	lexical map[string]struct{}
	tagged  map[string]struct{}
	tags    map[string]struct{}
}

// Match scores moments against req.Text. Whitespace-only text is
// ErrInvalidInput. Text with no keywords left after stop-word removal, or
// whose keywords reach no moment above MinScore, yields an empty result.
func (m *Matcher) Match(ctx context.Context, snap *indexer.Snapshot, req Request) (*Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, apperrors.InvalidInput("situation text must not be empty")
	}
	keywords := tokenizer.Keywords(req.Text)
	res := &Result{Keywords: keywords, Matches: []Match{}}
	if len(keywords) == 0 {
		return res, nil
	}

	candidates := make(map[int]*candidate)
	get := func(ordinal int) *candidate {
		c, ok := candidates[ordinal]
		if !ok {
			c = &candidate{
				lexical: make(map[string]struct{}),
				tagged:  make(map[string]struct{}),
				tags:    make(map[string]struct{}),
			}
			candidates[ordinal] = c
		}
		return c
	}

	for _, kw := range keywords {
		for _, p := range snap.Lexical.Lookup(kw) {
			if p.Fields.Has(index.FieldSituation | index.FieldSummary) {
				get(p.Ordinal).lexical[kw] = struct{}{}
			}
		}
	}

	for tag, kws := range m.tagHits(snap.Tags, keywords) {
		for _, ordinal := range snap.Tags.MomentsWithTag(tag) {
			c := get(ordinal)
			c.tags[tag] = struct{}{}
			for _, kw := range kws {
				c.tagged[kw] = struct{}{}
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := float64(len(keywords))
	docs := make([]ranker.ScoredDoc, 0, len(candidates))
	parts := make(map[int]Match, len(candidates))
	for ordinal, c := range candidates {
		mo := snap.Store.At(ordinal)
		if req.Stage != "" && mo.Stage != req.Stage {
			continue
		}
		if req.Type != "" && mo.Type != req.Type {
			continue
		}
		lexical := float64(len(c.lexical)) / q
		affinity := float64(len(c.tagged)) / q
		score := m.cfg.LexicalWeight*lexical + m.cfg.TagWeight*affinity
		if score < m.cfg.MinScore || score == 0 {
			continue
		}
		doc := ranker.ScoredDoc{
			DocID:     mo.ID,
			Ordinal:   ordinal,
			Score:     score,
			Secondary: affinity,
		}
		docs = append(docs, doc)
		parts[ordinal] = Match{
			Lexical:     lexical,
			TagAffinity: affinity,
			MatchedTags: sortedKeys(c.tags),
		}
	}

	res.TotalHits = len(docs)
	for _, doc := range merger.Top(docs, req.Limit) {
		match := parts[doc.Ordinal]
		match.ScoredDoc = doc
		res.Matches = append(res.Matches, match)
	}

	m.logger.Debug("situation matched",
		"keywords", keywords,
		"candidates", len(candidates),
		"above_threshold", len(docs),
		"results", len(res.Matches),
	)
	return res, nil
}

// tagHits maps each corpus tag reached by the keywords to the keywords that
// reach it. A keyword reaches a tag when its stem is one of the tag's stems
// and every other part of the tag is also among the keywords, or through
// the synonym table.
func (m *Matcher) tagHits(tags *index.TagIndex, keywords []string) map[string][]string {
	stems := make(map[string]struct{}, len(keywords))
	byStem := make(map[string][]string, len(keywords))
	for _, kw := range keywords {
		s := tokenizer.Stem(kw)
		stems[s] = struct{}{}
		byStem[s] = append(byStem[s], kw)
	}

	hits := make(map[string][]string)
	add := func(tag, kw string) {
		for _, existing := range hits[tag] {
			if existing == kw {
				return
			}
		}
		hits[tag] = append(hits[tag], kw)
	}
	for _, tag := range tags.MatchTags(stems) {
		for _, s := range tags.Stems(tag) {
			for _, kw := range byStem[s] {
				add(tag, kw)
			}
		}
	}
	for _, kw := range keywords {
		for _, tag := range m.synonyms[kw] {
			if tags.Has(tag) {
				add(tag, kw)
			}
		}
	}
	return hits
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
