package index

import (
	"sort"

	"github.com/echomindr/echomindr/internal/indexer/tokenizer"
)

// TagIndex inverts moment tag sets. Like LexicalIndex it is immutable once
// built.
type TagIndex struct {
	byTag  map[string][]int
	byStem map[string][]string
	stems  map[string][]string
}

func NewTagIndex() *TagIndex {
	return &TagIndex{
		byTag:  make(map[string][]int),
		byStem: make(map[string][]string),
		stems:  make(map[string][]string),
	}
}

// Add records that the moment at ordinal carries tags. Tags must already be
// normalised and ordinals added in ascending order.
func (t *TagIndex) Add(ordinal int, tags []string) {
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, known := t.byTag[tag]; !known {
			parts := tokenizer.TagStems(tag)
			t.stems[tag] = parts
			seen := make(map[string]struct{}, len(parts))
			for _, s := range parts {
				if _, dup := seen[s]; dup {
					continue
				}
				seen[s] = struct{}{}
				t.byStem[s] = append(t.byStem[s], tag)
			}
		}
		t.byTag[tag] = append(t.byTag[tag], ordinal)
	}
}

// MomentsWithTag returns the store ordinals of moments carrying tag, in
// ascending order. The returned slice must not be modified.
func (t *TagIndex) MomentsWithTag(tag string) []int {
	return t.byTag[tag]
}

func (t *TagIndex) Has(tag string) bool {
	_, ok := t.byTag[tag]
	return ok
}

// MatchTags returns the tags whose every stemmed part is in stems, sorted.
// A single-word tag matches when its stem is present; "product-market fit"
// needs product, market and fit.
func (t *TagIndex) MatchTags(stems map[string]struct{}) []string {
	seen := make(map[string]struct{})
	var out []string
	for s := range stems {
		for _, tag := range t.byStem[s] {
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			if t.coveredBy(tag, stems) {
				out = append(out, tag)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Stems returns the stemmed parts of a known tag.
func (t *TagIndex) Stems(tag string) []string {
	return t.stems[tag]
}

func (t *TagIndex) coveredBy(tag string, stems map[string]struct{}) bool {
	parts := t.stems[tag]
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		if _, ok := stems[p]; !ok {
			return false
		}
	}
	return true
}

// Tags returns every distinct tag, sorted.
func (t *TagIndex) Tags() []string {
	out := make([]string, 0, len(t.byTag))
	for tag := range t.byTag {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func (t *TagIndex) Len() int {
	return len(t.byTag)
}
