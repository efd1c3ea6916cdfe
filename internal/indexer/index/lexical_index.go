package index

import (
	"sort"
	"strings"

	"github.com/echomindr/echomindr/internal/indexer/tokenizer"
	"github.com/echomindr/echomindr/internal/moment"
)

// LexicalIndex maps terms to the moments containing them. It is filled by
// Add and never modified afterwards, so lookups need no locking.
type LexicalIndex struct {
	index    map[string]PostingList
	summary  []string
	docCount int
	size     int64
}

func NewLexicalIndex(capacity int) *LexicalIndex {
	return &LexicalIndex{
		index:   make(map[string]PostingList),
		summary: make([]string, 0, capacity),
	}
}

// Add indexes m at the given ordinal. Moments must be added in ascending
// ordinal order so posting lists stay sorted.
func (l *LexicalIndex) Add(ordinal int, m moment.Moment) {
	termData := make(map[string]*Posting)
	add := func(text string, field Field) {
		for _, token := range tokenizer.Tokenize(text) {
			p, exists := termData[token.Term]
			if !exists {
				p = &Posting{DocID: m.ID, Ordinal: ordinal}
				termData[token.Term] = p
			}
			p.Frequency++
			p.Fields |= field
		}
	}
	add(m.Summary, FieldSummary)
	add(m.Quote, FieldQuote)
	add(m.Decision, FieldDecision)
	add(m.Outcome, FieldOutcome)
	add(m.Lesson, FieldLesson)
	add(m.Situation, FieldSituation)
	for _, tag := range m.Tags {
		add(tag, FieldTags)
	}

	for term, posting := range termData {
		l.index[term] = append(l.index[term], *posting)
		l.size += int64(len(term) + len(m.ID) + 48)
	}
	for len(l.summary) < ordinal {
		l.summary = append(l.summary, "")
	}
	l.summary = append(l.summary, strings.Join(tokenizer.Words(m.Summary), " "))
	l.docCount++
}

// Lookup returns the postings for term, or nil.
func (l *LexicalIndex) Lookup(term string) PostingList {
	return l.index[term]
}

// SummaryContains reports whether the summary of the moment at ordinal
// contains phrase as a whole-token sequence. phrase must already be
// normalised to space-separated tokens.
func (l *LexicalIndex) SummaryContains(ordinal int, phrase string) bool {
	if phrase == "" || ordinal < 0 || ordinal >= len(l.summary) {
		return false
	}
	return strings.Contains(" "+l.summary[ordinal]+" ", " "+phrase+" ")
}

// Entries returns every term with its postings, sorted by term.
func (l *LexicalIndex) Entries() []TermEntry {
	entries := make([]TermEntry, 0, len(l.index))
	for term, postings := range l.index {
		entries = append(entries, TermEntry{Term: term, Postings: postings})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

func (l *LexicalIndex) TermCount() int {
	return len(l.index)
}

func (l *LexicalIndex) DocCount() int {
	return l.docCount
}

// Size is a rough estimate of the index footprint in bytes.
func (l *LexicalIndex) Size() int64 {
	return l.size
}
