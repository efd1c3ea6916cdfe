package index

import "strings"

// Field is a bitmask of the moment fields a term occurred in.
type Field uint8

const (
	FieldSummary Field = 1 << iota
	FieldQuote
	FieldDecision
	FieldOutcome
	FieldLesson
	FieldSituation
	FieldTags
)

// AllFields lists every field bit in declaration order.
var AllFields = []Field{
	FieldSummary, FieldQuote, FieldDecision, FieldOutcome,
	FieldLesson, FieldSituation, FieldTags,
}

var fieldNames = map[Field]string{
	FieldSummary:   "summary",
	FieldQuote:     "quote",
	FieldDecision:  "decision",
	FieldOutcome:   "outcome",
	FieldLesson:    "lesson",
	FieldSituation: "situation",
	FieldTags:      "tags",
}

// Has reports whether any bit of g is set in f.
func (f Field) Has(g Field) bool {
	return f&g != 0
}

func (f Field) String() string {
	var parts []string
	for _, bit := range AllFields {
		if f.Has(bit) {
			parts = append(parts, fieldNames[bit])
		}
	}
	return strings.Join(parts, "|")
}

// Posting records one moment containing a term. Ordinal is the moment's
// position in the store and gives the default insertion order.
type Posting struct {
	DocID     string
	Ordinal   int
	Frequency int
	Fields    Field
}

// PostingList is sorted by Ordinal ascending.
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}
