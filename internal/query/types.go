package query

import (
	"github.com/echomindr/echomindr/internal/moment"
	"github.com/echomindr/echomindr/internal/searcher/executor"
)

// SearchRequest carries raw, unvalidated parameters. Zero Limit selects the
// default page size.
type SearchRequest struct {
	Query   string
	Stage   string
	Type    string
	Podcast string
	Limit   int
	Offset  int
}

type MatchRequest struct {
	Situation string
	Stage     string
	Type      string
	Limit     int
}

// ScoredMoment is a moment with its public score in [0,1]. MatchedTags
// lists the tags a situation reached, or the tags shared with the source
// of a similar lookup.
type ScoredMoment struct {
	moment.Moment
	Score       float64  `json:"score"`
	MatchedTags []string `json:"matched_tags,omitempty"`
}

type SearchResponse struct {
	Query   string           `json:"query"`
	Terms   []string         `json:"terms"`
	Filters executor.Filters `json:"filters"`
	Count   int              `json:"count"`
	Total   int              `json:"total"`
	Offset  int              `json:"offset"`
	Moments []ScoredMoment   `json:"moments"`
}

type SituationResponse struct {
	Situation   string         `json:"situation"`
	Keywords    []string       `json:"query_keywords"`
	StageFilter moment.Stage   `json:"stage_filter,omitempty"`
	TypeFilter  moment.Type    `json:"type_filter,omitempty"`
	Count       int            `json:"count"`
	Total       int            `json:"total"`
	Moments     []ScoredMoment `json:"moments"`
}

type SimilarResponse struct {
	SourceID   string         `json:"source_id"`
	SourceTags []string       `json:"source_tags"`
	Count      int            `json:"count"`
	Total      int            `json:"total"`
	Moments    []ScoredMoment `json:"moments"`
}
