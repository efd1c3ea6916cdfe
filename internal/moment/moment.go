// Package moment defines the Moment record served by the retrieval engine,
// its closed Type and Stage enumerations, and the read-only Store that
// holds a loaded corpus.
package moment

import (
	"strings"

	apperrors "github.com/echomindr/echomindr/pkg/errors"
)

// Type classifies what kind of founder experience a moment captures.
type Type string

const (
	TypeDecision Type = "decision"
	TypeProblem  Type = "problem"
	TypeLesson   Type = "lesson"
	TypeSignal   Type = "signal"
	TypeAdvice   Type = "advice"
)

// Types lists every Type in declaration order.
var Types = []Type{TypeDecision, TypeProblem, TypeLesson, TypeSignal, TypeAdvice}

// Stage is the company maturity phase a moment belongs to. Stages are
// ordered from idea to mature.
type Stage string

const (
	StageIdea     Stage = "idea"
	StageMVP      Stage = "mvp"
	StageTraction Stage = "traction"
	StageScale    Stage = "scale"
	StageMature   Stage = "mature"
)

// Stages lists every Stage in maturity order.
var Stages = []Stage{StageIdea, StageMVP, StageTraction, StageScale, StageMature}

var stageAliases = map[string]Stage{
	"pre-seed":           StageIdea,
	"preseed":            StageIdea,
	"ideation":           StageIdea,
	"prototype":          StageMVP,
	"seed":               StageMVP,
	"early":              StageMVP,
	"product-market fit": StageTraction,
	"product-market-fit": StageTraction,
	"pmf":                StageTraction,
	"growth":             StageScale,
	"scaling":            StageScale,
	"scale-up":           StageScale,
	"late":               StageMature,
	"public":             StageMature,
}

func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

func (s Stage) Valid() bool {
	return s.Rank() >= 0
}

// Rank returns the position of s in maturity order, or -1 when s is not a
// known stage.
func (s Stage) Rank() int {
	for i, v := range Stages {
		if v == s {
			return i
		}
	}
	return -1
}

// ParseType case-folds and trims raw and returns the matching Type.
func ParseType(raw string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", apperrors.InvalidFilter("type", raw, typeNames())
	}
	return t, nil
}

// ParseStage case-folds and trims raw and returns the matching Stage,
// accepting a few common aliases such as "growth" or "pre-seed".
func ParseStage(raw string) (Stage, error) {
	norm := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	s := Stage(norm)
	if s.Valid() {
		return s, nil
	}
	if alias, ok := stageAliases[norm]; ok {
		return alias, nil
	}
	return "", apperrors.InvalidFilter("stage", raw, stageNames())
}

func typeNames() []string {
	names := make([]string, len(Types))
	for i, t := range Types {
		names[i] = string(t)
	}
	return names
}

func stageNames() []string {
	names := make([]string, len(Stages))
	for i, s := range Stages {
		names[i] = string(s)
	}
	return names
}

// Source holds the provenance of a moment. JSON names follow the public
// API the corpus was first published with.
type Source struct {
	Podcast      string `json:"podcast"`
	Episode      string `json:"episode"`
	Founder      string `json:"guest"`
	Date         string `json:"date"`
	URL          string `json:"url"`
	TimestampURL string `json:"url_at_moment"`
}

// Moment is a single structured founder experience. Moments are immutable
// once loaded; Tags must not be modified by callers.
type Moment struct {
	ID        string   `json:"id"`
	Type      Type     `json:"type"`
	Stage     Stage    `json:"stage"`
	Timestamp string   `json:"timestamp"`
	Summary   string   `json:"summary"`
	Quote     string   `json:"quote"`
	Decision  string   `json:"decision"`
	Outcome   string   `json:"outcome"`
	Lesson    string   `json:"lesson"`
	Situation string   `json:"situation"`
	Tags      []string `json:"tags"`
	Source    Source   `json:"source"`
}

// DecisionOutcome joins the decision and outcome text.
func (m Moment) DecisionOutcome() string {
	switch {
	case m.Decision == "":
		return m.Outcome
	case m.Outcome == "":
		return m.Decision
	default:
		return m.Decision + " " + m.Outcome
	}
}

// HasTag reports whether tag is one of the moment's normalized tags.
func (m Moment) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Link returns the most specific URL for the moment.
func (m Moment) Link() string {
	if m.Source.TimestampURL != "" {
		return m.Source.TimestampURL
	}
	return m.Source.URL
}
