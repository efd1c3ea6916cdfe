package mcpserver

import (
	"fmt"
	"strings"

	"github.com/echomindr/echomindr/internal/moment"
	"github.com/echomindr/echomindr/internal/query"
)

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// formatMoments renders a result list as plain text for an agent.
func formatMoments(moments []query.ScoredMoment) string {
	if len(moments) == 0 {
		return "No matching experiences found. Try broadening your search."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d relevant founder experience(s):\n\n", len(moments))
	for i, sm := range moments {
		m := sm.Moment
		b.WriteString("---\n")
		fmt.Fprintf(&b, "%d. [%s] %s - %s (%s)\n", i+1, strings.ToUpper(string(m.Type)),
			or(m.Source.Episode, "Unknown"), or(m.Source.Founder, "Unknown"), m.Source.Podcast)
		fmt.Fprintf(&b, "Stage: %s | At: %s | Relevance: %.2f\n", m.Stage, or(m.Timestamp, "?"), sm.Score)
		fmt.Fprintf(&b, "Moment ID: %s\n\n", m.ID)
		fmt.Fprintf(&b, "Summary: %s\n\n", m.Summary)
		if m.Quote != "" {
			fmt.Fprintf(&b, "Quote: %q\n\n", m.Quote)
		}
		if m.Decision != "" {
			fmt.Fprintf(&b, "Decision: %s\n", m.Decision)
		}
		if m.Outcome != "" {
			fmt.Fprintf(&b, "Outcome: %s\n", m.Outcome)
		}
		if m.Lesson != "" {
			fmt.Fprintf(&b, "Lesson: %s\n", m.Lesson)
		}
		b.WriteString("\n")
		if len(m.Tags) > 0 {
			fmt.Fprintf(&b, "Tags: %s\n", strings.Join(m.Tags, ", "))
		}
		if link := m.Link(); link != "" {
			fmt.Fprintf(&b, "Link: %s\n", link)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatMoment renders one moment in full.
func formatMoment(m moment.Moment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(string(m.Type)), or(m.Source.Episode, "Unknown"))
	fmt.Fprintf(&b, "Guest: %s\n", or(m.Source.Founder, "Unknown"))
	fmt.Fprintf(&b, "Podcast: %s | Date: %s\n", m.Source.Podcast, m.Source.Date)
	fmt.Fprintf(&b, "Stage: %s | Timestamp: %s\n", m.Stage, or(m.Timestamp, "?"))
	fmt.Fprintf(&b, "ID: %s\n\n", m.ID)
	fmt.Fprintf(&b, "Summary:\n%s\n\n", m.Summary)

	sections := []struct{ label, text string }{
		{"Quote", quoted(m.Quote)},
		{"Decision", m.Decision},
		{"Outcome", m.Outcome},
		{"Lesson", m.Lesson},
		{"Context", m.Situation},
	}
	for _, s := range sections {
		if s.text != "" {
			fmt.Fprintf(&b, "%s:\n%s\n\n", s.label, s.text)
		}
	}
	if len(m.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(m.Tags, ", "))
	}
	if link := m.Link(); link != "" {
		fmt.Fprintf(&b, "Link: %s\n", link)
	}
	return strings.TrimRight(b.String(), "\n")
}

func quoted(s string) string {
	if s == "" {
		return ""
	}
	return `"` + s + `"`
}
