// Package momenttest provides a small fixed corpus for tests across the
// retrieval packages.
package momenttest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/echomindr/echomindr/internal/moment"
)

// Corpus returns seven moments. m1 and m2 share the pricing tag, m3 and m4
// share leadership, and m7 has no tags at all.
func Corpus() []moment.Moment {
	return []moment.Moment{
		{
			ID:        "m1",
			Type:      moment.TypeDecision,
			Stage:     moment.StageMVP,
			Timestamp: "12:05",
			Summary:   "We switched from usage pricing to flat tiers after our first ten customers.",
			Quote:     "Pricing is a product decision, not a finance one.",
			Decision:  "Move every plan to flat tier pricing.",
			Outcome:   "Conversion doubled within a quarter.",
			Lesson:    "Price on delivered value rather than on cost.",
			Situation: "Early SaaS with a handful of design partners.",
			Tags:      []string{"pricing", "saas"},
			Source: moment.Source{
				Podcast: "Lenny's Podcast", Episode: "Pricing your first product", Founder: "Alice Martin",
				URL: "https://www.youtube.com/watch?v=abc", TimestampURL: "https://www.youtube.com/watch?v=abc&t=725s",
			},
		},
		{
			ID:        "m2",
			Type:      moment.TypeLesson,
			Stage:     moment.StageTraction,
			Timestamp: "40:10",
			Summary:   "Enterprise buyers wanted annual contracts before they would commit.",
			Quote:     "Nobody signs a monthly deal with procurement.",
			Lesson:    "Sell annual contracts from the first enterprise deal.",
			Situation: "Selling to large enterprises with long procurement cycles.",
			Tags:      []string{"pricing", "enterprise"},
			Source:    moment.Source{Podcast: "20 Minute VC", Episode: "Enterprise sales", Founder: "Bob Chen"},
		},
		{
			ID:        "m3",
			Type:      moment.TypeProblem,
			Stage:     moment.StageIdea,
			Timestamp: "5:30",
			Summary:   "The founders could not agree on who should be chief executive.",
			Quote:     "We argued for three months about titles.",
			Situation: "Two cofounders splitting roles before launch.",
			Tags:      []string{"co-founders", "leadership"},
			Source:    moment.Source{Podcast: "How I Built This", Episode: "Splitting the company", Founder: "Carol Diaz"},
		},
		{
			ID:        "m4",
			Type:      moment.TypeAdvice,
			Stage:     moment.StageScale,
			Timestamp: "1:02:03",
			Summary:   "Hire senior leaders only when the team outgrows the founders.",
			Lesson:    "Senior hires too early slow a small team down.",
			Tags:      []string{"hiring", "leadership", "scaling"},
			Source:    moment.Source{Podcast: "Acquired", Episode: "Scaling the org", Founder: "Dan Evans"},
		},
		{
			ID:        "m5",
			Type:      moment.TypeSignal,
			Stage:     moment.StageMVP,
			Timestamp: "22:15",
			Summary:   "Free trials that don't convert to paid told us the onboarding was broken.",
			Situation: "Self-serve product with low trial conversion.",
			Tags:      []string{"conversion", "onboarding"},
			Source:    moment.Source{Podcast: "Lenny's Podcast", Episode: "Onboarding", Founder: "Eve Fischer"},
		},
		{
			ID:        "m6",
			Type:      moment.TypeDecision,
			Stage:     moment.StageTraction,
			Timestamp: "33:00",
			Summary:   "We raised a seed round from angels before approaching venture funds.",
			Decision:  "Take angel money first.",
			Outcome:   "The seed round closed in two weeks.",
			Tags:      []string{"fundraising"},
			Source:    moment.Source{Podcast: "Y Combinator", Episode: "Seed rounds", Founder: "Frank Gale"},
		},
		{
			ID:        "m7",
			Type:      moment.TypeLesson,
			Stage:     moment.StageMature,
			Timestamp: "10:00",
			Summary:   "Long weekly meetings about nothing drained the team.",
			Tags:      []string{},
			Source:    moment.Source{Podcast: "Acquired", Episode: "Culture", Founder: "Grace Hill"},
		},
	}
}

// Store builds a Store over Corpus.
func Store(t testing.TB) *moment.Store {
	t.Helper()
	s, err := moment.NewStore(Corpus())
	require.NoError(t, err)
	return s
}
