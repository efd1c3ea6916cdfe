package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	plan := Parse("Pricing AND pricing for SaaS")
	require.Equal(t, []string{"pricing", "and", "for", "saas"}, plan.Terms)
	require.Equal(t, "pricing and pricing for saas", plan.Phrase)
	require.False(t, plan.Empty())
}

func TestParseSingleTerm(t *testing.T) {
	plan := Parse("  Pricing! ")
	require.Equal(t, []string{"pricing"}, plan.Terms)
	require.Equal(t, "pricing", plan.Phrase)
}

func TestParseEmpty(t *testing.T) {
	require.True(t, Parse("").Empty())
	require.True(t, Parse(" ?! ").Empty())
}

func TestNormalized(t *testing.T) {
	require.Equal(t, Parse("saas pricing").Terms, []string{"saas", "pricing"})
	require.Equal(t, "pricing,saas|saas pricing", Parse("SaaS, pricing").Normalized())
}
