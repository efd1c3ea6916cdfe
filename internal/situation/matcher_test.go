package situation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/echomindr/echomindr/internal/indexer"
	"github.com/echomindr/echomindr/internal/moment"
	"github.com/echomindr/echomindr/internal/moment/momenttest"
	apperrors "github.com/echomindr/echomindr/pkg/errors"
)

func snapshot(t testing.TB) *indexer.Snapshot {
	t.Helper()
	snap, err := indexer.Build(context.Background(), 1, momenttest.Corpus())
	require.NoError(t, err)
	return snap
}

func match(t *testing.T, m *Matcher, req Request) *Result {
	t.Helper()
	if req.Limit == 0 {
		req.Limit = 10
	}
	res, err := m.Match(context.Background(), snapshot(t), req)
	require.NoError(t, err)
	return res
}

func matchIDs(res *Result) []string {
	out := make([]string, len(res.Matches))
	for i, m := range res.Matches {
		out[i] = m.DocID
	}
	return out
}

func TestMatchPrefersTaggedMoments(t *testing.T) {
	res := match(t, New(DefaultConfig()), Request{Text: "founder worried about customers not paying for pilots"})
	require.Equal(t, []string{"founder", "worried", "customers", "paying", "pilots"}, res.Keywords)
	require.Equal(t, []string{"m1", "m2"}, matchIDs(res))

	top := res.Matches[0]
	require.InDelta(t, 0.2, top.Lexical, 1e-9)
	require.InDelta(t, 0.4, top.TagAffinity, 1e-9)
	require.InDelta(t, 0.32, top.Score, 1e-9)
	require.Equal(t, []string{"pricing"}, top.MatchedTags)
	require.InDelta(t, 0.24, res.Matches[1].Score, 1e-9)
}

func TestMatchEmptyTextIsInvalid(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := New(DefaultConfig()).Match(context.Background(), snapshot(t), Request{Text: text, Limit: 5})
		require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
}

func TestMatchStopWordsOnlyIsEmpty(t *testing.T) {
	res := match(t, New(DefaultConfig()), Request{Text: "what would you do about it"})
	require.Empty(t, res.Keywords)
	require.Empty(t, res.Matches)
}

func TestMatchNoOverlapIsEmpty(t *testing.T) {
	res := match(t, New(DefaultConfig()), Request{Text: "quantum zebra xylophone"})
	require.NotNil(t, res.Matches)
	require.Empty(t, res.Matches)
	require.Zero(t, res.TotalHits)
}

func TestMatchMultiWordTag(t *testing.T) {
	res := match(t, New(DefaultConfig()), Request{Text: "conflict between co founders"})
	require.Equal(t, []string{"m3", "m4"}, matchIDs(res))
	require.Equal(t, []string{"co-founders"}, res.Matches[0].MatchedTags)
	require.InDelta(t, 2.0/3.0, res.Matches[0].TagAffinity, 1e-9)
	require.Empty(t, res.Matches[1].MatchedTags)
}

func TestMatchThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinScore = 0.2
	res := match(t, New(cfg), Request{Text: "conflict between co founders"})
	require.Equal(t, []string{"m3"}, matchIDs(res))
}

func TestMatchFilters(t *testing.T) {
	m := New(DefaultConfig())
	res := match(t, m, Request{Text: "customers paying for pilots", Stage: moment.StageTraction})
	require.Equal(t, []string{"m2"}, matchIDs(res))

	res = match(t, m, Request{Text: "customers paying for pilots", Type: moment.TypeDecision})
	require.Equal(t, []string{"m1"}, matchIDs(res))
}

func TestMatchLimit(t *testing.T) {
	res := match(t, New(DefaultConfig()), Request{Text: "founder worried about customers not paying for pilots", Limit: 1})
	require.Equal(t, []string{"m1"}, matchIDs(res))
	require.Equal(t, 2, res.TotalHits)
}

func TestSynonymOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Synonyms = MergeSynonyms(cfg.Synonyms, map[string][]string{
		"paying": nil,
		"pilots": nil,
		"angels": {"Fundraising"},
	})
	m := New(cfg)
	res := match(t, m, Request{Text: "paying pilots"})
	require.Empty(t, res.Matches)

	res = match(t, m, Request{Text: "angels"})
	require.Equal(t, []string{"m6"}, matchIDs(res))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	require.Error(t, Config{}.Validate())
	require.Error(t, Config{LexicalWeight: -1, TagWeight: 1}.Validate())
	require.Equal(t, 1.0, DefaultConfig().MaxScore())
}

func BenchmarkMatch(b *testing.B) {
	snap := snapshot(b)
	m := New(DefaultConfig())
	req := Request{Text: "early stage SaaS founder struggling to convert free pilots into paying customers", Limit: 5}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.Match(context.Background(), snap, req)
	}
}
