package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/echomindr/echomindr/internal/indexer"
	"github.com/echomindr/echomindr/internal/moment"
	"github.com/echomindr/echomindr/internal/moment/momenttest"
	"github.com/echomindr/echomindr/internal/searcher/parser"
	"github.com/echomindr/echomindr/internal/searcher/ranker"
)

func snapshot(t testing.TB) *indexer.Snapshot {
	t.Helper()
	snap, err := indexer.Build(context.Background(), 1, momenttest.Corpus())
	require.NoError(t, err)
	return snap
}

func run(t *testing.T, snap *indexer.Snapshot, q string, f Filters, limit, offset int) *SearchResult {
	t.Helper()
	res, err := New(ranker.DefaultWeights()).Execute(context.Background(), snap, Request{
		Plan: parser.Parse(q), Filters: f, Limit: limit, Offset: offset,
	})
	require.NoError(t, err)
	return res
}

func ids(res *SearchResult) []string {
	out := make([]string, len(res.Results))
	for i, d := range res.Results {
		out[i] = d.DocID
	}
	return out
}

func TestExecuteTieBreaksByID(t *testing.T) {
	res := run(t, snapshot(t), "leadership", Filters{}, 10, 0)
	require.Equal(t, []string{"m3", "m4"}, ids(res))
	require.Equal(t, 3.0, res.Results[0].Score)
	require.Equal(t, 3.0, res.Results[1].Score)
	require.Equal(t, 2, res.TotalHits)
}

func TestExecuteSingleWordPhraseBonus(t *testing.T) {
	res := run(t, snapshot(t), "pricing", Filters{}, 10, 0)
	require.Equal(t, []string{"m1", "m2"}, ids(res))
	// Only m1 mentions pricing in its summary.
	require.Equal(t, 4.0, res.Results[0].Score)
	require.Equal(t, 3.0, res.Results[1].Score)
	require.Equal(t, 4.0, res.MaxScore)
}

func TestExecuteStageFilter(t *testing.T) {
	snap := snapshot(t)
	res := run(t, snap, "pricing", Filters{Stage: moment.StageMVP}, 10, 0)
	require.Equal(t, []string{"m1"}, ids(res))

	res = run(t, snap, "the team founders", Filters{Stage: moment.StageScale}, 10, 0)
	for _, d := range res.Results {
		m, err := snap.Store.Get(d.DocID)
		require.NoError(t, err)
		require.Equal(t, moment.StageScale, m.Stage)
	}
}

func TestExecutePodcastFilterIsCaseInsensitiveSubstring(t *testing.T) {
	res := run(t, snapshot(t), "pricing", Filters{Podcast: "lenny"}, 10, 0)
	require.Equal(t, []string{"m1"}, ids(res))
}

func TestExecutePhraseBonus(t *testing.T) {
	res := run(t, snapshot(t), "usage pricing", Filters{}, 10, 0)
	require.Equal(t, "m1", res.Results[0].DocID)
	require.Equal(t, 6.0, res.Results[0].Score)
	require.Equal(t, 7.0, res.MaxScore)
}

func TestExecuteORSemantics(t *testing.T) {
	res := run(t, snapshot(t), "enterprise fundraising", Filters{}, 10, 0)
	require.ElementsMatch(t, []string{"m2", "m6"}, ids(res))
}

func TestExecuteNoMatch(t *testing.T) {
	res := run(t, snapshot(t), "zebra", Filters{}, 10, 0)
	require.Empty(t, res.Results)
	require.Zero(t, res.TotalHits)
}

func TestExecuteEmptyQueryBrowsesInInsertionOrder(t *testing.T) {
	snap := snapshot(t)
	res := run(t, snap, "   ", Filters{Stage: moment.StageMVP}, 10, 0)
	require.Equal(t, []string{"m1", "m5"}, ids(res))
	require.Zero(t, res.Results[0].Score)

	res = run(t, snap, "", Filters{}, 2, 3)
	require.Equal(t, []string{"m4", "m5"}, ids(res))
	require.Equal(t, 7, res.TotalHits)
}

func TestExecutePaginationConsistency(t *testing.T) {
	snap := snapshot(t)
	q := "the founders team pricing seed"
	all := ids(run(t, snap, q, Filters{}, 4, 0))
	require.Len(t, all, 4)
	first := ids(run(t, snap, q, Filters{}, 2, 0))
	second := ids(run(t, snap, q, Filters{}, 2, 2))
	require.Equal(t, all, append(first, second...))
}

func TestExecuteOffsetPastEnd(t *testing.T) {
	res := run(t, snapshot(t), "pricing", Filters{}, 5, 10)
	require.Empty(t, res.Results)
	require.Equal(t, 2, res.TotalHits)
}

func TestExecuteDeterministic(t *testing.T) {
	snap := snapshot(t)
	first := ids(run(t, snap, "the founders team", Filters{}, 10, 0))
	for i := 0; i < 20; i++ {
		require.Equal(t, first, ids(run(t, snap, "the founders team", Filters{}, 10, 0)))
	}
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(ranker.DefaultWeights()).Execute(ctx, snapshot(t), Request{Plan: parser.Parse("pricing"), Limit: 5})
	require.ErrorIs(t, err, context.Canceled)
}

func BenchmarkExecute(b *testing.B) {
	snap := snapshot(b)
	ex := New(ranker.DefaultWeights())
	req := Request{Plan: parser.Parse("the founders pricing team"), Limit: 5}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ex.Execute(context.Background(), snap, req)
	}
}
