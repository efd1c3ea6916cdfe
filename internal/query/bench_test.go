package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/echomindr/echomindr/internal/moment"
)

var benchVocabulary = []string{
	"pricing", "hiring", "fundraising", "churn", "enterprise", "cofounder",
	"burnout", "product-market-fit", "sales", "marketing", "culture", "pivot",
}

func syntheticCorpus(n int) []moment.Moment {
	moments := make([]moment.Moment, n)
	for i := range moments {
		a := benchVocabulary[i%len(benchVocabulary)]
		b := benchVocabulary[(i*7+3)%len(benchVocabulary)]
		moments[i] = moment.Moment{
			ID:        fmt.Sprintf("m%d", i),
			Type:      moment.Types[i%len(moment.Types)],
			Stage:     moment.Stages[i%len(moment.Stages)],
			Summary:   fmt.Sprintf("Founder story %d about %s while dealing with %s.", i, a, b),
			Lesson:    "Talk to customers about " + a + " every week.",
			Situation: "A seed stage team struggling with " + b + ".",
			Tags:      []string{a, b},
			Source:    moment.Source{Podcast: fmt.Sprintf("Podcast %d", i%9), Founder: fmt.Sprintf("Guest %d", i%50)},
		}
	}
	return moments
}

func benchFacade(b *testing.B, n int) *Facade {
	b.Helper()
	f, err := New(DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	if _, err := f.Load(context.Background(), syntheticCorpus(n)); err != nil {
		b.Fatal(err)
	}
	return f
}

func BenchmarkLoad(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		corpus := syntheticCorpus(n)
		b.Run(fmt.Sprintf("moments_%d", n), func(b *testing.B) {
			f, err := New(DefaultConfig())
			if err != nil {
				b.Fatal(err)
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := f.Load(context.Background(), corpus); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkSearch(b *testing.B) {
	queries := []struct {
		name string
		req  SearchRequest
	}{
		{"single_term", SearchRequest{Query: "pricing"}},
		{"multi_term", SearchRequest{Query: "enterprise sales churn"}},
		{"filtered", SearchRequest{Query: "hiring", Stage: "mvp", Type: "lesson"}},
		{"paged", SearchRequest{Query: "customers", Limit: 20, Offset: 40}},
	}
	f := benchFacade(b, 5000)
	ctx := context.Background()
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := f.Search(ctx, q.req); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkMatch(b *testing.B) {
	f := benchFacade(b, 5000)
	ctx := context.Background()
	req := MatchRequest{Situation: "My cofounder is burning out and we are struggling with pricing for enterprise customers"}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.Match(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSimilar(b *testing.B) {
	f := benchFacade(b, 5000)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.Similar(ctx, "m42", 5); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearchParallel(b *testing.B) {
	f := benchFacade(b, 5000)
	ctx := context.Background()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := f.Search(ctx, SearchRequest{Query: "fundraising"}); err != nil {
				b.Fatal(err)
			}
		}
	})
}
