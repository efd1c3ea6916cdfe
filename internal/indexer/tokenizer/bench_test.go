package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var benchTexts = map[string]string{
	"tag":     "product-market fit",
	"summary": "We raised our seed round on a two slide deck because the retention curve had flattened by week six.",
	"situation": strings.Repeat("My cofounder and I disagree about hiring our first salesperson before we have "+
		"repeatable pricing, and our runway is nine months. ", 10),
}

func BenchmarkTerms(b *testing.B) {
	for name, text := range benchTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Terms(text)
			}
		})
	}
}

func BenchmarkKeywords(b *testing.B) {
	text := benchTexts["situation"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = Keywords(text)
	}
}

func BenchmarkStem(b *testing.B) {
	words := []string{"hiring", "fundraising", "pricing", "customers", "retention", "scaling", "founders"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, w := range words {
			_ = Stem(w)
		}
	}
}

func BenchmarkTermsVaryingSize(b *testing.B) {
	base := "founders learned pricing lessons from enterprise customers "
	for _, size := range []int{10, 100, 1000, 5000} {
		text := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Terms(text)
			}
		})
	}
}
