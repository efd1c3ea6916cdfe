package tokenizer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Free trials that don't convert -- to PAID!")
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
		require.Equal(t, i, tok.Position)
	}
	require.Equal(t, []string{"free", "trials", "that", "dont", "convert", "to", "paid"}, terms)
}

func TestTokenizeKeepsStopWordsAndDigits(t *testing.T) {
	require.Equal(t, []string{"the", "b2b", "saas", "in", "2024"}, Words("The B2B-SaaS in 2024."))
	require.Empty(t, Words("  ...  "))
}

func TestWordsSplitsHyphenatedWords(t *testing.T) {
	require.Equal(t, []string{"two", "co", "founders", "self", "serve"}, Words("Two co-founders, self-serve."))
	require.Equal(t, []string{"cofounders"}, Words("cofounders"))
}

func TestTerms(t *testing.T) {
	require.Equal(t, []string{"pricing", "is", "hard"}, Terms("Pricing is hard, pricing IS hard"))
}

func TestKeywords(t *testing.T) {
	got := Keywords("Founder worried about customers not paying for pilots")
	require.Equal(t, []string{"founder", "worried", "customers", "paying", "pilots"}, got)
	require.Empty(t, Keywords("what would you do about it"))
}

func TestStem(t *testing.T) {
	require.Equal(t, Stem("pricing"), Stem("prices"))
	require.Equal(t, "customer", Stem("customers"))
	require.Equal(t, "pay", Stem("paying"))
	require.Equal(t, "go", Stem("go"))
}

func TestTagStems(t *testing.T) {
	require.Equal(t, []string{"co", "founder"}, TagStems("co-founders"))
	require.Equal(t, []string{"product", "market", "fit"}, TagStems("product-market fit"))
}

func TestNormalizeTag(t *testing.T) {
	require.Equal(t, "go to market", NormalizeTag("  Go\tTo   MARKET "))
	require.Empty(t, NormalizeTag("   "))
}

var sampleTexts = map[string]string{
	"short": "We switched from usage pricing to flat tiers",
	"medium": `We spent six months selling pilots to large retailers before realising
        none of them would convert. The pilots were free, procurement was slow, and the
        champions inside each company had no budget. We moved to paid pilots with a
        clear conversion date and the pipeline halved but revenue tripled.`,
	"long": strings.Repeat(`Founders often delay pricing conversations because they fear
        rejection. Every founder we talked to who raised prices early learned more about
        their customers than those who waited. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkKeywordsParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Keywords(text)
		}
	})
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	baseWord := "founder pricing traction fundraising hiring "
	for _, size := range []int{10, 100, 500, 1000, 5000} {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}
