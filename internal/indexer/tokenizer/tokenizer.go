// Package tokenizer provides text tokenisation for the moment indexes.
// Tokenize lower-cases input, drops apostrophes and splits on every other
// non-alphanumeric rune. Stop-word removal and stemming are separate steps
// used only by the situation matcher; the lexical index keeps every token.
package tokenizer

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "above": {}, "after": {}, "again": {}, "all": {},
	"am": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "because": {}, "been": {}, "before": {}, "being": {}, "below": {},
	"between": {}, "both": {}, "but": {}, "by": {}, "can": {}, "considering": {},
	"could": {}, "dare": {}, "did": {}, "do": {}, "does": {}, "doing": {},
	"don": {}, "dont": {}, "down": {}, "during": {}, "each": {}, "few": {},
	"for": {}, "from": {}, "further": {}, "get": {}, "going": {}, "got": {},
	"had": {}, "has": {}, "have": {}, "having": {}, "he": {}, "here": {},
	"how": {}, "i": {}, "if": {}, "im": {}, "in": {}, "into": {},
	"is": {}, "it": {}, "its": {}, "just": {}, "know": {}, "like": {},
	"may": {}, "me": {}, "might": {}, "more": {}, "most": {}, "my": {},
	"need": {}, "no": {}, "nor": {}, "not": {}, "of": {}, "off": {},
	"on": {}, "once": {}, "only": {}, "or": {}, "other": {}, "ought": {},
	"our": {}, "out": {}, "over": {}, "own": {}, "really": {}, "s": {},
	"same": {}, "shall": {}, "should": {}, "so": {}, "some": {}, "such": {},
	"sure": {}, "t": {}, "than": {}, "that": {}, "the": {}, "their": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "think": {}, "this": {},
	"those": {}, "through": {}, "to": {}, "too": {}, "under": {}, "until": {},
	"up": {}, "used": {}, "very": {}, "want": {}, "was": {}, "we": {},
	"were": {}, "what": {}, "when": {}, "where": {}, "whether": {}, "which": {},
	"while": {}, "who": {}, "whom": {}, "why": {}, "will": {}, "with": {},
	"would": {}, "you": {}, "your": {},
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into lowercased Tokens. Apostrophes are removed so
// "don't" becomes "dont"; any other rune that is not a letter or digit
// separates tokens.
func Tokenize(text string) []Token {
	words := Words(text)
	tokens := make([]Token, len(words))
	for i, w := range words {
		tokens[i] = Token{Term: w, Position: i}
	}
	return tokens
}

// Words is Tokenize without positions.
func Words(text string) []string {
	text = strings.ToLower(text)
	text = strings.Map(func(r rune) rune {
		if r == '\'' || r == '’' {
			return -1
		}
		return r
	}, text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Terms returns the distinct tokens of text in first-seen order.
func Terms(text string) []string {
	words := Words(text)
	seen := make(map[string]struct{}, len(words))
	out := words[:0]
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Keywords returns the distinct non-stop-word tokens of text in first-seen
// order. Single-character tokens are dropped.
func Keywords(text string) []string {
	terms := Terms(text)
	out := terms[:0]
	for _, t := range terms {
		if len(t) < 2 || IsStopWord(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// IsStopWord reports whether term is a common English function word.
func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}

// NormalizeTag case-folds a tag, trims it and collapses inner whitespace.
func NormalizeTag(tag string) string {
	return strings.Join(strings.Fields(strings.ToLower(tag)), " ")
}

// TagStems returns the stems of the tokens making up tag, so that
// "co-founders" yields [co, founder].
func TagStems(tag string) []string {
	words := Words(tag)
	for i, w := range words {
		words[i] = Stem(w)
	}
	return words
}

var suffixes = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// Stem applies a simple suffix-stripping stemmer to word. Only the first
// matching rule is applied.
func Stem(word string) string {
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
