// Package phonetic matches spoken words against a known vocabulary using
// Double Metaphone phonetic encoding combined with Jaro-Winkler similarity.
//
// Speech recognizers regularly misspell proper nouns ("vigil" heard as
// "vigel", "Spotify" as "spot if I"). The matcher works in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each token of the input and of every candidate. Any overlap makes the
//     candidate a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates the highest similarity
//     wins if it reaches the phonetic threshold. Without a phonetic
//     candidate, pure Jaro-Winkler similarity is tested against the stricter
//     fuzzy threshold.
package phonetic

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.90
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matching candidate. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a candidate
// without phonetic overlap. Default: 0.90.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is safe for concurrent use; it is read-only after construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match compares phrase as a whole against every candidate and returns the
// index of the best one, or -1 when none reaches its threshold.
func (m *Matcher) Match(phrase string, candidates []string) (index int, score float64) {
	tokens := Tokenize(phrase)
	if len(tokens) == 0 {
		return -1, 0
	}
	codes := codesForTokens(tokens)

	index = -1
	bestPhonetic := false
	for i, c := range candidates {
		ctokens := Tokenize(c)
		if len(ctokens) == 0 {
			continue
		}
		s := bestJWScore(tokens, ctokens)
		if codesOverlap(codes, codesForTokens(ctokens)) {
			if s >= m.phoneticThreshold && (!bestPhonetic || s > score) {
				index, score, bestPhonetic = i, s, true
			}
		} else if !bestPhonetic && s >= m.fuzzyThreshold && s > score {
			index, score = i, s
		}
	}
	if index < 0 {
		return -1, 0
	}
	return index, score
}

// Find searches text for any candidate phrase. Every window of consecutive
// tokens as long as a candidate (and one token longer, to absorb split words)
// is matched. It returns the index of the best candidate or -1.
func (m *Matcher) Find(text string, candidates []string) (index int, score float64) {
	tokens := Tokenize(text)
	index = -1
	for i, c := range candidates {
		n := len(Tokenize(c))
		if n == 0 {
			continue
		}
		for size := n; size <= n+1; size++ {
			for start := 0; start+size <= len(tokens); start++ {
				window := strings.Join(tokens[start:start+size], " ")
				if j, s := m.Match(window, candidates[i:i+1]); j == 0 && s > score {
					index, score = i, s
				}
			}
		}
	}
	return index, score
}

// Tokenize lower-cases s and splits it into words, dropping punctuation.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore returns the higher Jaro-Winkler similarity of the full strings
// and of their space-stripped forms ("spot if i" vs "spotify").
func bestJWScore(input, candidate []string) float64 {
	score := matchr.JaroWinkler(strings.Join(input, " "), strings.Join(candidate, " "), false)
	if len(input) > 1 || len(candidate) > 1 {
		if s := matchr.JaroWinkler(strings.Join(input, ""), strings.Join(candidate, ""), false); s > score {
			score = s
		}
	}
	return score
}
