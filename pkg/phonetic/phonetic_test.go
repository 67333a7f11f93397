package phonetic_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/vigil/pkg/phonetic"
)

func TestMatcher_Match(t *testing.T) {
	t.Parallel()

	apps := []string{"Safari", "Calculator", "Activity Monitor", "Spotify"}
	m := phonetic.New()

	tests := []struct {
		phrase string
		want   int
	}{
		{phrase: "safari", want: 0},
		{phrase: "Calculator.", want: 1},
		{phrase: "activity monitor", want: 2},
		{phrase: "spot if i", want: 3},
		{phrase: "banana", want: -1},
		{phrase: "", want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			t.Parallel()
			got, score := m.Match(tt.phrase, apps)
			if got != tt.want {
				t.Errorf("Match(%q) = %d (score %.2f), want %d", tt.phrase, got, score, tt.want)
			}
			if got >= 0 && score <= 0 {
				t.Errorf("Match(%q) score = %f, want > 0", tt.phrase, score)
			}
		})
	}
}

func TestMatcher_Find(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	keywords := []string{"vigil", "hey computer"}

	tests := []struct {
		text string
		want int
	}{
		{text: "vigil", want: 0},
		{text: "hey vigil what time is it", want: 0},
		{text: "okay, hey computer!", want: 1},
		{text: "the weather is nice today", want: -1},
		{text: "", want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			if got, _ := m.Find(tt.text, keywords); got != tt.want {
				t.Errorf("Find(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestMatcher_Thresholds(t *testing.T) {
	t.Parallel()

	strict := phonetic.New(phonetic.WithPhoneticThreshold(1), phonetic.WithFuzzyThreshold(1))
	if got, _ := strict.Match("safary", []string{"Safari"}); got != -1 {
		t.Errorf("strict Match(safary) = %d, want -1", got)
	}
	if got, _ := strict.Match("safari", []string{"Safari"}); got != 0 {
		t.Errorf("strict Match(safari) = %d, want 0", got)
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	got := phonetic.Tokenize("Open Activity-Monitor, please! It's 5pm")
	want := []string{"open", "activity", "monitor", "please", "it's", "5pm"}
	if !slices.Equal(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}
