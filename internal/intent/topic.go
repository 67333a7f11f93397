package intent

import "github.com/MrWong99/vigil/pkg/phonetic"

// Topic classifies a general question by what can answer it.
type Topic int

const (
	// TopicFactual can be answered from general knowledge.
	TopicFactual Topic = iota
	// TopicPricing asks about prices or purchases.
	TopicPricing
	// TopicCurrent asks about recent events.
	TopicCurrent
	// TopicOpinion asks for reviews or recommendations.
	TopicOpinion
	// TopicPersonal asks about the user or the assistant.
	TopicPersonal
)

func (t Topic) String() string {
	switch t {
	case TopicPricing:
		return "pricing"
	case TopicCurrent:
		return "current"
	case TopicOpinion:
		return "opinion"
	case TopicPersonal:
		return "personal"
	default:
		return "factual"
	}
}

var topicWords = []struct {
	topic Topic
	words []string
}{
	{TopicPricing, []string{"price", "prices", "cost", "costs", "buy", "purchase", "cheap", "cheapest"}},
	{TopicCurrent, []string{"latest", "current", "currently", "today", "now", "recent", "news", "tonight"}},
	{TopicOpinion, []string{"review", "reviews", "opinion", "recommend", "best", "worst"}},
	{TopicPersonal, []string{"my", "your", "i", "you", "mine", "yours"}},
}

// TopicOf classifies a question. Earlier topics win, so "what is the best
// price" is about pricing.
func TopicOf(question string) Topic {
	tokens := phonetic.Tokenize(question)
	for i, t := range tokens {
		if t == "much" && i > 0 && tokens[i-1] == "how" {
			return TopicPricing
		}
	}
	for _, tw := range topicWords {
		if hasAny(tokens, tw.words...) {
			return tw.topic
		}
	}
	return TopicFactual
}
