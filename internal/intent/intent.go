// Package intent turns a transcribed command into an [Action].
//
// Classification is a pure function of the text and the configured
// application names. It never fails: text that matches no rule yields
// [KindUnknown], and the caller decides what to say.
package intent

import (
	"slices"
	"strings"

	"github.com/MrWong99/vigil/pkg/phonetic"
)

// Kind is the type of an [Action].
type Kind int

const (
	KindUnknown Kind = iota
	KindTime
	KindStatus
	KindTopProcess
	KindOpenApp
	KindCloseApp
	KindSearch
	KindOpenURL
	KindShutdown
	KindRestart
	KindGoodbye
	KindStopTalking
	KindAsk
)

var kindNames = [...]string{
	KindUnknown:     "unknown",
	KindTime:        "time",
	KindStatus:      "status",
	KindTopProcess:  "top_process",
	KindOpenApp:     "open_app",
	KindCloseApp:    "close_app",
	KindSearch:      "search",
	KindOpenURL:     "open_url",
	KindShutdown:    "shutdown",
	KindRestart:     "restart",
	KindGoodbye:     "goodbye",
	KindStopTalking: "stop_talking",
	KindAsk:         "ask",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Action is a classified command.
type Action struct {
	Kind Kind
	// App is the configured application name for KindOpenApp and
	// KindCloseApp. It is empty when the spoken name matched nothing; Target
	// then holds what was said.
	App string
	// Target is the spoken argument: the search or question text, the URL,
	// or the application name as heard.
	Target string
	// Text is the original utterance.
	Text string
}

// Option configures a [Classifier].
type Option func(*Classifier)

// WithMatcher sets the matcher used for application names.
func WithMatcher(m *phonetic.Matcher) Option {
	return func(c *Classifier) { c.matcher = m }
}

// Classifier maps utterances to actions. It is read-only after construction
// and safe for concurrent use.
type Classifier struct {
	apps    []string
	matcher *phonetic.Matcher
}

// New creates a Classifier that recognises the given application names.
func New(apps []string, opts ...Option) *Classifier {
	c := &Classifier{apps: slices.Clone(apps)}
	for _, o := range opts {
		o(c)
	}
	if c.matcher == nil {
		c.matcher = phonetic.New()
	}
	return c
}

var (
	goodbyes = []string{
		"goodbye", "good bye", "bye", "bye bye", "that's all", "that is all",
		"thank you", "thanks", "never mind", "nevermind", "dismiss", "go to sleep",
	}
	stopPhrases = []string{
		"stop", "stop talking", "be quiet", "quiet", "shut up", "silence", "enough",
	}
	courtesy = []string{
		"please", "can you", "could you", "would you", "will you", "hey",
	}
	powerWords = []string{
		"shutdown", "shut", "down", "power", "off", "restart", "reboot", "turn",
	}
	powerFillers = []string{
		"the", "my", "this", "now", "computer", "system", "machine", "mac",
		"laptop", "pc", "device", "phone",
	}
	openVerbs = []string{
		"open", "launch", "start", "run",
	}
	closeVerbs = []string{
		"close", "quit", "exit", "kill",
	}
	urlVerbs = []string{
		"go to", "open", "visit", "browse to",
	}
	searchLeads = []string{
		"search the web for", "search for", "search", "google", "look up", "find",
	}
	questionLeads = []string{
		"what", "what's", "who", "who's", "when", "where", "why", "how",
		"which", "is", "are", "does", "do", "can", "tell me", "explain", "define",
	}
)

// Classify interprets text.
func (c *Classifier) Classify(text string) Action {
	a := Action{Text: text}
	tokens := phonetic.Tokenize(text)
	if len(tokens) == 0 {
		return a
	}
	norm := stripCourtesy(strings.Join(tokens, " "))
	if norm == "" {
		return a
	}
	tokens = strings.Fields(norm)

	switch {
	case slices.Contains(goodbyes, norm):
		a.Kind = KindGoodbye
		return a
	case slices.Contains(stopPhrases, norm):
		a.Kind = KindStopTalking
		return a
	}

	if _, _, ok := cutLead(norm, urlVerbs); ok {
		if u, ok := spokenURL(text); ok {
			a.Kind, a.Target = KindOpenURL, u
			return a
		}
	}

	if k := powerAction(tokens); k != KindUnknown {
		a.Kind = k
		return a
	}

	if _, rest, ok := cutLead(norm, searchLeads); ok && rest != "" {
		a.Kind, a.Target = KindSearch, rest
		return a
	}
	if _, rest, ok := cutLead(norm, closeVerbs); ok && rest != "" {
		a.Kind, a.App, a.Target = KindCloseApp, c.app(rest), rest
		return a
	}
	if _, rest, ok := cutLead(norm, openVerbs); ok && rest != "" {
		a.Kind, a.App, a.Target = KindOpenApp, c.app(rest), rest
		return a
	}

	switch {
	case slices.Contains(tokens, "memory") && hasAny(tokens, "most", "using", "process", "hog", "hogging", "eating"):
		a.Kind = KindTopProcess
		return a
	case slices.Contains(tokens, "time") && !hasAny(tokens, "timer", "zone"):
		a.Kind = KindTime
		return a
	case hasAny(tokens, "status", "system", "battery", "health"):
		a.Kind = KindStatus
		return a
	}

	// A bare application name opens it.
	if i, _ := c.matcher.Match(norm, c.apps); i >= 0 {
		a.Kind, a.App, a.Target = KindOpenApp, c.apps[i], norm
		return a
	}

	if _, _, ok := cutLead(norm, questionLeads); ok || strings.HasSuffix(strings.TrimSpace(text), "?") {
		a.Kind, a.Target = KindAsk, strings.TrimSpace(text)
		return a
	}
	return a
}

// stripCourtesy drops polite leading and trailing words so "could you
// please open safari" classifies like "open safari".
func stripCourtesy(norm string) string {
	for {
		_, rest, ok := cutLead(norm, courtesy)
		if !ok {
			break
		}
		norm = rest
	}
	return strings.TrimSpace(strings.TrimSuffix(norm, " please"))
}

// powerAction recognises shutdown and restart requests. Every word must be
// a power word or filler, so "restart safari" is not a reboot.
func powerAction(tokens []string) Kind {
	for _, t := range tokens {
		if !slices.Contains(powerWords, t) && !slices.Contains(powerFillers, t) {
			return KindUnknown
		}
	}
	norm := strings.Join(tokens, " ")
	switch {
	case hasAny(tokens, "restart", "reboot"):
		return KindRestart
	case slices.Contains(tokens, "shutdown") || strings.Contains(norm, "shut down") ||
		strings.Contains(norm, "power off") || strings.Contains(norm, "turn off"):
		return KindShutdown
	}
	return KindUnknown
}

// app resolves a spoken application name to a configured one.
func (c *Classifier) app(spoken string) string {
	if i, _ := c.matcher.Match(spoken, c.apps); i >= 0 {
		return c.apps[i]
	}
	if i, _ := c.matcher.Find(spoken, c.apps); i >= 0 {
		return c.apps[i]
	}
	return ""
}

// cutLead removes the first matching leading phrase from norm. Leads are
// matched on word boundaries in the given order.
func cutLead(norm string, leads []string) (lead, rest string, ok bool) {
	for _, l := range leads {
		if norm == l {
			return l, "", true
		}
		if r, found := strings.CutPrefix(norm, l+" "); found {
			return l, strings.TrimSpace(r), true
		}
	}
	return "", "", false
}

func hasAny(tokens []string, words ...string) bool {
	for _, w := range words {
		if slices.Contains(tokens, w) {
			return true
		}
	}
	return false
}
