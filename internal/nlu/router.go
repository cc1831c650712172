package nlu

import (
	"regexp"
	"strings"
	"unicode"
)

// Rule is one row of the device-action table. Match is tested against the
// normalized utterance; Extract pulls the parameters and may still decline.
type Rule struct {
	Name    string
	Action  Action
	Match   func(lower string) bool
	Extract func(raw, lower string) (Params, bool)
}

type Router struct {
	name  string
	rules []Rule
}

var (
	jokeTriggers   = []string{"joke", "tell me something funny"}
	creatorPhrases = []string{"who made you", "who created you", "your creator"}
	abuseRe        = regexp.MustCompile(`\b(stupid|dumb|idiot|shut up|fuck\w*|damn\w*|hell)\b`)
)

const wakeMaxWords = 3

// NewRouter builds a router answering to name. A nil rule table selects
// DefaultRules.
func NewRouter(name string, rules []Rule) *Router {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Router{
		name:  strings.ToLower(strings.TrimSpace(name)),
		rules: rules,
	}
}

func (r *Router) Name() string { return r.name }

// Route classifies one utterance. Earlier checks pre-empt later ones even
// when a later one would also match.
func (r *Router) Route(text string, mode Mode) Result {
	lower := normalizeText(text)

	if r.isWakeWord(lower) {
		return Result{Kind: KindWakeWord, Text: text}
	}

	if containsAny(lower, jokeTriggers...) {
		return Result{Kind: KindJoke, Text: text}
	}

	for _, rule := range r.rules {
		if !rule.Match(lower) {
			continue
		}
		params, ok := rule.Extract(text, lower)
		if !ok {
			continue
		}
		action := rule.Action
		if action == ActionOpen && params.Query != "" {
			action = ActionSearch
		}
		return Result{
			Kind:   KindDeviceAction,
			Action: action,
			Rule:   rule.Name,
			Params: params,
			Text:   text,
		}
	}

	if containsAny(lower, creatorPhrases...) {
		return Result{Kind: KindPersonality, Category: CategoryCreator, Text: text}
	}
	if abuseRe.MatchString(lower) {
		return Result{Kind: KindPersonality, Category: CategoryAbuse, Text: text}
	}

	return Result{Kind: KindGeneralQuery, Text: text, Mode: mode}
}

func (r *Router) isWakeWord(lower string) bool {
	if r.name == "" || len(strings.Fields(lower)) > wakeMaxWords {
		return false
	}
	tokens := strings.FieldsFunc(lower, func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '-'
	})
	for _, tok := range tokens {
		if tok == r.name {
			return true
		}
	}
	return false
}

func normalizeText(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.ReplaceAll(t, "\t", " ")
	for strings.Contains(t, "  ") {
		t = strings.ReplaceAll(t, "  ", " ")
	}
	return t
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
