package nlu

import (
	"net/url"
	"regexp"
	"strings"
)

type App struct {
	Name      string
	Aliases   []string
	URL       string
	SearchURL string
}

// Apps lists the applications "open ..." understands, in match order.
var Apps = []App{
	{Name: "Instagram", Aliases: []string{"instagram", "insta"}, URL: "https://instagram.com"},
	{Name: "YouTube", Aliases: []string{"youtube"}, URL: "https://youtube.com", SearchURL: "https://youtube.com/results?search_query="},
	{Name: "Telegram", Aliases: []string{"telegram"}, URL: "https://web.telegram.org"},
	{Name: "WhatsApp", Aliases: []string{"whatsapp"}, URL: "https://web.whatsapp.com"},
	{Name: "Facebook", Aliases: []string{"facebook"}, URL: "https://facebook.com"},
	{Name: "Twitter", Aliases: []string{"twitter"}, URL: "https://twitter.com"},
	{Name: "Gmail", Aliases: []string{"gmail"}, URL: "https://gmail.com"},
}

type Feature struct {
	Name    string
	Aliases []string
}

// Features are the switchable things "turn on/off" understands. Whether one
// can actually be switched is up to the device collaborator.
var Features = []Feature{
	{Name: "Bluetooth", Aliases: []string{"bluetooth"}},
	{Name: "WiFi", Aliases: []string{"wifi", "wi-fi"}},
	{Name: "Lamp", Aliases: []string{"night lamp", "desk lamp", "lamp"}},
}

const GmailCompose = "https://gmail.com/mail/u/0/#inbox?compose=new"

var (
	phoneRe     = regexp.MustCompile(`\d{10,}`)
	callMsgRe   = regexp.MustCompile(`(?i)\bcall\s+\+?\d{10,}\s*(?:and\s+)?((?:tell|say)\b.*)$`)
	emailCmdRe  = regexp.MustCompile(`\b(write|compose|send)\s+(an\s+)?email\b`)
	emailAddrRe = regexp.MustCompile(`(?i)\bto\s+([a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,})`)
	emailNameRe = regexp.MustCompile(`(?i)\bto\s+([a-z][a-z\s]*)`)
	buildAppRe  = regexp.MustCompile(`\b(make|create|build)\s+(an?\s+)?app\b`)
	searchRe    = regexp.MustCompile(`open youtube|and search|search`)
)

// DefaultRules returns the device-action table in precedence order.
func DefaultRules() []Rule {
	rules := []Rule{{
		Name:    "call",
		Action:  ActionCall,
		Match:   func(l string) bool { return strings.Contains(l, "call ") && phoneRe.MatchString(l) },
		Extract: extractCall,
	}}

	for _, app := range Apps {
		rules = append(rules, openRule(app))
	}

	rules = append(rules,
		Rule{
			Name:    "email",
			Action:  ActionEmail,
			Match:   emailCmdRe.MatchString,
			Extract: extractEmail,
		},
		Rule{
			Name:    "build_app",
			Action:  ActionBuildApp,
			Match:   buildAppRe.MatchString,
			Extract: func(string, string) (Params, bool) { return Params{}, true },
		},
		switchRule("switch_on", true, "turn on", "switch on", "enable"),
		switchRule("switch_off", false, "turn off", "switch off", "disable"),
	)

	return rules
}

func extractCall(raw, lower string) (Params, bool) {
	number := phoneRe.FindString(raw)
	if number == "" {
		return Params{}, false
	}
	p := Params{Number: number}
	if m := callMsgRe.FindStringSubmatch(strings.TrimSpace(raw)); m != nil {
		p.Message = strings.TrimRight(strings.TrimSpace(m[1]), ".!?")
	}
	return p, true
}

func openRule(app App) Rule {
	return Rule{
		Name:   "open_" + strings.ToLower(app.Name),
		Action: ActionOpen,
		Match: func(l string) bool {
			return strings.Contains(l, "open") && containsAny(l, app.Aliases...)
		},
		Extract: func(_, lower string) (Params, bool) {
			p := Params{App: app.Name, URL: app.URL}
			if app.SearchURL == "" {
				return p, true
			}
			q := strings.TrimSpace(searchRe.ReplaceAllString(lower, ""))
			q = strings.TrimSpace(strings.TrimPrefix(q, "for "))
			if q != "" {
				p.Query = q
				p.URL = app.SearchURL + url.QueryEscape(q)
			}
			return p, true
		},
	}
}

func extractEmail(raw, _ string) (Params, bool) {
	if m := emailAddrRe.FindStringSubmatch(raw); m != nil {
		return Params{Email: strings.ToLower(m[1]), URL: "mailto:" + strings.ToLower(m[1])}, true
	}
	if m := emailNameRe.FindStringSubmatch(raw); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			return Params{Name: name, URL: GmailCompose}, true
		}
	}
	return Params{URL: GmailCompose}, true
}

func switchRule(name string, on bool, verbs ...string) Rule {
	return Rule{
		Name:   name,
		Action: ActionSwitch,
		Match: func(l string) bool {
			return containsAny(l, verbs...) && featureIn(l) != nil
		},
		Extract: func(_, lower string) (Params, bool) {
			f := featureIn(lower)
			if f == nil {
				return Params{}, false
			}
			return Params{Feature: f.Name, On: on}, true
		},
	}
}

func featureIn(lower string) *Feature {
	for i := range Features {
		if containsAny(lower, Features[i].Aliases...) {
			return &Features[i]
		}
	}
	return nil
}
