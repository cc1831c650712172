// Package lines keeps every sentence the assistant speaks. The persona
// addresses the user as "sir"; keep lines short, the synthesizer handles
// inflection.
package lines

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Picker is the random source used to choose between interchangeable lines.
// *rand.Rand satisfies it; tests inject a fixed sequence.
type Picker interface {
	Intn(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// NewPicker returns a Picker safe for use from several goroutines.
func NewPicker() Picker {
	return &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func Pick(p Picker, set []string) string {
	if len(set) == 0 {
		return ""
	}
	return set[p.Intn(len(set))]
}

// Persona names the assistant and its author.
type Persona struct {
	Name    string
	Creator string
}

func (p Persona) upper() string { return strings.ToUpper(p.Name) }

// ── Session ─────────────────────────────────────────────────────

func Greeting(p Persona) string {
	return fmt.Sprintf("Good day, sir. %s is now online and ready to assist you.", p.upper())
}

func Farewell() string {
	return "Powering down. Until next time, sir."
}

func SystemError() string {
	return "System error occurred, sir. Please try again."
}

var WakeAcks = []string{
	"Yes sir, how may I assist you?",
	"At your service, sir.",
	"Standing by, sir. What can I do for you?",
	"Ready to assist, sir.",
	"Yes sir, I'm here.",
	"How can I help you today, sir?",
}

// ── Personality ─────────────────────────────────────────────────

func Creator(p Persona) string {
	return fmt.Sprintf("I am an AI Assistant created by %s, sir.", p.Creator)
}

var AbuseRetorts = []string{
	"Watch your language, sir. I'm here to help, not to be insulted.",
	"That's quite rude, sir. Perhaps we should maintain some professionalism.",
	"I don't appreciate that tone, sir. Let's keep this civil.",
	"Sir, I suggest you adjust your attitude if you want my assistance.",
	"That's uncalled for, sir. I'm trying to help you here.",
}

// ── Jokes ───────────────────────────────────────────────────────

func JokeTrouble() string {
	return "I'm having trouble accessing my joke database, sir. Perhaps you could tell me one instead?"
}

// ── General queries ─────────────────────────────────────────────

func DefaultPersona(p Persona) string {
	return fmt.Sprintf("You are %s, an AI assistant created by %s. You are sophisticated, helpful, and occasionally witty. "+
		"Be frank and direct when appropriate. Keep responses concise and natural for voice interaction.", p.upper(), p.Creator)
}

func PracticePersona(p Persona) string {
	return fmt.Sprintf("You are %s, an AI English teacher assistant created by %s. You are helping the user practice English conversation. "+
		"Be encouraging, correct mistakes gently, suggest better phrases, and ask follow-up questions to keep the conversation going. "+
		"Focus on improving their fluency, vocabulary, and grammar. Always respond as \"Sir\" and be supportive.", p.upper(), p.Creator)
}

var DefaultFallbacks = []string{
	"My apologies, sir. I'm experiencing some technical difficulties. Please try again.",
	"I'm having trouble accessing my neural networks at the moment. Give me a moment, sir.",
	"Sir, there seems to be an issue with my cognitive processors. Please rephrase your request.",
}

var PracticeFallbacks = []string{
	"Sir, I'm having some technical difficulties with my English teaching systems. Let's continue practicing - could you tell me about your day?",
	"My apologies, sir. There seems to be an issue with my language processing. Let's practice anyway - what would you like to talk about?",
	"Sir, I'm experiencing some connectivity issues. While I sort this out, why don't you describe something you did recently?",
}

// ── Vision ──────────────────────────────────────────────────────

func VisionIntro() string {
	return "Sir, I can analyze this image for you."
}

func VisionUnavailable() string {
	return "Sir, I'm experiencing some technical difficulties with my vision analysis system. " +
		"The image has been received, but I'm unable to analyze it at the moment. Please try again in a moment."
}

func InvalidImage() string {
	return "Please select an image file, sir."
}

// ── Device actions ──────────────────────────────────────────────

func Calling(number, message string) string {
	return fmt.Sprintf("Initiating call to %s on your device, sir. Please deliver this message: %q", number, message)
}

func CallUnsupported(number, message string) string {
	return fmt.Sprintf("I can make actual phone calls when running on a phone, sir. Would you like me to prepare the number %s for you to call manually? Message: %q", number, message)
}

func CallFailed(number, message string) string {
	return fmt.Sprintf("I encountered an error while trying to make the call, sir. Please try calling %s manually with this message: %q", number, message)
}

func DefaultCallMessage(p Persona) string {
	return fmt.Sprintf("Hello, this is %s calling.", p.upper())
}

func Opening(app string) string {
	return fmt.Sprintf("Opening %s for you, sir.", app)
}

func OpenUnsupported(app string) string {
	return fmt.Sprintf("I'm unable to open %s on this device, sir. Please open it manually.", app)
}

func OpenFailed(app string) string {
	return fmt.Sprintf("I ran into a problem opening %s, sir. Please try again.", app)
}

func Searching(app, query string) string {
	return fmt.Sprintf("Searching %s for %q, sir.", app, query)
}

func ComposingTo(address string) string {
	return fmt.Sprintf("Opening email composer to %s, sir.", address)
}

func ComposingFor(name string) string {
	return fmt.Sprintf("Opening Gmail composer for %s, sir. You'll need to enter their email address.", name)
}

func Composing() string {
	return "Opening Gmail composer for you, sir."
}

func BuildApp() string {
	return "I understand you want me to create an app, sir. While I can't directly create apps, I can help you plan the structure, " +
		"suggest features, and guide you through the development process. What kind of app did you have in mind? " +
		"A web app, mobile app, or something specific like a todo app, weather app, or social media app?"
}

func Switched(feature string, on bool) string {
	return fmt.Sprintf("%s is now %s, sir.", feature, onOff(on))
}

func SwitchUnsupported(feature string, on bool) string {
	verb, advice := "turn off", "disable"
	if on {
		verb, advice = "turn on", "enable"
	}
	return fmt.Sprintf("I would %s %s for you, sir, but I need device permissions. Please %s %s manually in your settings.", verb, feature, advice, feature)
}

func SwitchFailed(feature string) string {
	return fmt.Sprintf("I couldn't reach the %s, sir. Please check that it is connected.", strings.ToLower(feature))
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
