package nlu

import "time"

type Kind int

const (
	KindGeneralQuery Kind = iota
	KindWakeWord
	KindJoke
	KindDeviceAction
	KindPersonality
	KindVision
)

func (k Kind) String() string {
	switch k {
	case KindWakeWord:
		return "wake_word"
	case KindJoke:
		return "joke"
	case KindDeviceAction:
		return "device_action"
	case KindPersonality:
		return "personality"
	case KindVision:
		return "vision"
	default:
		return "general_query"
	}
}

type Action string

const (
	ActionCall     Action = "call"
	ActionOpen     Action = "open"
	ActionSearch   Action = "search"
	ActionEmail    Action = "email"
	ActionBuildApp Action = "build_app"
	ActionSwitch   Action = "switch"
)

type Category string

const (
	CategoryCreator Category = "creator"
	CategoryAbuse   Category = "abuse"
)

// Mode selects the persona used for open-ended queries.
type Mode int

const (
	ModeDefault Mode = iota
	ModePractice
)

func (m Mode) String() string {
	if m == ModePractice {
		return "practice"
	}
	return "default"
}

// Params holds whatever a device action extracted from the utterance. Only
// the fields relevant to the action are set.
type Params struct {
	Number  string `json:"number,omitempty"`
	Message string `json:"message,omitempty"`

	App   string `json:"app,omitempty"`
	URL   string `json:"url,omitempty"`
	Query string `json:"query,omitempty"`

	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`

	Feature string `json:"feature,omitempty"`
	On      bool   `json:"on,omitempty"`
}

type Result struct {
	Kind     Kind
	Action   Action
	Rule     string
	Params   Params
	Category Category
	Text     string
	Mode     Mode
	Image    []byte
}

type Utterance struct {
	Text string
	At   time.Time
}

func NewUtterance(text string) Utterance {
	return Utterance{Text: text, At: time.Now()}
}

func Vision(image []byte) Result {
	return Result{Kind: KindVision, Image: image}
}
