// Package dialog is the dialogue state machine. Transition is pure: it never
// touches audio, the network or the clock. Side effects come back as a list
// of Effects for the engine to execute.
package dialog

import (
	"strings"

	"jarvis/internal/nlu"
)

type State int

const (
	Idle State = iota
	Listening
	Processing
	Responding
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	case Responding:
		return "responding"
	default:
		return "idle"
	}
}

const (
	StatusOffline    = "Offline"
	StatusReady      = "Ready"
	StatusListening  = "Listening..."
	StatusProcessing = "Processing command..."
	StatusSpeaking   = "Speaking..."
)

// Display holds the transient fields shown to the user.
type Display struct {
	Command       string `json:"command"`
	Understanding string `json:"understanding"`
	Response      string `json:"response"`
	Status        string `json:"status"`
}

// Request is one unit of user input waiting to be routed and handled.
type Request struct {
	Text  string
	Image []byte
	Mode  nlu.Mode
}

func (r Request) label() string {
	if r.Image != nil {
		return "[image]"
	}
	return r.Text
}

// Snapshot is the whole dialogue state of one session.
//
// Epoch counts sessions and Cycle counts processing cycles. Callbacks from
// recognition, handlers and playback carry the values they were started
// with; a mismatch means the work was cancelled and the callback is ignored.
type Snapshot struct {
	State   State
	Active  bool
	Hearing bool
	Mode    nlu.Mode
	Epoch   uint64
	Cycle   uint64
	Pending *Request
	Display Display
}

func Initial() Snapshot {
	return Snapshot{Display: Display{Status: StatusOffline}}
}

// Ready reports the UI-only "ready to listen" sub-state of Idle.
func (s Snapshot) Ready() bool {
	return s.Active && s.State == Idle
}

type Event interface{ event() }

type (
	Activate     struct{ Greeting string }
	Deactivate   struct{ Farewell string }
	Listen       struct{}
	StopSpeaking struct{}
	SetMode      struct{ Mode nlu.Mode }

	// TextEntered is typed input; it is handled like a finished recognition
	// but leaves any running recognition alone.
	TextEntered   struct{ Text string }
	ImageReceived struct{ Image []byte }

	RecognitionEnded struct {
		Epoch uint64
		Text  string
	}
	HandlerDone struct {
		Epoch, Cycle uint64
		Text, Note   string
	}
	PlaybackEnded struct {
		Epoch, Cycle uint64
		Err          error
	}
)

func (Activate) event()         {}
func (Deactivate) event()       {}
func (Listen) event()           {}
func (StopSpeaking) event()     {}
func (SetMode) event()          {}
func (TextEntered) event()      {}
func (ImageReceived) event()    {}
func (RecognitionEnded) event() {}
func (HandlerDone) event()      {}
func (PlaybackEnded) event()    {}

type Effect interface{ effect() }

type Purpose int

const (
	PurposeResponse Purpose = iota
	PurposeGreeting
	PurposeFarewell
)

type (
	Speak struct {
		Purpose      Purpose
		Text         string
		Epoch, Cycle uint64
	}
	Silence         struct{}
	Recognize       struct{ Epoch uint64 }
	StopRecognizing struct{}
	Process         struct {
		Request      Request
		Epoch, Cycle uint64
	}
	// Reset clears conversation memory.
	Reset struct{}
	// Commit applies the memory writes of an accepted response. Responses
	// that arrive stale never commit.
	Commit struct{ Epoch, Cycle uint64 }
)

func (Speak) effect()           {}
func (Silence) effect()         {}
func (Recognize) effect()       {}
func (StopRecognizing) effect() {}
func (Process) effect()         {}
func (Reset) effect()           {}
func (Commit) effect()          {}

// Transition applies ev to s. Events that do not apply in the current state
// return s unchanged and no effects.
func Transition(s Snapshot, ev Event) (Snapshot, []Effect) {
	switch ev := ev.(type) {
	case Activate:
		if s.Active {
			return s, nil
		}
		s.Active = true
		s.Epoch++
		s.State = Idle
		s.Display = Display{Status: StatusReady}
		return s, []Effect{Speak{Purpose: PurposeGreeting, Text: ev.Greeting, Epoch: s.Epoch, Cycle: s.Cycle}}

	case Deactivate:
		if !s.Active {
			return s, nil
		}
		s = Snapshot{
			State:   Idle,
			Mode:    s.Mode,
			Epoch:   s.Epoch + 1,
			Cycle:   s.Cycle + 1,
			Display: Display{Status: StatusOffline},
		}
		return s, []Effect{
			StopRecognizing{},
			Silence{},
			Reset{},
			Speak{Purpose: PurposeFarewell, Text: ev.Farewell, Epoch: s.Epoch, Cycle: s.Cycle},
		}

	case SetMode:
		s.Mode = ev.Mode
		return s, nil

	case Listen:
		if !s.Active || s.Hearing {
			return s, nil
		}
		s.Hearing = true
		if s.State == Idle {
			s.State = Listening
			s.Display.Status = StatusListening
		}
		return s, []Effect{Recognize{Epoch: s.Epoch}}

	case RecognitionEnded:
		if !s.Active || ev.Epoch != s.Epoch || !s.Hearing {
			return s, nil
		}
		s.Hearing = false
		if s.State == Listening {
			s.State = Idle
			s.Display.Status = StatusReady
		}
		return submit(s, Request{Text: ev.Text})

	case TextEntered:
		return submit(s, Request{Text: ev.Text})

	case ImageReceived:
		if len(ev.Image) == 0 {
			return s, nil
		}
		return submit(s, Request{Image: ev.Image})

	case HandlerDone:
		if ev.Epoch != s.Epoch || ev.Cycle != s.Cycle || s.State != Processing {
			return s, nil
		}
		s.State = Responding
		s.Display.Response = ev.Text
		s.Display.Understanding = ev.Note
		s.Display.Status = StatusSpeaking
		return s, []Effect{
			Commit{Epoch: s.Epoch, Cycle: s.Cycle},
			Speak{Purpose: PurposeResponse, Text: ev.Text, Epoch: s.Epoch, Cycle: s.Cycle},
		}

	case PlaybackEnded:
		if ev.Epoch != s.Epoch || ev.Cycle != s.Cycle || s.State != Responding {
			return s, nil
		}
		return next(s, nil)

	case StopSpeaking:
		effects := []Effect{Silence{}}
		switch s.State {
		case Responding:
			return next(s, effects)
		case Processing:
			// The handler keeps running; its result arrives with a stale
			// cycle and is dropped.
			s.Cycle++
			return next(s, effects)
		}
		return s, effects
	}
	return s, nil
}

// submit starts processing req, or parks it while another cycle runs. Only
// the latest parked request survives.
func submit(s Snapshot, req Request) (Snapshot, []Effect) {
	if !s.Active {
		return s, nil
	}
	if req.Image == nil && strings.TrimSpace(req.Text) == "" {
		return s, nil
	}
	req.Text = strings.TrimSpace(req.Text)
	req.Mode = s.Mode

	if s.State == Processing || s.State == Responding {
		s.Pending = &req
		return s, nil
	}
	return start(s, req, nil)
}

func start(s Snapshot, req Request, effects []Effect) (Snapshot, []Effect) {
	s.Cycle++
	s.State = Processing
	s.Display = Display{Command: req.label(), Status: StatusProcessing}
	return s, append(effects, Process{Request: req, Epoch: s.Epoch, Cycle: s.Cycle})
}

// next ends the current cycle and picks up the parked request, if any.
func next(s Snapshot, effects []Effect) (Snapshot, []Effect) {
	s.State = Idle
	s.Display.Status = StatusReady
	if s.Hearing {
		s.State = Listening
		s.Display.Status = StatusListening
	}
	if s.Pending != nil {
		req := *s.Pending
		s.Pending = nil
		req.Mode = s.Mode
		return start(s, req, effects)
	}
	return s, effects
}
