package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	"jarvis/internal/dialog"
	"jarvis/internal/lines"
	"jarvis/internal/memory"
	"jarvis/internal/nlu"
	"jarvis/internal/service"
	"jarvis/internal/transcript"
)

// Assistant is the part of the engine the control socket drives.
type Assistant interface {
	Activate()
	Deactivate()
	Listen()
	StopSpeaking()
	Hear(text string)
	SetMode(m nlu.Mode)
	SubmitImage(data []byte) error
	Status() dialog.Snapshot
	History() []memory.Entry
	Transcript(ctx context.Context) ([]transcript.Message, error)
}

type Status struct {
	State   string         `json:"state"`
	Active  bool           `json:"active"`
	Ready   bool           `json:"ready"`
	Hearing bool           `json:"hearing"`
	Mode    string         `json:"mode"`
	Display dialog.Display `json:"display"`
}

func StatusOf(s dialog.Snapshot) *Status {
	return &Status{
		State:   s.State.String(),
		Active:  s.Active,
		Ready:   s.Ready(),
		Hearing: s.Hearing,
		Mode:    s.Mode.String(),
		Display: s.Display,
	}
}

var Commands = []string{
	"activate", "deactivate", "listen", "stop", "say", "hear", "image",
	"practice", "status", "history", "transcript",
}

// FileHearer turns an audio file into text.
type FileHearer interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}

// Dispatch returns a HandlerFunc running control commands against a. Files
// may be nil, in which case "hear" is refused.
func Dispatch(a Assistant, files FileHearer) HandlerFunc {
	return func(ctx context.Context, msg ControlMessage) Reply {
		switch msg.Cmd {
		case "activate":
			a.Activate()
		case "deactivate":
			a.Deactivate()
		case "listen", "trigger":
			a.Listen()
		case "stop":
			a.StopSpeaking()
		case "say":
			if strings.TrimSpace(msg.Arg) == "" {
				return fail(fmt.Errorf("say needs text"))
			}
			a.Hear(msg.Arg)
		case "hear":
			if files == nil {
				return fail(fmt.Errorf("hear is not available"))
			}
			text, err := files.TranscribeFile(ctx, msg.Arg)
			if err != nil {
				return fail(err)
			}
			if text == "" {
				return fail(fmt.Errorf("nothing recognized in %s", msg.Arg))
			}
			a.Hear(text)
		case "image":
			if err := a.SubmitImage(msg.Data); err != nil {
				if errors.Is(err, service.ErrInputInvalid) {
					log.Info("Image rejected", "size", len(msg.Data), "err", err)
					return Reply{Error: lines.InvalidImage()}
				}
				return fail(err)
			}
		case "practice":
			on, err := parseSwitch(msg.Arg)
			if err != nil {
				return fail(err)
			}
			m := nlu.ModeDefault
			if on {
				m = nlu.ModePractice
			}
			a.SetMode(m)
		case "status":
		case "history":
			raw, err := json.Marshal(a.History())
			if err != nil {
				return fail(err)
			}
			return Reply{OK: true, Status: StatusOf(a.Status()), History: raw}
		case "transcript":
			msgs, err := a.Transcript(ctx)
			if err != nil {
				return fail(err)
			}
			raw, err := json.Marshal(msgs)
			if err != nil {
				return fail(err)
			}
			return Reply{OK: true, Status: StatusOf(a.Status()), Transcript: raw}
		default:
			return fail(fmt.Errorf("unknown command %q", msg.Cmd))
		}
		return Reply{OK: true, Status: StatusOf(a.Status())}
	}
}

func fail(err error) Reply {
	return Reply{Error: err.Error()}
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}
