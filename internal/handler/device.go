package handler

import (
	"context"
	"errors"

	"jarvis/internal/lines"
	"jarvis/internal/nlu"
	"jarvis/internal/service"
)

func (h *Handler) device(ctx context.Context, res nlu.Result) Response {
	p := res.Params
	dev := h.cfg.Device
	if dev == nil {
		dev = noDevice{}
	}

	switch res.Action {
	case nlu.ActionCall:
		msg := p.Message
		if msg == "" {
			msg = lines.DefaultCallMessage(h.cfg.Persona)
		}
		err := dev.Dial(ctx, p.Number)
		return outcome(err,
			lines.Calling(p.Number, msg),
			lines.CallUnsupported(p.Number, msg),
			lines.CallFailed(p.Number, msg))

	case nlu.ActionOpen, nlu.ActionSearch:
		ok := lines.Opening(p.App)
		if p.Query != "" {
			ok = lines.Searching(p.App, p.Query)
		}
		err := dev.Open(ctx, p.URL)
		return outcome(err, ok, lines.OpenUnsupported(p.App), lines.OpenFailed(p.App))

	case nlu.ActionEmail:
		ok := lines.Composing()
		switch {
		case p.Email != "":
			ok = lines.ComposingTo(p.Email)
		case p.Name != "":
			ok = lines.ComposingFor(p.Name)
		}
		err := dev.Open(ctx, p.URL)
		return outcome(err, ok, lines.OpenUnsupported("the email composer"), lines.OpenFailed("the email composer"))

	case nlu.ActionBuildApp:
		return Response{Text: lines.BuildApp(), Note: "Command understood"}

	case nlu.ActionSwitch:
		err := dev.Switch(ctx, p.Feature, p.On)
		return outcome(err,
			lines.Switched(p.Feature, p.On),
			lines.SwitchUnsupported(p.Feature, p.On),
			lines.SwitchFailed(p.Feature))
	}

	return Response{Text: lines.SystemError(), Note: "Error processing", Err: errors.New("unknown device action " + string(res.Action))}
}

func outcome(err error, ok, unsupported, failed string) Response {
	switch {
	case err == nil:
		return Response{Text: ok, Note: "Command understood"}
	case errors.Is(err, service.ErrUnsupported):
		return Response{Text: unsupported, Note: "Command understood", Err: err}
	default:
		return Response{Text: failed, Note: "Error processing", Err: err}
	}
}

type noDevice struct{}

func (noDevice) Open(context.Context, string) error { return service.Unsupported("open", nil) }
func (noDevice) Dial(context.Context, string) error { return service.Unsupported("call", nil) }
func (noDevice) Switch(context.Context, string, bool) error {
	return service.Unsupported("switch", nil)
}
