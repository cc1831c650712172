package handler

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	"jarvis/internal/lines"
	"jarvis/internal/memory"
	"jarvis/internal/nlu"
	"jarvis/internal/service"
)

const (
	JokeAttempts = 5
	clipLen      = 50

	TopicJoke    = "joke"
	TopicGeneral = "general"
	TopicVision  = "vision"
)

// JokeSource always resolves to some joke.
type JokeSource interface {
	Joke(ctx context.Context) string
}

// Device performs platform actions. Implementations report a missing
// capability with service.ErrUnsupported.
type Device interface {
	Open(ctx context.Context, target string) error
	Dial(ctx context.Context, number string) error
	Switch(ctx context.Context, feature string, on bool) error
}

// Memo is one memory write a response asks for: a told joke, a history
// entry, or both.
type Memo struct {
	Joke  string
	Topic string
	Text  string
}

type Response struct {
	Text  string
	Note  string
	Err   error
	Memos []Memo
}

type Config struct {
	Persona lines.Persona
	Memory  *memory.Memory
	Jokes   JokeSource
	Query   service.Querier
	Vision  service.Classifier
	Device  Device
	Picker  lines.Picker
	Logger  *log.Logger

	// Deferred leaves Memos uncommitted; the caller commits the responses
	// it accepts.
	Deferred bool
}

type Handler struct {
	cfg Config
	log *log.Logger
}

func New(cfg Config) *Handler {
	if cfg.Memory == nil {
		cfg.Memory = memory.New()
	}
	if cfg.Picker == nil {
		cfg.Picker = lines.NewPicker()
	}
	l := cfg.Logger
	if l == nil {
		l = log.Default()
	}
	return &Handler{cfg: cfg, log: l}
}

// Handle runs the handler matching res.Kind. It always produces a response;
// failures come back as a persona sentence with Err set.
func (h *Handler) Handle(ctx context.Context, res nlu.Result) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Handler panicked", "kind", res.Kind, "panic", r)
			resp = Response{Text: lines.SystemError(), Note: "Error processing", Err: fmt.Errorf("handler panic: %v", r)}
		}
	}()

	switch res.Kind {
	case nlu.KindWakeWord:
		resp = Response{Text: lines.Pick(h.cfg.Picker, lines.WakeAcks), Note: "Wake word detected"}
	case nlu.KindJoke:
		resp = h.joke(ctx)
	case nlu.KindDeviceAction:
		resp = h.device(ctx, res)
	case nlu.KindPersonality:
		resp = h.personality(res)
	case nlu.KindVision:
		resp = h.vision(ctx, res.Image)
	default:
		resp = h.general(ctx, res)
	}

	if !h.cfg.Deferred && ctx.Err() == nil {
		h.Commit(resp)
	}
	return resp
}

// Commit writes resp.Memos to memory.
func (h *Handler) Commit(resp Response) {
	for _, m := range resp.Memos {
		if m.Joke != "" {
			h.cfg.Memory.RecordJoke(m.Joke)
		}
		if m.Topic != "" {
			h.cfg.Memory.RecordHistory(m.Topic, m.Text)
		}
	}
}

func (h *Handler) joke(ctx context.Context) Response {
	if h.cfg.Jokes == nil {
		return Response{Text: lines.JokeTrouble(), Note: "Error processing", Err: service.Unavailable("jokes", errors.New("no joke source"))}
	}

	mem := h.cfg.Memory
	joke := h.cfg.Jokes.Joke(ctx)
	for attempt := 1; attempt < JokeAttempts && mem.WasRecentlyTold(joke); attempt++ {
		joke = h.cfg.Jokes.Joke(ctx)
	}
	if joke == "" {
		return Response{Text: lines.JokeTrouble(), Note: "Error processing", Err: service.Unavailable("jokes", errors.New("empty joke"))}
	}

	return Response{
		Text:  joke,
		Note:  "Command understood",
		Memos: []Memo{{Joke: joke, Topic: TopicJoke, Text: "Told joke: " + clip(joke, clipLen) + "..."}},
	}
}

func (h *Handler) personality(res nlu.Result) Response {
	if res.Category == nlu.CategoryCreator {
		return Response{Text: lines.Creator(h.cfg.Persona), Note: "Command understood"}
	}
	return Response{Text: lines.Pick(h.cfg.Picker, lines.AbuseRetorts), Note: "Command understood"}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
