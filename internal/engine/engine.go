// Package engine runs one dialogue session: it owns the dialogue snapshot
// and the conversation memory, feeds events through dialog.Transition and
// executes the resulting effects.
package engine

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"jarvis/internal/dialog"
	"jarvis/internal/handler"
	"jarvis/internal/lines"
	"jarvis/internal/memory"
	"jarvis/internal/metrics"
	"jarvis/internal/nlu"
	"jarvis/internal/service"
	"jarvis/internal/transcript"
)

// Recognizer captures one utterance. An empty string means nothing was said.
type Recognizer interface {
	Recognize(ctx context.Context) (string, error)
}

type Config struct {
	Persona lines.Persona
	Router  *nlu.Router

	Jokes  handler.JokeSource
	Query  service.Querier
	Vision service.Classifier
	Device handler.Device
	Picker lines.Picker

	Speaker    service.Speaker
	Recognizer Recognizer
	Transcript transcript.Store
	Metrics    *metrics.Metrics
	Logger     *log.Logger

	// OnChange is called from the event loop after every visible change.
	OnChange func(dialog.Snapshot)
}

type job struct {
	dialog.Process
	ctx     context.Context
	session string
}

type finished struct {
	epoch, cycle uint64
	resp         handler.Response
}

type Engine struct {
	cfg     Config
	log     *log.Logger
	mem     *memory.Memory
	handler *handler.Handler

	events chan dialog.Event
	jobs   chan job
	done   chan struct{}
	wg     sync.WaitGroup

	mu   sync.RWMutex
	snap dialog.Snapshot

	// Last finished response, committed to memory only if the dialogue
	// accepts it.
	doneMu sync.Mutex
	last   finished

	// Owned by the event loop.
	runCtx        context.Context
	session       string
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
	listenCancel  context.CancelFunc
	speakCancel   context.CancelFunc
	speechDone    chan struct{}
}

func New(cfg Config) *Engine {
	l := cfg.Logger
	if l == nil {
		l = log.Default()
	}
	if cfg.Router == nil {
		cfg.Router = nlu.NewRouter(cfg.Persona.Name, nil)
	}
	if cfg.Picker == nil {
		cfg.Picker = lines.NewPicker()
	}

	mem := memory.New()
	return &Engine{
		cfg: cfg,
		log: l,
		mem: mem,
		handler: handler.New(handler.Config{
			Persona: cfg.Persona,
			Memory:  mem,
			Jokes:   cfg.Jokes,
			Query:   cfg.Query,
			Vision:  cfg.Vision,
			Device:  cfg.Device,
			Picker:  cfg.Picker,
			Logger:  l,

			Deferred: true,
		}),
		events: make(chan dialog.Event, 64),
		jobs:   make(chan job, 1),
		done:   make(chan struct{}),
		snap:   dialog.Initial(),
	}
}

// Run processes events until ctx is cancelled. It must be called once.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.work(ctx)
	}()

	defer func() {
		close(e.done)
		e.closeSession()
		if e.speakCancel != nil {
			e.speakCancel()
		}
		e.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-e.events:
			e.apply(ev)
		}
	}
}

func (e *Engine) Activate()     { e.send(dialog.Activate{Greeting: lines.Greeting(e.cfg.Persona)}) }
func (e *Engine) Deactivate()   { e.send(dialog.Deactivate{Farewell: lines.Farewell()}) }
func (e *Engine) Listen()       { e.send(dialog.Listen{}) }
func (e *Engine) StopSpeaking() { e.send(dialog.StopSpeaking{}) }
func (e *Engine) Hear(text string) {
	e.send(dialog.TextEntered{Text: text})
}

func (e *Engine) SetMode(m nlu.Mode) {
	e.send(dialog.SetMode{Mode: m})
}

// SubmitImage queues an image for analysis. Anything that does not sniff as
// an image is refused with service.ErrInputInvalid and leaves the dialogue
// untouched.
func (e *Engine) SubmitImage(data []byte) error {
	if len(data) == 0 || !strings.HasPrefix(http.DetectContentType(data), "image/") {
		e.cfg.Metrics.RecordRejected("image")
		return service.Invalid("image", fmt.Errorf("not an image: %s", http.DetectContentType(data)))
	}
	e.send(dialog.ImageReceived{Image: data})
	return nil
}

func (e *Engine) Status() dialog.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

func (e *Engine) History() []memory.Entry {
	return e.mem.History()
}

// Transcript returns the messages of the current (or last) session.
func (e *Engine) Transcript(ctx context.Context) ([]transcript.Message, error) {
	if e.cfg.Transcript == nil {
		return nil, errors.New("no transcript store")
	}
	e.mu.RLock()
	id := e.session
	e.mu.RUnlock()
	return e.cfg.Transcript.Session(ctx, id)
}

func (e *Engine) send(ev dialog.Event) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e *Engine) apply(ev dialog.Event) {
	prev := e.snap
	next, effects := dialog.Transition(prev, ev)

	e.mu.Lock()
	e.snap = next
	e.mu.Unlock()

	if prev.State != next.State {
		e.cfg.Metrics.RecordTransition(prev.State.String(), next.State.String())
		e.log.Debug("State changed", "from", prev.State, "to", next.State, "cycle", next.Cycle)
	}
	if !prev.Active && next.Active {
		e.openSession()
	}
	if prev.Active && !next.Active {
		e.closeSession()
	}

	for _, eff := range effects {
		e.exec(eff)
	}

	if e.cfg.OnChange != nil && (prev.State != next.State || prev.Active != next.Active || prev.Display != next.Display) {
		e.cfg.OnChange(next)
	}
}

func (e *Engine) openSession() {
	id := transcript.NewSessionID()
	e.mu.Lock()
	e.session = id
	e.mu.Unlock()
	e.sessionCtx, e.sessionCancel = context.WithCancel(e.runCtx)
	e.cfg.Metrics.SetSessionActive(true)
	e.log.Info("Session started", "session", id)
}

func (e *Engine) closeSession() {
	if e.sessionCancel == nil {
		return
	}
	e.sessionCancel()
	e.sessionCancel = nil
	e.cfg.Metrics.SetSessionActive(false)
	e.log.Info("Session ended", "session", e.session)
}

func (e *Engine) exec(eff dialog.Effect) {
	switch eff := eff.(type) {
	case dialog.Speak:
		e.speak(eff)
	case dialog.Silence:
		if e.speakCancel != nil {
			e.speakCancel()
		}
	case dialog.Recognize:
		e.recognize(eff.Epoch)
	case dialog.StopRecognizing:
		if e.listenCancel != nil {
			e.listenCancel()
			e.listenCancel = nil
		}
	case dialog.Process:
		// Only the newest cycle matters; a job still waiting in the slot
		// is already stale.
		select {
		case <-e.jobs:
		default:
		}
		e.jobs <- job{Process: eff, ctx: e.sessionCtx, session: e.session}
	case dialog.Reset:
		e.mem.Reset()
	case dialog.Commit:
		e.doneMu.Lock()
		f := e.last
		e.last = finished{}
		e.doneMu.Unlock()
		if f.epoch == eff.Epoch && f.cycle == eff.Cycle {
			e.handler.Commit(f.resp)
		}
	}
}

// speak plays text after any earlier playback has wound down, so two
// utterances never share the output device.
func (e *Engine) speak(s dialog.Speak) {
	if e.speakCancel != nil {
		e.speakCancel()
	}

	parent := e.sessionCtx
	if s.Purpose == dialog.PurposeFarewell || parent == nil {
		parent = e.runCtx
	}
	ctx, cancel := context.WithCancel(parent)
	e.speakCancel = cancel

	prev, done := e.speechDone, make(chan struct{})
	e.speechDone = done

	e.record(e.session, transcript.RoleAssistant, s.Text)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(done)
		defer cancel()
		if prev != nil {
			<-prev
		}

		var err error
		if e.cfg.Speaker != nil && ctx.Err() == nil {
			err = e.cfg.Speaker.Speak(ctx, s.Text)
		}
		if err != nil && ctx.Err() == nil {
			e.log.Warn("Speech failed", "err", err)
		}
		e.send(dialog.PlaybackEnded{Epoch: s.Epoch, Cycle: s.Cycle, Err: err})
	}()
}

func (e *Engine) recognize(epoch uint64) {
	ctx, cancel := context.WithCancel(e.sessionCtx)
	e.listenCancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()

		var text string
		var err error
		if e.cfg.Recognizer == nil {
			err = errors.New("no recognizer configured")
		} else {
			text, err = e.cfg.Recognizer.Recognize(ctx)
		}
		if err != nil && ctx.Err() == nil {
			e.log.Warn("Recognition failed", "err", err)
		}
		if strings.TrimSpace(text) == "" && ctx.Err() == nil {
			e.log.Debug("Nothing recognized", "kind", service.KindRecognitionEmpty)
		}
		e.send(dialog.RecognitionEnded{Epoch: epoch, Text: text})
	}()
}

func (e *Engine) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-e.jobs:
			if e.stale(j) {
				continue
			}
			e.process(j)
		}
	}
}

func (e *Engine) stale(j job) bool {
	s := e.Status()
	return j.Epoch != s.Epoch || j.Cycle != s.Cycle || j.ctx.Err() != nil
}

func (e *Engine) process(j job) {
	start := time.Now()
	req := j.Request

	var res nlu.Result
	if req.Image != nil {
		res = nlu.Vision(req.Image)
		e.record(j.session, transcript.RoleUser, "[image]")
	} else {
		res = e.cfg.Router.Route(req.Text, req.Mode)
		e.record(j.session, transcript.RoleUser, req.Text)
	}
	e.cfg.Metrics.RecordIntent(res.Kind.String(), res.Rule)
	e.log.Info("Routed", "kind", res.Kind, "rule", res.Rule, "cycle", j.Cycle)

	resp := e.handler.Handle(j.ctx, res)
	e.cfg.Metrics.RecordHandled(res.Kind.String(), time.Since(start))
	if resp.Err != nil && j.ctx.Err() == nil {
		e.log.Warn("Handler recovered from failure", "kind", res.Kind, "err", resp.Err)
	}

	e.doneMu.Lock()
	e.last = finished{epoch: j.Epoch, cycle: j.Cycle, resp: resp}
	e.doneMu.Unlock()

	e.send(dialog.HandlerDone{Epoch: j.Epoch, Cycle: j.Cycle, Text: resp.Text, Note: resp.Note})
}

func (e *Engine) record(session string, role transcript.Role, text string) {
	if e.cfg.Transcript == nil || session == "" || text == "" {
		return
	}
	msg := transcript.Message{Session: session, Role: role, Text: text, At: time.Now()}
	if err := e.cfg.Transcript.Append(e.runCtx, msg); err != nil {
		e.log.Warn("Transcript append failed", "err", err)
	}
}
