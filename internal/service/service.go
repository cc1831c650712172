package service

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"
)

type Querier interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type Classifier interface {
	Classify(ctx context.Context, image []byte) ([]Prediction, error)
}

// Speaker plays text aloud and returns once playback has finished or ctx is
// cancelled.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// FailureHook observes every normalized failure; metrics plug in here.
type FailureHook func(service string, kind Kind)

type Options struct {
	Timeout   time.Duration
	OnFailure FailureHook
	Logger    *log.Logger
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

func (o Options) fail(service string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		err = Unavailable(service, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if o.OnFailure != nil {
		o.OnFailure(service, KindOf(err))
	}
	o.logger().Warn("Service call failed", "service", service, "err", err)
	return err
}

func (o Options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

// GuardQuery makes a single attempt per prompt; an empty answer counts as a
// failure.
func GuardQuery(name string, q Querier, opt Options) Querier {
	return &guardedQuery{name: name, q: q, opt: opt}
}

type guardedQuery struct {
	name string
	q    Querier
	opt  Options
}

func (g *guardedQuery) Ask(ctx context.Context, prompt string) (answer string, err error) {
	ctx, cancel := g.opt.withTimeout(ctx)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = g.opt.fail(g.name, fmt.Errorf("panic: %v", r))
		}
	}()

	answer, err = g.q.Ask(ctx, prompt)
	if err != nil {
		return "", g.opt.fail(g.name, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", g.opt.fail(g.name, errors.New("empty answer"))
	}
	return answer, nil
}

func GuardVision(name string, c Classifier, opt Options) Classifier {
	return &guardedVision{name: name, c: c, opt: opt}
}

type guardedVision struct {
	name string
	c    Classifier
	opt  Options
}

func (g *guardedVision) Classify(ctx context.Context, image []byte) (preds []Prediction, err error) {
	ctx, cancel := g.opt.withTimeout(ctx)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = g.opt.fail(g.name, fmt.Errorf("panic: %v", r))
		}
	}()

	preds, err = g.c.Classify(ctx, image)
	if err != nil {
		return nil, g.opt.fail(g.name, err)
	}
	if len(preds) == 0 {
		return nil, g.opt.fail(g.name, errors.New("no predictions"))
	}
	return preds, nil
}

type NamedSpeaker struct {
	Name string
	Speaker
}

// SpeechChain tries each speaker in order until one plays the text. A
// cancelled context stops the chain without trying the rest.
type SpeechChain struct {
	speakers []NamedSpeaker
	opt      Options
}

func NewSpeechChain(opt Options, speakers ...NamedSpeaker) *SpeechChain {
	return &SpeechChain{speakers: speakers, opt: opt}
}

func (c *SpeechChain) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(c.speakers) == 0 {
		return c.opt.fail("speech", errors.New("no speakers configured"))
	}

	var errs []error
	for _, s := range c.speakers {
		err := s.Speak(ctx, text)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errs = append(errs, c.opt.fail(s.Name, err))
	}
	return Unavailable("speech", errors.Join(errs...))
}
