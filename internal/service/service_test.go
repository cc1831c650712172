package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryFunc func(ctx context.Context, prompt string) (string, error)

func (f queryFunc) Ask(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

type visionFunc func(ctx context.Context, image []byte) ([]Prediction, error)

func (f visionFunc) Classify(ctx context.Context, image []byte) ([]Prediction, error) {
	return f(ctx, image)
}

type speakFunc func(ctx context.Context, text string) error

func (f speakFunc) Speak(ctx context.Context, text string) error { return f(ctx, text) }

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(nil))
	assert.Equal(t, KindServiceUnavailable, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnsupportedAction, KindOf(fmt.Errorf("dial: %w", Unsupported("call", nil))))
	assert.Equal(t, KindInputInvalid, KindOf(Invalid("image", errors.New("text/plain"))))
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("open: %w", Unsupported("open", errors.New("no opener")))

	assert.ErrorIs(t, err, ErrUnsupported)
	assert.NotErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, "open [unsupported_action]: no opener", errors.Unwrap(err).Error())
}

func TestGuardQuery_NormalizesFailure(t *testing.T) {
	var failures []string
	q := GuardQuery("gemini", queryFunc(func(context.Context, string) (string, error) {
		return "", errors.New("503")
	}), Options{OnFailure: func(s string, k Kind) { failures = append(failures, s+":"+k.String()) }})

	_, err := q.Ask(context.Background(), "hi")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, []string{"gemini:service_unavailable"}, failures)
}

func TestGuardQuery_SingleAttempt(t *testing.T) {
	calls := 0
	q := GuardQuery("openai", queryFunc(func(context.Context, string) (string, error) {
		calls++
		return "", errors.New("timeout")
	}), Options{})

	_, _ = q.Ask(context.Background(), "hi")
	assert.Equal(t, 1, calls)
}

func TestGuardQuery_EmptyAnswerFails(t *testing.T) {
	q := GuardQuery("openai", queryFunc(func(context.Context, string) (string, error) {
		return "   ", nil
	}), Options{})

	_, err := q.Ask(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestGuardQuery_RecoversPanic(t *testing.T) {
	q := GuardQuery("openai", queryFunc(func(context.Context, string) (string, error) {
		panic("nil client")
	}), Options{})

	_, err := q.Ask(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestGuardQuery_AppliesTimeout(t *testing.T) {
	q := GuardQuery("slow", queryFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), Options{Timeout: 10 * time.Millisecond})

	_, err := q.Ask(context.Background(), "hi")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestGuardQuery_TrimsAnswer(t *testing.T) {
	q := GuardQuery("openai", queryFunc(func(context.Context, string) (string, error) {
		return "  Paris.\n", nil
	}), Options{})

	got, err := q.Ask(context.Background(), "capital of France")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", got)
}

func TestGuardVision_EmptyIsFailure(t *testing.T) {
	v := GuardVision("hf", visionFunc(func(context.Context, []byte) ([]Prediction, error) {
		return nil, nil
	}), Options{})

	_, err := v.Classify(context.Background(), []byte{1})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestSpeechChain_FallsBack(t *testing.T) {
	var spoken []string
	chain := NewSpeechChain(Options{},
		NamedSpeaker{Name: "elevenlabs", Speaker: speakFunc(func(context.Context, string) error {
			return errors.New("quota")
		})},
		NamedSpeaker{Name: "espeak", Speaker: speakFunc(func(_ context.Context, text string) error {
			spoken = append(spoken, text)
			return nil
		})},
	)

	require.NoError(t, chain.Speak(context.Background(), "hello sir"))
	assert.Equal(t, []string{"hello sir"}, spoken)
}

func TestSpeechChain_AllFail(t *testing.T) {
	chain := NewSpeechChain(Options{},
		NamedSpeaker{Name: "a", Speaker: speakFunc(func(context.Context, string) error { return errors.New("a") })},
		NamedSpeaker{Name: "b", Speaker: speakFunc(func(context.Context, string) error { return errors.New("b") })},
	)

	err := chain.Speak(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestSpeechChain_CancelStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	second := false
	chain := NewSpeechChain(Options{},
		NamedSpeaker{Name: "a", Speaker: speakFunc(func(context.Context, string) error {
			cancel()
			return context.Canceled
		})},
		NamedSpeaker{Name: "b", Speaker: speakFunc(func(context.Context, string) error {
			second = true
			return nil
		})},
	)

	err := chain.Speak(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, second)
}
