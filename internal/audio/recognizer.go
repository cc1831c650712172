// Package audio turns microphone input into recognized utterances.
package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"regexp"
	"strings"
)

type Capture interface {
	Record(ctx context.Context) ([]float32, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

// Recognizer records one utterance and transcribes it. An empty result means
// nothing intelligible was said.
type Recognizer struct {
	Capture     Capture
	Transcriber Transcriber
	// Cue runs before recording starts, typically an earcon.
	Cue    func(ctx context.Context) error
	Logger *log.Logger
}

func (r *Recognizer) Recognize(ctx context.Context) (string, error) {
	l := r.Logger
	if l == nil {
		l = log.Default()
	}

	if r.Cue != nil {
		if err := r.Cue(ctx); err != nil {
			l.Debug("Cue failed", "err", err)
		}
	}

	pcm, err := r.Capture.Record(ctx)
	if err != nil {
		return "", fmt.Errorf("record: %w", err)
	}
	if len(pcm) == 0 {
		return "", nil
	}
	l.Debug("Captured", "samples", len(pcm))

	text, err := r.Transcriber.Transcribe(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	text = CleanTranscript(text)
	l.Info("Recognized", "text", text)
	return text, nil
}

// Whisper marks non-speech with bracketed or parenthesized tags such as
// [BLANK_AUDIO] or (music).
var annotationRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\*[^*]*\*`)

func CleanTranscript(s string) string {
	s = annotationRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}
