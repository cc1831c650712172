package audio

import (
	"context"
	"fmt"

	"jarvis/pkg/audioconv"
)

// MaxFileSeconds caps how much of an audio file is transcribed.
const MaxFileSeconds = 120

// FileRecognizer transcribes recorded audio files (wav, mp3, ogg).
type FileRecognizer struct {
	Transcriber Transcriber
}

func (f *FileRecognizer) TranscribeFile(ctx context.Context, path string) (string, error) {
	pcm, err := audioconv.DecodeFile(path, audioconv.Options{MaxSamples: MaxFileSeconds * audioconv.SampleRate})
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	if len(pcm) == 0 {
		return "", nil
	}
	text, err := f.Transcriber.Transcribe(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return CleanTranscript(text), nil
}
