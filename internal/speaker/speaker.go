// Package speaker owns the audio output device. Everything the assistant
// plays (speech and earcons) goes through one Player so playback can be cut
// short from any goroutine.
package speaker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

const DefaultRate beep.SampleRate = 44100

type Player struct {
	rate    beep.SampleRate
	once    sync.Once
	initErr error
}

func New(rate beep.SampleRate) *Player {
	if rate == 0 {
		rate = DefaultRate
	}
	return &Player{rate: rate}
}

func (p *Player) init() error {
	p.once.Do(func() {
		p.initErr = speaker.Init(p.rate, p.rate.N(time.Second/10))
	})
	return p.initErr
}

// PlayMP3 decodes and plays data, returning when playback finishes. Cancelling
// ctx stops the sound immediately.
func (p *Player) PlayMP3(ctx context.Context, data []byte) error {
	return p.play(ctx, io.NopCloser(bytes.NewReader(data)))
}

func (p *Player) PlayFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	return p.play(ctx, f)
}

func (p *Player) play(ctx context.Context, rc io.ReadCloser) error {
	streamer, format, err := mp3.Decode(rc)
	if err != nil {
		_ = rc.Close()
		return fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()

	if err := p.init(); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	var s beep.Streamer = streamer
	if format.SampleRate != p.rate {
		s = beep.Resample(4, format.SampleRate, p.rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
