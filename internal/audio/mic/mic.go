// Package mic captures one utterance from the default input device.
package mic

import (
	"context"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRate = 16000
	frameSize  = 320 // 20ms
)

type Options struct {
	SilenceRMS      float64       // frames below this level count as silence
	TrailingSilence time.Duration // silence after speech that ends the take
	LeadTimeout     time.Duration // give up if nobody starts talking
	MaxLength       time.Duration
}

func DefaultOptions() Options {
	return Options{
		SilenceRMS:      0.015,
		TrailingSilence: 600 * time.Millisecond,
		LeadTimeout:     5 * time.Second,
		MaxLength:       10 * time.Second,
	}
}

type Recorder struct {
	opt Options
}

func NewRecorder(opt Options) *Recorder {
	return &Recorder{opt: opt}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Record returns the samples of one utterance, trimmed of leading silence.
// It stops after trailing silence, at MaxLength, or when ctx is done. No
// speech before LeadTimeout yields an empty slice.
func (r *Recorder) Record(ctx context.Context) ([]float32, error) {
	buf := make([]float32, frameSize)
	out := make([]float32, 0, SampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	const frame = 20 * time.Millisecond
	var (
		speaking bool
		silence  time.Duration
		elapsed  time.Duration
	)

	for elapsed < r.opt.MaxLength {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		elapsed += frame

		if frameRMS(buf) > r.opt.SilenceRMS {
			speaking = true
			silence = 0
			out = append(out, buf...)
			continue
		}
		if !speaking {
			if r.opt.LeadTimeout > 0 && elapsed >= r.opt.LeadTimeout {
				return nil, nil
			}
			continue
		}
		silence += frame
		if silence >= r.opt.TrailingSilence {
			break
		}
		out = append(out, buf...)
	}

	return out, nil
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
