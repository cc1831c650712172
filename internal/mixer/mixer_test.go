package mixer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sinkInputs = `Sink Input #42
	Driver: protocol-native.c
	Volume: front-left: 65536 / 100% / 0.00 dB,   front-right: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "Firefox"
Sink Input #43
	Volume: front-left: 52429 /  80% / -5.81 dB
	Properties:
		application.name = "jarvis"
Sink Input #bogus
	Volume: 10%
`

func TestParseSinkInputs(t *testing.T) {
	got := ParseSinkInputs(sinkInputs)
	assert.Equal(t, []Stream{
		{ID: 42, Volume: 100, AppName: "Firefox"},
		{ID: 43, Volume: 80, AppName: "jarvis"},
	}, got)

	assert.Empty(t, ParseSinkInputs(""))
}

type fakeBackend struct {
	mu      sync.Mutex
	streams []Stream
	sets    map[int][]int
	err     error
}

func (f *fakeBackend) Streams(context.Context) ([]Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Stream(nil), f.streams...), f.err
}

func (f *fakeBackend) SetVolume(_ context.Context, id, percent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sets == nil {
		f.sets = map[int][]int{}
	}
	f.sets[id] = append(f.sets[id], percent)
	for i := range f.streams {
		if f.streams[i].ID == id {
			f.streams[i].Volume = percent
		}
	}
	return nil
}

func TestDuckAndRestore(t *testing.T) {
	b := &fakeBackend{streams: []Stream{
		{ID: 1, Volume: 100, AppName: "Firefox"},
		{ID: 2, Volume: 80, AppName: "jarvis"},
		{ID: 3, Volume: 20, AppName: "mpv"},
	}}
	d := NewDucker(b, []string{"jarvis"}, 15)

	require.NoError(t, d.Duck(context.Background(), 0.3, 0))
	assert.Equal(t, []int{30}, b.sets[1])
	assert.Equal(t, []int{15}, b.sets[3])
	assert.NotContains(t, b.sets, 2)

	// Second duck is a no-op.
	require.NoError(t, d.Duck(context.Background(), 0.3, 0))
	assert.Len(t, b.sets[1], 1)

	require.NoError(t, d.Restore(context.Background(), 0))
	assert.Equal(t, []int{30, 100}, b.sets[1])
	assert.Equal(t, []int{15, 20}, b.sets[3])
}

func TestFadeSteps(t *testing.T) {
	b := &fakeBackend{streams: []Stream{{ID: 1, Volume: 100, AppName: "x"}}}
	d := NewDucker(b, nil, 0)

	require.NoError(t, d.Duck(context.Background(), 0, 30_000_000))
	assert.Equal(t, []int{67, 33, 0}, b.sets[1])
}

type speakFunc func(ctx context.Context, text string) error

func (f speakFunc) Speak(ctx context.Context, text string) error { return f(ctx, text) }

func TestDuckingSpeaker(t *testing.T) {
	b := &fakeBackend{streams: []Stream{{ID: 1, Volume: 100, AppName: "Firefox"}}}
	var during int
	s := &DuckingSpeaker{
		Speaker: speakFunc(func(context.Context, string) error {
			st, _ := b.Streams(context.Background())
			during = st[0].Volume
			return nil
		}),
		Ducker: NewDucker(b, nil, 0),
		Factor: 0.5,
	}

	require.NoError(t, s.Speak(context.Background(), "hello"))
	assert.Equal(t, 50, during)
	st, _ := b.Streams(context.Background())
	assert.Equal(t, 100, st[0].Volume)
}

func TestDuckingSpeakerIgnoresMixerFailure(t *testing.T) {
	b := &fakeBackend{err: errors.New("no pulseaudio")}
	spoken := false
	s := &DuckingSpeaker{
		Speaker: speakFunc(func(context.Context, string) error { spoken = true; return nil }),
		Ducker:  NewDucker(b, nil, 0),
		Factor:  0.5,
	}

	require.NoError(t, s.Speak(context.Background(), "hello"))
	assert.True(t, spoken)
}
