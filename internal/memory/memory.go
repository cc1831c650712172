package memory

import (
	"sync"
	"time"
)

const (
	JokeLimit    = 5
	HistoryLimit = 10
	ContextLimit = 3
)

type Entry struct {
	Topic string    `json:"topic"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Memory keeps the short-term conversation state of one session: the jokes
// told recently and a topic-tagged history used to give follow-up context.
// Both stores are bounded and evict the oldest entry first.
type Memory struct {
	mu      sync.Mutex
	jokes   []string
	history []Entry
	now     func() time.Time
}

type Option func(*Memory)

// WithClock replaces time.Now as the source of history timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

func New(opts ...Option) *Memory {
	m := &Memory{
		jokes:   make([]string, 0, JokeLimit),
		history: make([]Entry, 0, HistoryLimit),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) RecordJoke(joke string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jokes = append(m.jokes, joke)
	if over := len(m.jokes) - JokeLimit; over > 0 {
		m.jokes = append(m.jokes[:0], m.jokes[over:]...)
	}
}

func (m *Memory) WasRecentlyTold(joke string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jokes {
		if j == joke {
			return true
		}
	}
	return false
}

func (m *Memory) RecordHistory(topic, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, Entry{Topic: topic, Text: text, At: m.now()})
	if over := len(m.history) - HistoryLimit; over > 0 {
		m.history = append(m.history[:0], m.history[over:]...)
	}
}

// RecentContext returns up to ContextLimit of the latest entries recorded
// under topic, oldest first.
func (m *Memory) RecentContext(topic string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for i := len(m.history) - 1; i >= 0 && len(out) < ContextLimit; i-- {
		if m.history[i].Topic == topic {
			out = append(out, m.history[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (m *Memory) Jokes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.jokes...)
}

func (m *Memory) History() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.history...)
}

func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jokes = m.jokes[:0]
	m.history = m.history[:0]
}
