// Package transcript records what was said in each session.
package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Session string    `json:"session"`
	Role    Role      `json:"role"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

type Store interface {
	Append(ctx context.Context, m Message) error
	Session(ctx context.Context, id string) ([]Message, error)
}

func NewSessionID() string {
	return uuid.NewString()
}

// Memory keeps transcripts for the life of the process.
type Memory struct {
	mu       sync.Mutex
	sessions map[string][]Message
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string][]Message)}
}

func (m *Memory) Append(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[msg.Session] = append(m.sessions[msg.Session], msg)
	return nil
}

func (m *Memory) Session(_ context.Context, id string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sessions[id]...), nil
}
