// Package bus connects the assistant to a websocket hub as a text-only
// shard. Hub messages are JSON envelopes; their Kind names a control command.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"jarvis/internal/dialog"
	"jarvis/internal/ipc"
)

const (
	KindResponse = "response"
	KindReply    = "reply"
	KindError    = "error"
)

var ErrMalformed = errors.New("malformed bus message")

type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
	Data    []byte `json:"data,omitempty"`
}

type Client struct {
	wmu  sync.Mutex
	conn *websocket.Conn
}

func Dial(ctx context.Context, wsURL string) (*Client, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	log.Info("Connected to bus", "url", wsURL)
	return &Client{conn: conn}, nil
}

func (c *Client) Read() (*Message, error) {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var m Message
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &m, nil
}

func (c *Client) Write(m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) Close() error { return c.conn.Close() }

// Shard answers hub messages addressed to Name by running them as control
// commands, and publishes every spoken response to whoever last spoke to it.
type Shard struct {
	name    string
	client  *Client
	handler ipc.HandlerFunc
	log     *log.Logger

	mu      sync.Mutex
	replyTo string
}

func NewShard(name string, client *Client, handler ipc.HandlerFunc, logger *log.Logger) *Shard {
	if logger == nil {
		logger = log.Default()
	}
	return &Shard{name: name, client: client, handler: handler, log: logger}
}

// SetHandler replaces the command handler; it lets the engine be built after
// the shard whose OnChange it calls.
func (s *Shard) SetHandler(h ipc.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Run reads until ctx is done. Losing the hub is an error.
func (s *Shard) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.client.Close()
	}()

	for {
		m, err := s.client.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrMalformed) {
				s.log.Warn("Dropped bus message", "err", err)
				continue
			}
			return fmt.Errorf("bus read: %w", err)
		}
		if m.To != s.name {
			continue
		}
		s.handle(ctx, m)
	}
}

func (s *Shard) handle(ctx context.Context, m *Message) {
	s.mu.Lock()
	s.replyTo = m.From
	h := s.handler
	s.mu.Unlock()

	if h == nil {
		s.log.Warn("No handler yet, dropping", "kind", m.Kind)
		return
	}
	reply := h(ctx, ipc.ControlMessage{Cmd: m.Kind, Arg: m.Content, Data: m.Data})

	out := &Message{From: s.name, To: m.From, Kind: KindReply}
	if !reply.OK {
		out.Kind = KindError
		out.Content = reply.Error
	} else {
		raw, err := json.Marshal(reply)
		if err != nil {
			s.log.Error("Failed to encode reply", "err", err)
			return
		}
		out.Content = string(raw)
	}
	if err := s.client.Write(out); err != nil {
		s.log.Warn("Failed to reply", "to", m.From, "err", err)
	}
}

// OnChange publishes the response text whenever the dialogue starts
// speaking one.
func (s *Shard) OnChange(snap dialog.Snapshot) {
	if snap.State != dialog.Responding || snap.Display.Response == "" {
		return
	}
	s.mu.Lock()
	to := s.replyTo
	s.mu.Unlock()
	if to == "" {
		return
	}

	err := s.client.Write(&Message{From: s.name, To: to, Kind: KindResponse, Content: snap.Display.Response})
	if err != nil {
		s.log.Warn("Failed to publish response", "to", to, "err", err)
	}
}
