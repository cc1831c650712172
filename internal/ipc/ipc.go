// Package ipc is the local control socket of the daemon. Each connection
// carries one JSON ControlMessage and gets one JSON Reply back.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"
)

const DefaultSocketPath = "/tmp/jarvis.sock"

type ControlMessage struct {
	Cmd  string `json:"cmd"`
	Arg  string `json:"arg,omitempty"`
	Data []byte `json:"data,omitempty"`
}

type Reply struct {
	OK         bool            `json:"ok"`
	Error      string          `json:"error,omitempty"`
	Status     *Status         `json:"status,omitempty"`
	History    json.RawMessage `json:"history,omitempty"`
	Transcript json.RawMessage `json:"transcript,omitempty"`
}

type HandlerFunc func(ctx context.Context, msg ControlMessage) Reply

type Server struct {
	path    string
	ln      net.Listener
	handler HandlerFunc
	log     *log.Logger
}

// Listen binds the socket, replacing a stale one left by a previous run.
func Listen(path string, handler HandlerFunc, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}
	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &Server{path: path, ln: ln, handler: handler, log: logger}, nil
}

// Serve accepts connections until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()
	defer os.Remove(s.path)

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("Accept failed", "err", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(30 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		s.log.Warn("Bad control message", "err", err)
		_ = json.NewEncoder(conn).Encode(Reply{Error: "malformed message"})
		return
	}

	s.log.Debug("Control message", "cmd", msg.Cmd)
	reply := s.handler(ctx, msg)
	if err := json.NewEncoder(conn).Encode(reply); err != nil {
		s.log.Warn("Reply failed", "cmd", msg.Cmd, "err", err)
	}
}

func Send(ctx context.Context, path string, msg ControlMessage) (Reply, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return Reply{}, fmt.Errorf("send: %w", err)
	}
	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("read reply: %w", err)
	}
	return reply, nil
}
