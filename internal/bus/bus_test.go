package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/dialog"
	"jarvis/internal/ipc"
)

// hub hands the server side of the single connection to the test.
func hub(t *testing.T) (string, <-chan *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- c
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), conns
}

func readMsg(t *testing.T, c *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m Message
	require.NoError(t, c.ReadJSON(&m))
	return m
}

func TestShard(t *testing.T) {
	url, conns := hub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := Dial(ctx, url)
	require.NoError(t, err)
	server := <-conns
	defer server.Close()

	got := make(chan ipc.ControlMessage, 4)
	shard := NewShard("jarvis", client, func(_ context.Context, msg ipc.ControlMessage) ipc.Reply {
		got <- msg
		if msg.Cmd == "dance" {
			return ipc.Reply{Error: "unknown command"}
		}
		return ipc.Reply{OK: true}
	}, nil)

	done := make(chan error, 1)
	go func() { done <- shard.Run(ctx) }()

	// not for us
	require.NoError(t, server.WriteJSON(Message{From: "ui", To: "other", Kind: "say", Content: "hi"}))
	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, server.WriteJSON(Message{From: "ui", To: "jarvis", Kind: "say", Content: "tell me a joke"}))

	select {
	case msg := <-got:
		assert.Equal(t, ipc.ControlMessage{Cmd: "say", Arg: "tell me a joke"}, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("command not dispatched")
	}

	reply := readMsg(t, server)
	assert.Equal(t, KindReply, reply.Kind)
	assert.Equal(t, "ui", reply.To)
	var r ipc.Reply
	require.NoError(t, json.Unmarshal([]byte(reply.Content), &r))
	assert.True(t, r.OK)

	require.NoError(t, server.WriteJSON(Message{From: "ui", To: "jarvis", Kind: "dance"}))
	<-got
	reply = readMsg(t, server)
	assert.Equal(t, KindError, reply.Kind)
	assert.Equal(t, "unknown command", reply.Content)

	snap := dialog.Initial()
	snap.State = dialog.Responding
	snap.Display.Response = "Why did the scarecrow win an award?"
	shard.OnChange(snap)

	resp := readMsg(t, server)
	assert.Equal(t, Message{From: "jarvis", To: "ui", Kind: KindResponse, Content: "Why did the scarecrow win an award?"}, resp)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shard did not stop")
	}
}

func TestOnChangeWithoutPeerIsQuiet(t *testing.T) {
	url, conns := hub(t)
	client, err := Dial(context.Background(), url)
	require.NoError(t, err)
	server := <-conns
	defer server.Close()
	defer client.Close()

	shard := NewShard("jarvis", client, nil, nil)
	snap := dialog.Initial()
	snap.State = dialog.Responding
	snap.Display.Response = "hello"
	shard.OnChange(snap)

	require.NoError(t, server.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = server.ReadMessage()
	assert.Error(t, err)
}
