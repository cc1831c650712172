package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"jarvis/internal/dialog"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) PlayFile(_ context.Context, path string) error {
	r.add("play " + path)
	return nil
}

func newNotifier(r *recorder) *Notifier {
	n := New(r, "beep.mp3", "Jarvis", nil)
	n.Exec = func(_ context.Context, name string, args ...string) error {
		r.add(name + " " + args[len(args)-1])
		return nil
	}
	return n
}

func TestOnChange_BeepsWhenListeningStarts(t *testing.T) {
	r := &recorder{}
	n := newNotifier(r)

	n.OnChange(dialog.Snapshot{Active: true, Hearing: true, State: dialog.Listening})
	assert.Eventually(t, func() bool { return len(r.list()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"play beep.mp3"}, r.list())

	// Still hearing: no second beep.
	n.OnChange(dialog.Snapshot{Active: true, Hearing: true, State: dialog.Processing})
	assert.Never(t, func() bool { return len(r.list()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestOnChange_NotifiesResponse(t *testing.T) {
	r := &recorder{}
	n := newNotifier(r)

	n.OnChange(dialog.Snapshot{Active: true, State: dialog.Processing})
	n.OnChange(dialog.Snapshot{Active: true, State: dialog.Responding, Display: dialog.Display{Response: "Done, sir."}})

	assert.Eventually(t, func() bool { return len(r.list()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"notify-send Done, sir."}, r.list())
}

func TestBeepWithoutPlayer(t *testing.T) {
	n := New(nil, "", "Jarvis", nil)
	assert.NoError(t, n.Beep(context.Background()))
}

func TestPopupsDisabled(t *testing.T) {
	r := &recorder{}
	n := New(r, "beep.mp3", "Jarvis", nil)
	n.Exec = nil

	assert.NoError(t, n.Desktop(context.Background(), "hello"))
	n.OnChange(dialog.Snapshot{Active: true, State: dialog.Responding, Display: dialog.Display{Response: "Done, sir."}})
	assert.Never(t, func() bool { return len(r.list()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}
