// Package notify gives feedback outside the voice channel: an earcon when
// the microphone opens and desktop notifications carrying the response.
package notify

import (
	"context"
	"fmt"
	log "log/slog"
	"os/exec"
	"sync"
	"time"

	"jarvis/internal/dialog"
)

type FilePlayer interface {
	PlayFile(ctx context.Context, path string) error
}

type Notifier struct {
	Player   FilePlayer
	BeepPath string
	Title    string
	Logger   *log.Logger

	// Exec runs an external command; replaced in tests.
	Exec func(ctx context.Context, name string, args ...string) error

	mu   sync.Mutex
	last dialog.Snapshot
}

func New(player FilePlayer, beepPath, title string, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.Default()
	}
	return &Notifier{
		Player:   player,
		BeepPath: beepPath,
		Title:    title,
		Logger:   logger,
		Exec:     run,
	}
}

func run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (n *Notifier) Beep(ctx context.Context) error {
	if n.Player == nil || n.BeepPath == "" {
		return nil
	}
	if err := n.Player.PlayFile(ctx, n.BeepPath); err != nil {
		return fmt.Errorf("beep: %w", err)
	}
	return nil
}

// Desktop shows a notification through notify-send. A nil Exec disables
// popups.
func (n *Notifier) Desktop(ctx context.Context, body string) error {
	if n.Exec == nil {
		return nil
	}
	if err := n.Exec(ctx, "notify-send", "-a", n.Title, n.Title, body); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	return nil
}

// OnChange is meant for engine.Config.OnChange. It returns immediately; the
// sound and popup run in the background.
func (n *Notifier) OnChange(s dialog.Snapshot) {
	n.mu.Lock()
	prev := n.last
	n.last = s
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

	switch {
	case s.Hearing && !prev.Hearing:
		go func() {
			defer cancel()
			if err := n.Beep(ctx); err != nil {
				n.Logger.Debug("Earcon failed", "err", err)
			}
		}()
	case n.Exec != nil && s.State == dialog.Responding && prev.State != dialog.Responding && s.Display.Response != "":
		go func() {
			defer cancel()
			if err := n.Desktop(ctx, s.Display.Response); err != nil {
				n.Logger.Debug("Notification failed", "err", err)
			}
		}()
	default:
		cancel()
	}
}
