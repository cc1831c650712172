package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "log/slog"

	cli "github.com/spf13/pflag"

	"jarvis/internal/app"
	"jarvis/internal/audio"
	"jarvis/internal/audio/mic"
	"jarvis/internal/config"
	"jarvis/internal/dialog"
	"jarvis/internal/ipc"
	"jarvis/internal/mixer"
	"jarvis/internal/notify"
	"jarvis/internal/service"
	"jarvis/internal/speaker"
	"jarvis/internal/tts"
	"jarvis/internal/tts/espeak"
	"jarvis/pkg/stt"
)

func main() {
	cfg, err := config.Parse("jarvis-daemon", os.Args[1:])
	if errors.Is(err, cli.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log.SetDefault(config.NewLogger(os.Stdout, cfg.Level()))
	log.Info("Booting up")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Daemon failed", "err", err)
		os.Exit(1)
	}
	log.Info("Shut down")
}

func run(ctx context.Context, cfg config.Config) error {
	a, err := app.New(cfg, log.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	rec := mic.NewRecorder(mic.DefaultOptions())
	if err := rec.Init(); err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	defer rec.Close()
	log.Debug("Loaded recorder")

	whisper, err := stt.NewTranscriber(cfg.WhisperModel, stt.Options{
		Language: cfg.Language,
		Threads:  cfg.Threads,
	})
	if err != nil {
		return fmt.Errorf("init whisper: %w", err)
	}
	defer whisper.Close()
	log.Debug("Loaded whisper")

	player := speaker.New(0)
	notifier := notify.New(player, cfg.BeepPath, cfg.Name, log.Default())
	if !cfg.Notify {
		notifier.Exec = nil
	}

	err = a.Build(ctx, app.Extras{
		Speaker: speech(cfg, a, player),
		Recognizer: &audio.Recognizer{
			Capture:     rec,
			Transcriber: whisper,
			Logger:      log.Default(),
		},
		OnChange: []func(dialog.Snapshot){notifier.OnChange, logChange},
	})
	if err != nil {
		return err
	}

	log.Info("Boot up - successful")
	return a.Run(ctx, ipc.Dispatch(a.Engine, &audio.FileRecognizer{Transcriber: whisper}))
}

// speech chains ElevenLabs in front of espeak and ducks other audio around
// each utterance.
func speech(cfg config.Config, a *app.App, player *speaker.Player) service.Speaker {
	var chain []service.NamedSpeaker

	if cfg.ElevenLabsKey != "" {
		el := tts.NewElevenLabs(cfg.ElevenLabsKey, player, a.HTTP)
		if cfg.Voice != "" {
			el.Voice = cfg.Voice
		}
		chain = append(chain, service.NamedSpeaker{Name: "elevenlabs", Speaker: el})
	}

	if es, err := espeak.New(cfg.EspeakVoice); err != nil {
		log.Warn("espeak unavailable", "err", err)
	} else {
		chain = append(chain, service.NamedSpeaker{Name: "espeak", Speaker: es})
	}

	var s service.Speaker = service.NewSpeechChain(a.Guard, chain...)
	if cfg.Duck {
		s = &mixer.DuckingSpeaker{
			Speaker: s,
			Ducker:  mixer.NewDucker(nil, []string{"jarvis-daemon", "espeak-ng"}, 10),
			Factor:  0.3,
			Fade:    250 * time.Millisecond,
			Logger:  log.Default(),
		}
	}
	return s
}

func logChange(s dialog.Snapshot) {
	log.Debug("Dialogue", "state", s.State, "active", s.Active, "status", s.Display.Status)
}
