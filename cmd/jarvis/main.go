package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "log/slog"

	cli "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"jarvis/internal/app"
	"jarvis/internal/bus"
	"jarvis/internal/config"
	"jarvis/internal/dialog"
	"jarvis/internal/ipc"
)

func main() {
	cfg, err := config.Parse("jarvis", os.Args[1:])
	if errors.Is(err, cli.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log.SetDefault(config.NewLogger(os.Stdout, cfg.Level()))
	log.Info("Starting Jarvis shard")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Shard failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	client, err := bus.Dial(ctx, cfg.HubURL)
	if err != nil {
		return fmt.Errorf("connect to bus: %w", err)
	}

	a, err := app.New(cfg, log.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	// The shard has no audio; the engine settles playback immediately and
	// responses travel back over the hub.
	shard := bus.NewShard(strings.ToLower(cfg.Name), client, nil, log.Default())
	if err := a.Build(ctx, app.Extras{OnChange: []func(dialog.Snapshot){shard.OnChange}}); err != nil {
		return err
	}
	shard.SetHandler(ipc.Dispatch(a.Engine, nil))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(ctx, nil) })
	g.Go(func() error { return shard.Run(ctx) })
	return g.Wait()
}
