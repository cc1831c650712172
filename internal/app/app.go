// Package app assembles the engine and its backends from a Config and runs
// the long-lived servers around it.
package app

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"jarvis/internal/config"
	"jarvis/internal/device"
	"jarvis/internal/dialog"
	"jarvis/internal/engine"
	"jarvis/internal/ipc"
	"jarvis/internal/jokes"
	"jarvis/internal/lines"
	"jarvis/internal/metrics"
	"jarvis/internal/nlu"
	"jarvis/internal/proxy"
	"jarvis/internal/query"
	"jarvis/internal/service"
	"jarvis/internal/transcript"
	"jarvis/internal/vision"
	"jarvis/pkg/protocol"
)

// Extras are the parts only some binaries have.
type Extras struct {
	Speaker    service.Speaker
	Recognizer engine.Recognizer
	OnChange   []func(dialog.Snapshot)
}

type App struct {
	Config  config.Config
	Engine  *engine.Engine
	Metrics *metrics.Metrics
	HTTP    *http.Client
	Guard   service.Options

	log     *log.Logger
	bus     *protocol.Protocol
	closers []func() error
}

// New builds the outbound HTTP client, metrics and the failure guard shared
// by every backend.
func New(cfg config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	httpClient, err := proxy.NewClient(cfg.Proxy, 0)
	if err != nil {
		return nil, err
	}

	m := metrics.New("jarvis")
	return &App{
		Config:  cfg,
		Metrics: m,
		HTTP:    httpClient,
		Guard: service.Options{
			Timeout: cfg.Timeout,
			OnFailure: func(svc string, kind service.Kind) {
				m.RecordFailure(svc, kind.String())
			},
			Logger: logger,
		},
		log: logger,
	}, nil
}

// Build creates the engine and every backend it talks to.
func (a *App) Build(ctx context.Context, x Extras) error {
	cfg := a.Config
	persona := lines.Persona{Name: cfg.Name, Creator: cfg.Creator}

	q, err := query.Open(ctx, query.Settings{
		Backend: cfg.Backend,
		Model:   cfg.Model,
		APIKey:  cfg.QueryKey(),
		BaseURL: cfg.BaseURL,
		HTTP:    a.HTTP,
	})
	if err != nil {
		return fmt.Errorf("query backend: %w", err)
	}
	a.log.Debug("Loaded query backend", "backend", cfg.Backend)

	var cls service.Classifier
	if cfg.HFToken != "" {
		cls = service.GuardVision("huggingface", vision.NewHuggingFace(cfg.HFToken, "", a.HTTP), a.Guard)
	} else {
		a.log.Warn("HF_API_TOKEN not set, image analysis disabled")
	}

	store, err := a.transcript()
	if err != nil {
		return err
	}

	dev, err := a.device(ctx)
	if err != nil {
		return err
	}

	a.Engine = engine.New(engine.Config{
		Persona:    persona,
		Router:     nlu.NewRouter(persona.Name, nil),
		Jokes:      jokes.New(&http.Client{Transport: a.HTTP.Transport, Timeout: 5 * time.Second}, nil, a.log),
		Query:      service.GuardQuery(cfg.Backend, q, a.Guard),
		Vision:     cls,
		Device:     dev,
		Speaker:    x.Speaker,
		Recognizer: x.Recognizer,
		Transcript: store,
		Metrics:    a.Metrics,
		Logger:     a.log,
		OnChange:   fanOut(x.OnChange),
	})
	return nil
}

func (a *App) transcript() (transcript.Store, error) {
	if a.Config.Transcript == "" {
		return transcript.NewMemory(), nil
	}
	db, err := transcript.OpenSQLite(a.Config.Transcript)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	a.log.Debug("Opened transcript", "path", a.Config.Transcript)
	return db, nil
}

func (a *App) device(ctx context.Context) (*device.Device, error) {
	desktop := device.NewDesktop(a.log)
	desktop.Dialing = a.Config.Dialing
	dev := &device.Device{Desktop: desktop}

	if a.Config.BusURL == "" {
		return dev, nil
	}
	ptcl, err := protocol.Dial(ctx, protocol.Config{
		Shard:   a.Config.BusShard,
		URL:     a.Config.BusURL,
		Reconn:  time.Second,
		Timeout: 3 * time.Second,
		Logger:  a.log,
		EmitOut: func(m *protocol.Message) {
			a.log.Info("Bus message", "msg", m.String())
		},
	})
	if err != nil {
		return nil, err
	}
	a.bus = ptcl
	dev.Bus = device.NewBus(ptcl, nil, a.log)
	a.log.Info("Connected to device bus", "url", a.Config.BusURL)
	return dev, nil
}

func fanOut(fns []func(dialog.Snapshot)) func(dialog.Snapshot) {
	if len(fns) == 0 {
		return nil
	}
	return func(s dialog.Snapshot) {
		for _, fn := range fns {
			fn(s)
		}
	}
}

// Run drives the engine plus the optional control socket, metrics endpoint
// and device bus until ctx is done or one of them fails.
func (a *App) Run(ctx context.Context, ctl ipc.HandlerFunc) error {
	var srv *ipc.Server
	if ctl != nil {
		var err error
		if srv, err = ipc.Listen(a.Config.Socket, ctl, a.log); err != nil {
			return err
		}
		a.log.Info("Control socket ready", "path", a.Config.Socket)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.Engine.Run(ctx) })

	if srv != nil {
		g.Go(func() error { return srv.Serve(ctx) })
	}

	if a.bus != nil {
		g.Go(func() error { return a.bus.Run(ctx) })
	}

	if a.Config.Metrics != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.Metrics.Handler())
		hs := &http.Server{Addr: a.Config.Metrics, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			a.log.Info("Serving metrics", "addr", a.Config.Metrics)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return hs.Shutdown(sctx)
		})
	}

	return g.Wait()
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
