package app

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/fx"

	"logwatch/internal/app/bus"
	"logwatch/internal/app/manager"
	"logwatch/internal/app/replay"
	"logwatch/internal/app/service"
	"logwatch/internal/config"
	"logwatch/internal/config/logger"
)

// App wires the Action Manager, Service Manager and Broadcast Bus together
// and runs them for the lifetime of the process.
type App struct {
	cfg        *config.Config
	log        logger.Logger
	shutdowner fx.Shutdowner

	manager  *manager.Manager
	listener *bus.Listener

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewApp builds the server's component graph. Action Manager and Service
// Manager are mutually referential, so they are wired by hand here rather
// than through fx's provide graph.
func NewApp(cfg *config.Config, shutdowner fx.Shutdowner, log logger.Logger) (*App, error) {
	hub := bus.NewHub()
	replayBuf := replay.New(cfg.Server.LateJoinersBufferSize)

	mgr, err := manager.New(cfg, nil, log)
	if err != nil {
		return nil, fmt.Errorf("building action manager: %w", err)
	}

	svc := service.NewManager(hub, replayBuf, mgr, log)
	mgr.SetBroadcaster(svc)

	addr := fmt.Sprintf("%s:%d", cfg.Server.SocketAddr, cfg.Server.SocketPort)
	listener := bus.NewListener(addr, hub, svc, log)

	return &App{
		cfg:        cfg,
		log:        log,
		shutdowner: shutdowner,
		manager:    mgr,
		listener:   listener,
	}, nil
}

// Run starts the bus and the action manager and blocks until either every
// action has finished (when not configured to stay active) or ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	defer cancel()

	errCh := make(chan error, 2)

	go func() { errCh <- a.listener.Run(ctx) }()
	go func() { errCh <- a.manager.Run(ctx) }()

	var allDone <-chan struct{}
	if !a.cfg.Server.StayActive {
		allDone = a.manager.Done()
	}

	select {
	case <-allDone:
		a.log.Info().Msg("all actions reached a terminal state, shutting down")
	case err := <-errCh:
		if err != nil {
			a.log.Error().Err(err).Msg("component exited with error")
			return err
		}
	case <-ctx.Done():
	}

	return nil
}

// Stop cancels the running context, if any.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}
}

// Register hooks App into the fx lifecycle: it starts the server loop on a
// background goroutine at OnStart. At OnStop it asks the Action Manager to
// stop every action, waits until all are terminal or ctx ends, then cancels
// the loop.
func Register(lifecycle fx.Lifecycle, app *App) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := app.Run(context.Background()); err != nil {
					app.log.Error().Err(err).Msg("server exited with error")
				}

				if app.shutdowner != nil {
					_ = app.shutdowner.Shutdown()
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			app.manager.StopAll()

			select {
			case <-app.manager.Done():
			case <-ctx.Done():
			}

			app.Stop()
			return nil
		},
	})
}
