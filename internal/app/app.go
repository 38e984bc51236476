package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	servernet "tactics/navgrid/internal/net"
	"tactics/navgrid/internal/net/intake"
	"tactics/navgrid/internal/net/ws"
	"tactics/navgrid/internal/scene"
	"tactics/navgrid/internal/sim"
	"tactics/navgrid/internal/telemetry"
	"tactics/navgrid/logging"
	loggingSinks "tactics/navgrid/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

// App owns a loaded scene, its simulation loop and the HTTP surface.
type App struct {
	cfg     Config
	logger  telemetry.Logger
	router  *logging.Router
	scene   *scene.Scene
	loop    *sim.Loop
	metrics *telemetry.Counters
	handler http.Handler
}

// New loads the configured scene and wires the logging router, the
// simulation loop and the HTTP handlers. Close releases the router.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	doc, err := scene.LoadFile(cfg.ScenePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load scene: %w", err)
	}

	var (
		memory *loggingSinks.MemorySink
		feed   *ws.Feed
		named  []logging.NamedSink
	)
	metrics := telemetry.NewCounters()
	for _, name := range logging.ParseSinks(strings.Join(cfg.Logging.EnabledSinks, ",")) {
		switch name {
		case logging.SinkConsole:
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsoleSink(os.Stdout, cfg.Logging.Console)})
		case logging.SinkJSON:
			file, err := os.OpenFile(cfg.Logging.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				closeSinks(named)
				return nil, fmt.Errorf("failed to open json sink: %w", err)
			}
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewJSON(file, cfg.Logging.JSON.FlushInterval)})
		case logging.SinkMemory:
			memory = loggingSinks.NewMemorySink(cfg.Logging.Memory.Capacity)
			named = append(named, logging.NamedSink{Name: name, Sink: memory})
		case logging.SinkWebsocket:
			feed = ws.NewFeed(logger, metrics)
			named = append(named, logging.NamedSink{Name: name, Sink: feed})
		default:
			logger.Printf("ignoring unknown log sink %q", name)
		}
	}

	router, err := logging.NewRouter(logging.SystemClock{}, cfg.Logging, named)
	if err != nil {
		closeSinks(named)
		return nil, fmt.Errorf("failed to construct logging router: %w", err)
	}

	ticks := sim.NewTickCounter()
	built, err := scene.Build(doc, scene.Options{
		Publisher: router,
		Metrics:   metrics,
		Tick:      ticks.Current,
	})
	if err != nil {
		router.Close(context.Background())
		return nil, fmt.Errorf("failed to build scene: %w", err)
	}

	loop, err := sim.NewEngine(built,
		sim.WithDeps(sim.Deps{
			Logger:    logger,
			Metrics:   metrics,
			Clock:     logging.SystemClock{},
			Publisher: router,
			Ticks:     ticks,
		}),
		sim.WithLoopConfig(cfg.Loop),
		sim.WithScript(built.Script()),
	)
	if err != nil {
		router.Close(context.Background())
		return nil, fmt.Errorf("failed to construct engine: %w", err)
	}

	handler := servernet.NewHTTPHandler(servernet.HTTPHandlerConfig{
		Logger:    logger,
		SceneName: built.Name,
		TickRate:  loop.Config().TickRate,
		Snapshots: loop,
		Intake: &intake.CommandContext{
			Queue: loop,
			HasActor: func(id string) bool {
				_, err := built.Actor(id)
				return err == nil
			},
			Tick: ticks.Current,
		},
		Feed:        feed,
		Recent:      memory,
		Metrics:     metrics,
		RouterStats: router.Stats,
	})

	return &App{
		cfg:     cfg,
		logger:  logger,
		router:  router,
		scene:   built,
		loop:    loop,
		metrics: metrics,
		handler: cfg.Observability.Wrap(handler),
	}, nil
}

func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) Loop() *sim.Loop {
	return a.loop
}

func (a *App) Metrics() *telemetry.Counters {
	return a.metrics
}

func (a *App) Scene() *scene.Scene {
	return a.scene
}

// Close flushes and closes every log sink, dropping feed sessions.
func (a *App) Close(ctx context.Context) error {
	return a.router.Close(ctx)
}

// Serve runs the simulation loop and the HTTP server until ctx is cancelled
// or the server fails, then shuts both down.
func (a *App) Serve(ctx context.Context) error {
	stop := make(chan struct{})
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		a.loop.Run(stop)
	}()

	srv := &http.Server{Addr: a.cfg.Addr, Handler: a.handler}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	a.logger.Printf("navsim serving scene %q on %s", a.scene.Name, srv.Addr)

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		} else {
			err = fmt.Errorf("server failed: %w", err)
		}
	}

	close(stop)
	<-loopDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = fmt.Errorf("server shutdown: %w", serr)
	}
	if cerr := a.Close(shutdownCtx); cerr != nil {
		a.logger.Printf("failed to close logging router: %v", cerr)
	}
	return err
}

// Run builds an App from cfg and serves it until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	a, err := New(cfg)
	if err != nil {
		return err
	}
	return a.Serve(ctx)
}

func closeSinks(named []logging.NamedSink) {
	for _, entry := range named {
		entry.Sink.Close(context.Background())
	}
}
