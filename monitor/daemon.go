package monitor

import (
	"context"
	"errors"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"

	"github.com/apwatch/apwatch/telemetry"
)

// Daemon runs the scan loop and the control server as one unit with
// coordinated shutdown.
type Daemon struct {
	engine     *Engine
	server     *Server
	interval   time.Duration
	listenAddr string
	logger     *telemetry.Logger
}

// NewDaemon creates the daemon.
func NewDaemon(engine *Engine, interval time.Duration, listenAddr string, logger *telemetry.Logger) *Daemon {
	return &Daemon{
		engine:     engine,
		server:     NewServer(engine),
		interval:   interval,
		listenAddr: listenAddr,
		logger:     logger,
	}
}

// Run blocks until a stop signal arrives or an actor fails. The
// in-flight cycle completes before the loop exits.
func (d *Daemon) Run(ctx context.Context) error {
	var g run.Group

	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	loopCtx, cancelLoop := context.WithCancel(ctx)
	g.Add(func() error {
		return d.loop(loopCtx)
	}, func(error) {
		cancelLoop()
	})

	srv := &http.Server{
		Addr:              d.listenAddr,
		Handler:           d.server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Add(func() error {
		d.logger.Info().Str("addr", d.listenAddr).Msg("starting control server")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	err := g.Run()

	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		d.logger.Info().Str("signal", sigErr.Signal.String()).Msg("shutting down")
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// loop runs one cycle immediately, then one per tick. Cycle errors are
// logged and the loop keeps going; only cancellation stops it.
func (d *Daemon) loop(ctx context.Context) error {
	d.runOnce(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context) {
	if _, err := d.engine.RunCycle(ctx, time.Now()); err != nil {
		d.logger.Error().Err(err).Msg("scan cycle failed")
	}
}
