// Package assistantservice boots the activity-event pipeline service: the
// durable event log, derived memory index, rule engine, automation
// orchestrator and the HTTP API on top of them.
package assistantservice

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/atriumhq/atrium/internal/api"
	"github.com/atriumhq/atrium/internal/automation"
	"github.com/atriumhq/atrium/internal/config"
	"github.com/atriumhq/atrium/internal/memory"
	"github.com/atriumhq/atrium/internal/pipeline"
	"github.com/atriumhq/atrium/internal/platform/logger"
	"github.com/atriumhq/atrium/internal/rules"
	"github.com/atriumhq/atrium/internal/store/factory"
)

// Run starts the assistant service HTTP server and blocks until shutdown or
// error.
func Run() error {
	cfg, err := config.New()
	if err != nil {
		bootLog := logger.New("assistant-service", "info")
		bootLog.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	log := logger.New("assistant-service", cfg.LogLevel)

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Int("queue_size", cfg.QueueSize).
		Int("workers", cfg.Workers).
		Msg("Assistant service starting")

	ctx, stop := newServerContext()
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Store adapter unavailable")
		return err
	}

	index := memory.NewIndex(st.Memories(), cfg.MemoryWindowDays, log)
	engine := rules.NewEngine(st.Events(), log)
	orch := automation.NewOrchestrator(index, engine, cfg.AutomationLookbackDays, cfg.AutomationGuard, log)
	proc := pipeline.NewProcessor(index, engine, log)

	disp := pipeline.NewDispatcher(cfg.QueueSize, cfg.Workers,
		time.Duration(cfg.TaskTimeout)*time.Second, log)
	dispDone := make(chan struct{})
	go func() {
		defer close(dispDone)
		disp.Run(ctx)
	}()

	pl := pipeline.New(st.Events(), disp, proc, orch, log)

	watchdog := rules.NewWatchdog(st.Events(), engine, cfg.WatchdogWindowDays, log)
	if err := watchdog.Start(cfg.WatchdogSchedule); err != nil {
		log.Error().Err(err).Str("schedule", cfg.WatchdogSchedule).Msg("Watchdog schedule invalid")
		return err
	}
	defer watchdog.Stop()

	router := api.NewRouter(st, pl, index, log)
	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		// Accepted background work drains before exit.
		<-dispDone
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}
}

func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}
