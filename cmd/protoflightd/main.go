// Command protoflightd runs the protoflight runtime core as a standalone
// node: it loads configuration, wires the message bus, event module,
// telemetry producer, and task scheduler, serves /healthz, /readyz, and
// /metrics, and runs until signalled to stop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"protoflight/config"
	"protoflight/httpapi"
	"protoflight/internal/bootstrap"
	"protoflight/osal"
	"protoflight/telemetry/logging"
	"protoflight/telemetry/metrics"
	"protoflight/telemetry/tracing"
)

// mainLoopPollTicks paces the main task's tm.Running poll, matching the
// original main()'s `while (tm_running(FSW_TASK_ID_MAIN)) os_task_delay(10)`.
const mainLoopPollTicks = 10

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "protoflight.yaml", "path to the runtime config file")
	addr := flag.String("addr", ":9100", "address for the /healthz, /readyz, /metrics endpoints")
	tracingEnabled := flag.Bool("tracing", false, "enable span correlation ids on log lines")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var levelVar slog.LevelVar
	levelVar.Set(parseLevel(cfg.LogLevel))
	base := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &levelVar}))
	logger := logging.New(base)

	promProvider := metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{CardinalityLimit: 10000})

	sys := bootstrap.New(cfg, bootstrap.Deps{
		Logger:  logger,
		Metrics: promProvider,
		Tracer:  tracing.NewTracer(*tracingEnabled),
	})

	if err := sys.WireDefaultTasks(cfg.TicksPerSlot); err != nil {
		return fmt.Errorf("wire tasks: %w", err)
	}

	watcher, err := config.NewWatcher(*configPath, &levelVar)
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := watcher.Watch(); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer watcher.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sys.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sys.Stop()

	logger.InfoCtx(ctx, "protoflight runtime started", "addr", *addr, "config", *configPath)

	mux := http.NewServeMux()
	mux.Handle("/healthz", httpapi.NewHealthHandler(httpapi.HealthHandlerOptions{Source: sys.Health, IncludeProbes: true}))
	mux.Handle("/readyz", httpapi.NewReadinessHandler(httpapi.HealthHandlerOptions{Source: sys.Health}))
	mux.Handle("/metrics", httpapi.NewMetricsHandler(promProvider))

	server := &http.Server{Addr: *addr, Handler: mux}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	var serveFailure error
	for sys.Scheduler.Running(sys.MainTaskID) {
		select {
		case <-ctx.Done():
			logger.InfoCtx(context.Background(), "shutdown signal received")
			sys.Stop()
		case err := <-serveErr:
			if err != nil {
				serveFailure = err
			}
			sys.Stop()
		default:
			osal.Delay(mainLoopPollTicks)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if serveFailure != nil {
		return fmt.Errorf("http server: %w", serveFailure)
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
