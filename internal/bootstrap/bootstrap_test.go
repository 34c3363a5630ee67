package bootstrap

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"protoflight/config"
	"protoflight/telemetry/health"
	"protoflight/telemetry/logging"
	"protoflight/telemetry/tracing"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.TicksPerSecond = 1000
	cfg.TicksPerSlot = 1
	return &cfg
}

func TestNewWiresEveryModule(t *testing.T) {
	sys := New(testConfig(), Deps{})
	require.NotNil(t, sys.Bus)
	require.NotNil(t, sys.Event)
	require.NotNil(t, sys.Scheduler)
	require.NotNil(t, sys.Telemetry)
	require.NotNil(t, sys.Table)
	require.NotNil(t, sys.Health)
}

func TestWireDefaultTasksRegistersTelemetryCycle(t *testing.T) {
	sys := New(testConfig(), Deps{})
	require.Equal(t, 1, sys.Scheduler.NumTasks()) // the main-context monitor
	require.NoError(t, sys.WireDefaultTasks(5))
	require.Equal(t, 2, sys.Scheduler.NumTasks())
}

func TestStartAndStopRunsCleanly(t *testing.T) {
	sys := New(testConfig(), Deps{})
	require.NoError(t, sys.WireDefaultTasks(1))

	ctx := context.Background()
	require.NoError(t, sys.Start(ctx))
	defer sys.Stop()

	require.Eventually(t, func() bool {
		return sys.Scheduler.GetStatus().Cycle > 0
	}, time.Second, 5*time.Millisecond)

	snap := sys.Health.Evaluate(ctx)
	require.Equal(t, health.StatusHealthy, snap.Overall)
}

func TestStartTwiceReportsInitError(t *testing.T) {
	sys := New(testConfig(), Deps{})
	require.NoError(t, sys.WireDefaultTasks(1))

	ctx := context.Background()
	require.NoError(t, sys.Start(ctx))
	defer sys.Stop()

	err := sys.Start(ctx)
	require.Error(t, err)
}

func TestStartCorrelatesInitErrorWithSpan(t *testing.T) {
	// SPEC_FULL §11: Start opens a span around the whole init check, so the
	// WarnCtx line it logs on the second, already-started call carries a
	// trace id.
	var buf bytes.Buffer
	sys := New(testConfig(), Deps{
		Logger: logging.New(slog.New(slog.NewJSONHandler(&buf, nil))),
		Tracer: tracing.NewTracer(true),
	})
	require.NoError(t, sys.WireDefaultTasks(1))

	ctx := context.Background()
	require.NoError(t, sys.Start(ctx))
	defer sys.Stop()

	require.Error(t, sys.Start(ctx))
	require.Contains(t, buf.String(), "trace_id")
}
