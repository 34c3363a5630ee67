// Package bootstrap wires every protoflight module together into one
// running node: osal-backed bus and scheduler, the event and telemetry
// modules, and the ambient telemetry stack (logging, metrics, health). It
// is the Go equivalent of the original firmware's app-layer init sequence,
// adapted to a single process instead of a cFE/cFS app table.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"protoflight/config"
	"protoflight/em"
	"protoflight/ids"
	"protoflight/mb"
	"protoflight/osal"
	"protoflight/tbl"
	"protoflight/telemetry/health"
	"protoflight/telemetry/logging"
	"protoflight/telemetry/metrics"
	"protoflight/telemetry/tracing"
	"protoflight/tlm"
	"protoflight/tm"
)

// Deps lets callers (tests, an alternate main) supply everything an
// externally constructed System needs instead of letting New build its own,
// and lets New fill in defaults for whatever is left nil.
type Deps struct {
	Logger  logging.Logger
	Metrics metrics.Provider
	Tracer  tracing.Tracer
}

// System is every wired module plus the scheduler that drives them.
type System struct {
	Config *config.Config
	Logger logging.Logger
	Tracer tracing.Tracer

	Bus       *mb.Bus
	Event     *em.Module
	Table     *tbl.Table
	Telemetry *tlm.Producer
	Scheduler *tm.TM

	Health *health.Evaluator

	// MainTaskID is the Monitor task id registered for the calling process's
	// own context (SPEC_FULL §2 Bootstrap: "install monitor for the main
	// context"), grounded on the original main()'s tm_monitor_task(MAIN)
	// call. The process's main loop polls tm.Running(MainTaskID) to learn
	// when to exit, pacing the poll with osal.Delay rather than spinning.
	MainTaskID int

	// initErrors accumulates one bit per module that failed to initialize,
	// in Main, EM, MB, TM, TLM order (SPEC_FULL §12).
	initErrors uint32
	tasksOkay  bool
}

const (
	initBitMain = 1 << iota
	initBitEM
	initBitMB
	initBitTM
	initBitTLM
)

// New wires a complete System from cfg, applying sensible defaults for any
// Deps field left unset.
func New(cfg *config.Config, deps Deps) *System {
	if deps.Logger == nil {
		deps.Logger = logging.New(slog.Default())
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoopProvider()
	}
	if deps.Tracer == nil {
		deps.Tracer = tracing.NewTracer(false)
	}

	osal.SetTickDuration(cfg.TicksPerSecond)
	osal.SetMaxTimers(cfg.MaxTimers)

	sys := &System{Config: cfg, Logger: deps.Logger, Tracer: deps.Tracer}

	sys.Bus = mb.NewBus(cfg.MaxNumPipes, cfg.MaxPipesPerPacket)
	sys.Bus.SetMetrics(deps.Metrics)

	sys.Event = em.NewModule(sys.Bus)
	sys.Event.SetMetrics(deps.Metrics)
	sys.Event.SetLogger(deps.Logger)
	sys.Bus.SetEventSink(sys.Event)

	sys.Table = tbl.NewTable()

	sys.Scheduler = tm.NewTM(cfg.MaxTasks, cfg.TicksPerSecond, cfg.TicksPerSlot, cfg.MaxTaskNameLength)
	sys.Scheduler.SetMetrics(deps.Metrics)

	mainID, res := sys.Scheduler.MonitorTask("main", nil)
	sys.MainTaskID = mainID
	if res != tm.Okay {
		sys.initErrors |= initBitMain
	}

	sys.Telemetry = tlm.NewProducer(sys.Bus, sys.Event, sys.Scheduler, sys.Table)

	sys.Health = health.NewEvaluator(2*time.Second,
		health.SchedulerProbe(sys.Scheduler),
		health.BusProbe(sys.Bus),
		health.MetricsProbe(deps.Metrics),
	)

	return sys
}

// WireDefaultTasks registers the TLM cycle as a scheduler-driven callback
// and installs the pipes/subscriptions EM and TLM need, using cfg's
// periods. Call before Start.
func (s *System) WireDefaultTasks(tlmSchedulePeriod int) error {
	var pipeID int
	if res := s.Bus.CreatePipe(&pipeID, 16, 256); res != mb.Okay {
		return fmt.Errorf("create telemetry pipe: %s", res)
	}
	if res := s.Bus.RegisterPacket(pipeID, ids.PacketIDHealthAndStatus); res != mb.Okay {
		return fmt.Errorf("subscribe telemetry pipe: %s", res)
	}
	if res := s.Bus.RegisterPacket(pipeID, ids.PacketIDEvent); res != mb.Okay {
		return fmt.Errorf("subscribe event pipe: %s", res)
	}

	_, res := s.Scheduler.CallbackTask("tlm_cycle", func(any) { s.Telemetry.Cycle() }, nil, tlmSchedulePeriod)
	if res != tm.Okay {
		return fmt.Errorf("register tlm cycle task: %s", res)
	}
	return nil
}

// Start starts the scheduler and, on failure, raises INIT_ERROR through EM
// carrying the accumulated failing-module bitmask (SPEC_FULL §12). The
// whole call runs under one span (SPEC_FULL §11) so the EventCtx/WarnCtx
// diagnostics below carry matching trace/span ids.
func (s *System) Start(ctx context.Context) error {
	ctx, span := s.Tracer.StartSpan(ctx, "bootstrap.Start")
	defer span.End()

	res := s.Scheduler.Start()
	s.tasksOkay = res == tm.Okay
	if res != tm.Okay {
		s.initErrors |= initBitTM
	}

	if s.initErrors != 0 || !s.tasksOkay {
		tasksFlag := uint32(0)
		if s.tasksOkay {
			tasksFlag = 1
		}
		s.Event.EventCtx(ctx, ids.ModuleInit, ids.EventInitError, 0, s.initErrors, tasksFlag, 0, 0, 0)
		s.Logger.WarnCtx(ctx, "protoflight init reported errors", "bitmask", s.initErrors, "tasks_started", s.tasksOkay)
	}

	if res != tm.Okay {
		return fmt.Errorf("start scheduler: %s", res)
	}
	return nil
}

// Stop stops the scheduler, releasing every task's gate so cooperative
// shutdown can observe continue_running flipped (spec §5).
func (s *System) Stop() {
	s.Scheduler.Stop()
}
