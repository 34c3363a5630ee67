// Package tm is the task manager: the periodic/event/callback/monitor task
// registry, the slot-driven scheduler, and the heartbeat liveness check
// that watches every registered task (spec §4.5).
package tm

import (
	"sync"
	"sync/atomic"
	"time"

	"protoflight/osal"
	"protoflight/telemetry/metrics"
)

var missedHeartbeatCounterOpts = metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
	Namespace: "protoflight", Subsystem: "tm", Name: "missed_heartbeats_total", Help: "task heartbeat misses observed by the scheduler",
}}

// outcome is update's per-slot, per-task verdict.
type outcome int

const (
	outcomeWait outcome = iota
	outcomeSchedule
	outcomeMissedHeartbeat
	outcomeError
	outcomeInvalid
)

// Status snapshots TM's scheduler counters. Bit counts are read through the
// sticky scheduled/missed-heartbeat bitmaps, matching spec §3's
// "read-only accessor that returns a snapshot by value".
type Status struct {
	Cycle                uint64
	SchedulerErrors      uint64
	TasksScheduled       uint32
	TasksMissedHeartbeat uint32
}

// TM owns the task table, the slot timer, and the scheduling bitmaps. All
// registration must happen before Start (spec §3's "created during
// initialization only").
type TM struct {
	maxTasks          int
	tickPeriod        time.Duration
	ticksPerSlot      int
	maxTaskNameLength int

	mu      sync.Mutex
	tasks   []*taskRecord
	started bool

	continueRunning atomic.Bool
	slotGate        *osal.Semaphore
	slotTimer       *osal.Timer

	scheduled       Bitmap
	missedHeartbeat Bitmap

	cycle           atomic.Uint64
	schedulerErrors atomic.Uint64

	missedCtr metrics.Counter
}

// NewTM builds a scheduler bounded to maxTasks tasks, ticking at
// ticksPerSecond and releasing its gate every ticksPerSlot ticks.
// maxTaskNameLength bounds the copied, null-terminated task name (spec §6);
// a non-positive value falls back to DefaultMaxTaskNameLength.
func NewTM(maxTasks, ticksPerSecond, ticksPerSlot, maxTaskNameLength int) *TM {
	if maxTaskNameLength <= 0 {
		maxTaskNameLength = DefaultMaxTaskNameLength
	}
	tm := &TM{
		maxTasks:          maxTasks,
		tickPeriod:        time.Second / time.Duration(ticksPerSecond),
		ticksPerSlot:      ticksPerSlot,
		maxTaskNameLength: maxTaskNameLength,
		slotGate:          osal.NewSemaphore(1),
		slotTimer:         osal.NewTimer(),
		scheduled:         NewBitmap(maxTasks),
		missedHeartbeat:   NewBitmap(maxTasks),
	}
	tm.SetMetrics(metrics.NewNoopProvider())
	tm.continueRunning.Store(true)
	return tm
}

// SetMetrics swaps the scheduler's metrics backend.
func (tm *TM) SetMetrics(p metrics.Provider) {
	tm.missedCtr = p.NewCounter(missedHeartbeatCounterOpts)
}

func (tm *TM) slotDuration() time.Duration {
	return tm.tickPeriod * time.Duration(tm.ticksPerSlot)
}

// PeriodicTask registers a task the scheduler releases every schedulePeriod
// slots and heartbeat-checks every heartbeatPeriod slots.
func (tm *TM) PeriodicTask(name string, fn TaskFunc, arg any, schedulePeriod, heartbeatPeriod, priority, stackSize int) (int, Result) {
	if schedulePeriod <= 0 || heartbeatPeriod <= 0 {
		return -1, InvalidArgument
	}
	return tm.register(Periodic, name, fn, arg, schedulePeriod, heartbeatPeriod, priority, stackSize)
}

// EventTask registers a self-scheduled task: it is only heartbeat-checked,
// never scheduler-released. No gate is created for it, and TM has no call
// that resets its tick count, so its missed-heartbeat bit is set once
// heartbeatPeriod slots have passed.
func (tm *TM) EventTask(name string, fn TaskFunc, arg any, heartbeatPeriod, priority, stackSize int) (int, Result) {
	if heartbeatPeriod <= 0 {
		return -1, InvalidArgument
	}
	return tm.register(Event, name, fn, arg, 0, heartbeatPeriod, priority, stackSize)
}

// CallbackTask registers a function the scheduler invokes inline, inside
// its own context, every schedulePeriod slots. Callback bodies must not
// block for longer than one slot (spec §5).
func (tm *TM) CallbackTask(name string, fn TaskFunc, arg any, schedulePeriod int) (int, Result) {
	if schedulePeriod <= 0 {
		return -1, InvalidArgument
	}
	return tm.register(Callback, name, fn, arg, schedulePeriod, 0, 0, 0)
}

// MonitorTask registers a task whose liveness is watched purely through OS
// task status on handle; it is never scheduled or heartbeat-checked. handle
// is typically the result of a Spawn the caller did itself, outside Start.
func (tm *TM) MonitorTask(name string, handle *osal.TaskHandle) (int, Result) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.started {
		return -1, AlreadyStarted
	}
	if len(tm.tasks) >= tm.maxTasks {
		return -1, MaxTasksReached
	}
	t := &taskRecord{kind: Monitor, name: tm.truncateName(name), handle: handle}
	id := len(tm.tasks)
	tm.tasks = append(tm.tasks, t)
	return id, Okay
}

func (tm *TM) register(kind Kind, name string, fn TaskFunc, arg any, schedulePeriod, heartbeatPeriod, priority, stackSize int) (int, Result) {
	if fn == nil {
		return -1, NullPointer
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.started {
		return -1, AlreadyStarted
	}
	if len(tm.tasks) >= tm.maxTasks {
		return -1, MaxTasksReached
	}
	t := &taskRecord{
		kind:            kind,
		name:            tm.truncateName(name),
		fn:              fn,
		arg:             arg,
		schedulePeriod:  schedulePeriod,
		heartbeatPeriod: heartbeatPeriod,
		priority:        priority,
		stackSize:       stackSize,
	}
	if kind == Periodic {
		t.gate = osal.NewSemaphore(1)
	}
	id := len(tm.tasks)
	tm.tasks = append(tm.tasks, t)
	return id, Okay
}

// Start spawns every Periodic/Event task's OS thread, then arms the slot
// timer. Every spawn is attempted even if an earlier one looks wrong, and
// the first failure encountered is returned (spec §4.5 step 3) — in this
// backend that failure can only be the timer itself, since Spawn cannot
// report one.
func (tm *TM) Start() Result {
	tm.mu.Lock()
	if tm.started {
		tm.mu.Unlock()
		return AlreadyStarted
	}
	tm.started = true
	tasks := append([]*taskRecord(nil), tm.tasks...)
	tm.mu.Unlock()

	tm.continueRunning.Store(true)

	for _, t := range tasks {
		if t.kind == Periodic || t.kind == Event {
			body := t.fn
			arg := t.arg
			t.handle = osal.Spawn(func(a any) { body(a) }, arg, t.priority, t.stackSize)
		}
	}

	go tm.runScheduler()

	if res := tm.slotTimer.Start(tm.slotFire, tm.slotDuration()); res != osal.Okay {
		return TimerStartFailed
	}
	return Okay
}

// Stop flips continue_running and wakes the scheduler's blocked slot-gate
// take so it can observe the flip and perform the wake-all (spec §4.5
// "stop()", §5 "cooperative shutdown").
func (tm *TM) Stop() {
	tm.continueRunning.Store(false)
	tm.slotGate.Give()
	tm.slotTimer.Stop()
}

func (tm *TM) slotFire() bool {
	tm.slotGate.Give()
	return true
}

func (tm *TM) runScheduler() {
	for {
		res := tm.slotGate.Take(osal.WaitForever)
		if res != osal.Okay {
			tm.continueRunning.Store(false)
			tm.WakeAll()
			return
		}
		if !tm.continueRunning.Load() {
			tm.WakeAll()
			return
		}
		tm.RunSlot()
	}
}

// WakeAll gives every periodic task's gate once, letting each worker's next
// Running check observe continue_running=false and exit (spec §4.5 step 3
// of scheduler_task).
func (tm *TM) WakeAll() {
	tm.mu.Lock()
	tasks := tm.tasks
	tm.mu.Unlock()
	for _, t := range tasks {
		if t.kind == Periodic {
			t.gate.Give()
		}
	}
}

// RunSlot performs one pass over the task table in ascending task-id order:
// read OS status, run update, run process. Exported so tests can drive the
// scheduler deterministically without the real slot timer.
func (tm *TM) RunSlot() {
	tm.mu.Lock()
	tasks := append([]*taskRecord(nil), tm.tasks...)
	tm.mu.Unlock()

	for id, t := range tasks {
		status := osal.TaskOkay
		if t.handle != nil {
			status = t.handle.Status()
		}
		var o outcome
		if status != osal.TaskOkay {
			o = outcomeMissedHeartbeat
		} else {
			o = tm.update(t)
		}
		tm.process(o, id, t)
	}
	tm.cycle.Add(1)
}

// update runs the per-kind state machine exactly once per slot. Pre:
// task.ticks += 1. The Periodic case evaluates the schedule reset before
// the heartbeat-miss check — that order is deliberate (spec §9) and must
// not be refactored into a single comparison.
func (tm *TM) update(t *taskRecord) outcome {
	t.ticks++
	switch t.kind {
	case Periodic:
		result := outcomeWait
		if t.ticks == t.schedulePeriod {
			result = outcomeSchedule
			t.ticks = 0
		}
		if t.ticks >= t.heartbeatPeriod {
			result = outcomeMissedHeartbeat
		}
		return result
	case Event:
		if t.ticks >= t.heartbeatPeriod {
			return outcomeMissedHeartbeat
		}
		return outcomeWait
	case Callback:
		if t.ticks == t.schedulePeriod {
			t.ticks = 0
			return outcomeSchedule
		}
		return outcomeWait
	case Monitor:
		return outcomeWait
	default:
		return outcomeInvalid
	}
}

func (tm *TM) process(o outcome, taskID int, t *taskRecord) {
	switch o {
	case outcomeSchedule:
		switch t.kind {
		case Periodic:
			if res := t.gate.Give(); res != osal.Okay {
				tm.schedulerErrors.Add(1)
				tm.missedHeartbeat.Set(taskID)
				tm.missedCtr.Inc(1)
				return
			}
			tm.scheduled.Set(taskID)
		case Callback:
			t.fn(t.arg)
		}
	case outcomeMissedHeartbeat:
		tm.missedHeartbeat.Set(taskID)
		tm.missedCtr.Inc(1)
	case outcomeError, outcomeInvalid:
		tm.schedulerErrors.Add(1)
		tm.missedHeartbeat.Set(taskID)
		tm.missedCtr.Inc(1)
	case outcomeWait:
	}
}

// Running is the one blocking point in worker code (spec §4.5): a Periodic
// task takes its gate with WAIT_FOREVER before every iteration; every other
// kind returns continue_running immediately.
func (tm *TM) Running(taskID int) bool {
	tm.mu.Lock()
	if taskID < 0 || taskID >= len(tm.tasks) {
		tm.mu.Unlock()
		return false
	}
	t := tm.tasks[taskID]
	tm.mu.Unlock()
	if t.kind == Periodic {
		t.gate.Take(osal.WaitForever)
	}
	return tm.continueRunning.Load()
}

// ScheduledBit reports whether taskID's tasks_scheduled bit is set.
func (tm *TM) ScheduledBit(taskID int) bool { return tm.scheduled.Get(taskID) }

// MissedHeartbeatBit reports whether taskID's tasks_missed_heartbeat bit is
// set.
func (tm *TM) MissedHeartbeatBit(taskID int) bool { return tm.missedHeartbeat.Get(taskID) }

// NumTasks reports how many tasks have been registered so far.
func (tm *TM) NumTasks() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return len(tm.tasks)
}

// GetStatus snapshots the scheduler's counters by value.
func (tm *TM) GetStatus() Status {
	tm.mu.Lock()
	n := len(tm.tasks)
	tm.mu.Unlock()
	return Status{
		Cycle:                tm.cycle.Load(),
		SchedulerErrors:      tm.schedulerErrors.Load(),
		TasksScheduled:       uint32(tm.scheduled.Count(n)),
		TasksMissedHeartbeat: uint32(tm.missedHeartbeat.Count(n)),
	}
}
