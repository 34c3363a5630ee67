package tm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchedulerCadence(t *testing.T) {
	// S6: schedule_period=10, heartbeat_period=20, driven for 100 slots.
	// Expect exactly 10 releases, zero missed-heartbeat, and the
	// tasks_scheduled bit set.
	sched := NewTM(4, 1000, 1, 32)
	id, res := sched.PeriodicTask("worker", func(any) {}, nil, 10, 20, 0, 0)
	require.Equal(t, Okay, res)

	counter := 0
	for slot := 0; slot < 100; slot++ {
		sched.RunSlot()
		// ScheduledBit is sticky, so it cannot mark a single release; a
		// release slot is the one where update reset ticks to 0 and gave
		// the gate.
		if sched.tasks[id].ticks == 0 {
			// The worker's body takes its gate and increments.
			require.True(t, sched.Running(id))
			counter++
		}
	}

	require.Equal(t, 10, counter)
	require.False(t, sched.MissedHeartbeatBit(id))
	require.True(t, sched.ScheduledBit(id))
}

func TestHeartbeatMiss(t *testing.T) {
	// #7: a worker that never consumes its release gets its missed-heartbeat
	// bit set: the second release (slot 10) finds the gate still full.
	sched := NewTM(4, 1000, 1, 32)
	id, res := sched.PeriodicTask("stuck", func(any) {}, nil, 5, 8, 0, 0)
	require.Equal(t, Okay, res)

	for slot := 0; slot < 13; slot++ {
		sched.RunSlot()
	}
	require.True(t, sched.ScheduledBit(id))
	require.True(t, sched.MissedHeartbeatBit(id))
}

func TestNoHeartbeatMissWhenHeartbeatExceedsSchedule(t *testing.T) {
	sched := NewTM(4, 1000, 1, 32)
	id, res := sched.PeriodicTask("prompt", func(any) {}, nil, 10, 20, 0, 0)
	require.Equal(t, Okay, res)

	for slot := 0; slot < 10; slot++ {
		sched.RunSlot()
		if sched.ScheduledBit(id) {
			sched.Running(id)
		}
	}
	require.False(t, sched.MissedHeartbeatBit(id))
}

func TestCallbackInvokedInline(t *testing.T) {
	sched := NewTM(4, 1000, 1, 32)
	calls := 0
	_, res := sched.CallbackTask("cb", func(any) { calls++ }, nil, 3)
	require.Equal(t, Okay, res)

	for slot := 0; slot < 9; slot++ {
		sched.RunSlot()
	}
	require.Equal(t, 3, calls)
}

func TestEventTaskHeartbeatOnly(t *testing.T) {
	sched := NewTM(4, 1000, 1, 32)
	id, res := sched.EventTask("evt", func(any) {}, nil, 4, 0, 0)
	require.Equal(t, Okay, res)

	for slot := 0; slot < 3; slot++ {
		sched.RunSlot()
	}
	require.False(t, sched.MissedHeartbeatBit(id))
	sched.RunSlot()
	require.True(t, sched.MissedHeartbeatBit(id))
}

func TestCooperativeShutdown(t *testing.T) {
	// #8: after stop, a periodic worker's next Running call returns false
	// within at most one slot, driven here without the real timer.
	sched := NewTM(4, 1000, 1, 32)
	id, res := sched.PeriodicTask("worker", func(any) {}, nil, 1, 10, 0, 0)
	require.Equal(t, Okay, res)

	sched.continueRunning.Store(true)
	sched.RunSlot()
	require.True(t, sched.ScheduledBit(id))
	require.True(t, sched.Running(id))

	sched.continueRunning.Store(false)
	sched.WakeAll()
	require.False(t, sched.Running(id))
}

func TestRegistrationValidation(t *testing.T) {
	sched := NewTM(1, 1000, 1, 32)
	_, res := sched.PeriodicTask("bad", func(any) {}, nil, 0, 10, 0, 0)
	require.Equal(t, InvalidArgument, res)

	_, res = sched.PeriodicTask("nilfn", nil, nil, 5, 10, 0, 0)
	require.Equal(t, NullPointer, res)

	_, res = sched.PeriodicTask("ok", func(any) {}, nil, 5, 10, 0, 0)
	require.Equal(t, Okay, res)

	_, res = sched.PeriodicTask("overflow", func(any) {}, nil, 5, 10, 0, 0)
	require.Equal(t, MaxTasksReached, res)
}

func TestRegistrationAfterStartFails(t *testing.T) {
	sched := NewTM(4, 1000, 1, 32)
	require.Equal(t, Okay, sched.Start())
	defer sched.Stop()

	_, res := sched.PeriodicTask("late", func(any) {}, nil, 5, 10, 0, 0)
	require.Equal(t, AlreadyStarted, res)
}

func TestTaskNameTruncatesToConfiguredLength(t *testing.T) {
	sched := NewTM(4, 1000, 1, 6)
	id, res := sched.PeriodicTask("much-too-long-a-name", func(any) {}, nil, 5, 10, 0, 0)
	require.Equal(t, Okay, res)
	require.Equal(t, "much-t", sched.tasks[id].name)
}

func TestNewTMFallsBackToDefaultNameLength(t *testing.T) {
	sched := NewTM(4, 1000, 1, 0)
	require.Equal(t, DefaultMaxTaskNameLength, sched.maxTaskNameLength)
}

func TestMonitorTaskNeverScheduledOrMissed(t *testing.T) {
	sched := NewTM(4, 1000, 1, 32)
	id, res := sched.MonitorTask("mon", nil)
	require.Equal(t, Okay, res)

	for slot := 0; slot < 50; slot++ {
		sched.RunSlot()
	}
	require.False(t, sched.ScheduledBit(id))
	require.False(t, sched.MissedHeartbeatBit(id))
}
