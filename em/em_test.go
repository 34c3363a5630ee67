package em

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"protoflight/ids"
	"protoflight/mb"
	"protoflight/osal"
	"protoflight/telemetry/logging"
	"protoflight/telemetry/tracing"

	"github.com/stretchr/testify/require"
)

func TestEventModuleIDValidation(t *testing.T) {
	// S3: both INVALID and NUM_IDS module ids increment InvalidMsgReceived
	// by one each, leaving MessagesReceived at 0.
	bus := mb.NewBus(10, 4)
	m := NewModule(bus)

	m.Event(ids.ModuleInvalid, 1, 2, 1, 2, 3, 4, 5)
	m.Event(ids.ModuleID(ids.NumModuleIDs), 1, 2, 1, 2, 3, 4, 5)

	status := m.GetStatus()
	require.Equal(t, uint64(2), status.InvalidMsgReceived)
	require.Equal(t, uint64(0), status.MessagesReceived)
	require.Equal(t, uint64(0), status.MessageErrors)
}

func TestEventSuccessWithSubscriber(t *testing.T) {
	// S4: a valid event reaches a subscribed pipe as an EVENT telemetry
	// packet with a 32-byte payload.
	bus := mb.NewBus(10, 4)
	m := NewModule(bus)

	var pipeID int
	require.Equal(t, mb.Okay, bus.CreatePipe(&pipeID, 5, 64))
	require.Equal(t, mb.Okay, bus.RegisterPacket(pipeID, ids.PacketIDEvent))

	m.Event(ids.ModuleEM, 1, 2, 1, 2, 3, 4, 5)

	status := m.GetStatus()
	require.Equal(t, uint64(1), status.MessagesReceived)
	require.Equal(t, uint64(1), status.MessagesSent)
	require.Equal(t, uint64(0), status.MessageErrors)

	buf := make([]byte, 64)
	n, res := bus.Receive(pipeID, buf, osal.NoWait)
	require.Equal(t, mb.Okay, res)
	require.Equal(t, 4+PayloadSize, n)

	require.Equal(t, byte(ids.PacketTypeTelemetry), buf[0])
	require.Equal(t, byte(ids.PacketIDEvent), buf[1])

	ev := Decode(buf[4:n])
	require.Equal(t, ids.ModuleEM, ev.ModuleID)
	require.Equal(t, ids.EventID(1), ev.EventID)
	require.Equal(t, uint16(2), ev.LineNumber)
	require.Equal(t, [5]uint32{1, 2, 3, 4, 5}, ev.Params)
}

func TestEventNonRecursionOnSendFailure(t *testing.T) {
	// Force the bus send to fail (a saturated, zero-wait subscriber pipe)
	// and confirm EM records exactly one error with no second, recursive
	// Event call ever touching MessagesReceived again.
	bus := mb.NewBus(10, 4)
	m := NewModule(bus)

	var pipeID int
	require.Equal(t, mb.Okay, bus.CreatePipe(&pipeID, 1, 64))
	require.Equal(t, mb.Okay, bus.RegisterPacket(pipeID, ids.PacketIDEvent))

	// Saturate the pipe so the next send times out under NoWait.
	m.Event(ids.ModuleEM, 1, 1, 0, 0, 0, 0, 0)
	require.Equal(t, uint64(1), m.GetStatus().MessagesSent)

	m.Event(ids.ModuleEM, 1, 2, 0, 0, 0, 0, 0)

	status := m.GetStatus()
	require.Equal(t, uint64(2), status.MessagesReceived)
	require.Equal(t, uint64(1), status.MessagesSent)
	require.Equal(t, uint64(1), status.MessageErrors)
}

func TestEventCtxCorrelatesSendFailureWithSpan(t *testing.T) {
	// SPEC_FULL §11: EventCtx logs a bus send failure with the trace/span
	// ids carried on ctx, so a log aggregator can tie it back to whatever
	// span produced the call.
	bus := mb.NewBus(10, 4)
	m := NewModule(bus)

	var buf bytes.Buffer
	m.SetLogger(logging.New(slog.New(slog.NewJSONHandler(&buf, nil))))

	var pipeID int
	require.Equal(t, mb.Okay, bus.CreatePipe(&pipeID, 1, 64))
	require.Equal(t, mb.Okay, bus.RegisterPacket(pipeID, ids.PacketIDEvent))

	tracer := tracing.NewTracer(true)
	ctx, span := tracer.StartSpan(context.Background(), "test")
	defer span.End()
	traceID, _ := tracing.ExtractIDs(ctx)
	require.NotEmpty(t, traceID)

	m.EventCtx(ctx, ids.ModuleEM, 1, 1, 0, 0, 0, 0, 0) // saturates the pipe
	m.EventCtx(ctx, ids.ModuleEM, 1, 2, 0, 0, 0, 0, 0) // now fails to send

	require.Contains(t, buf.String(), "em: bus send failed")
	require.Contains(t, buf.String(), traceID)
}

func TestEventCtxSilentOnSuccess(t *testing.T) {
	bus := mb.NewBus(10, 4)
	m := NewModule(bus)

	var buf bytes.Buffer
	m.SetLogger(logging.New(slog.New(slog.NewJSONHandler(&buf, nil))))

	var pipeID int
	require.Equal(t, mb.Okay, bus.CreatePipe(&pipeID, 5, 64))
	require.Equal(t, mb.Okay, bus.RegisterPacket(pipeID, ids.PacketIDEvent))

	m.EventCtx(context.Background(), ids.ModuleEM, 1, 1, 0, 0, 0, 0, 0)
	require.Empty(t, buf.String())
}
