// Package em is the event message module: a self-protected diagnostic
// sink that turns a (module, event, line, params) tuple into a telemetry
// packet on the bus, counting its own successes and failures without ever
// raising a second event on failure (spec §4.4).
package em

import (
	"context"
	"sync"

	"protoflight/ids"
	"protoflight/mb"
	"protoflight/msg"
	"protoflight/osal"
	"protoflight/telemetry/logging"
	"protoflight/telemetry/metrics"
)

// eventResultLabelValues is the closed set of outcomes m.event ever passes
// as the "result" label — see CommonOpts.KnownLabelValues.
var eventResultLabelValues = [][]string{{"invalid"}, {"sent"}, {"error"}}

var eventCounterOpts = metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
	Namespace: "protoflight", Subsystem: "em", Name: "events_total", Help: "event module outcomes",
	Labels: []string{"result"}, KnownLabelValues: eventResultLabelValues,
}}

// Status snapshots EM's counters. Cleared only by Initialize.
type Status struct {
	MessagesReceived   uint64
	MessagesSent       uint64
	MessageErrors      uint64
	InvalidMsgReceived uint64
}

// Module is the event message module. It satisfies mb.EventSink so a *Bus
// can be wired to call Event directly without importing em.
type Module struct {
	bus *mb.Bus

	mu       sync.Mutex
	status   Status
	eventCtr metrics.Counter
	logger   logging.Logger
}

// NewModule constructs an EM bound to bus. Initialize is called for you.
func NewModule(bus *mb.Bus) *Module {
	m := &Module{bus: bus, logger: logging.NewDiscard()}
	m.SetMetrics(metrics.NewNoopProvider())
	m.Initialize()
	return m
}

// SetMetrics swaps EM's metrics backend.
func (m *Module) SetMetrics(p metrics.Provider) {
	m.eventCtr = p.NewCounter(eventCounterOpts)
}

// SetLogger swaps EM's diagnostic logger, used only by EventCtx to report a
// send failure or invalid module id with whatever trace/span correlation
// ctx carries (SPEC_FULL §11). Defaults to a discard logger.
func (m *Module) SetLogger(l logging.Logger) {
	if l == nil {
		l = logging.NewDiscard()
	}
	m.logger = l
}

// Initialize zeroes all counters. Idempotent.
func (m *Module) Initialize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = Status{}
}

// Event builds and publishes one event packet. An invalid moduleID only
// increments InvalidMsgReceived and returns, leaving MessagesReceived
// untouched (spec S3). EM never blocks on the bus (osal.NoWait) and never
// calls itself again on a send failure: the non-recursion property holds
// by construction, since this method has no call to Event anywhere in its
// own body.
func (m *Module) Event(moduleID ids.ModuleID, eventID ids.EventID, lineNumber int, p0, p1, p2, p3, p4 uint32) {
	m.event(context.Background(), false, moduleID, eventID, lineNumber, p0, p1, p2, p3, p4)
}

// EventCtx is Event with diagnostics logged through ctx's trace/span
// correlation (SPEC_FULL §11) on an invalid module id or a send failure.
// Use it at any call site that already has a live ctx (bootstrap init,
// an HTTP-triggered path); a scheduler-cycle tick has no causal parent
// request and should keep calling the plain Event.
func (m *Module) EventCtx(ctx context.Context, moduleID ids.ModuleID, eventID ids.EventID, lineNumber int, p0, p1, p2, p3, p4 uint32) {
	m.event(ctx, true, moduleID, eventID, lineNumber, p0, p1, p2, p3, p4)
}

func (m *Module) event(ctx context.Context, logged bool, moduleID ids.ModuleID, eventID ids.EventID, lineNumber int, p0, p1, p2, p3, p4 uint32) {
	if !moduleID.Valid() {
		m.mu.Lock()
		m.status.InvalidMsgReceived++
		m.mu.Unlock()
		m.eventCtr.Inc(1, "invalid")
		if logged {
			m.logger.WarnCtx(ctx, "em: invalid module id", "module_id", moduleID, "event_id", eventID)
		}
		return
	}

	m.mu.Lock()
	m.status.MessagesReceived++
	m.mu.Unlock()

	var h msg.Header
	if res := msg.TelemetryMessage(&h, ids.PacketIDEvent, PayloadSize); res != msg.Okay {
		m.mu.Lock()
		m.status.MessageErrors++
		m.mu.Unlock()
		if logged {
			m.logger.ErrorCtx(ctx, "em: build telemetry message failed", "module_id", moduleID, "event_id", eventID, "result", res)
		}
		return
	}

	ev := Event{
		ModuleID:   moduleID,
		EventID:    eventID,
		LineNumber: uint16(lineNumber),
		Params:     [5]uint32{p0, p1, p2, p3, p4},
	}
	payload := make([]byte, PayloadSize)
	Encode(ev, payload)

	result := m.bus.Send(&h, payload, osal.NoWait)

	m.mu.Lock()
	if result == mb.Okay {
		m.status.MessagesSent++
		m.eventCtr.Inc(1, "sent")
	} else {
		m.status.MessageErrors++
		m.eventCtr.Inc(1, "error")
	}
	m.mu.Unlock()

	if logged && result != mb.Okay {
		m.logger.ErrorCtx(ctx, "em: bus send failed", "module_id", moduleID, "event_id", eventID, "result", result)
	}
}

// GetStatus snapshots EM's counters by value.
func (m *Module) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}
