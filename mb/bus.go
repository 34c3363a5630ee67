// Package mb is the message bus: a bounded set of pipes plus a packet-id to
// pipe-index subscription table, fanning every send out to every subscriber
// (spec §4.3).
package mb

import (
	"sync"
	"time"

	"protoflight/ids"
	"protoflight/msg"
	"protoflight/osal"
	"protoflight/telemetry/metrics"
)

// resultLabelValues is every outcome Bus.Send reports, declared up front
// since Result (result.go) is a closed enum: the label has no runtime-open
// tail the way a crawler's per-domain label would.
var resultLabelValues = func() [][]string {
	out := make([][]string, 0, PipeReadError+1)
	for r := Okay; r <= PipeReadError; r++ {
		out = append(out, []string{r.String()})
	}
	return out
}()

var sendCounterOpts = metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
	Namespace: "protoflight", Subsystem: "mb", Name: "sends_total", Help: "message bus send outcomes",
	Labels: []string{"result"}, KnownLabelValues: resultLabelValues,
}}

// EventSink lets the bus raise the one event it's allowed to (a nil header
// passed to Send) without importing the em package — em depends on mb to
// publish, so the dependency has to run the other way. Bootstrap wires a
// concrete *em.Module in after both exist.
type EventSink interface {
	Event(moduleID ids.ModuleID, eventID ids.EventID, line int, p0, p1, p2, p3, p4 uint32)
}

// Bus owns the pipe array and the packet subscription table exclusively;
// everyone else passes messages through it by copy (spec §3 ownership).
type Bus struct {
	maxPipes          int
	maxPipesPerPacket int

	mu            sync.Mutex
	pipes         []*Pipe
	subscriptions map[ids.PacketID][]int

	status  Status
	sink    EventSink
	metrics metrics.Provider
	sendCtr metrics.Counter
}

// NewBus constructs a bus bounded by maxPipes allocated pipes and at most
// maxPipesPerPacket subscribers per packet id.
func NewBus(maxPipes, maxPipesPerPacket int) *Bus {
	b := &Bus{maxPipes: maxPipes, maxPipesPerPacket: maxPipesPerPacket}
	b.SetMetrics(metrics.NewNoopProvider())
	b.Initialize()
	return b
}

// SetEventSink wires the one event path Send may use, per spec §4.3's
// reentrancy rule.
func (b *Bus) SetEventSink(sink EventSink) { b.sink = sink }

// SetMetrics swaps the bus's metrics backend. Defaults to a no-op provider
// so bootstrap can opt in without every test constructing one.
func (b *Bus) SetMetrics(p metrics.Provider) {
	b.metrics = p
	b.sendCtr = p.NewCounter(sendCounterOpts)
}

// Initialize resets all bus state to zero. Idempotent.
func (b *Bus) Initialize() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pipes = nil
	b.subscriptions = make(map[ids.PacketID][]int)
	b.status = Status{}
}

// CreatePipe allocates the next free pipe index and returns it via pipeID.
// On failure the pipe count is unchanged.
func (b *Bus) CreatePipe(pipeID *int, numMsgs, maxMsgBytes int) Result {
	if pipeID == nil {
		return NullPointer
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pipes) >= b.maxPipes {
		return MaxPipesReached
	}
	q, res := osal.NewQueue(numMsgs, maxMsgBytes)
	if res != osal.Okay {
		return PipeCreateFailed
	}
	index := len(b.pipes)
	b.pipes = append(b.pipes, &Pipe{Index: index, queue: q})
	b.status.NumPipes = uint32(len(b.pipes))
	*pipeID = index
	return Okay
}

// RegisterPacket appends pipeID to packetID's subscriber list. Duplicate
// registrations of the same (pipe, packet) pair are not deduplicated — the
// caller must not duplicate them (spec §4.3).
func (b *Bus) RegisterPacket(pipeID int, packetID ids.PacketID) Result {
	if !packetID.Valid() {
		return InvalidPacketID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if pipeID < 0 || pipeID >= len(b.pipes) {
		return InvalidPipe
	}
	subs := b.subscriptions[packetID]
	if len(subs) >= b.maxPipesPerPacket {
		return MaxPipesReached
	}
	b.subscriptions[packetID] = append(subs, pipeID)
	return Okay
}

// Send computes msg_size = header.Length + HeaderSize and fans the packet
// out to every pipe subscribed to header.PacketID, in registration order.
// One subscriber's failure never stops delivery to the rest (spec §4.3,
// §5): the aggregate result is Okay only if every subscriber accepted the
// message; a SendError is sticky over a Timeout within the same call.
func (b *Bus) Send(header *msg.Header, payload []byte, timeout time.Duration) Result {
	if header == nil {
		b.mu.Lock()
		b.status.SendErrors++
		b.mu.Unlock()
		if b.sink != nil {
			b.sink.Event(ids.ModuleMB, ids.EventBusSendNilHeader, 0, 0, 0, 0, 0, 0)
		}
		b.sendCtr.Inc(1, NullPointer.String())
		return NullPointer
	}

	// msg_size is header.Length plus the header itself; the payload slice
	// is truncated or zero-padded to the declared length.
	buf := make([]byte, msg.HeaderSize+int(header.Length))
	msg.Encode(*header, buf)
	copy(buf[msg.HeaderSize:], payload)

	b.mu.Lock()
	subs := append([]int(nil), b.subscriptions[header.PacketID]...)
	pipes := b.pipes
	b.mu.Unlock()

	result := Okay
	for i, pipeIdx := range subs {
		if pipeIdx < 0 || pipeIdx >= len(pipes) {
			b.recordSendError(header.PacketID, i, int32(InvalidPipe))
			result = SendError
			continue
		}
		res := pipes[pipeIdx].queue.Send(buf, timeout)
		switch res {
		case osal.Okay:
			b.mu.Lock()
			b.status.MessagesSent++
			b.mu.Unlock()
		case osal.Timeout:
			if result == Okay {
				result = Timeout
			}
		default:
			b.recordSendError(header.PacketID, i, int32(res))
			result = SendError
		}
	}
	b.sendCtr.Inc(1, result.String())
	return result
}

func (b *Bus) recordSendError(packetID ids.PacketID, subscriberIndex int, code int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.SendErrors++
	b.status.LastErrorPacketID = packetID
	b.status.LastErrorPipe = int32(subscriberIndex)
	b.status.LastErrorCode = code
}

// Receive delivers one whole message from pipeID into buf, never a partial
// read. buf must be sized to the pipe's max message bytes.
func (b *Bus) Receive(pipeID int, buf []byte, timeout time.Duration) (n int, res Result) {
	b.mu.Lock()
	if pipeID < 0 || pipeID >= len(b.pipes) {
		b.mu.Unlock()
		return 0, InvalidArguments
	}
	pipe := b.pipes[pipeID]
	b.mu.Unlock()

	if buf == nil {
		return 0, NullPointer
	}
	n, qres := pipe.queue.Receive(buf, timeout)
	switch qres {
	case osal.Okay:
		b.mu.Lock()
		b.status.MessagesReceived++
		b.mu.Unlock()
		return n, Okay
	case osal.Timeout:
		return 0, Timeout
	case osal.InvalidArguments:
		return 0, InvalidArguments
	default:
		b.mu.Lock()
		b.status.ReceiveErrors++
		b.mu.Unlock()
		return 0, PipeReadError
	}
}

// GetStatus snapshots the bus counters by value.
func (b *Bus) GetStatus() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// NumPipes reports how many pipes have been allocated so far.
func (b *Bus) NumPipes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pipes)
}

// PipeQueueLen reports how many messages are queued on pipeID, for status
// and test assertions.
func (b *Bus) PipeQueueLen(pipeID int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pipeID < 0 || pipeID >= len(b.pipes) {
		return 0
	}
	return b.pipes[pipeID].queue.Len()
}
