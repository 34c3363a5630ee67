// Package tlm is the telemetry producer: a periodic task that samples every
// module's status counters and publishes them as one HEALTHANDSTATUS
// packet (spec §4.6).
package tlm

import (
	"encoding/binary"
	"sync"

	"protoflight/em"
	"protoflight/ids"
	"protoflight/mb"
	"protoflight/msg"
	"protoflight/osal"
	"protoflight/tbl"
	"protoflight/tm"
)

// Status is TLM's own contribution to the health-and-status packet: how
// many cycles it has run and how many of its own sends failed.
type Status struct {
	Cycles     uint64
	SendErrors uint64
}

// sources bundles the modules whose read-only snapshot accessors TLM
// samples each cycle. The fields are the concrete module types.
type sources struct {
	mb  *mb.Bus
	em  *em.Module
	tm  *tm.TM
	tbl *tbl.Table
}

// Producer is the TLM module: it owns its own status and the handles it
// samples and publishes through each cycle.
type Producer struct {
	src sources

	mu     sync.Mutex
	status Status
}

// NewProducer builds a TLM bound to the given bus and the modules it
// samples each cycle.
func NewProducer(bus *mb.Bus, emModule *em.Module, scheduler *tm.TM, table *tbl.Table) *Producer {
	return &Producer{src: sources{mb: bus, em: emModule, tm: scheduler, tbl: table}}
}

// PayloadSize is the byte length of the concatenated status block that
// follows the MSG header, per spec §6's field layout.
const PayloadSize = tlmStatusSize + mbStatusSize + emStatusSize + tblStatusSize + tmStatusSize

const (
	tlmStatusSize = 8 + 8            // Cycles, SendErrors
	mbStatusSize  = 4 + 8 + 8 + 8 + 8 + 1 + 4 + 4
	emStatusSize  = 8 + 8 + 8 + 8
	tblStatusSize = 4 + 4
	tmStatusSize  = 8 + 8 + 4 + 4
)

// Cycle samples every module's status, builds the HEALTHANDSTATUS packet,
// and sends it on the bus with NO_WAIT. A send failure increments TLM's own
// error counter and raises an EM event directly — TLM is not the EM path
// itself, so this is permitted (spec §4.6).
func (p *Producer) Cycle() {
	p.mu.Lock()
	p.status.Cycles++
	p.mu.Unlock()

	payload := make([]byte, PayloadSize)
	p.encode(payload)

	var h msg.Header
	if res := msg.TelemetryMessage(&h, ids.PacketIDHealthAndStatus, PayloadSize); res != msg.Okay {
		p.recordSendFailure()
		return
	}

	if result := p.src.mb.Send(&h, payload, osal.NoWait); result != mb.Okay {
		p.recordSendFailure()
	}
}

func (p *Producer) recordSendFailure() {
	p.mu.Lock()
	p.status.SendErrors++
	p.mu.Unlock()
	if p.src.em != nil {
		p.src.em.Event(ids.ModuleTLM, ids.EventTelemetrySendFailed, 0, 0, 0, 0, 0, 0)
	}
}

// encode zeroes and refills buf with the concatenated TLM, MB, EM, TBL, TM
// status blocks, in that order (spec §6).
func (p *Producer) encode(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}

	off := 0
	off += encodeTLMStatus(buf[off:], p.GetStatus())
	off += encodeMBStatus(buf[off:], p.src.mb.GetStatus())
	off += encodeEMStatus(buf[off:], p.src.em.GetStatus())
	off += encodeTBLStatus(buf[off:], p.src.tbl.GetStatus())
	_ = encodeTMStatus(buf[off:], p.src.tm.GetStatus())
}

func encodeTLMStatus(buf []byte, s Status) int {
	binary.LittleEndian.PutUint64(buf[0:8], s.Cycles)
	binary.LittleEndian.PutUint64(buf[8:16], s.SendErrors)
	return tlmStatusSize
}

func encodeMBStatus(buf []byte, s mb.Status) int {
	binary.LittleEndian.PutUint32(buf[0:4], s.NumPipes)
	binary.LittleEndian.PutUint64(buf[4:12], s.MessagesSent)
	binary.LittleEndian.PutUint64(buf[12:20], s.MessagesReceived)
	binary.LittleEndian.PutUint64(buf[20:28], s.SendErrors)
	binary.LittleEndian.PutUint64(buf[28:36], s.ReceiveErrors)
	buf[36] = byte(s.LastErrorPacketID)
	binary.LittleEndian.PutUint32(buf[37:41], uint32(s.LastErrorPipe))
	binary.LittleEndian.PutUint32(buf[41:45], uint32(s.LastErrorCode))
	return mbStatusSize
}

func encodeEMStatus(buf []byte, s em.Status) int {
	binary.LittleEndian.PutUint64(buf[0:8], s.MessagesReceived)
	binary.LittleEndian.PutUint64(buf[8:16], s.MessagesSent)
	binary.LittleEndian.PutUint64(buf[16:24], s.MessageErrors)
	binary.LittleEndian.PutUint64(buf[24:32], s.InvalidMsgReceived)
	return emStatusSize
}

func encodeTBLStatus(buf []byte, s tbl.Status) int {
	binary.LittleEndian.PutUint32(buf[0:4], s.LoadAttempts)
	binary.LittleEndian.PutUint32(buf[4:8], s.LoadErrors)
	return tblStatusSize
}

func encodeTMStatus(buf []byte, s tm.Status) int {
	binary.LittleEndian.PutUint64(buf[0:8], s.Cycle)
	binary.LittleEndian.PutUint64(buf[8:16], s.SchedulerErrors)
	binary.LittleEndian.PutUint32(buf[16:20], s.TasksScheduled)
	binary.LittleEndian.PutUint32(buf[20:24], s.TasksMissedHeartbeat)
	return tmStatusSize
}

// GetStatus snapshots TLM's own counters by value.
func (p *Producer) GetStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
