package tlm

import (
	"testing"

	"protoflight/em"
	"protoflight/ids"
	"protoflight/mb"
	"protoflight/osal"
	"protoflight/tbl"
	"protoflight/tm"

	"github.com/stretchr/testify/require"
)

func TestCyclePublishesHealthAndStatus(t *testing.T) {
	bus := mb.NewBus(10, 4)
	emModule := em.NewModule(bus)
	scheduler := tm.NewTM(4, 1000, 1, 32)
	table := tbl.NewTable()
	producer := NewProducer(bus, emModule, scheduler, table)

	var pipeID int
	require.Equal(t, mb.Okay, bus.CreatePipe(&pipeID, 2, 4+PayloadSize))
	require.Equal(t, mb.Okay, bus.RegisterPacket(pipeID, ids.PacketIDHealthAndStatus))

	producer.Cycle()

	require.Equal(t, uint64(1), producer.GetStatus().Cycles)
	require.Equal(t, uint64(0), producer.GetStatus().SendErrors)

	buf := make([]byte, 4+PayloadSize)
	n, res := bus.Receive(pipeID, buf, osal.NoWait)
	require.Equal(t, mb.Okay, res)
	require.Equal(t, 4+PayloadSize, n)
	require.Equal(t, byte(ids.PacketTypeTelemetry), buf[0])
	require.Equal(t, byte(ids.PacketIDHealthAndStatus), buf[1])
}

func TestCycleEncodesTBLStatusBlock(t *testing.T) {
	bus := mb.NewBus(10, 4)
	emModule := em.NewModule(bus)
	scheduler := tm.NewTM(4, 1000, 1, 32)
	table := tbl.NewTable()
	producer := NewProducer(bus, emModule, scheduler, table)

	var pipeID int
	require.Equal(t, mb.Okay, bus.CreatePipe(&pipeID, 2, 4+PayloadSize))
	require.Equal(t, mb.Okay, bus.RegisterPacket(pipeID, ids.PacketIDHealthAndStatus))

	table.RecordLoadAttempt(false)
	producer.Cycle()

	buf := make([]byte, 4+PayloadSize)
	_, res := bus.Receive(pipeID, buf, osal.NoWait)
	require.Equal(t, mb.Okay, res)

	tblOffset := 4 + tlmStatusSize + mbStatusSize + emStatusSize
	require.Equal(t, uint32(1), leU32(buf[tblOffset:tblOffset+4]))
	require.Equal(t, uint32(1), leU32(buf[tblOffset+4:tblOffset+8]))
}

func TestCycleOnSendFailureRaisesEvent(t *testing.T) {
	bus := mb.NewBus(10, 4)
	emModule := em.NewModule(bus)
	scheduler := tm.NewTM(4, 1000, 1, 32)
	table := tbl.NewTable()
	producer := NewProducer(bus, emModule, scheduler, table)

	// A one-slot subscriber, once filled, guarantees the bus send times out.
	var pipeID int
	require.Equal(t, mb.Okay, bus.CreatePipe(&pipeID, 1, 4+PayloadSize))
	require.Equal(t, mb.Okay, bus.RegisterPacket(pipeID, ids.PacketIDHealthAndStatus))
	producer.Cycle() // fills the one slot

	producer.Cycle() // this one cannot be delivered under NO_WAIT

	require.Equal(t, uint64(1), producer.GetStatus().SendErrors)
	require.Equal(t, uint64(1), emModule.GetStatus().MessagesReceived)
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
