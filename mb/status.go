package mb

import "protoflight/ids"

// Status snapshots the bus's monotonically non-decreasing counters. Cleared
// only by Initialize.
type Status struct {
	NumPipes          uint32
	MessagesSent      uint64
	MessagesReceived  uint64
	SendErrors        uint64
	ReceiveErrors     uint64
	LastErrorPacketID ids.PacketID
	LastErrorPipe     int32
	LastErrorCode     int32
}
