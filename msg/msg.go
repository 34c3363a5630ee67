// Package msg builds and parses the packet header every message on the bus
// carries: a packet type, a packet id, and a payload length. It is a pure
// function over caller-supplied memory — no package-level state — per
// spec §4.2.
package msg

import (
	"encoding/binary"

	"protoflight/ids"
)

// Result is MSG's typed outcome enum.
type Result int

const (
	Okay Result = iota
	NullPointer
	InvalidPacketID
)

func (r Result) String() string {
	switch r {
	case Okay:
		return "OKAY"
	case NullPointer:
		return "NULL_POINTER"
	case InvalidPacketID:
		return "INVALID_PACKET_ID"
	default:
		return "INVALID"
	}
}

// HeaderSize is the wire size of Header: one byte packet type, one byte
// packet id, two bytes little-endian length.
const HeaderSize = 4

// Header is a packet header. Length is the payload byte count that follows
// the header on the wire — it excludes the header itself.
type Header struct {
	PacketType ids.PacketType
	PacketID   ids.PacketID
	Length     uint16
}

// TelemetryMessage stamps header as a telemetry packet for packetID with the
// given payload length. Fails with NullPointer on a nil header and
// InvalidPacketID when packetID is out of range.
func TelemetryMessage(header *Header, packetID ids.PacketID, payloadBytes uint16) Result {
	return stamp(header, ids.PacketTypeTelemetry, packetID, payloadBytes)
}

// CommandMessage stamps header as a command packet for packetID with the
// given payload length.
func CommandMessage(header *Header, packetID ids.PacketID, payloadBytes uint16) Result {
	return stamp(header, ids.PacketTypeCommand, packetID, payloadBytes)
}

func stamp(header *Header, packetType ids.PacketType, packetID ids.PacketID, payloadBytes uint16) Result {
	if header == nil {
		return NullPointer
	}
	if !packetID.Valid() {
		return InvalidPacketID
	}
	header.PacketType = packetType
	header.PacketID = packetID
	header.Length = payloadBytes
	return Okay
}

// Encode writes the little-endian, tightly-packed wire form of h into buf,
// which must have length >= HeaderSize.
func Encode(h Header, buf []byte) {
	buf[0] = byte(h.PacketType)
	buf[1] = byte(h.PacketID)
	binary.LittleEndian.PutUint16(buf[2:4], h.Length)
}

// Decode reads a Header back out of buf's first HeaderSize bytes.
func Decode(buf []byte) Header {
	return Header{
		PacketType: ids.PacketType(buf[0]),
		PacketID:   ids.PacketID(buf[1]),
		Length:     binary.LittleEndian.Uint16(buf[2:4]),
	}
}
