package em

import (
	"encoding/binary"

	"protoflight/ids"
)

// PayloadSize is the wire size of an Event's payload (after the MSG
// header): a u32 module id, a u16 event id, a u16 line number, and five
// u32 parameters (spec §6): 4+2+2+5*4 = 32 bytes.
const PayloadSize = 4 + 2 + 2 + 5*4

// Event is the fixed-size structured diagnostic record EM publishes.
type Event struct {
	ModuleID   ids.ModuleID
	EventID    ids.EventID
	LineNumber uint16
	Params     [5]uint32
}

// Encode writes the little-endian, tightly-packed payload into buf, which
// must have length >= PayloadSize. The MSG header precedes this payload on
// the wire but is encoded separately by the msg package.
func Encode(e Event, buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(e.ModuleID))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(e.EventID))
	binary.LittleEndian.PutUint16(buf[6:8], e.LineNumber)
	for i, p := range e.Params {
		off := 8 + i*4
		binary.LittleEndian.PutUint32(buf[off:off+4], p)
	}
}

// Decode reads an Event payload back out of buf.
func Decode(buf []byte) Event {
	var e Event
	e.ModuleID = ids.ModuleID(binary.LittleEndian.Uint32(buf[0:4]))
	e.EventID = ids.EventID(binary.LittleEndian.Uint16(buf[4:6]))
	e.LineNumber = binary.LittleEndian.Uint16(buf[6:8])
	for i := range e.Params {
		off := 8 + i*4
		e.Params[i] = binary.LittleEndian.Uint32(buf[off : off+4])
	}
	return e
}
