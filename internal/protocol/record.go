package protocol

import (
	"DelayBench/internal/model"
	"encoding/binary"
)

// RecordSize is the minimum payload length of a measurement datagram.
const RecordSize = 24

// Record is the fixed timestamp header carried at the start of every
// measurement datagram:
//
//	[0,8)   packet id          big-endian
//	[8,16)  ingress timestamp  little-endian
//	[16,24) egress timestamp   little-endian
//
// The mixed byte order is part of the format and must not be normalised.
type Record struct {
	PacketID  uint64
	IngressTS uint64
	EgressTS  uint64
}

// DecodeRecord decodes the header from payload. It reports false when the
// payload is too short to carry a record; such datagrams are not measurement
// traffic and are dropped by the caller.
func DecodeRecord(payload []byte) (Record, bool) {
	if len(payload) < RecordSize {
		return Record{}, false
	}
	return Record{
		PacketID:  binary.BigEndian.Uint64(payload[0:8]),
		IngressTS: binary.LittleEndian.Uint64(payload[8:16]),
		EgressTS:  binary.LittleEndian.Uint64(payload[16:24]),
	}, true
}

// EncodeRecord writes r into the first RecordSize bytes of dst, which must be
// at least that long. Used by traffic replayers and tests.
func EncodeRecord(dst []byte, r Record) {
	binary.BigEndian.PutUint64(dst[0:8], r.PacketID)
	binary.LittleEndian.PutUint64(dst[8:16], r.IngressTS)
	binary.LittleEndian.PutUint64(dst[16:24], r.EgressTS)
}

// PacketRecord attaches the datagram addressing to a decoded header.
func (r Record) PacketRecord(dstPort uint16, srcIP string, srcPort uint16) model.PacketRecord {
	return model.NewPacketRecord(r.PacketID, r.IngressTS, r.EgressTS, dstPort, srcIP, srcPort)
}
