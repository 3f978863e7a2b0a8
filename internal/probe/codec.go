package probe

import (
	"DelayBench/internal/model"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the record message carried on the NATS subject.
const (
	fieldPacketID        protowire.Number = 1
	fieldIngressTS       protowire.Number = 2
	fieldEgressTS        protowire.Number = 3
	fieldDestinationPort protowire.Number = 4
	fieldSourceIP        protowire.Number = 5
	fieldSourcePort      protowire.Number = 6
)

var errTruncated = errors.New("truncated record message")

// MarshalRecord encodes a record in protobuf wire format. The delta is not
// transmitted; it is derived again on decode.
func MarshalRecord(r model.PacketRecord) []byte {
	b := make([]byte, 0, 48+len(r.SourceIP))
	b = protowire.AppendTag(b, fieldPacketID, protowire.VarintType)
	b = protowire.AppendVarint(b, r.PacketID)
	b = protowire.AppendTag(b, fieldIngressTS, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, r.IngressTS)
	b = protowire.AppendTag(b, fieldEgressTS, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, r.EgressTS)
	b = protowire.AppendTag(b, fieldDestinationPort, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.DestinationPort))
	b = protowire.AppendTag(b, fieldSourceIP, protowire.BytesType)
	b = protowire.AppendString(b, r.SourceIP)
	b = protowire.AppendTag(b, fieldSourcePort, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.SourcePort))
	return b
}

// UnmarshalRecord decodes a record produced by MarshalRecord. Unknown fields
// are skipped.
func UnmarshalRecord(b []byte) (model.PacketRecord, error) {
	var r model.PacketRecord
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return r, fmt.Errorf("reading tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldPacketID && typ == protowire.VarintType:
			r.PacketID, n = protowire.ConsumeVarint(b)
		case num == fieldIngressTS && typ == protowire.Fixed64Type:
			r.IngressTS, n = protowire.ConsumeFixed64(b)
		case num == fieldEgressTS && typ == protowire.Fixed64Type:
			r.EgressTS, n = protowire.ConsumeFixed64(b)
		case num == fieldDestinationPort && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			r.DestinationPort = uint16(v)
		case num == fieldSourceIP && typ == protowire.BytesType:
			r.SourceIP, n = protowire.ConsumeString(b)
		case num == fieldSourcePort && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			r.SourcePort = uint16(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return r, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	if r.SourceIP == "" {
		return r, errTruncated
	}
	r.Delta = model.Delta(r.IngressTS, r.EgressTS)
	return r, nil
}
