package model

// RecordSink receives every record the collector accepts, in capture order.
type RecordSink interface {
	Consume(record PacketRecord) error
}
