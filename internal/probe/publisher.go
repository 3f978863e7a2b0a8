package probe

import (
	"DelayBench/internal/config"
	"DelayBench/internal/model"
	"log"

	"github.com/nats-io/nats.go"
)

// conn is the part of a NATS connection the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher forwards accepted records to a NATS subject. It implements
// model.RecordSink so it can be attached to a collector.
type Publisher struct {
	nc      conn
	subject string
}

// NewPublisher creates a new NATS publisher. Records are published on
// "<subject>.<podID>".
func NewPublisher(cfg config.PublisherConfig, podID string) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("delay-collector "+podID))
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return newPublisher(nc, RecordSubject(cfg.Subject, podID)), nil
}

func newPublisher(nc conn, subject string) *Publisher {
	return &Publisher{nc: nc, subject: subject}
}

// RecordSubject returns the subject a pod publishes its records on.
func RecordSubject(base, podID string) string {
	return base + "." + podID
}

// Subject returns the subject records are published on.
func (p *Publisher) Subject() string { return p.subject }

// Consume serializes a record and publishes it. The NATS client buffers
// outgoing messages, so this does not block on the network.
func (p *Publisher) Consume(r model.PacketRecord) error {
	return p.nc.Publish(p.subject, MarshalRecord(r))
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
