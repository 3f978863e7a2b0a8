package probe

import (
	"DelayBench/internal/config"
	"DelayBench/internal/model"
	"log"
	"strings"

	"github.com/nats-io/nats.go"
)

// RecordHandler processes a record received from the pod identified by podID.
type RecordHandler func(podID string, r model.PacketRecord)

// Subscriber receives the records every collector publishes.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.PublisherConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Start subscribes to the records of all pods and hands each decoded record
// to handler.
func (s *Subscriber) Start(handler RecordHandler) error {
	sub, err := s.nc.Subscribe(s.subject+".>", dispatch(s.subject, handler))
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Subscribed to '%s.>'. Waiting for records...", s.subject)
	return nil
}

func dispatch(base string, handler RecordHandler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		r, err := UnmarshalRecord(msg.Data)
		if err != nil {
			log.Printf("Error decoding record on '%s': %v", msg.Subject, err)
			return
		}
		handler(strings.TrimPrefix(msg.Subject, base+"."), r)
	}
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}
