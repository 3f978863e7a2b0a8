package collector

import (
	"DelayBench/internal/config"
	"DelayBench/internal/model"
	"DelayBench/internal/protocol"
	"DelayBench/internal/snapshot"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"path/filepath"
	"sync"
	"time"
)

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("collector already started")
	// ErrNotStarted is returned when Run is called before Start.
	ErrNotStarted = errors.New("collector not started")
	// ErrUnsupported is returned on platforms without live capture support.
	ErrUnsupported = errors.New("live capture is not supported on this platform")
)

// Counters summarise what the collector has seen.
type Counters struct {
	Accepted  uint64 // records stored in the buffer
	Discarded uint64 // datagrams shorter than a record
	Dropped   uint64 // records lost to buffer overflow
}

// Collector captures measurement datagrams on a fixed set of UDP ports and
// materialises them as a node delay log.
type Collector struct {
	cfg        config.CollectorConfig
	podID      string
	ip         net.IP
	outputPath string
	checkpoint time.Duration

	buffer *Buffer
	sinks  []model.RecordSink

	listener *listener

	// Touched only from the goroutine that drives Run or Replay.
	accepted   uint64
	discarded  uint64
	sinkErrors uint64

	stopOnce sync.Once
	stopped  chan struct{}
}

// Option configures a Collector.
type Option func(*Collector)

// WithSink forwards every accepted record to sink.
func WithSink(sink model.RecordSink) Option {
	return func(c *Collector) {
		c.AddSink(sink)
	}
}

// New creates a collector for the configured interface. The node address is
// cfg.Address when set, otherwise the first IPv4 address of cfg.Interface.
func New(cfg config.CollectorConfig, opts ...Option) (*Collector, error) {
	ip, err := resolveAddress(cfg)
	if err != nil {
		return nil, err
	}
	checkpoint, err := cfg.CheckpointEvery()
	if err != nil {
		return nil, err
	}
	if len(cfg.Ports) == 0 {
		cfg.Ports = config.DefaultPorts
	}

	podID := cfg.PodID
	if podID == "" {
		podID = PodID(ip.String())
	}

	c := &Collector{
		cfg:        cfg,
		podID:      podID,
		ip:         ip,
		outputPath: filepath.Join(cfg.OutputDir, snapshot.NodeLogName(podID)),
		checkpoint: checkpoint,
		buffer:     NewBuffer(cfg.BufferCapacity, cfg.OverflowPolicy),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PodID derives a pod identifier from the last character of its address.
func PodID(ip string) string {
	if ip == "" {
		return "pod"
	}
	return "pod" + ip[len(ip)-1:]
}

// AddSink forwards every record accepted from now on to sink. It must not be
// called concurrently with Run.
func (c *Collector) AddSink(sink model.RecordSink) {
	c.sinks = append(c.sinks, sink)
}

// PodID returns the identifier the collector writes into its log.
func (c *Collector) PodID() string { return c.podID }

// Address returns the node address the collector binds to.
func (c *Collector) Address() net.IP { return c.ip }

// OutputPath returns where the node delay log is written.
func (c *Collector) OutputPath() string { return c.outputPath }

// Ports returns the measurement ports.
func (c *Collector) Ports() []uint16 { return c.cfg.Ports }

// Counters returns a snapshot of the collector's counters. It must not be
// called concurrently with Run.
func (c *Collector) Counters() Counters {
	return Counters{Accepted: c.accepted, Discarded: c.discarded, Dropped: c.buffer.Dropped()}
}

// Start binds one UDP socket per port.
func (c *Collector) Start() error {
	if c.listener != nil {
		return ErrAlreadyStarted
	}
	l, err := openListener(c.ip, c.cfg.Ports, c.cfg.ReceiveBufferBytes, c.cfg.MaxDatagramSize)
	if err != nil {
		return err
	}
	c.listener = l
	log.Printf("%s sniffing UDP packets on ports %v via interface %s with IP address %s", c.podID, c.cfg.Ports, c.cfg.Interface, c.ip)
	return nil
}

// Run services all sockets from a single loop until Stop is called or ctx is
// done, then flushes the buffer to the node delay log and closes the sockets.
// No socket is read once the flush has begun.
func (c *Collector) Run(ctx context.Context) error {
	if c.listener == nil {
		return ErrNotStarted
	}

	loopDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-c.stopped:
		case <-loopDone:
			return
		}
		c.listener.wake()
	}()

	loopErr := c.loop()
	close(loopDone)

	_, flushErr := c.Flush()
	if err := c.listener.close(); err != nil {
		log.Printf("%s: error closing sockets: %v", c.podID, err)
	}
	log.Printf("%s: closed sockets on ports %v", c.podID, c.cfg.Ports)

	if loopErr != nil {
		return loopErr
	}
	return flushErr
}

func (c *Collector) loop() error {
	timeout := -1
	if c.checkpoint > 0 {
		timeout = int(c.checkpoint / time.Millisecond)
	}
	lastCheckpoint := time.Now()

	for {
		ready, woken, err := c.listener.wait(timeout)
		if err != nil {
			return fmt.Errorf("waiting for datagrams: %w", err)
		}
		if woken {
			return nil
		}
		for _, fd := range ready {
			dg, ok, err := c.listener.receive(fd)
			if err != nil {
				log.Printf("%s: receive error: %v", c.podID, err)
				continue
			}
			if ok {
				c.Ingest(dg.payload, dg.dstPort, dg.srcIP, dg.srcPort)
			}
		}
		if c.checkpoint > 0 && time.Since(lastCheckpoint) >= c.checkpoint {
			if err := c.writeLog(); err != nil {
				log.Printf("%s: checkpoint failed: %v", c.podID, err)
			}
			lastCheckpoint = time.Now()
		}
	}
}

// Stop asks the collector to finish. It is safe to call more than once and
// from any goroutine; only the first call has an effect.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopped)
	})
}

// Ingest decodes one datagram and buffers the resulting record. Payloads too
// short to hold a record are discarded and reported as false.
func (c *Collector) Ingest(payload []byte, dstPort uint16, srcIP string, srcPort uint16) bool {
	hdr, ok := protocol.DecodeRecord(payload)
	if !ok {
		c.discarded++
		return false
	}
	record := hdr.PacketRecord(dstPort, srcIP, srcPort)
	if !c.buffer.Append(record) {
		return false
	}
	c.accepted++

	for _, sink := range c.sinks {
		if err := sink.Consume(record); err != nil {
			c.sinkErrors++
			if c.sinkErrors == 1 || c.sinkErrors%1000 == 0 {
				log.Printf("%s: %d records failed to reach a sink, last error: %v", c.podID, c.sinkErrors, err)
			}
		}
	}
	return true
}

// Snapshot returns the node delay log for the records buffered so far.
func (c *Collector) Snapshot() *model.NodeDelayLog {
	return &model.NodeDelayLog{
		PodID:     c.podID,
		IPAddress: c.ip.String(),
		Records:   c.buffer.Records(),
	}
}

// Flush writes the buffered records to the node delay log and returns it.
func (c *Collector) Flush() (*model.NodeDelayLog, error) {
	log.Printf("%s: saving %d entries (%d short datagrams discarded, %d dropped on overflow)",
		c.podID, c.buffer.Len(), c.discarded, c.buffer.Dropped())
	nodeLog := c.Snapshot()
	if err := snapshot.WriteJSON(c.outputPath, nodeLog); err != nil {
		return nil, err
	}
	log.Printf("%s: entries saved to %s", c.podID, c.outputPath)
	return nodeLog, nil
}

func (c *Collector) writeLog() error {
	return snapshot.WriteJSON(c.outputPath, c.Snapshot())
}

func resolveAddress(cfg config.CollectorConfig) (net.IP, error) {
	if cfg.Address != "" {
		ip := net.ParseIP(cfg.Address)
		if ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("invalid collector address '%s'", cfg.Address)
		}
		return ip.To4(), nil
	}

	iface, err := net.InterfaceByName(cfg.Interface)
	if err != nil {
		return nil, fmt.Errorf("failed to look up interface '%s': %w", cfg.Interface, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses of '%s': %w", cfg.Interface, err)
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				return ip4, nil
			}
		}
	}
	return nil, fmt.Errorf("interface '%s' has no IPv4 address", cfg.Interface)
}
