package collector

import (
	"DelayBench/internal/protocol"
	"DelayBench/pkg/pcap"
	"errors"
	"fmt"
	"io"
	"log"
)

// ReplayStats counts what a pcap replay fed into the collector.
type ReplayStats struct {
	Frames   int // frames read from the capture
	Matched  int // UDP datagrams addressed to a measurement port
	Ingested int // datagrams that produced a buffered record
}

// Replay reads a pcap or pcapng stream and feeds every UDP datagram addressed
// to one of the collector's ports through Ingest, as if it had arrived on the
// socket. Frames that are not UDP are skipped.
func (c *Collector) Replay(r io.Reader) (ReplayStats, error) {
	var st ReplayStats

	reader, err := pcap.NewStreamReader(r)
	if err != nil {
		return st, err
	}
	linkType := reader.LinkType()

	ports := make(map[uint16]bool, len(c.cfg.Ports))
	for _, p := range c.cfg.Ports {
		ports[p] = true
	}

	for {
		data, _, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, fmt.Errorf("failed to read pcap frame %d: %w", st.Frames+1, err)
		}
		st.Frames++

		dg, err := protocol.ParseDatagram(data, linkType)
		if err != nil || !ports[dg.DstPort] {
			continue
		}
		st.Matched++
		if c.Ingest(dg.Payload, dg.DstPort, dg.SrcIP.String(), dg.SrcPort) {
			st.Ingested++
		}
	}

	log.Printf("%s: replayed %d frames, %d measurement datagrams, %d records buffered", c.podID, st.Frames, st.Matched, st.Ingested)
	return st, nil
}
