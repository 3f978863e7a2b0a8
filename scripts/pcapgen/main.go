package main

import (
	"DelayBench/internal/config"
	"DelayBench/internal/protocol"
	"DelayBench/pkg/pcap"
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"
)

// Generates a capture of measurement datagrams for "delay-collector -mode replay".
func main() {
	outputFile := flag.String("o", "measurement.pcap", "Output pcap file path")
	flowCount := flag.Int("flows", 100, "Number of flows to generate")
	packetsPerFlow := flag.Int("packets", 10, "Number of packets per flow")
	dstAddr := flag.String("dst", "10.0.0.1", "Address of the node under test")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	dstIP := net.ParseIP(*dstAddr)
	if dstIP == nil {
		log.Fatalf("Invalid destination address: %s", *dstAddr)
	}

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	w, err := pcap.NewWriter(f)
	if err != nil {
		log.Fatalf("Failed to create pcap writer: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	log.Printf("Generating %d flows of %d packets into %s...", *flowCount, *packetsPerFlow, *outputFile)

	payload := make([]byte, protocol.RecordSize)
	ingress := uint64(time.Now().UnixNano())
	written := 0

	for flow := 0; flow < *flowCount; flow++ {
		srcIP := net.IP{10, 0, byte(rng.Intn(256)), byte(rng.Intn(254) + 1)}
		srcPort := uint16(rng.Intn(65535-1024) + 1024)
		dstPort := config.DefaultPorts[rng.Intn(len(config.DefaultPorts))]

		// Packets of a flow are emitted in a shuffled order so the first
		// packet is not always the first one captured.
		for _, id := range rng.Perm(*packetsPerFlow) {
			ingress += uint64(rng.Intn(1000))
			delay := uint64(rng.Intn(50000) + 1000)
			protocol.EncodeRecord(payload, protocol.Record{
				PacketID:  uint64(id),
				IngressTS: ingress,
				EgressTS:  ingress + delay,
			})

			ts := time.Unix(0, int64(ingress+delay))
			if err := w.WriteUDP(ts, srcIP, srcPort, dstIP, dstPort, payload); err != nil {
				log.Fatalf("Failed to write packet: %v", err)
			}
			written++
		}
	}

	log.Printf("Successfully generated %d packets into %s.", written, *outputFile)
}
