package main

import (
	"DelayBench/internal/collector"
	"DelayBench/internal/config"
	"DelayBench/internal/health"
	"DelayBench/internal/model"
	"DelayBench/internal/probe"
	"DelayBench/internal/probe/persistent"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// --- Command-Line Flag Parsing ---
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file.")
	mode := flag.String("mode", "live", "Operating mode: 'live' to capture on the measurement ports, 'replay' to read a capture file, 'sub' to print published records.")
	pcapPath := flag.String("pcap", "", "Capture file to replay (required for replay mode).")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// --- Mode Dispatch ---
	switch *mode {
	case "live":
		runLive(cfg)
	case "replay":
		runReplay(cfg, *pcapPath)
	case "sub":
		runSubscriber(cfg)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
}

// runLive captures measurement datagrams until SIGINT or SIGTERM, then writes
// the node delay log.
func runLive(cfg *config.Config) {
	// 1. Build the collector and its optional publisher
	c, err := collector.New(cfg.Collector)
	if err != nil {
		log.Fatalf("Failed to create collector: %v", err)
	}
	if cfg.Publisher.Enabled {
		pub, err := probe.NewPublisher(cfg.Publisher, c.PodID())
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer pub.Close()
		c.AddSink(pub)
	}

	// 2. Bind the measurement ports
	if err := c.Start(); err != nil {
		log.Fatalf("Failed to bind measurement ports: %v", err)
	}

	// 3. Report liveness
	var hs *health.Server
	if cfg.Health.Enabled {
		hs, err = health.NewServer(cfg.Health)
		if err != nil {
			log.Fatalf("Failed to start health server: %v", err)
		}
		defer hs.Stop()
		hs.SetServing(true)
	}

	// 4. Stop on the first signal; later signals find the collector stopping
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			log.Printf("Signal %v received, shutting down...", sig)
			if hs != nil {
				hs.SetServing(false)
			}
			c.Stop()
		}
	}()

	// 5. Serve the sockets until stopped, then flush
	if err := c.Run(context.Background()); err != nil {
		log.Fatalf("Collector failed: %v", err)
	}
	counters := c.Counters()
	log.Printf("Shutdown complete: %d records, %d short datagrams, %d dropped on overflow",
		counters.Accepted, counters.Discarded, counters.Dropped)
}

// runReplay feeds a capture file through the collector and writes the node delay log.
func runReplay(cfg *config.Config, pcapPath string) {
	if pcapPath == "" {
		log.Println("Error: -pcap flag is required for replay mode.")
		flag.Usage()
		os.Exit(1)
	}

	c, err := collector.New(cfg.Collector)
	if err != nil {
		log.Fatalf("Failed to create collector: %v", err)
	}

	file, err := os.Open(pcapPath)
	if err != nil {
		log.Fatalf("Failed to open capture file: %v", err)
	}
	defer file.Close()
	log.Printf("Replaying '%s' as %s (%s)...", pcapPath, c.PodID(), c.Address())

	if _, err := c.Replay(file); err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
	if _, err := c.Flush(); err != nil {
		log.Fatalf("Failed to write node delay log: %v", err)
	}
}

// runSubscriber prints, and optionally archives, the records every collector publishes.
func runSubscriber(cfg *config.Config) {
	log.Println("Starting delay-collector in SUBSCRIBER mode...")

	sub, err := probe.NewSubscriber(cfg.Publisher)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}

	var archive *persistent.Worker
	if cfg.Archive.Enabled {
		archive, err = persistent.NewWorker(cfg.Archive)
		if err != nil {
			log.Fatalf("Failed to start archive worker: %v", err)
		}
	}

	handler := func(podID string, r model.PacketRecord) {
		log.Printf("Received record from %s: %+v", podID, r)
		if archive != nil {
			archive.Enqueue(persistent.Entry{PodID: podID, Record: r})
		}
	}
	if err := sub.Start(handler); err != nil {
		log.Fatalf("Subscriber failed to start: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")

	sub.Close()
	if archive != nil {
		archive.Stop()
	}
}
