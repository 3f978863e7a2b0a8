package main

import (
	"DelayBench/internal/config"
	"DelayBench/internal/engine/runaggregator"
	"DelayBench/internal/writer"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	directory := flag.String("directory", "", "Directory holding the delay-entries-run-<N> subdirectories.")
	outputDirectory := flag.String("output_directory", "", "Directory the statistics_run_<N>.json documents are written to.")
	configPath := flag.String("config", "", "Optional YAML configuration for workers and writers.")
	flag.Parse()

	if *directory == "" || *outputDirectory == "" {
		flag.Usage()
		os.Exit(1)
	}

	// 1. Load configuration
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	// 2. Find the runs
	runs, err := runaggregator.DiscoverRuns(*directory)
	if err != nil {
		log.Fatalf("Failed to discover runs: %v", err)
	}
	if len(runs) == 0 {
		log.Fatalf("No delay-entries-run-<N> directories found in '%s'", *directory)
	}
	log.Printf("Found %d runs in '%s'", len(runs), *directory)

	// 3. Initialize writers
	writers, err := writer.Create(cfg.Writers, *outputDirectory)
	if err != nil {
		log.Fatalf("Failed to create writers: %v", err)
	}
	defer func() {
		for _, w := range writers {
			if err := w.Close(); err != nil {
				log.Printf("Error closing %s writer: %v", w.Name(), err)
			}
		}
	}()

	// 4. Aggregate each run and hand it to every writer
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := runaggregator.New(runaggregator.WithWorkers(cfg.Aggregator.NumWorkers))
	failed := 0
	for _, run := range runs {
		stats, err := agg.AggregateDir(ctx, run.Path, run.Run)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("Interrupted while aggregating run %d", run.Run)
				os.Exit(1)
			}
			log.Printf("Failed to aggregate run %d: %v", run.Run, err)
			failed++
			continue
		}
		for _, w := range writers {
			if err := w.Write(ctx, stats); err != nil {
				log.Printf("Writer %s failed for run %d: %v", w.Name(), run.Run, err)
				failed++
			}
		}
	}

	if failed > 0 {
		log.Printf("Finished with %d failures.", failed)
		os.Exit(1)
	}
	log.Println("All runs processed.")
}
