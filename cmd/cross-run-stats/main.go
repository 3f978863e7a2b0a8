package main

import (
	"DelayBench/internal/engine/crossrun"
	"DelayBench/internal/snapshot"
	"flag"
	"log"
	"os"
	"path/filepath"
)

func main() {
	directory := flag.String("directory", "", "Directory holding the statistics_run_<N>.json documents.")
	outputDirectory := flag.String("output_directory", "", "Directory the aggregated statistics are written to.")
	flag.Parse()

	if *directory == "" || *outputDirectory == "" {
		flag.Usage()
		os.Exit(1)
	}

	// 1. Aggregate every run document
	report, err := crossrun.AggregateDir(*directory)
	if err != nil {
		log.Fatalf("Failed to aggregate runs: %v", err)
	}
	if len(report.RunStats) == 0 {
		log.Printf("No statistics_run_<N>.json documents found in '%s'", *directory)
	}

	// 2. Persist the report
	path := filepath.Join(*outputDirectory, snapshot.CrossRunFileName)
	if err := snapshot.WriteJSON(path, report); err != nil {
		log.Fatalf("Failed to write aggregated statistics: %v", err)
	}
	log.Printf("Aggregated statistics for %d runs saved to %s", len(report.RunStats), path)
}
