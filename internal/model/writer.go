package model

import "context"

// Writer defines a generic interface for persisting a run's statistics.
type Writer interface {
	// Write persists the statistics of one run.
	Write(ctx context.Context, stats *RunStatistics) error

	// Name identifies the writer in logs.
	Name() string

	// Close releases any connection held by the writer.
	Close() error
}
