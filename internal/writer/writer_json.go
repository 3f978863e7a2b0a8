package writer

import (
	"DelayBench/internal/model"
	"DelayBench/internal/snapshot"
	"context"
	"log"
	"path/filepath"
)

// JSONWriter persists run documents as statistics_run_<N>.json files.
type JSONWriter struct {
	dir string
}

// NewJSONWriter creates a writer that places run documents in dir.
func NewJSONWriter(dir string) *JSONWriter {
	return &JSONWriter{dir: dir}
}

// Name implements model.Writer.
func (w *JSONWriter) Name() string { return "json" }

// Path returns the file a run's document is written to.
func (w *JSONWriter) Path(run int) string {
	return filepath.Join(w.dir, snapshot.RunFileName(run))
}

// Write replaces the run's document as a whole.
func (w *JSONWriter) Write(_ context.Context, stats *model.RunStatistics) error {
	path := w.Path(stats.RunNumber)
	if err := snapshot.WriteJSON(path, stats); err != nil {
		return err
	}
	log.Printf("Statistics for run %d saved to %s", stats.RunNumber, path)
	return nil
}

// Close implements model.Writer.
func (w *JSONWriter) Close() error { return nil }
