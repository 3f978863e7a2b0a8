package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// File names of the documents produced by each pipeline stage.
const (
	NodeLogSuffix    = "_delay_entries.json"
	RunFilePrefix    = "statistics_run_"
	CrossRunFileName = "aggregated_statistics.json"
)

// NodeLogName returns the file name of a pod's delay log.
func NodeLogName(podID string) string {
	return podID + NodeLogSuffix
}

// RunFileName returns the file name of a run's statistics document.
func RunFileName(run int) string {
	return fmt.Sprintf("%s%d.json", RunFilePrefix, run)
}

// WriteJSON serializes v as indented JSON and atomically replaces path with
// it. The document is written to a temporary file in the same directory,
// synced, then renamed, so readers never observe a partial document.
func WriteJSON(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for '%s': %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(v); err != nil {
		cleanup()
		return fmt.Errorf("failed to encode '%s': %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync '%s': %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close '%s': %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions on '%s': %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish '%s': %w", path, err)
	}
	return nil
}
