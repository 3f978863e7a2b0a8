package snapshot

import (
	"DelayBench/internal/model"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONReplacesDocument(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path := filepath.Join(dir, RunFileName(3))

	first := &model.RunStatistics{RunNumber: 3, TotalPackets: 1}
	require.NoError(t, WriteJSON(path, first))

	second := &model.RunStatistics{
		RunNumber:    3,
		TotalPackets: 9,
		DelayStatistics: model.DistributionStats{
			Min: model.Inf(1),
			Max: model.Inf(-1),
		},
	}
	require.NoError(t, WriteJSON(path, second))

	got, err := ReadRunStatistics(path)
	require.NoError(t, err)
	assert.Equal(t, 9, got.TotalPackets)
	assert.False(t, got.DelayStatistics.Min.IsFinite())

	// No temporary files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "statistics_run_3.json", entries[0].Name())
}

func TestWriteJSONEncodingFailureKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, WriteJSON(path, map[string]int{"a": 1}))

	err := WriteJSON(path, map[string]interface{}{"bad": make(chan int)})
	require.Error(t, err)

	var back map[string]int
	require.NoError(t, ReadJSON(path, &back))
	assert.Equal(t, 1, back["a"])
}

func TestReadJSONNotFound(t *testing.T) {
	var v map[string]int
	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &v)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListRunFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"statistics_run_10.json", "statistics_run_2.json", "aggregated_statistics.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644))
	}
	files, err := ListRunFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, 2, files[0].Run)
	assert.Equal(t, 10, files[1].Run)

	_, err = ListRunFiles(filepath.Join(dir, "absent"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "pod3_delay_entries.json", NodeLogName("pod3"))
	assert.Equal(t, "statistics_run_12.json", RunFileName(12))
}
