package api

import (
	"DelayBench/internal/model"
	"DelayBench/internal/snapshot"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRun(t *testing.T, dir string, run int, mean model.Float) {
	t.Helper()
	key := model.FlowKey{SourceIP: "10.0.0.1", SourcePort: 4000, DestinationIP: "10.0.0.2", DestinationPort: 2100}
	stats := &model.RunStatistics{
		RunNumber:           run,
		TotalUniqueFlowKeys: 1,
		TotalPackets:        4,
		DelayStatistics:     model.DistributionStats{Min: mean, Max: mean, Mean: mean},
		PodStatistics: map[string]model.DistributionStats{
			"pod2": {Min: mean, Max: mean, Mean: mean},
		},
		BaseFirstPacketDelays:       map[model.FlowKey]int64{key: int64(mean)},
		AssociatedFirstPacketDelays: map[model.FlowKey]int64{},
	}
	require.NoError(t, snapshot.WriteJSON(filepath.Join(dir, snapshot.RunFileName(run)), stats))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListRuns(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, 2, 12)
	writeRun(t, dir, 1, 10)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	rec := get(t, NewRouter(dir), "/api/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var runs []RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Equal(t, []RunSummary{
		{RunNumber: 1, TotalUniqueFlowKeys: 1, TotalPackets: 4, Pods: 1},
		{RunNumber: 2, TotalUniqueFlowKeys: 1, TotalPackets: 4, Pods: 1},
	}, runs)
}

func TestGetRunAndPod(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, 7, 30)
	router := NewRouter(dir)

	rec := get(t, router, "/api/v1/runs/7")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats model.RunStatistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 7, stats.RunNumber)
	assert.Len(t, stats.BaseFirstPacketDelays, 1)

	rec = get(t, router, "/api/v1/runs/7/pods/pod2")
	require.Equal(t, http.StatusOK, rec.Code)
	var pod model.DistributionStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pod))
	assert.Equal(t, model.Float(30), pod.Mean)

	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/v1/runs/7/pods/pod9").Code)
	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/v1/runs/8").Code)
	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/v1/runs/abc").Code)
}

func TestAggregate(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, 1, 10)
	writeRun(t, dir, 2, 12)
	writeRun(t, dir, 3, 14)

	rec := get(t, NewRouter(dir), "/api/v1/aggregate")
	require.Equal(t, http.StatusOK, rec.Code)

	var report model.CrossRunStatistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.InDelta(t, 2.0, float64(report.DelayStatistics["mean_std_dev"]), 1e-9)
	assert.Len(t, report.RunStats, 3)
	require.NotNil(t, report.BaseOverallStdDev)
	assert.InDelta(t, 2.0, float64(*report.BaseOverallStdDev), 1e-9)
}

func TestMissingDirectory(t *testing.T) {
	router := NewRouter(filepath.Join(t.TempDir(), "absent"))
	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/v1/runs").Code)
	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/v1/aggregate").Code)
}

func TestCorruptRunDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshot.RunFileName(1)), []byte("{"), 0644))
	assert.Equal(t, http.StatusInternalServerError, get(t, NewRouter(dir), "/api/v1/runs/1").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(t.TempDir()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
