package api

import (
	"DelayBench/internal/engine/crossrun"
	"DelayBench/internal/snapshot"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"
)

// RunSummary is one entry of the run listing.
type RunSummary struct {
	RunNumber           int `json:"run_number"`
	TotalUniqueFlowKeys int `json:"total_unique_flow_keys"`
	TotalPackets        int `json:"total_packets"`
	Pods                int `json:"pods"`
	ExcludedNodes       int `json:"excluded_nodes"`
}

// Handler serves the documents of one statistics directory.
type Handler struct {
	dir string
}

// NewRouter returns the routes of the statistics API for dir.
func NewRouter(dir string) *mux.Router {
	h := &Handler{dir: dir}
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/runs", h.listRunsHandler).Methods("GET")
	r.HandleFunc("/api/v1/runs/{run:[0-9]+}", h.runHandler).Methods("GET")
	r.HandleFunc("/api/v1/runs/{run:[0-9]+}/pods/{pod}", h.podHandler).Methods("GET")
	r.HandleFunc("/api/v1/aggregate", h.aggregateHandler).Methods("GET")
	return r
}

// listRunsHandler lists the runs present in the directory.
func (h *Handler) listRunsHandler(w http.ResponseWriter, r *http.Request) {
	files, err := snapshot.ListRunFiles(h.dir)
	if err != nil {
		writeError(w, err)
		return
	}

	summaries := make([]RunSummary, 0, len(files))
	for _, f := range files {
		stats, err := snapshot.ReadRunStatistics(f.Path)
		if err != nil {
			writeError(w, err)
			return
		}
		summaries = append(summaries, RunSummary{
			RunNumber:           f.Run,
			TotalUniqueFlowKeys: stats.TotalUniqueFlowKeys,
			TotalPackets:        stats.TotalPackets,
			Pods:                len(stats.PodStatistics),
			ExcludedNodes:       len(stats.ExcludedNodes),
		})
	}
	writeJSON(w, summaries)
}

// runHandler returns a run's full statistics document.
func (h *Handler) runHandler(w http.ResponseWriter, r *http.Request) {
	run, err := strconv.Atoi(mux.Vars(r)["run"])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid run number: %v", err), http.StatusBadRequest)
		return
	}
	stats, err := snapshot.ReadRunStatistics(filepath.Join(h.dir, snapshot.RunFileName(run)))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, stats)
}

// podHandler returns the delay statistics of one pod within a run.
func (h *Handler) podHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	run, err := strconv.Atoi(vars["run"])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid run number: %v", err), http.StatusBadRequest)
		return
	}
	stats, err := snapshot.ReadRunStatistics(filepath.Join(h.dir, snapshot.RunFileName(run)))
	if err != nil {
		writeError(w, err)
		return
	}
	pod, ok := stats.PodStatistics[vars["pod"]]
	if !ok {
		http.Error(w, fmt.Sprintf("pod '%s' not found in run %d", vars["pod"], run), http.StatusNotFound)
		return
	}
	writeJSON(w, pod)
}

// aggregateHandler computes the cross-run report over every run in the directory.
func (h *Handler) aggregateHandler(w http.ResponseWriter, r *http.Request) {
	report, err := crossrun.AggregateDir(h.dir)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, report)
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, snapshot.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	log.Printf("API request failed: %v", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}
