package runaggregator

import (
	"DelayBench/internal/engine/extractor"
	"DelayBench/internal/model"
	"DelayBench/internal/stats"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var runDirPattern = regexp.MustCompile(`delay-entries-run-(\d+)$`)

// RunDir is a directory holding the node logs of one benchmark run.
type RunDir struct {
	Run  int
	Path string
}

// DiscoverRuns returns the run directories under root ordered by run number.
func DiscoverRuns(root string) ([]RunDir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory '%s': %w", root, err)
	}

	var runs []RunDir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := runDirPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		run, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		runs = append(runs, RunDir{Run: run, Path: filepath.Join(root, entry.Name())})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Run < runs[j].Run })
	return runs, nil
}

// ExtractFunc extracts one node log.
type ExtractFunc func(path string) (*extractor.Result, error)

// Aggregator runs the flow delay extractor over every node log of a run and
// merges the results.
type Aggregator struct {
	numWorkers int
	extract    ExtractFunc
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithWorkers sets the number of node logs extracted concurrently.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.numWorkers = n
		}
	}
}

// WithExtractFunc replaces the node log extractor.
func WithExtractFunc(fn ExtractFunc) Option {
	return func(a *Aggregator) {
		a.extract = fn
	}
}

// New creates a new Aggregator sized to the available cores.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		numWorkers: runtime.NumCPU(),
		extract:    extractor.ExtractFile,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// outcome is the result or error of one node task.
type outcome struct {
	path   string
	result *extractor.Result
	err    error
}

// AggregateDir extracts every node log in dir and merges the results into
// the statistics of the given run. A node that fails to extract is logged
// and excluded; it does not fail the run.
func (a *Aggregator) AggregateDir(ctx context.Context, dir string, run int) (*model.RunStatistics, error) {
	paths, err := nodeLogs(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		log.Printf("Run %d: no node logs found in '%s'", run, dir)
	}

	outcomes := a.extractAll(ctx, paths)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var results []*extractor.Result
	var excluded []model.ExcludedNode
	for _, o := range outcomes {
		if o.err != nil {
			log.Printf("Run %d: excluding node log '%s': %v", run, o.path, o.err)
			excluded = append(excluded, model.ExcludedNode{Path: o.path, Error: o.err.Error()})
			continue
		}
		results = append(results, o.result)
	}

	runStats := Merge(run, results)
	runStats.ExcludedNodes = excluded
	log.Printf("Run %d: merged %d node logs (%d excluded), %d flows, %d packets",
		run, len(results), len(excluded), runStats.TotalUniqueFlowKeys, runStats.TotalPackets)
	return runStats, nil
}

// extractAll runs one task per node log on a bounded worker pool and returns
// once every task has finished. Each task owns its own slot of the outcome
// slice, so no locking is needed.
func (a *Aggregator) extractAll(ctx context.Context, paths []string) []outcome {
	outcomes := make([]outcome, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := a.numWorkers
	if workers > len(paths) {
		workers = len(paths)
	}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = a.runTask(ctx, paths[idx])
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return outcomes
}

func (a *Aggregator) runTask(ctx context.Context, path string) (o outcome) {
	o.path = path
	if err := ctx.Err(); err != nil {
		o.err = err
		return o
	}
	defer func() {
		if r := recover(); r != nil {
			o.result = nil
			o.err = fmt.Errorf("extraction panicked: %v", r)
		}
	}()
	o.result, o.err = a.extract(path)
	if o.result != nil && o.result.Path == "" {
		o.result.Path = path
	}
	return o
}

// Merge combines per-node results into run statistics. Results are merged in
// (pod id, IP address, log path) order so the outcome does not depend on the
// order the tasks finished in. When two nodes report the same flow key, the
// later one in that order wins.
func Merge(run int, results []*extractor.Result) *model.RunStatistics {
	ordered := make([]*extractor.Result, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].PodID != ordered[j].PodID {
			return ordered[i].PodID < ordered[j].PodID
		}
		if ordered[i].IPAddress != ordered[j].IPAddress {
			return ordered[i].IPAddress < ordered[j].IPAddress
		}
		return ordered[i].Path < ordered[j].Path
	})

	runStats := &model.RunStatistics{
		RunNumber:                   run,
		PodStatistics:               make(map[string]model.DistributionStats),
		BaseFirstPacketDelays:       make(map[model.FlowKey]int64),
		AssociatedFirstPacketDelays: make(map[model.FlowKey]int64),
	}

	var deltas, baseDelays, associatedDelays []int64
	collisions := 0
	for _, res := range ordered {
		deltas = append(deltas, res.Deltas...)
		for key, delay := range res.BaseFirstPacketDelays {
			baseDelays = append(baseDelays, delay)
			if _, exists := runStats.BaseFirstPacketDelays[key]; exists {
				collisions++
			}
			runStats.BaseFirstPacketDelays[key] = delay
		}
		for key, delay := range res.AssociatedFirstPacketDelays {
			associatedDelays = append(associatedDelays, delay)
			if _, exists := runStats.AssociatedFirstPacketDelays[key]; exists {
				collisions++
			}
			runStats.AssociatedFirstPacketDelays[key] = delay
		}
		if _, exists := runStats.PodStatistics[res.PodID]; exists {
			log.Printf("Run %d: duplicate pod id '%s' (IP %s), keeping the later statistics", run, res.PodID, res.IPAddress)
		}
		runStats.PodStatistics[res.PodID] = res.Statistics
		runStats.TotalUniqueFlowKeys += res.UniqueFlowCount
		runStats.TotalPackets += res.PacketCount
	}
	if collisions > 0 {
		log.Printf("Run %d: %d flow keys reported by more than one node, later node kept", run, collisions)
	}

	runStats.DelayStatistics = stats.DescribeInts(deltas)
	runStats.BaseFirstPacketStatistics = stats.DescribeInts(baseDelays)
	runStats.AssociatedFirstPacketStatistics = stats.DescribeInts(associatedDelays)
	return runStats
}

func nodeLogs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read run directory '%s': %w", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}
