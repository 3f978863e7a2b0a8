package crossrun

import (
	"DelayBench/internal/model"
	"DelayBench/internal/snapshot"
	"DelayBench/internal/stats"
	"fmt"
	"log"
)

// metric selects one scalar of a run's distribution statistics.
type metric struct {
	name string
	get  func(model.DistributionStats) model.Float
}

var metrics = []metric{
	{"min", func(d model.DistributionStats) model.Float { return d.Min }},
	{"max", func(d model.DistributionStats) model.Float { return d.Max }},
	{"mean", func(d model.DistributionStats) model.Float { return d.Mean }},
}

// Aggregate combines the statistics of repeated runs into a stability report.
//
// For every statistic group the per-run min, max and mean are each treated as
// a sample over runs; runs where the group was empty (min=+Inf, max=-Inf)
// contribute none of the three scalars. Independently, all first-packet delays
// of all runs are pooled per flow class and their dispersion is reported
// separately.
func Aggregate(runs []*model.RunStatistics) *model.CrossRunStatistics {
	out := &model.CrossRunStatistics{
		RunStats: make(map[string]model.RunDetail, len(runs)),
	}

	out.DelayStatistics = groupStability(runs, func(r *model.RunStatistics) model.DistributionStats { return r.DelayStatistics })
	out.BaseFirstPacketStatistics = groupStability(runs, func(r *model.RunStatistics) model.DistributionStats { return r.BaseFirstPacketStatistics })
	out.AssociatedFirstPacketStatistics = groupStability(runs, func(r *model.RunStatistics) model.DistributionStats { return r.AssociatedFirstPacketStatistics })

	var base, associated []float64
	for _, r := range runs {
		for _, delay := range r.BaseFirstPacketDelays {
			base = append(base, float64(delay))
		}
		for _, delay := range r.AssociatedFirstPacketDelays {
			associated = append(associated, float64(delay))
		}

		key := fmt.Sprintf("run_%d", r.RunNumber)
		if _, exists := out.RunStats[key]; exists {
			log.Printf("Duplicate statistics for run %d, keeping the later document", r.RunNumber)
		}
		out.RunStats[key] = model.RunDetail{
			TotalUniqueFlowKeys:             r.TotalUniqueFlowKeys,
			TotalPackets:                    r.TotalPackets,
			DelayStatistics:                 r.DelayStatistics,
			BaseFirstPacketStatistics:       r.BaseFirstPacketStatistics,
			AssociatedFirstPacketStatistics: r.AssociatedFirstPacketStatistics,
			PodStatistics:                   r.PodStatistics,
			ExcludedNodes:                   r.ExcludedNodes,
		}
	}

	out.BaseOverallStdDev, out.BaseOverallCV = pooled(base)
	out.AssociatedOverallStdDev, out.AssociatedOverallCV = pooled(associated)
	return out
}

// AggregateDir reads every run statistics document in dir and aggregates them.
func AggregateDir(dir string) (*model.CrossRunStatistics, error) {
	files, err := snapshot.ListRunFiles(dir)
	if err != nil {
		return nil, err
	}

	runs := make([]*model.RunStatistics, 0, len(files))
	for _, f := range files {
		r, err := snapshot.ReadRunStatistics(f.Path)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	log.Printf("Aggregating %d runs from '%s'", len(runs), dir)
	return Aggregate(runs), nil
}

func groupStability(runs []*model.RunStatistics, group func(*model.RunStatistics) model.DistributionStats) model.GroupStability {
	// A run whose group was empty contributes none of its scalars.
	var present []model.DistributionStats
	for _, r := range runs {
		d := group(r)
		if !d.Min.IsFinite() || !d.Max.IsFinite() || d.Min > d.Max {
			continue
		}
		present = append(present, d)
	}

	out := make(model.GroupStability)
	if len(present) == 0 {
		return out
	}
	for _, m := range metrics {
		values := make([]float64, len(present))
		for i, d := range present {
			values[i] = float64(m.get(d))
		}

		sd, mean := stats.StdDev(values)
		lo, hi := values[0], values[0]
		for _, v := range values[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		out[m.name+"_std_dev"] = model.Float(sd)
		out[m.name+"_cv"] = model.Float(stats.CV(sd, mean))
		out[m.name+"_min"] = model.Float(lo)
		out[m.name+"_max"] = model.Float(hi)
	}
	return out
}

func pooled(values []float64) (stdDev, cv *model.Float) {
	if len(values) == 0 {
		return nil, nil
	}
	sd, mean := stats.StdDev(values)
	s := model.Float(sd)
	c := model.Float(stats.CV(sd, mean))
	return &s, &c
}
