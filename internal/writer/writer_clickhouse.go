package writer

import (
	"DelayBench/internal/config"
	"DelayBench/internal/model"
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createStatisticsTable = `
CREATE TABLE IF NOT EXISTS run_statistics (
    Timestamp           DateTime,
    RunNumber           UInt32,
    Scope               String,
    PodID               String,
    TotalPackets        UInt64,
    TotalUniqueFlowKeys UInt64,
    Min                 Float64,
    Max                 Float64,
    Mean                Float64,
    Median              Float64,
    StdDev              Float64,
    Variance            Float64,
    CV                  Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (RunNumber, Scope, PodID, Timestamp);
`

const createDelaysTable = `
CREATE TABLE IF NOT EXISTS first_packet_delays (
    Timestamp  DateTime,
    RunNumber  UInt32,
    FlowClass  LowCardinality(String),
    SrcIP      String,
    SrcPort    UInt16,
    DstIP      String,
    DstPort    UInt16,
    Delay      Int64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (RunNumber, FlowClass, Timestamp);
`

// Scopes of a run_statistics row.
const (
	ScopeAll             = "all"
	ScopeBaseFirst       = "base_first_packet"
	ScopeAssociatedFirst = "associated_first_packet"
	ScopePod             = "pod"
)

// Classes of a first_packet_delays row.
const (
	ClassBase       = "base"
	ClassAssociated = "associated"
)

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn driver.Conn
	now  func() time.Time
}

// NewClickHouseWriter creates a new ClickHouse writer and ensures both tables exist.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	for _, stmt := range []string{createStatisticsTable, createDelaysTable} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Println("Successfully connected to ClickHouse and ensured tables exist.")

	return &ClickHouseWriter{conn: conn, now: time.Now}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Name implements model.Writer.
func (w *ClickHouseWriter) Name() string { return "clickhouse" }

// Write inserts the run's distribution statistics and every first-packet delay.
func (w *ClickHouseWriter) Write(ctx context.Context, stats *model.RunStatistics) error {
	ts := w.now()

	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO run_statistics")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, row := range statisticsRows(stats) {
		d := row.Stats
		err = batch.Append(
			ts,
			uint32(stats.RunNumber),
			row.Scope,
			row.PodID,
			uint64(stats.TotalPackets),
			uint64(stats.TotalUniqueFlowKeys),
			float64(d.Min),
			float64(d.Max),
			float64(d.Mean),
			float64(d.Median),
			float64(d.StdDev),
			float64(d.Variance),
			float64(d.CoefficientOfVariation),
		)
		if err != nil {
			return fmt.Errorf("failed to append statistics to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	delays := delayRows(stats)
	if len(delays) > 0 {
		batch, err = w.conn.PrepareBatch(ctx, "INSERT INTO first_packet_delays")
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		for _, row := range delays {
			k := row.Key
			if err := batch.Append(ts, uint32(stats.RunNumber), row.Class,
				k.SourceIP, k.SourcePort, k.DestinationIP, k.DestinationPort, row.Delay); err != nil {
				return fmt.Errorf("failed to append delay to batch: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
	}

	log.Printf("Wrote run %d to ClickHouse (%d first-packet delays)", stats.RunNumber, len(delays))
	return nil
}

// Close closes the connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}

type statisticsRow struct {
	Scope string
	PodID string
	Stats model.DistributionStats
}

// statisticsRows flattens a run into one row per statistic group, pods sorted by id.
func statisticsRows(stats *model.RunStatistics) []statisticsRow {
	rows := []statisticsRow{
		{Scope: ScopeAll, Stats: stats.DelayStatistics},
		{Scope: ScopeBaseFirst, Stats: stats.BaseFirstPacketStatistics},
		{Scope: ScopeAssociatedFirst, Stats: stats.AssociatedFirstPacketStatistics},
	}
	pods := make([]string, 0, len(stats.PodStatistics))
	for pod := range stats.PodStatistics {
		pods = append(pods, pod)
	}
	sort.Strings(pods)
	for _, pod := range pods {
		rows = append(rows, statisticsRow{Scope: ScopePod, PodID: pod, Stats: stats.PodStatistics[pod]})
	}
	return rows
}

type delayRow struct {
	Class string
	Key   model.FlowKey
	Delay int64
}

// delayRows lists the base then the associated first-packet delays, each in
// flow key order.
func delayRows(stats *model.RunStatistics) []delayRow {
	var rows []delayRow
	add := func(class string, delays map[model.FlowKey]int64) {
		start := len(rows)
		for k, d := range delays {
			rows = append(rows, delayRow{Class: class, Key: k, Delay: d})
		}
		part := rows[start:]
		sort.Slice(part, func(i, j int) bool { return part[i].Key.String() < part[j].Key.String() })
	}
	add(ClassBase, stats.BaseFirstPacketDelays)
	add(ClassAssociated, stats.AssociatedFirstPacketDelays)
	return rows
}
