package model

// BasePort is the reserved coordination port. Flows destined to it are the
// originating ("base") transaction of a coflow.
const BasePort uint16 = 2100

// PacketRecord holds the timestamps extracted from a single measurement datagram.
type PacketRecord struct {
	DestinationPort uint16 `json:"destination_port"`
	PacketID        uint64 `json:"pkt_id"`
	IngressTS       uint64 `json:"ingress_ts"`
	EgressTS        uint64 `json:"egress_ts"`
	SourceIP        string `json:"source_ip"`
	SourcePort      uint16 `json:"source_port"`
	Delta           int64  `json:"delta"`
}

// NewPacketRecord builds a record and derives its delta.
func NewPacketRecord(packetID, ingress, egress uint64, dstPort uint16, srcIP string, srcPort uint16) PacketRecord {
	return PacketRecord{
		DestinationPort: dstPort,
		PacketID:        packetID,
		IngressTS:       ingress,
		EgressTS:        egress,
		SourceIP:        srcIP,
		SourcePort:      srcPort,
		Delta:           Delta(ingress, egress),
	}
}

// Delta returns egress - ingress as a signed value. The subtraction wraps in
// 64-bit two's complement, so an egress earlier than ingress is negative.
func Delta(ingress, egress uint64) int64 {
	return int64(egress - ingress)
}

// IsBase reports whether the record belongs to a base flow.
func (r PacketRecord) IsBase() bool {
	return r.DestinationPort == BasePort
}

// NodeDelayLog is the document a collector persists on shutdown.
type NodeDelayLog struct {
	PodID     string         `json:"pod_id"`
	IPAddress string         `json:"IP_address"`
	Records   []PacketRecord `json:"delay_timestamps"`
}

// DistributionStats summarises a sample of delays.
type DistributionStats struct {
	Min                    Float `json:"min"`
	Max                    Float `json:"max"`
	Mean                   Float `json:"mean"`
	Median                 Float `json:"median"`
	StdDev                 Float `json:"std_dev"`
	Variance               Float `json:"variance"`
	CoefficientOfVariation Float `json:"coefficient_of_variation"`
}

// ExcludedNode records a node log that could not be extracted during run aggregation.
type ExcludedNode struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// RunStatistics is the per-run document produced by the run aggregator.
type RunStatistics struct {
	RunNumber                       int                          `json:"run_number"`
	TotalUniqueFlowKeys             int                          `json:"total_unique_flow_keys"`
	TotalPackets                    int                          `json:"total_packets"`
	DelayStatistics                 DistributionStats            `json:"aggregated_delay_statistics"`
	BaseFirstPacketStatistics       DistributionStats            `json:"aggregated_base_first_packet_statistics"`
	AssociatedFirstPacketStatistics DistributionStats            `json:"aggregated_associated_first_packet_statistics"`
	PodStatistics                   map[string]DistributionStats `json:"pod_statistics"`
	BaseFirstPacketDelays           map[FlowKey]int64            `json:"base_first_packet_delays"`
	AssociatedFirstPacketDelays     map[FlowKey]int64            `json:"associated_first_packet_delays"`
	ExcludedNodes                   []ExcludedNode               `json:"excluded_nodes,omitempty"`
}

// GroupStability holds the cross-run dispersion of the per-run min, max and
// mean of one statistic group. Keys follow the "<metric>_<measure>" layout.
type GroupStability map[string]Float

// RunDetail is the per-run breakdown retained in the cross-run document.
type RunDetail struct {
	TotalUniqueFlowKeys             int                          `json:"total_unique_flow_keys"`
	TotalPackets                    int                          `json:"total_packets"`
	DelayStatistics                 DistributionStats            `json:"aggregated_delay_statistics"`
	BaseFirstPacketStatistics       DistributionStats            `json:"aggregated_base_first_packet_statistics"`
	AssociatedFirstPacketStatistics DistributionStats            `json:"aggregated_associated_first_packet_statistics"`
	PodStatistics                   map[string]DistributionStats `json:"pod_statistics"`
	ExcludedNodes                   []ExcludedNode               `json:"excluded_nodes,omitempty"`
}

// CrossRunStatistics is the consolidated stability report over a benchmark session.
type CrossRunStatistics struct {
	DelayStatistics                 GroupStability `json:"aggregated_delay_statistics"`
	BaseFirstPacketStatistics       GroupStability `json:"aggregated_first_base_packet_delay_statistics"`
	AssociatedFirstPacketStatistics GroupStability `json:"aggregated_first_associated_packet_delay_statistics"`

	// Pooled over every individual first-packet delay of every run. Nil when
	// no run carried a delay of that class.
	BaseOverallStdDev       *Float `json:"first_base_packet_delay_overall_std_dev,omitempty"`
	BaseOverallCV           *Float `json:"first_base_packet_delay_overall_cv,omitempty"`
	AssociatedOverallStdDev *Float `json:"first_associated_packet_delay_overall_std_dev,omitempty"`
	AssociatedOverallCV     *Float `json:"first_associated_packet_delay_overall_cv,omitempty"`

	RunStats map[string]RunDetail `json:"run_stats"`
}
