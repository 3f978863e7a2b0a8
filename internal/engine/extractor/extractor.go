package extractor

import (
	"DelayBench/internal/model"
	"DelayBench/internal/stats"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrMalformedLog is returned when a node log does not follow the expected layout.
var ErrMalformedLog = errors.New("malformed node delay log")

// Result holds everything extracted from one node delay log.
type Result struct {
	PodID     string
	IPAddress string
	// Path is the node log the result was read from, empty for streams.
	Path string

	Deltas                      []int64
	BaseFirstPacketDelays       map[model.FlowKey]int64
	AssociatedFirstPacketDelays map[model.FlowKey]int64

	Statistics           model.DistributionStats
	BaseStatistics       model.DistributionStats
	AssociatedStatistics model.DistributionStats

	UniqueFlowCount int
	PacketCount     int
}

// flowID is a flow key without its destination IP, which is constant within
// one node log and only known once the log header has been read.
type flowID struct {
	srcIP   string
	srcPort uint16
	dstPort uint16
}

// firstPacket tracks the lowest packet id seen for a flow and its delta.
type firstPacket struct {
	packetID uint64
	delta    int64
}

// Accumulator groups records into flows as they are streamed in.
type Accumulator struct {
	deltas []int64
	flows  map[flowID]*firstPacket
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{flows: make(map[flowID]*firstPacket)}
}

// Add folds one record into its flow. The flow's first packet is the record
// with the smallest packet id, whatever order records arrive in; on equal ids
// the record added first is kept.
func (a *Accumulator) Add(record model.PacketRecord) {
	a.deltas = append(a.deltas, record.Delta)

	id := flowID{srcIP: record.SourceIP, srcPort: record.SourcePort, dstPort: record.DestinationPort}
	if fp, ok := a.flows[id]; ok {
		if record.PacketID < fp.packetID {
			fp.packetID = record.PacketID
			fp.delta = record.Delta
		}
		return
	}
	a.flows[id] = &firstPacket{packetID: record.PacketID, delta: record.Delta}
}

// Result finalises the accumulated flows for the node with the given identity.
func (a *Accumulator) Result(podID, ipAddress string) *Result {
	res := &Result{
		PodID:                       podID,
		IPAddress:                   ipAddress,
		Deltas:                      a.deltas,
		BaseFirstPacketDelays:       make(map[model.FlowKey]int64),
		AssociatedFirstPacketDelays: make(map[model.FlowKey]int64),
		UniqueFlowCount:             len(a.flows),
		PacketCount:                 len(a.deltas),
	}

	base := make([]int64, 0, len(a.flows))
	associated := make([]int64, 0, len(a.flows))
	for id, fp := range a.flows {
		key := model.FlowKey{
			SourceIP:        id.srcIP,
			SourcePort:      id.srcPort,
			DestinationIP:   ipAddress,
			DestinationPort: id.dstPort,
		}
		if key.IsBase() {
			res.BaseFirstPacketDelays[key] = fp.delta
			base = append(base, fp.delta)
		} else {
			res.AssociatedFirstPacketDelays[key] = fp.delta
			associated = append(associated, fp.delta)
		}
	}

	res.Statistics = stats.DescribeInts(a.deltas)
	res.BaseStatistics = stats.DescribeInts(base)
	res.AssociatedStatistics = stats.DescribeInts(associated)
	return res
}

// ExtractLog extracts an in-memory node log.
func ExtractLog(log *model.NodeDelayLog) *Result {
	acc := NewAccumulator()
	for _, record := range log.Records {
		acc.Add(record)
	}
	return acc.Result(log.PodID, log.IPAddress)
}

// ExtractFile streams the node log at path.
func ExtractFile(path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open node log '%s': %w", path, err)
	}
	defer file.Close()

	res, err := Extract(file)
	if err != nil {
		return nil, fmt.Errorf("node log '%s': %w", path, err)
	}
	res.Path = path
	return res, nil
}

// Extract streams a node log document, decoding one record at a time so the
// full record array is never held in memory.
func Extract(r io.Reader) (*Result, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	acc := NewAccumulator()
	var podID, ipAddress string
	var sawPod, sawIP bool

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLog, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected token %v", ErrMalformedLog, tok)
		}

		switch key {
		case "pod_id":
			if err := dec.Decode(&podID); err != nil {
				return nil, fmt.Errorf("%w: pod_id: %v", ErrMalformedLog, err)
			}
			sawPod = true
		case "IP_address":
			if err := dec.Decode(&ipAddress); err != nil {
				return nil, fmt.Errorf("%w: IP_address: %v", ErrMalformedLog, err)
			}
			sawIP = true
		case "delay_timestamps":
			if err := decodeRecords(dec, acc); err != nil {
				return nil, err
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrMalformedLog, key, err)
			}
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}

	if !sawPod || !sawIP {
		return nil, fmt.Errorf("%w: missing pod_id or IP_address", ErrMalformedLog)
	}
	return acc.Result(podID, ipAddress), nil
}

func decodeRecords(dec *json.Decoder, acc *Accumulator) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: delay_timestamps: %v", ErrMalformedLog, err)
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("%w: delay_timestamps is not an array", ErrMalformedLog)
	}
	for dec.More() {
		var record model.PacketRecord
		if err := dec.Decode(&record); err != nil {
			return fmt.Errorf("%w: record: %v", ErrMalformedLog, err)
		}
		acc.Add(record)
	}
	return expectDelim(dec, ']')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected '%c', got %v", ErrMalformedLog, want, tok)
	}
	return nil
}
