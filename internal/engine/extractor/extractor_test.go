package extractor

import (
	"DelayBench/internal/model"
	"DelayBench/internal/snapshot"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id uint64, delta int64, dstPort uint16, srcIP string, srcPort uint16) model.PacketRecord {
	ingress := uint64(1_000_000)
	return model.NewPacketRecord(id, ingress, uint64(int64(ingress)+delta), dstPort, srcIP, srcPort)
}

func TestFirstPacketIsLowestPacketID(t *testing.T) {
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	ids := []uint64{5, 2, 9}
	deltas := []int64{100, 50, 80}

	for _, order := range orders {
		acc := NewAccumulator()
		for _, i := range order {
			acc.Add(record(ids[i], deltas[i], 2110, "10.0.0.1", 4000))
		}
		res := acc.Result("pod2", "10.0.0.2")
		key := model.FlowKey{SourceIP: "10.0.0.1", SourcePort: 4000, DestinationIP: "10.0.0.2", DestinationPort: 2110}
		assert.Equal(t, int64(50), res.AssociatedFirstPacketDelays[key], "order %v", order)
		assert.Empty(t, res.BaseFirstPacketDelays)
	}
}

func TestEqualPacketIDKeepsFirstProcessed(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(record(1, 10, 2100, "10.0.0.1", 4000))
	acc.Add(record(1, 99, 2100, "10.0.0.1", 4000))
	res := acc.Result("pod2", "10.0.0.2")
	key := model.FlowKey{SourceIP: "10.0.0.1", SourcePort: 4000, DestinationIP: "10.0.0.2", DestinationPort: 2100}
	assert.Equal(t, int64(10), res.BaseFirstPacketDelays[key])
}

func TestFlowCountsAndClassification(t *testing.T) {
	log := &model.NodeDelayLog{
		PodID:     "pod2",
		IPAddress: "10.0.0.2",
		Records: []model.PacketRecord{
			record(1, 10, 2100, "10.0.0.1", 4000),
			record(2, 12, 2100, "10.0.0.1", 4000),
			record(1, 20, 2110, "10.0.0.1", 4000),
			record(1, 30, 2110, "10.0.0.3", 4000),
			record(1, 40, 2110, "10.0.0.3", 4001),
			record(3, 41, 2110, "10.0.0.3", 4001),
			record(1, 50, 2100, "10.0.0.4", 5000),
		},
	}
	res := ExtractLog(log)

	assert.Equal(t, 7, res.PacketCount)
	assert.Equal(t, 5, res.UniqueFlowCount)
	assert.Len(t, res.BaseFirstPacketDelays, 2)
	assert.Len(t, res.AssociatedFirstPacketDelays, 3)
	assert.Equal(t, res.UniqueFlowCount, len(res.BaseFirstPacketDelays)+len(res.AssociatedFirstPacketDelays))
	for key := range res.BaseFirstPacketDelays {
		assert.Equal(t, model.BasePort, key.DestinationPort)
		assert.Equal(t, "10.0.0.2", key.DestinationIP)
	}
	for key := range res.AssociatedFirstPacketDelays {
		assert.NotEqual(t, model.BasePort, key.DestinationPort)
	}

	assert.Equal(t, 10.0, float64(res.Statistics.Min))
	assert.Equal(t, 50.0, float64(res.Statistics.Max))
	assert.Equal(t, 10.0, float64(res.BaseStatistics.Min))
	assert.Equal(t, 50.0, float64(res.BaseStatistics.Max))
	assert.Equal(t, 20.0, float64(res.AssociatedStatistics.Min))
	assert.Equal(t, 40.0, float64(res.AssociatedStatistics.Max))
}

func TestExtractStreamsDocument(t *testing.T) {
	doc := `{
		"delay_timestamps": [
			{"destination_port": 2100, "pkt_id": 4, "ingress_ts": 10, "egress_ts": 30, "source_ip": "10.0.0.1", "source_port": 4000, "delta": 20},
			{"destination_port": 2100, "pkt_id": 3, "ingress_ts": 10, "egress_ts": 25, "source_ip": "10.0.0.1", "source_port": 4000, "delta": 15},
			{"destination_port": 2150, "pkt_id": 1, "ingress_ts": 10, "egress_ts": 5, "source_ip": "10.0.0.1", "source_port": 4001, "delta": -5}
		],
		"extra": {"ignored": [1, 2, 3]},
		"pod_id": "pod7",
		"IP_address": "10.0.0.7"
	}`
	res, err := Extract(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "pod7", res.PodID)
	assert.Equal(t, 3, res.PacketCount)
	assert.Equal(t, 2, res.UniqueFlowCount)
	assert.Equal(t, []int64{20, 15, -5}, res.Deltas)

	base := model.FlowKey{SourceIP: "10.0.0.1", SourcePort: 4000, DestinationIP: "10.0.0.7", DestinationPort: 2100}
	assoc := model.FlowKey{SourceIP: "10.0.0.1", SourcePort: 4001, DestinationIP: "10.0.0.7", DestinationPort: 2150}
	assert.Equal(t, map[model.FlowKey]int64{base: 15}, res.BaseFirstPacketDelays)
	assert.Equal(t, map[model.FlowKey]int64{assoc: -5}, res.AssociatedFirstPacketDelays)
}

func TestExtractEmptyLog(t *testing.T) {
	res, err := Extract(strings.NewReader(`{"pod_id": "pod1", "IP_address": "10.0.0.1", "delay_timestamps": []}`))
	require.NoError(t, err)
	assert.Zero(t, res.PacketCount)
	assert.Zero(t, res.UniqueFlowCount)
	assert.False(t, res.Statistics.Min.IsFinite())

	res, err = Extract(strings.NewReader(`{"pod_id": "pod1", "IP_address": "10.0.0.1", "delay_timestamps": null}`))
	require.NoError(t, err)
	assert.Zero(t, res.PacketCount)
}

func TestExtractMalformed(t *testing.T) {
	for name, doc := range map[string]string{
		"truncated":   `{"pod_id": "pod1", "IP_address": "10.0.0.1", "delay_timestamps": [{"pkt_id": 1`,
		"not object":  `[1, 2]`,
		"no ip":       `{"pod_id": "pod1", "delay_timestamps": []}`,
		"bad records": `{"pod_id": "pod1", "IP_address": "10.0.0.1", "delay_timestamps": {"a": 1}}`,
		"bad field":   `{"pod_id": "pod1", "IP_address": "10.0.0.1", "delay_timestamps": [{"pkt_id": "x"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Extract(strings.NewReader(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedLog))
		})
	}
}

func TestExtractFileRoundTripsCollectorDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), snapshot.NodeLogName("pod4"))
	log := &model.NodeDelayLog{
		PodID:     "pod4",
		IPAddress: "10.0.0.4",
		Records: []model.PacketRecord{
			record(9, 7, 2120, "10.0.0.1", 6000),
			record(8, 6, 2120, "10.0.0.1", 6000),
		},
	}
	require.NoError(t, snapshot.WriteJSON(path, log))

	res, err := ExtractFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.PacketCount)
	assert.Equal(t, 1, res.UniqueFlowCount)
	assert.Equal(t, path, res.Path)
	for _, delta := range res.AssociatedFirstPacketDelays {
		assert.Equal(t, int64(6), delta)
	}

	_, err = ExtractFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
