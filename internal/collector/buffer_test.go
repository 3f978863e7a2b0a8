package collector

import (
	"DelayBench/internal/config"
	"DelayBench/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ids(records []model.PacketRecord) []uint64 {
	out := make([]uint64, len(records))
	for i, r := range records {
		out[i] = r.PacketID
	}
	return out
}

func fill(b *Buffer, n int) {
	for i := 1; i <= n; i++ {
		b.Append(model.PacketRecord{PacketID: uint64(i)})
	}
}

func TestBufferUnbounded(t *testing.T) {
	b := NewBuffer(0, config.OverflowDropNew)
	fill(b, 1000)
	assert.Equal(t, 1000, b.Len())
	assert.Zero(t, b.Dropped())
	assert.Equal(t, uint64(1000), b.Records()[999].PacketID)
}

func TestBufferDropNew(t *testing.T) {
	b := NewBuffer(3, config.OverflowDropNew)
	fill(b, 5)
	assert.Equal(t, []uint64{1, 2, 3}, ids(b.Records()))
	assert.Equal(t, uint64(2), b.Dropped())
	assert.False(t, b.Append(model.PacketRecord{PacketID: 6}))
}

func TestBufferDropOldest(t *testing.T) {
	b := NewBuffer(3, config.OverflowDropOldest)
	fill(b, 5)
	assert.Equal(t, []uint64{3, 4, 5}, ids(b.Records()))
	assert.Equal(t, uint64(2), b.Dropped())

	fill(b, 1)
	assert.Equal(t, []uint64{4, 5, 1}, ids(b.Records()))
	assert.Equal(t, 3, b.Len())
}

func TestBufferRecordsIsACopy(t *testing.T) {
	b := NewBuffer(0, config.OverflowDropNew)
	fill(b, 2)
	out := b.Records()
	out[0].PacketID = 99
	assert.Equal(t, uint64(1), b.Records()[0].PacketID)
}
