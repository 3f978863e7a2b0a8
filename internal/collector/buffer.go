package collector

import (
	"DelayBench/internal/config"
	"DelayBench/internal/model"
	"sync"
)

// Buffer holds accepted records in arrival order. With a zero capacity it
// grows without bound for the duration of a run. With a positive capacity it
// either rejects new records once full (drop-new) or behaves as a ring that
// overwrites the oldest record (drop-oldest).
type Buffer struct {
	mu       sync.Mutex
	records  []model.PacketRecord
	capacity int
	policy   string
	head     int // index of the oldest record once the ring has wrapped
	dropped  uint64
}

// NewBuffer creates a buffer with the given capacity and overflow policy.
func NewBuffer(capacity int, policy string) *Buffer {
	b := &Buffer{capacity: capacity, policy: policy}
	if capacity > 0 {
		b.records = make([]model.PacketRecord, 0, capacity)
	}
	return b
}

// Append stores a record. It reports false when the record was dropped.
func (b *Buffer) Append(r model.PacketRecord) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capacity <= 0 || len(b.records) < b.capacity {
		b.records = append(b.records, r)
		return true
	}
	b.dropped++
	if b.policy == config.OverflowDropOldest {
		b.records[b.head] = r
		b.head = (b.head + 1) % b.capacity
		return true
	}
	return false
}

// Records returns a copy of the buffered records, oldest first.
func (b *Buffer) Records() []model.PacketRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.PacketRecord, 0, len(b.records))
	out = append(out, b.records[b.head:]...)
	out = append(out, b.records[:b.head]...)
	return out
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Dropped returns the number of records lost to overflow.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
