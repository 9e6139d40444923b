// Package replay implements the bounded FIFO of serialised wire records
// shipped to viewers that request late-join replay.
package replay

import "sync"

// Buffer is a fixed-capacity ring of `interface{}` (always a wire.DataRecord
// or wire.MarkerRecord in practice) backed by a slice plus head/size
// counters, per the "avoid per-record allocation churn" design note —
// overflow evicts the oldest entry rather than growing the slice.
type Buffer struct {
	mu       sync.Mutex
	entries  []interface{}
	capacity int
	head     int
	size     int
}

// New constructs a Buffer holding at most capacity entries.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}

	return &Buffer{
		entries:  make([]interface{}, capacity),
		capacity: capacity,
	}
}

// Append adds record, evicting the oldest entry if the buffer is full.
func (b *Buffer) Append(record interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := (b.head + b.size) % b.capacity

	if b.size == b.capacity {
		b.head = (b.head + 1) % b.capacity
	} else {
		b.size++
	}

	b.entries[idx] = record
}

// Snapshot returns the buffered entries in emission (insertion) order.
func (b *Buffer) Snapshot() []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]interface{}, b.size)

	for i := 0; i < b.size; i++ {
		out[i] = b.entries[(b.head+i)%b.capacity]
	}

	return out
}

// Len reports the number of entries currently retained.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.size
}

// Capacity reports the configured maximum size.
func (b *Buffer) Capacity() int {
	return b.capacity
}
