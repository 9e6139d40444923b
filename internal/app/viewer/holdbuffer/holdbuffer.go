// Package holdbuffer implements the viewer's bounded line history: the
// scrollback held in memory while the operator pauses to read or run
// interactive commands.
package holdbuffer

// EvictionPolicy selects what happens when Push exceeds Capacity.
type EvictionPolicy int

const (
	// DropOldest discards the oldest held line to make room — the default,
	// so a paused viewer always shows the most recent activity.
	DropOldest EvictionPolicy = iota
	// DropNewest discards the incoming line instead — used during
	// analysis-pause, so the operator's current view never scrolls out
	// from under them while they are reading it.
	DropNewest
)

// Buffer is a bounded FIFO of rendered lines.
type Buffer struct {
	lines    []string
	capacity int
	policy   EvictionPolicy
}

// New constructs a Buffer holding at most capacity lines under policy.
func New(capacity int, policy EvictionPolicy) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}

	return &Buffer{capacity: capacity, policy: policy}
}

// SetPolicy changes the eviction policy applied by future Push calls —
// used to enter/leave analysis-pause without reallocating the buffer.
func (b *Buffer) SetPolicy(policy EvictionPolicy) {
	b.policy = policy
}

// Push appends line, evicting per policy if the buffer is full. Returns
// false when the line was dropped instead of stored (DropNewest, full).
func (b *Buffer) Push(line string) bool {
	if len(b.lines) >= b.capacity {
		if b.policy == DropNewest {
			return false
		}

		b.lines = b.lines[1:]
	}

	b.lines = append(b.lines, line)

	return true
}

// Lines returns the currently held lines, oldest first.
func (b *Buffer) Lines() []string {
	return append([]string{}, b.lines...)
}

// Len reports how many lines are currently held.
func (b *Buffer) Len() int {
	return len(b.lines)
}

// Clear empties the buffer without changing capacity or policy.
func (b *Buffer) Clear() {
	b.lines = nil
}
