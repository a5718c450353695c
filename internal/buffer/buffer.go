// Package buffer implements the bounded per-transport event buffer.
package buffer

import (
	"sync"

	"github.com/jittakal/logship/pkg/buffer"
	"github.com/jittakal/logship/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ buffer.Buffer = (*EventBuffer)(nil)

// EventBuffer is a bounded FIFO of entries for a single transport.
//
// The head of the queue holds entries re-admitted after a failed delivery
// attempt, followed by first-attempt entries in admission order. When the
// buffer is full, Enqueue evicts from the head and Requeue evicts the oldest
// first-attempt entries before touching the retried block.
type EventBuffer struct {
	entries     []*event.Entry
	retried     int // length of the retried block at the head of entries
	capacity    int
	currentSize int64
	mu          sync.RWMutex
}

// New creates a buffer holding at most capacity entries.
// A capacity below 1 is treated as 1.
func New(capacity int) *EventBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &EventBuffer{
		entries:  make([]*event.Entry, 0, capacity),
		capacity: capacity,
	}
}

// Capacity returns the maximum number of entries the buffer holds.
func (b *EventBuffer) Capacity() int {
	return b.capacity
}

// Enqueue appends entries in order, evicting the oldest entries when full.
func (b *EventBuffer) Enqueue(entries ...*event.Entry) []*event.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var evicted []*event.Entry
	for _, e := range entries {
		if len(b.entries) >= b.capacity {
			evicted = append(evicted, b.removeAt(0))
		}
		b.entries = append(b.entries, e)
		b.currentSize += int64(len(e.Payload))
	}
	return evicted
}

// Requeue re-admits entries at the head, ahead of everything enqueued for the
// first time, keeping their relative order.
func (b *EventBuffer) Requeue(entries ...*event.Entry) []*event.Entry {
	if len(entries) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var evicted []*event.Entry
	// Retried entries that cannot fit even after evicting everything else are
	// dropped oldest first.
	if len(entries) > b.capacity {
		evicted = append(evicted, entries[:len(entries)-b.capacity]...)
		entries = entries[len(entries)-b.capacity:]
	}

	for len(b.entries)+len(entries) > b.capacity {
		if b.retried < len(b.entries) {
			evicted = append(evicted, b.removeAt(b.retried))
		} else {
			evicted = append(evicted, b.removeAt(0))
		}
	}

	merged := make([]*event.Entry, 0, b.capacity)
	merged = append(merged, entries...)
	merged = append(merged, b.entries...)
	b.entries = merged
	b.retried += len(entries)
	for _, e := range entries {
		b.currentSize += int64(len(e.Payload))
	}
	return evicted
}

// Take removes and returns up to n entries from the head.
func (b *EventBuffer) Take(n int) []*event.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || len(b.entries) == 0 {
		return nil
	}
	if n > len(b.entries) {
		n = len(b.entries)
	}

	taken := make([]*event.Entry, n)
	copy(taken, b.entries[:n])
	clear(b.entries[:n])
	b.entries = b.entries[n:]

	b.retried = max(b.retried-n, 0)
	for _, e := range taken {
		b.currentSize -= int64(len(e.Payload))
	}
	return taken
}

// Drain removes and returns all entries.
// The returned slice is owned by the caller.
func (b *EventBuffer) Drain() []*event.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.entries
	b.reset()
	return entries
}

// Len returns the number of buffered entries.
func (b *EventBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Stats returns current buffer statistics.
func (b *EventBuffer) Stats() event.FileStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := event.FileStats{
		RecordCount: len(b.entries),
		SizeBytes:   b.currentSize,
	}
	for _, e := range b.entries {
		if stats.FirstWriteTime.IsZero() || e.EnqueuedAt.Before(stats.FirstWriteTime) {
			stats.FirstWriteTime = e.EnqueuedAt
		}
		if e.EnqueuedAt.After(stats.LastWriteTime) {
			stats.LastWriteTime = e.EnqueuedAt
		}
	}
	return stats
}

// IsEmpty returns true if the buffer is empty.
func (b *EventBuffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries) == 0
}

// Reset clears the buffer and resets all statistics.
func (b *EventBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *EventBuffer) reset() {
	b.entries = make([]*event.Entry, 0, b.capacity)
	b.retried = 0
	b.currentSize = 0
}

// removeAt must be called with the lock held.
func (b *EventBuffer) removeAt(i int) *event.Entry {
	e := b.entries[i]
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	if i < b.retried {
		b.retried--
	}
	b.currentSize -= int64(len(e.Payload))
	return e
}
