// Package buffer defines interfaces for per-transport event buffering.
//
// Buffers hold entries between admission and delivery. They are bounded:
// admitting into a full buffer evicts the oldest entries instead of failing.
package buffer

import (
	"github.com/jittakal/logship/pkg/event"
)

// Buffer is a bounded FIFO of entries awaiting delivery.
// All implementations must be thread-safe.
type Buffer interface {
	// Enqueue appends entries in order. Entries evicted to stay within
	// capacity are returned, oldest first.
	Enqueue(entries ...*event.Entry) []*event.Entry

	// Requeue re-admits entries at the head so they are taken before anything
	// enqueued later. Entries evicted to stay within capacity are returned.
	Requeue(entries ...*event.Entry) []*event.Entry

	// Take removes and returns up to n entries from the head.
	Take(n int) []*event.Entry

	// Drain removes and returns all entries.
	Drain() []*event.Entry

	// Len returns the number of buffered entries.
	Len() int

	// Stats returns current buffer statistics without modifying the buffer.
	Stats() event.FileStats

	// IsEmpty returns true if the buffer contains no entries.
	IsEmpty() bool

	// Reset clears the buffer and resets all statistics.
	Reset()
}
