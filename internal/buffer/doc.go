// Package buffer provides the bounded, thread-safe entry buffer used by transports.
//
// # EventBuffer
//
// EventBuffer holds entries between admission and delivery:
//
//	buf := buffer.New(capacity)
//
//	// Admission never blocks; evicted entries are returned for reporting
//	if evicted := buf.Enqueue(entry); len(evicted) > 0 {
//	    observer.Notify(event.Notification{Kind: event.Overflow, Dropped: evicted})
//	}
//
// # Ordering
//
// Entries are taken in FIFO admission order. Entries that failed a delivery
// attempt are re-admitted with Requeue and are taken before anything enqueued
// for the first time, keeping their relative order:
//
//	chunk := buf.Take(chunkSize)
//	// ... delivery of chunk[1] fails ...
//	buf.Requeue(chunk[1])
//	next := buf.Take(chunkSize) // next[0] == chunk[1]
//
// # Capacity
//
// The buffer never holds more than its capacity. When full:
//
//   - Enqueue evicts from the head, oldest first
//   - Requeue evicts the oldest first-attempt entries, then older retried entries
//
// # Thread Safety
//
// All buffer operations are thread-safe using read-write mutexes:
//
//   - Enqueue(), Requeue(), Take(), Drain(), Reset() use write locks
//   - Len(), Stats(), IsEmpty() use read locks
package buffer
