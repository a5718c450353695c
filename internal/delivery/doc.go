// Package delivery implements the asynchronous chunk delivery engine.
//
// A Transport owns a bounded buffer, a Tracker and a sink. Producers call
// Record, which never blocks on I/O. Chunks are cut from the buffer by Flush,
// either manually or from an AutoFlushTimer, and handed to the sink on a
// dispatch goroutine. At most one chunk is in flight per transport; a flush
// while a dispatch is outstanding is a no-op.
//
// The Tracker attributes the sink's Outcome to individual events:
//
//	sent       dropped permanently
//	retried    attempt count incremented, re-admitted at the head of the buffer
//	discarded  attempts exceeded MaxRetries, reported and never retried
//
// Every asynchronous outcome is reported through an event.Observer, including
// buffer overflow evictions and entries discarded when the transport closes.
package delivery
