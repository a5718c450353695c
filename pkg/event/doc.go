// Package event defines the log event model shared by transports, sinks and observers.
//
// # Core Types
//
// Event is an immutable log record created by a producer:
//
//	ev := event.New(event.LevelInfo, "user signed in", event.Fields{
//	    "user_id": 42,
//	})
//
// While a transport owns an event it is wrapped in an Entry, which tracks the
// number of failed delivery attempts and caches the serialized payload.
//
// # Chunks and Outcomes
//
// A Chunk is an ordered batch of entries handed to a sink for one delivery
// attempt. The sink answers with an Outcome:
//
//	event.AllSent()                                  // every entry delivered
//	event.PartialFailure(map[string]error{id: err})  // listed entries failed
//	event.ChunkFailed(err)                           // nothing delivered
//
// The delivery tracker turns an Outcome into a DeliveryResult that partitions
// the chunk into sent, retried and discarded entries.
//
// # Notifications
//
// Observers receive a Notification for every resolved chunk, for entries evicted
// because a buffer was full and for entries dropped at shutdown:
//
//	obs := event.ObserverFunc(func(n event.Notification) {
//	    if n.Kind == event.Overflow {
//	        log.Printf("dropped %d events", n.Count())
//	    }
//	})
//
// # File Formats
//
// The package defines supported file formats for archive shipping:
//
//	event.FormatParquet  // Columnar format for analytics
//	event.FormatAvro     // Row-based format with schema
//	event.FormatJSONL    // One JSON document per line
package event
