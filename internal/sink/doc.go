// Package sink provides Sink implementations for delivery transports.
//
// Every sink reports the result of a chunk as an event.Outcome. Sinks that can
// tell which entries failed report a partial failure by event ID so that only
// those entries are retried:
//
//   - ConsoleSink writes formatted payloads to an io.Writer.
//   - FileSink appends payloads to a size-rotated file (rotation.Controller).
//   - CloudEventsSink posts each event as a CloudEvent over HTTP, bounded by a
//     shared ByteBudget.
//   - ObjectSink encodes a chunk into an object file (avro, parquet, jsonl) and
//     uploads it through a storage.Writer.
//
// ArchiveShipper is not a sink. It observes a rotation.Controller and uploads
// every archived file before retention can prune it.
package sink
