package event

import "time"

// Entry wraps an Event while it is owned by a transport buffer.
// Payload caches the serialized form so retries do not re-encode.
type Entry struct {
	Event      Event
	Payload    []byte
	Attempts   int
	EnqueuedAt time.Time
}

// ID returns the identifier of the wrapped event.
func (e *Entry) ID() string {
	return e.Event.ID
}

// Chunk is an ordered, bounded slice of entries handed to a sink for one delivery attempt.
// Sinks must treat a chunk as read-only.
type Chunk struct {
	ID        uint64
	Entries   []*Entry
	CreatedAt time.Time
}

// Len returns the number of entries in the chunk.
func (c *Chunk) Len() int {
	return len(c.Entries)
}

// IDs returns the event identifiers in chunk order.
func (c *Chunk) IDs() []string {
	ids := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		ids[i] = e.ID()
	}
	return ids
}

// Size returns the total cached payload size of the chunk in bytes.
func (c *Chunk) Size() int64 {
	var n int64
	for _, e := range c.Entries {
		n += int64(len(e.Payload))
	}
	return n
}

// Events returns the events of the chunk in order.
func (c *Chunk) Events() []Event {
	events := make([]Event, len(c.Entries))
	for i, e := range c.Entries {
		events[i] = e.Event
	}
	return events
}

// OutcomeKind tags the result of one delivery attempt.
type OutcomeKind int

const (
	// OutcomeAllSent means every entry of the chunk was delivered.
	OutcomeAllSent OutcomeKind = iota
	// OutcomePartialFailure means the entries listed in Outcome.Failed were not delivered.
	OutcomePartialFailure
	// OutcomeChunkFailed means no entry was delivered.
	OutcomeChunkFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAllSent:
		return "all_sent"
	case OutcomePartialFailure:
		return "partial_failure"
	case OutcomeChunkFailed:
		return "chunk_failed"
	default:
		return "unknown"
	}
}

// Outcome is what a sink reports for a chunk.
type Outcome struct {
	Kind   OutcomeKind
	Failed map[string]error // by event ID, for OutcomePartialFailure
	Err    error            // for OutcomeChunkFailed
}

// AllSent reports a fully delivered chunk.
func AllSent() Outcome {
	return Outcome{Kind: OutcomeAllSent}
}

// PartialFailure reports the failed entries of a chunk by event ID.
// An empty map is equivalent to AllSent.
func PartialFailure(failed map[string]error) Outcome {
	if len(failed) == 0 {
		return AllSent()
	}
	return Outcome{Kind: OutcomePartialFailure, Failed: failed}
}

// ChunkFailed reports that no entry of the chunk was delivered.
func ChunkFailed(err error) Outcome {
	return Outcome{Kind: OutcomeChunkFailed, Err: err}
}

// Failure pairs an entry with the error that caused it to be retried or discarded.
type Failure struct {
	Entry *Entry
	Err   error
}

// DeliveryResult partitions a resolved chunk by per-event outcome.
type DeliveryResult struct {
	Sent      []*Entry
	Retried   []Failure
	Discarded []Failure
}

// SentIDs returns the IDs of delivered events.
func (r DeliveryResult) SentIDs() []string {
	ids := make([]string, len(r.Sent))
	for i, e := range r.Sent {
		ids[i] = e.ID()
	}
	return ids
}

// RetriedIDs returns the IDs of events re-admitted for another attempt.
func (r DeliveryResult) RetriedIDs() []string {
	return failureIDs(r.Retried)
}

// DiscardedIDs returns the IDs of events dropped after exhausting their retries.
func (r DeliveryResult) DiscardedIDs() []string {
	return failureIDs(r.Discarded)
}

func failureIDs(failures []Failure) []string {
	ids := make([]string, len(failures))
	for i, f := range failures {
		ids[i] = f.Entry.ID()
	}
	return ids
}
