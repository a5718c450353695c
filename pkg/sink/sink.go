// Package sink defines the destination contract used by transports.
package sink

import (
	"context"

	"github.com/jittakal/logship/pkg/event"
)

// Sink delivers chunks to a destination.
//
// Deliver is called from a single dispatch goroutine per transport, never
// concurrently for the same sink. It must report the fate of every entry through
// the returned Outcome and must not retain the chunk after returning.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Deliver attempts to write every entry of the chunk.
	Deliver(ctx context.Context, chunk *event.Chunk) event.Outcome

	// Close flushes and releases resources.
	Close() error
}
