// Package source defines interfaces for external event producers.
//
// Sources read events from outside the process (Kafka, stdin) and hand them to
// a Recorder, typically the pipeline logger.
package source

import (
	"context"

	"github.com/jittakal/logship/pkg/event"
)

// Recorder accepts events for delivery.
type Recorder interface {
	// Record admits an event. It returns false when no transport accepted it.
	Record(ev event.Event) bool
}

// Source produces events until its context is cancelled or input is exhausted.
type Source interface {
	// Run reads events and records them. It blocks until ctx is done or the
	// input ends.
	Run(ctx context.Context, rec Recorder) error

	// Close closes the source and releases resources.
	Close() error
}

// DLQPublisher publishes dropped events to a dead letter queue.
type DLQPublisher interface {
	// Publish sends an event to the DLQ with the reason it was dropped.
	Publish(ctx context.Context, entry *event.Entry, reason string) error

	// Close closes the publisher and releases resources.
	Close() error
}
