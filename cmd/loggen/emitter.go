package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jittakal/logship/internal/format"
	"github.com/jittakal/logship/pkg/event"
	pkgsink "github.com/jittakal/logship/pkg/sink"
)

// emitter sends generated events through a sink, one chunk per batch.
type emitter struct {
	sink      pkgsink.Sink
	formatter format.Formatter
	nextID    uint64
}

func newEmitter(s pkgsink.Sink) *emitter {
	return &emitter{sink: s, formatter: format.NewJSON(format.Options{})}
}

// result reports how a batch fared.
type result struct {
	Sent   int
	Failed int
	Err    error
}

// emit formats the events as JSON lines and delivers them as one chunk.
func (e *emitter) emit(ctx context.Context, events []event.Event) result {
	entries := make([]*event.Entry, 0, len(events))
	now := time.Now()
	for _, ev := range events {
		payload, err := e.formatter.Format(ev)
		if err != nil {
			return result{Failed: len(events), Err: fmt.Errorf("failed to format event: %w", err)}
		}
		entries = append(entries, &event.Entry{Event: ev, Payload: payload, Attempts: 1, EnqueuedAt: now})
	}

	e.nextID++
	outcome := e.sink.Deliver(ctx, &event.Chunk{ID: e.nextID, Entries: entries, CreatedAt: now})

	switch outcome.Kind {
	case event.OutcomeAllSent:
		return result{Sent: len(entries)}
	case event.OutcomePartialFailure:
		var firstErr error
		for _, err := range outcome.Failed {
			firstErr = err
			break
		}
		return result{Sent: len(entries) - len(outcome.Failed), Failed: len(outcome.Failed), Err: firstErr}
	default:
		return result{Failed: len(entries), Err: outcome.Err}
	}
}

func (e *emitter) close() error {
	return e.sink.Close()
}
