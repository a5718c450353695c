package sink

import (
	"context"
	"io"
	"os"
	"sync"

	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/pkg/event"
	"github.com/jittakal/logship/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Sink = (*ConsoleSink)(nil)

// ConsoleSink writes payloads to an io.Writer, typically stdout or stderr.
type ConsoleSink struct {
	name string

	mu     sync.Mutex
	out    io.Writer
	closed bool
}

// NewConsoleSink creates a sink writing to out. A nil writer means os.Stdout.
func NewConsoleSink(name string, out io.Writer) *ConsoleSink {
	if out == nil {
		out = os.Stdout
	}
	if name == "" {
		name = "console"
	}
	return &ConsoleSink{name: name, out: out}
}

// Name returns the sink name.
func (s *ConsoleSink) Name() string {
	return s.name
}

// Deliver writes every payload in order. A write error fails that entry and
// every entry after it.
func (s *ConsoleSink) Deliver(ctx context.Context, chunk *event.Chunk) event.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return event.ChunkFailed(apperrors.ErrSinkClosed)
	}

	for i, e := range chunk.Entries {
		if err := ctx.Err(); err != nil {
			return failRest(chunk.Entries[i:], err)
		}
		if _, err := s.out.Write(e.Payload); err != nil {
			return failRest(chunk.Entries[i:], err)
		}
	}
	return event.AllSent()
}

// Close marks the sink closed. The underlying writer is not closed.
func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func failRest(entries []*event.Entry, err error) event.Outcome {
	failed := make(map[string]error, len(entries))
	for _, e := range entries {
		failed[e.ID()] = err
	}
	return event.PartialFailure(failed)
}
