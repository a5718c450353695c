package pipeline

import (
	"context"
	"fmt"
)

// Liveness reports whether the logger still accepts events.
func (l *Logger) Liveness() bool {
	return !l.closed.Load()
}

// Readiness reports whether events can be recorded. A transport whose buffer
// is full still accepts events by evicting the oldest, so only a closed
// logger is not ready.
func (l *Logger) Readiness(ctx context.Context) bool {
	return ctx.Err() == nil && l.Liveness()
}

// GetStatus describes each transport for the readiness endpoint.
func (l *Logger) GetStatus() map[string]string {
	status := make(map[string]string, len(l.transports))
	closed := l.closed.Load()
	for name, s := range l.Stats() {
		if closed {
			status[name] = "closed"
			continue
		}
		status[name] = fmt.Sprintf("ok buffered=%d sent=%d retried=%d discarded=%d evicted=%d",
			s.Buffered, s.Sent, s.Retried, s.Discarded, s.Evicted)
	}
	return status
}
