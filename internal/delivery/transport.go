package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jittakal/logship/internal/buffer"
	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/pkg/event"
	"github.com/jittakal/logship/pkg/sink"
)

// Default transport settings.
const (
	DefaultCapacity        = 1000
	DefaultChunkSize       = 100
	DefaultMaxRetries      = 3
	DefaultDispatchTimeout = 30 * time.Second
)

// Formatter serializes an event into the payload handed to a sink.
type Formatter interface {
	Format(ev event.Event) ([]byte, error)
}

// FormatterFunc adapts a function to the Formatter interface.
type FormatterFunc func(ev event.Event) ([]byte, error)

// Format calls f(ev).
func (f FormatterFunc) Format(ev event.Event) ([]byte, error) {
	return f(ev)
}

// Config holds the settings of a single transport.
type Config struct {
	Name            string
	Capacity        int
	ChunkSize       int
	FlushInterval   time.Duration // zero disables auto flush
	MaxRetries      int
	DispatchTimeout time.Duration
	MinLevel        event.Level
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkSize > c.Capacity {
		c.ChunkSize = c.Capacity
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = DefaultDispatchTimeout
	}
	return c
}

// Stats is a snapshot of a transport.
type Stats struct {
	Buffered  int
	InFlight  bool
	Sent      uint64
	Retried   uint64
	Discarded uint64
	Evicted   uint64
}

// Transport buffers events for one sink and delivers them in chunks.
type Transport struct {
	cfg       Config
	sink      sink.Sink
	formatter Formatter
	observer  event.Observer
	logger    *slog.Logger

	buf     *buffer.EventBuffer
	tracker *Tracker
	timer   *AutoFlushTimer

	// mu serializes admission, chunk cutting and result resolution.
	mu          sync.Mutex
	inflight    bool
	closed      bool
	nextChunkID uint64
	evicted     uint64

	dispatchCtx    context.Context
	cancelDispatch context.CancelFunc
	wg             sync.WaitGroup
}

// NewTransport creates a transport and starts its auto-flush timer.
// A nil formatter sends the event message as payload; a nil observer drops notifications.
func NewTransport(cfg Config, s sink.Sink, formatter Formatter, observer event.Observer, logger *slog.Logger) (*Transport, error) {
	if s == nil {
		return nil, fmt.Errorf("transport %q: sink is required", cfg.Name)
	}
	cfg = cfg.withDefaults()
	if cfg.Name == "" {
		cfg.Name = s.Name()
	}
	if formatter == nil {
		formatter = FormatterFunc(func(ev event.Event) ([]byte, error) {
			return []byte(ev.Message), nil
		})
	}
	if observer == nil {
		observer = event.Observers()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		cfg:            cfg,
		sink:           s,
		formatter:      formatter,
		observer:       observer,
		logger:         logger.With("transport", cfg.Name),
		buf:            buffer.New(cfg.Capacity),
		tracker:        NewTracker(cfg.MaxRetries),
		dispatchCtx:    ctx,
		cancelDispatch: cancel,
	}
	t.timer = NewAutoFlushTimer(cfg.FlushInterval, func() { t.Flush() })
	t.timer.Start()

	t.logger.Debug("Transport started",
		"sink", s.Name(),
		"capacity", cfg.Capacity,
		"chunk_size", cfg.ChunkSize,
		"flush_interval", cfg.FlushInterval,
		"max_retries", cfg.MaxRetries)

	return t, nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return t.cfg.Name
}

// MinLevel returns the lowest level this transport accepts.
func (t *Transport) MinLevel() event.Level {
	return t.cfg.MinLevel
}

// Record admits an event for delivery. It returns false when the event is
// below the transport's level, cannot be formatted, or the transport is closed.
// A true result is not a delivery confirmation.
func (t *Transport) Record(ev event.Event) bool {
	if ev.Level < t.cfg.MinLevel {
		return false
	}

	payload, err := t.formatter.Format(ev)
	if err != nil {
		t.logger.Warn("Failed to format event", "event_id", ev.ID, "error", err)
		return false
	}

	entry := &event.Entry{Event: ev, Payload: payload, EnqueuedAt: time.Now()}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	evicted := t.buf.Enqueue(entry)
	t.evicted += uint64(len(evicted))
	t.mu.Unlock()

	if len(evicted) > 0 {
		t.notifyOverflow(evicted, false)
	}
	return true
}

// Stats returns a snapshot of the transport counters.
func (t *Transport) Stats() Stats {
	ts := t.tracker.Stats()

	t.mu.Lock()
	defer t.mu.Unlock()

	return Stats{
		Buffered:  t.buf.Len(),
		InFlight:  t.inflight,
		Sent:      ts.Sent,
		Retried:   ts.Retried,
		Discarded: ts.Discarded,
		Evicted:   t.evicted,
	}
}

// Close stops the auto-flush timer, waits for the in-flight dispatch, then makes
// one final synchronous delivery attempt for everything still buffered. Entries
// that cannot be delivered before ctx is done are reported as ShutdownDiscard.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return apperrors.ErrTransportClosed
	}
	t.closed = true
	t.mu.Unlock()

	t.timer.Stop()

	if err := t.waitInflight(ctx); err != nil {
		t.logger.Warn("In-flight dispatch did not finish, cancelling", "error", err)
		t.cancelDispatch()
		t.wg.Wait()
	}

	t.drain(ctx)
	t.cancelDispatch()

	if err := t.sink.Close(); err != nil {
		return fmt.Errorf("failed to close sink %s: %w", t.sink.Name(), err)
	}

	t.logger.Debug("Transport closed")
	return nil
}

func (t *Transport) waitInflight(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain delivers the remaining entries once each. Failures are final.
func (t *Transport) drain(ctx context.Context) {
	for {
		if err := ctx.Err(); err != nil {
			t.discardRemaining(err)
			return
		}

		t.mu.Lock()
		chunk := t.cutChunk()
		t.mu.Unlock()
		if chunk == nil {
			return
		}

		start := time.Now()
		outcome := t.deliver(ctx, chunk)
		elapsed := time.Since(start)

		t.mu.Lock()
		result, retry := t.tracker.Resolve(t.cfg.Name, chunk, outcome)
		t.mu.Unlock()

		t.notifyFinished(chunk.ID, result, elapsed)
		if len(retry) > 0 {
			t.observer.Notify(event.Notification{
				Kind:      event.ShutdownDiscard,
				Transport: t.cfg.Name,
				Dropped:   retry,
				Err:       apperrors.ErrDiscardedOnShutdown,
			})
			t.logger.Warn("Discarded undelivered events on shutdown", "count", len(retry))
		}
	}
}

func (t *Transport) discardRemaining(cause error) {
	t.mu.Lock()
	remaining := t.buf.Drain()
	t.mu.Unlock()

	if len(remaining) == 0 {
		return
	}
	t.observer.Notify(event.Notification{
		Kind:      event.ShutdownDiscard,
		Transport: t.cfg.Name,
		Dropped:   remaining,
		Err:       fmt.Errorf("%w: %w", apperrors.ErrDiscardedOnShutdown, cause),
	})
	t.logger.Warn("Discarded buffered events on shutdown", "count", len(remaining), "error", cause)
}

func (t *Transport) notifyOverflow(evicted []*event.Entry, requeue bool) {
	t.observer.Notify(event.Notification{
		Kind:      event.Overflow,
		Transport: t.cfg.Name,
		Dropped:   evicted,
		Requeue:   requeue,
		Err:       &apperrors.AdmissionError{Transport: t.cfg.Name, Evicted: len(evicted)},
	})
}

func (t *Transport) notifyFinished(chunkID uint64, result event.DeliveryResult, elapsed time.Duration) {
	t.observer.Notify(event.Notification{
		Kind:      event.ChunkFinished,
		Transport: t.cfg.Name,
		ChunkID:   chunkID,
		Result:    result,
		Duration:  elapsed,
	})
}
