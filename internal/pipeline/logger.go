// Package pipeline implements the producer-facing logger that fans events out
// to every configured transport.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jittakal/logship/internal/delivery"
	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/pkg/event"
	"github.com/jittakal/logship/pkg/source"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ source.Recorder = (*Logger)(nil)
	_ Transport       = (*delivery.Transport)(nil)
)

// Transport is the part of delivery.Transport the logger drives.
type Transport interface {
	Name() string
	Record(ev event.Event) bool
	Flush() bool
	Stats() delivery.Stats
	Close(ctx context.Context) error
}

// MetricsCollector defines metrics operations for the logger.
type MetricsCollector interface {
	RecordAdmission(transport string, accepted bool)
	SetBufferDepth(transport string, depth float64)
}

// Config holds logger-wide settings.
type Config struct {
	// MinLevel drops events below it before any transport sees them.
	MinLevel event.Level
	// Validator rejects malformed events; nil accepts everything.
	Validator event.Validator
}

// Logger fans events out to transports. It is safe for concurrent use.
type Logger struct {
	cfg        Config
	transports []Transport
	logger     *slog.Logger
	metrics    MetricsCollector

	closed   atomic.Bool
	invalid  atomic.Uint64
	filtered atomic.Uint64
}

// New creates a logger over the given transports.
func New(cfg Config, transports []Transport, logger *slog.Logger, metrics MetricsCollector) (*Logger, error) {
	if len(transports) == 0 {
		return nil, fmt.Errorf("at least one transport is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	seen := make(map[string]struct{}, len(transports))
	for _, t := range transports {
		if _, dup := seen[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate transport name %q", t.Name())
		}
		seen[t.Name()] = struct{}{}
	}

	return &Logger{
		cfg:        cfg,
		transports: transports,
		logger:     logger.With("component", "pipeline"),
		metrics:    metrics,
	}, nil
}

// Record fills a missing ID and timestamp, validates the event and offers it
// to every transport. It returns true when at least one transport accepted it.
func (l *Logger) Record(ev event.Event) bool {
	if l.closed.Load() {
		return false
	}
	if ev.Level < l.cfg.MinLevel {
		l.filtered.Add(1)
		return false
	}

	ev = ev.WithDefaults()
	if l.cfg.Validator != nil {
		if err := l.cfg.Validator.Validate(&ev); err != nil {
			l.invalid.Add(1)
			l.logger.Debug("Rejected invalid event", "event_id", ev.ID, "error", err)
			return false
		}
	}

	accepted := false
	for _, t := range l.transports {
		ok := t.Record(ev)
		if l.metrics != nil {
			l.metrics.RecordAdmission(t.Name(), ok)
		}
		accepted = accepted || ok
	}
	return accepted
}

// Log builds an event and records it.
func (l *Logger) Log(level event.Level, message string, fields event.Fields) bool {
	return l.Record(event.New(level, message, fields))
}

// Flush asks every transport to dispatch a chunk and returns how many did.
func (l *Logger) Flush() int {
	n := 0
	for _, t := range l.transports {
		if t.Flush() {
			n++
		}
	}
	return n
}

// Close stops accepting events and closes all transports concurrently. Each
// transport makes a final delivery attempt bounded by ctx alone; a failing
// transport does not cut the others short.
func (l *Logger) Close(ctx context.Context) error {
	if !l.closed.CompareAndSwap(false, true) {
		return apperrors.ErrLoggerClosed
	}

	var g errgroup.Group
	for _, t := range l.transports {
		g.Go(func() error {
			if err := t.Close(ctx); err != nil {
				return fmt.Errorf("failed to close transport %s: %w", t.Name(), err)
			}
			return nil
		})
	}

	err := g.Wait()
	l.logger.Info("Pipeline closed",
		"invalid", l.invalid.Load(),
		"filtered", l.filtered.Load())
	return err
}

// Stats returns a snapshot of every transport, keyed by name.
func (l *Logger) Stats() map[string]delivery.Stats {
	stats := make(map[string]delivery.Stats, len(l.transports))
	for _, t := range l.transports {
		stats[t.Name()] = t.Stats()
	}
	return stats
}

// Invalid returns the number of events rejected by the validator.
func (l *Logger) Invalid() uint64 {
	return l.invalid.Load()
}

// ReportGauges publishes buffer depths every interval until ctx is done.
func (l *Logger) ReportGauges(ctx context.Context, interval time.Duration) {
	if l.metrics == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, s := range l.Stats() {
				l.metrics.SetBufferDepth(name, float64(s.Buffered))
			}
		}
	}
}
