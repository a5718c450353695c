package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/pkg/event"
	"github.com/jittakal/logship/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Sink = (*CloudEventsSink)(nil)

// CloudEvents attributes used for log events.
const (
	EventTypePrefix = "io.logship.log."
	DefaultSource   = "/logship"
)

// CloudEventsConfig configures the HTTP CloudEvents sink.
type CloudEventsConfig struct {
	Name   string
	Target string // receiver URL
	Source string // CloudEvents source when the event has none
}

// CloudEventsSink sends every event as a CloudEvent in HTTP binary mode.
// Entries the receiver does not acknowledge are reported as failed.
type CloudEventsSink struct {
	cfg    CloudEventsConfig
	client cloudevents.Client
	budget *ByteBudget
	logger *slog.Logger
	closed atomic.Bool
}

// NewCloudEventsSink creates an HTTP CloudEvents sink. The budget may be nil
// or shared with other sinks.
func NewCloudEventsSink(cfg CloudEventsConfig, budget *ByteBudget, logger *slog.Logger) (*CloudEventsSink, error) {
	if cfg.Target == "" {
		return nil, fmt.Errorf("cloudevents target is required")
	}
	if cfg.Name == "" {
		cfg.Name = "cloudevents"
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}

	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudevents client: %w", err)
	}

	logger.Info("CloudEvents sink created",
		"target", cfg.Target,
		"budget_bytes", budget.Max(),
	)

	return &CloudEventsSink{
		cfg:    cfg,
		client: client,
		budget: budget,
		logger: logger,
	}, nil
}

// Name returns the sink name.
func (s *CloudEventsSink) Name() string {
	return s.cfg.Name
}

// Deliver sends the chunk's events one by one, holding the chunk's payload
// size from the byte budget for the duration of the call.
func (s *CloudEventsSink) Deliver(ctx context.Context, chunk *event.Chunk) event.Outcome {
	if s.closed.Load() {
		return event.ChunkFailed(apperrors.ErrSinkClosed)
	}

	held, err := s.budget.Acquire(ctx, chunk.Size())
	if err != nil {
		return event.ChunkFailed(fmt.Errorf("failed to acquire byte budget: %w", err))
	}
	defer s.budget.Release(held)

	ctx = cloudevents.ContextWithTarget(ctx, s.cfg.Target)
	failed := make(map[string]error)

	for _, e := range chunk.Entries {
		ce, err := s.toCloudEvent(e.Event)
		if err != nil {
			failed[e.ID()] = err
			continue
		}
		if result := s.client.Send(ctx, ce); !cloudevents.IsACK(result) {
			failed[e.ID()] = fmt.Errorf("failed to send event: %w", result)
		}
	}

	if len(failed) > 0 {
		s.logger.Debug("CloudEvents chunk partially failed",
			"chunk_id", chunk.ID,
			"failed", len(failed),
			"total", chunk.Len())
	}
	return event.PartialFailure(failed)
}

func (s *CloudEventsSink) toCloudEvent(ev event.Event) (cloudevents.Event, error) {
	return ToCloudEvent(ev, s.cfg.Source)
}

// ToCloudEvent converts a log event into a CloudEvent whose data is the JSON
// encoded event.
func ToCloudEvent(ev event.Event, defaultSource string) (cloudevents.Event, error) {
	ce := cloudevents.NewEvent()
	ce.SetSpecVersion(cloudevents.VersionV1)
	ce.SetID(ev.ID)
	ce.SetType(EventTypePrefix + strings.ToLower(ev.Level.String()))
	source := ev.Source
	if source == "" {
		source = defaultSource
	}
	ce.SetSource(source)
	ce.SetTime(ev.Timestamp)
	if err := ce.SetData(cloudevents.ApplicationJSON, ev); err != nil {
		return ce, fmt.Errorf("failed to set event data: %w", err)
	}
	return ce, nil
}

// Close stops accepting chunks.
func (s *CloudEventsSink) Close() error {
	s.closed.Store(true)
	return nil
}
