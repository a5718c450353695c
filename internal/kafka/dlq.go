package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/pkg/event"
	"github.com/jittakal/logship/pkg/source"
)

// Ensure implementation satisfies interfaces at compile time.
var (
	_ source.DLQPublisher = (*DLQPublisher)(nil)
	_ event.Observer      = (*DLQPublisher)(nil)
)

// Reasons attached to dead-lettered events.
const (
	ReasonRetryExhausted = "retry_exhausted"
	ReasonOverflow       = "overflow"
	ReasonShutdown       = "shutdown"
)

// DefaultDLQQueueSize bounds the events waiting to be published.
const DefaultDLQQueueSize = 1024

// DLQEvent represents an event published to the dead letter queue.
type DLQEvent struct {
	OriginalEvent    json.RawMessage `json:"original_event"`
	Transport        string          `json:"transport,omitempty"`
	FailureReason    string          `json:"failure_reason"`
	FailureError     string          `json:"failure_error,omitempty"`
	FailureTimestamp time.Time       `json:"failure_timestamp"`
	Attempts         int             `json:"attempts"`
	ProcessorID      string          `json:"processor_id"`
}

// DLQConfig contains DLQ configuration.
type DLQConfig struct {
	Enabled   bool
	Topic     string
	QueueSize int
}

type dlqItem struct {
	entry     *event.Entry
	transport string
	reason    string
	err       error
}

// DLQPublisher publishes events the pipeline gave up on to a dead letter
// topic. As an event.Observer it queues discarded, evicted and
// shutdown-dropped entries without blocking and publishes them from a
// background goroutine; entries that do not fit in the queue are counted and
// dropped.
type DLQPublisher struct {
	producer    sarama.SyncProducer
	topic       string
	processorID string
	logger      *slog.Logger
	metrics     MetricsCollector

	queue   chan dlqItem
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewDLQPublisher creates a new DLQ publisher. It returns nil when the DLQ is disabled.
func NewDLQPublisher(
	bootstrapServers []string,
	security SecurityConfig,
	dlqConfig DLQConfig,
	processorID string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*DLQPublisher, error) {
	if !dlqConfig.Enabled {
		logger.Info("DLQ is disabled")
		return nil, nil
	}
	if dlqConfig.Topic == "" {
		return nil, fmt.Errorf("dlq topic is required")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	if err := ConfigureSecurity(saramaConfig, security); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	producer, err := sarama.NewSyncProducer(bootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info("DLQ publisher created",
		"bootstrap_servers", bootstrapServers,
		"topic", dlqConfig.Topic,
	)

	return newDLQPublisher(producer, dlqConfig, processorID, logger, metrics), nil
}

func newDLQPublisher(producer sarama.SyncProducer, cfg DLQConfig, processorID string, logger *slog.Logger, metrics MetricsCollector) *DLQPublisher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultDLQQueueSize
	}
	p := &DLQPublisher{
		producer:    producer,
		topic:       cfg.Topic,
		processorID: processorID,
		logger:      logger,
		metrics:     metrics,
		queue:       make(chan dlqItem, cfg.QueueSize),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *DLQPublisher) run() {
	defer p.wg.Done()
	for item := range p.queue {
		if err := p.publish(item); err != nil {
			p.logger.Error("failed to publish to DLQ",
				"error", err,
				"event_id", item.entry.ID(),
				"reason", item.reason,
			)
		}
	}
}

// Notify queues the entries a transport gave up on.
func (p *DLQPublisher) Notify(n event.Notification) {
	switch n.Kind {
	case event.ChunkFinished:
		for _, f := range n.Result.Discarded {
			p.enqueue(dlqItem{entry: f.Entry, transport: n.Transport, reason: ReasonRetryExhausted, err: f.Err})
		}
	case event.Overflow:
		for _, e := range n.Dropped {
			p.enqueue(dlqItem{entry: e, transport: n.Transport, reason: ReasonOverflow, err: apperrors.ErrBufferFull})
		}
	case event.ShutdownDiscard:
		for _, e := range n.Dropped {
			p.enqueue(dlqItem{entry: e, transport: n.Transport, reason: ReasonShutdown, err: n.Err})
		}
	}
}

func (p *DLQPublisher) enqueue(item dlqItem) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.queue <- item:
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.IncDLQPublished(item.reason, "dropped")
		}
	}
}

// Publish publishes one entry to the DLQ synchronously.
func (p *DLQPublisher) Publish(ctx context.Context, entry *event.Entry, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return apperrors.ErrPublisherClosed
	}

	return p.publish(dlqItem{entry: entry, reason: reason})
}

func (p *DLQPublisher) publish(item dlqItem) error {
	msg, err := p.message(item)
	if err != nil {
		return err
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		if p.metrics != nil {
			p.metrics.IncDLQPublished(item.reason, "error")
		}
		return fmt.Errorf("failed to send message to DLQ: %w", err)
	}

	if p.metrics != nil {
		p.metrics.IncDLQPublished(item.reason, "success")
	}
	p.logger.Debug("published event to DLQ",
		"dlq_topic", p.topic,
		"partition", partition,
		"offset", offset,
		"event_id", item.entry.ID(),
		"reason", item.reason,
	)
	return nil
}

func (p *DLQPublisher) message(item dlqItem) (*sarama.ProducerMessage, error) {
	eventData, err := json.Marshal(item.entry.Event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	dlqEvent := DLQEvent{
		OriginalEvent:    eventData,
		Transport:        item.transport,
		FailureReason:    item.reason,
		FailureTimestamp: time.Now().UTC(),
		Attempts:         item.entry.Attempts,
		ProcessorID:      p.processorID,
	}
	if item.err != nil {
		dlqEvent.FailureError = rootCause(item.err).Error()
	}

	dlqData, err := json.Marshal(dlqEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal DLQ event: %w", err)
	}

	return &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(item.entry.ID()),
		Value: sarama.ByteEncoder(dlqData),
		Headers: []sarama.RecordHeader{
			{Key: []byte("failure_reason"), Value: []byte(item.reason)},
			{Key: []byte("transport"), Value: []byte(item.transport)},
			{Key: []byte("processor_id"), Value: []byte(p.processorID)},
		},
		Timestamp: time.Now(),
	}, nil
}

// rootCause strips RetryExhaustedError so the DLQ records the sink error.
func rootCause(err error) error {
	var exhausted *apperrors.RetryExhaustedError
	if errors.As(err, &exhausted) && exhausted.Err != nil {
		return exhausted.Err
	}
	return err
}

// Dropped returns the number of entries that could not be queued.
func (p *DLQPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Close publishes the queued entries and closes the producer.
func (p *DLQPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("closing DLQ publisher", "dropped", p.dropped.Load())

	if err := p.producer.Close(); err != nil {
		p.logger.Error("error closing producer", "error", err)
		return err
	}
	return nil
}
