package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/pkg/event"
	"github.com/jittakal/logship/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Sink = (*ProducerSink)(nil)

// ProducerConfig contains Kafka producer sink configuration.
type ProducerConfig struct {
	Name             string
	BootstrapServers []string
	Topic            string
	ClientID         string
	RequiredAcks     string
	Compression      string
	Idempotent       bool
	RetryMax         int
	RetryBackoff     time.Duration
	MaxMessageBytes  int
	Security         SecurityConfig
}

// Validate checks required settings.
func (c ProducerConfig) Validate() error {
	if len(c.BootstrapServers) == 0 {
		return fmt.Errorf("kafka bootstrap servers are required")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka topic is required")
	}
	return nil
}

// saramaConfig builds the sync producer configuration.
func (c ProducerConfig) saramaConfig() (*sarama.Config, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	if c.ClientID != "" {
		saramaConfig.ClientID = c.ClientID
	}
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = parseRequiredAcks(c.RequiredAcks)
	saramaConfig.Producer.Compression = parseCompression(c.Compression)
	if c.MaxMessageBytes > 0 {
		saramaConfig.Producer.MaxMessageBytes = c.MaxMessageBytes
	}
	if c.RetryMax > 0 {
		saramaConfig.Producer.Retry.Max = c.RetryMax
	}
	if c.RetryBackoff > 0 {
		saramaConfig.Producer.Retry.Backoff = c.RetryBackoff
	}

	// Idempotent producer requires acks=all and Net.MaxOpenRequests to be 1
	if c.Idempotent {
		saramaConfig.Producer.Idempotent = true
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
		saramaConfig.Net.MaxOpenRequests = 1
	}

	if err := ConfigureSecurity(saramaConfig, c.Security); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}
	return saramaConfig, nil
}

// ProducerSink delivers chunks to a Kafka topic. Each entry becomes one
// message keyed by event ID whose value is the cached payload.
type ProducerSink struct {
	name     string
	topic    string
	producer sarama.SyncProducer
	logger   *slog.Logger
	metrics  MetricsCollector

	mu     sync.Mutex
	closed bool
}

// NewProducerSink connects a sync producer for cfg.
func NewProducerSink(cfg ProducerConfig, logger *slog.Logger, metrics MetricsCollector) (*ProducerSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	saramaConfig, err := cfg.saramaConfig()
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducer(cfg.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info("kafka producer sink created",
		"bootstrap_servers", cfg.BootstrapServers,
		"topic", cfg.Topic,
		"security_protocol", cfg.Security.Protocol,
	)

	return NewProducerSinkWith(cfg.Name, cfg.Topic, producer, logger, metrics), nil
}

// NewProducerSinkWith wraps an existing producer.
func NewProducerSinkWith(name, topic string, producer sarama.SyncProducer, logger *slog.Logger, metrics MetricsCollector) *ProducerSink {
	if name == "" {
		name = "kafka-" + topic
	}
	return &ProducerSink{
		name:     name,
		topic:    topic,
		producer: producer,
		logger:   logger,
		metrics:  metrics,
	}
}

// Name returns the sink name.
func (s *ProducerSink) Name() string {
	return s.name
}

// Deliver sends the chunk as one batch. Per-message failures reported by the
// producer become a partial failure; any other error fails the chunk.
func (s *ProducerSink) Deliver(ctx context.Context, chunk *event.Chunk) event.Outcome {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return event.ChunkFailed(apperrors.ErrSinkClosed)
	}
	if err := ctx.Err(); err != nil {
		return event.ChunkFailed(err)
	}

	msgs := make([]*sarama.ProducerMessage, len(chunk.Entries))
	for i, e := range chunk.Entries {
		msgs[i] = s.message(e)
	}

	err := s.producer.SendMessages(msgs)
	if err == nil {
		s.record(len(msgs), 0)
		return event.AllSent()
	}

	var perMessage sarama.ProducerErrors
	if !errors.As(err, &perMessage) {
		s.record(0, len(msgs))
		s.logger.Warn("Failed to send chunk to Kafka", "topic", s.topic, "chunk_id", chunk.ID, "error", err)
		return event.ChunkFailed(err)
	}

	failed := make(map[string]error, len(perMessage))
	for _, pe := range perMessage {
		id, ok := pe.Msg.Metadata.(string)
		if !ok {
			continue
		}
		failed[id] = pe.Err
	}
	s.record(len(msgs)-len(failed), len(failed))
	return event.PartialFailure(failed)
}

func (s *ProducerSink) message(e *event.Entry) *sarama.ProducerMessage {
	headers := []sarama.RecordHeader{
		{Key: []byte("level"), Value: []byte(e.Event.Level.String())},
	}
	if e.Event.Source != "" {
		headers = append(headers, sarama.RecordHeader{Key: []byte("source"), Value: []byte(e.Event.Source)})
	}
	return &sarama.ProducerMessage{
		Topic:     s.topic,
		Key:       sarama.StringEncoder(e.ID()),
		Value:     sarama.ByteEncoder(e.Payload),
		Headers:   headers,
		Timestamp: e.Event.Timestamp,
		Metadata:  e.ID(),
	}
}

func (s *ProducerSink) record(sent, failed int) {
	if s.metrics == nil {
		return
	}
	if sent > 0 {
		s.metrics.AddMessagesProduced(s.topic, "success", float64(sent))
	}
	if failed > 0 {
		s.metrics.AddMessagesProduced(s.topic, "error", float64(failed))
	}
}

// Close closes the producer.
func (s *ProducerSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("closing kafka producer sink", "topic", s.topic)
	return s.producer.Close()
}
