// Package kafka implements the Kafka producer sink, the Kafka log source and
// dead-letter publishing.
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
	logsource "github.com/jittakal/logship/internal/source"
	"github.com/jittakal/logship/pkg/source"
)

// Ensure implementation satisfies interfaces at compile time.
var _ source.Source = (*SaramaConsumer)(nil)

// ConsumerConfig contains Kafka consumer configuration.
type ConsumerConfig struct {
	BootstrapServers    []string
	GroupID             string
	Topics              []string
	AutoOffsetReset     string
	SessionTimeoutMS    int
	HeartbeatIntervalMS int
	MaxPollIntervalMS   int
	Security            SecurityConfig
}

// Validate checks required settings.
func (c ConsumerConfig) Validate() error {
	if len(c.BootstrapServers) == 0 {
		return fmt.Errorf("kafka bootstrap servers are required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("kafka consumer group id is required")
	}
	if len(c.Topics) == 0 {
		return fmt.Errorf("at least one kafka topic is required")
	}
	return nil
}

func (c ConsumerConfig) saramaConfig() (*sarama.Config, error) {
	saramaConfig := sarama.NewConfig()

	// Consumer settings tuned for AWS MSK
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = offsetInitial(c.AutoOffsetReset)
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true

	if c.SessionTimeoutMS > 0 {
		saramaConfig.Consumer.Group.Session.Timeout = time.Duration(c.SessionTimeoutMS) * time.Millisecond
	}
	if c.HeartbeatIntervalMS > 0 {
		saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
	}

	// max_poll_interval_ms prevents rebalancing during long processing
	if c.MaxPollIntervalMS > 0 {
		saramaConfig.Consumer.MaxProcessingTime = time.Duration(c.MaxPollIntervalMS) * time.Millisecond
	} else {
		saramaConfig.Consumer.MaxProcessingTime = 5 * time.Minute
	}

	saramaConfig.Consumer.Return.Errors = true

	if err := ConfigureSecurity(saramaConfig, c.Security); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}
	return saramaConfig, nil
}

// MetricsCollector defines metrics operations for Kafka clients.
type MetricsCollector interface {
	IncMessagesConsumed(topic string, partition int32)
	IncDecodeErrors(topic string)
	IncRebalances(groupID string)
	ObserveRebalanceDuration(groupID string, duration float64)
	SetPartitionsAssigned(topic string, count float64)
	AddMessagesProduced(topic string, status string, count float64)
	IncDLQPublished(reason string, status string)
}

// SaramaConsumer is a log source reading events from Kafka topics with a
// consumer group. Messages are marked once they have been handed to the
// recorder, so delivery into the pipeline is at most once per commit.
type SaramaConsumer struct {
	consumerGroup sarama.ConsumerGroup
	config        ConsumerConfig
	logger        *slog.Logger
	metrics       MetricsCollector

	mu     sync.Mutex
	closed bool
}

// NewSaramaConsumer creates a new Kafka consumer using Sarama library.
func NewSaramaConsumer(config ConsumerConfig, logger *slog.Logger, metrics MetricsCollector) (*SaramaConsumer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	saramaConfig, err := config.saramaConfig()
	if err != nil {
		return nil, err
	}

	consumerGroup, err := sarama.NewConsumerGroup(config.BootstrapServers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	logger.Info("kafka consumer created",
		"group_id", config.GroupID,
		"topics", config.Topics,
		"bootstrap_servers", config.BootstrapServers,
	)

	return newSaramaConsumer(consumerGroup, config, logger, metrics), nil
}

func newSaramaConsumer(group sarama.ConsumerGroup, config ConsumerConfig, logger *slog.Logger, metrics MetricsCollector) *SaramaConsumer {
	return &SaramaConsumer{
		consumerGroup: group,
		config:        config,
		logger:        logger,
		metrics:       metrics,
	}
}

// Run consumes until ctx is cancelled, recording every decoded message.
func (c *SaramaConsumer) Run(ctx context.Context, rec source.Recorder) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.ErrSourceClosed
	}
	c.mu.Unlock()

	handler := &consumerGroupHandler{consumer: c, recorder: rec}

	go func() {
		for err := range c.consumerGroup.Errors() {
			c.logger.Error("consumer group error", "error", err)
		}
	}()

	for {
		// Consume returns on every rebalance and must be called again.
		if err := c.consumerGroup.Consume(ctx, c.config.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consumer group error: %w", err)
		}
		if ctx.Err() != nil {
			c.logger.Info("consumer context cancelled")
			return nil
		}
	}
}

// Close closes the consumer and releases resources.
func (c *SaramaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Info("closing kafka consumer")

	if err := c.consumerGroup.Close(); err != nil {
		c.logger.Error("error closing consumer group", "error", err)
		return err
	}
	return nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler.
type consumerGroupHandler struct {
	consumer       *SaramaConsumer
	recorder       source.Recorder
	rebalanceStart time.Time
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h *consumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.rebalanceStart = time.Now()

	h.consumer.logger.Info("consumer group session setup",
		"member_id", session.MemberID(),
		"generation_id", session.GenerationID(),
		"claims", session.Claims(),
	)

	if h.consumer.metrics != nil {
		h.consumer.metrics.IncRebalances(h.consumer.config.GroupID)
		for topic, partitions := range session.Claims() {
			h.consumer.metrics.SetPartitionsAssigned(topic, float64(len(partitions)))
		}
	}
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (h *consumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	if h.consumer.metrics != nil && !h.rebalanceStart.IsZero() {
		h.consumer.metrics.ObserveRebalanceDuration(h.consumer.config.GroupID, time.Since(h.rebalanceStart).Seconds())
	}

	h.consumer.logger.Info("consumer group session cleanup", "member_id", session.MemberID())
	return nil
}

// ConsumeClaim processes messages from a partition.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	h.consumer.logger.Info("started consuming partition",
		"topic", claim.Topic(),
		"partition", claim.Partition(),
		"initial_offset", claim.InitialOffset(),
	)

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.handle(message)
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *consumerGroupHandler) handle(message *sarama.ConsumerMessage) {
	ev, err := logsource.Decode(message.Value)
	if err != nil {
		err = &apperrors.ProcessingError{Source: message.Topic, EventID: string(message.Key), Err: err}
		// Undecodable messages are skipped; redelivery would fail the same way.
		h.consumer.logger.Warn("failed to decode log message",
			"error", err,
			"topic", message.Topic,
			"partition", message.Partition,
			"offset", message.Offset,
		)
		if h.consumer.metrics != nil {
			h.consumer.metrics.IncDecodeErrors(message.Topic)
		}
		return
	}

	if ev.Source == "" {
		ev.Source = message.Topic
	}
	if !h.recorder.Record(ev) {
		h.consumer.logger.Debug("event not accepted by any transport",
			"event_id", ev.ID,
			"topic", message.Topic,
			"offset", message.Offset,
		)
	}

	if h.consumer.metrics != nil {
		h.consumer.metrics.IncMessagesConsumed(message.Topic, message.Partition)
	}
}
