package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/pkg/event"
)

func expectDLQ(producer *mocks.SyncProducer, reason, cause string) {
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var msg DLQEvent
		if err := json.Unmarshal(val, &msg); err != nil {
			return err
		}
		if msg.FailureReason != reason {
			return fmt.Errorf("reason = %q, want %q", msg.FailureReason, reason)
		}
		if msg.FailureError != cause {
			return fmt.Errorf("error = %q, want %q", msg.FailureError, cause)
		}
		if msg.ProcessorID != "logshipd-1" || msg.Transport != "kafka" {
			return fmt.Errorf("unexpected metadata %+v", msg)
		}
		var original event.Event
		if err := json.Unmarshal(msg.OriginalEvent, &original); err != nil {
			return err
		}
		if original.Message != "payment failed" {
			return fmt.Errorf("original message = %q", original.Message)
		}
		return nil
	})
}

func TestNewDLQPublisher_Disabled(t *testing.T) {
	p, err := NewDLQPublisher(nil, SecurityConfig{}, DLQConfig{Enabled: false}, "id", discardLogger(), nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = NewDLQPublisher([]string{"localhost:9092"}, SecurityConfig{}, DLQConfig{Enabled: true}, "id", discardLogger(), nil)
	assert.Error(t, err, "topic is required")
}

func TestDLQPublisher_Notify(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	expectDLQ(producer, ReasonRetryExhausted, "sink unavailable")
	expectDLQ(producer, ReasonOverflow, apperrors.ErrBufferFull.Error())
	expectDLQ(producer, ReasonOverflow, apperrors.ErrBufferFull.Error())
	expectDLQ(producer, ReasonShutdown, apperrors.ErrDiscardedOnShutdown.Error())

	metrics := newFakeMetrics()
	p := newDLQPublisher(producer, DLQConfig{Topic: "logs-dlq"}, "logshipd-1", discardLogger(), metrics)

	exhausted := entry("evt-1")
	exhausted.Attempts = 4
	p.Notify(event.Notification{
		Kind:      event.ChunkFinished,
		Transport: "kafka",
		Result: event.DeliveryResult{
			Sent: []*event.Entry{entry("evt-0")},
			Discarded: []event.Failure{{
				Entry: exhausted,
				Err:   &apperrors.RetryExhaustedError{EventID: "evt-1", Attempts: 4, Err: errors.New("sink unavailable")},
			}},
		},
	})
	p.Notify(event.Notification{Kind: event.Overflow, Transport: "kafka", Dropped: []*event.Entry{entry("evt-2"), entry("evt-3")}})
	p.Notify(event.Notification{Kind: event.ShutdownDiscard, Transport: "kafka", Dropped: []*event.Entry{entry("evt-4")}, Err: apperrors.ErrDiscardedOnShutdown})

	// Close drains the queue before closing the producer.
	require.NoError(t, p.Close())

	assert.Equal(t, 1, metrics.dlqCount("retry_exhausted/success"))
	assert.Equal(t, 2, metrics.dlqCount("overflow/success"))
	assert.Equal(t, 1, metrics.dlqCount("shutdown/success"))
	assert.Zero(t, p.Dropped())
}

func TestDLQPublisher_AfterClose(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p := newDLQPublisher(producer, DLQConfig{Topic: "logs-dlq"}, "logshipd-1", discardLogger(), nil)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	p.Notify(event.Notification{Kind: event.Overflow, Dropped: []*event.Entry{entry("evt-1")}})
	assert.Equal(t, uint64(1), p.Dropped())

	err := p.Publish(context.Background(), entry("evt-2"), "manual")
	assert.ErrorIs(t, err, apperrors.ErrPublisherClosed)
}

func TestDLQPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(errBroker)
	metrics := newFakeMetrics()

	p := newDLQPublisher(producer, DLQConfig{Topic: "logs-dlq"}, "logshipd-1", discardLogger(), metrics)
	defer p.Close()

	err := p.Publish(context.Background(), entry("evt-1"), "manual")
	assert.ErrorIs(t, err, errBroker)
	assert.Equal(t, 1, metrics.dlqCount("manual/error"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, entry("evt-2"), "manual"), context.Canceled)
}

func TestRootCause(t *testing.T) {
	cause := errors.New("timeout")
	assert.Equal(t, cause, rootCause(&apperrors.RetryExhaustedError{Err: cause}))
	assert.Equal(t, cause, rootCause(cause))
}
