package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jittakal/logship/pkg/event"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Record(ev event.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) snapshot() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }
func (s *fakeSession) MemberID() string { return "member-1" }
func (s *fakeSession) GenerationID() int32 { return 1 }
func (s *fakeSession) Claims() map[string][]int32 {
	return map[string][]int32{"app-logs": {0}}
}

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string { return "app-logs" }
func (c *fakeClaim) Partition() int32 { return 0 }
func (c *fakeClaim) InitialOffset() int64 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumerGroupHandler_ConsumeClaim(t *testing.T) {
	metrics := newFakeMetrics()
	consumer := newSaramaConsumer(nil, ConsumerConfig{GroupID: "logship"}, discardLogger(), metrics)
	rec := &recorder{}
	handler := &consumerGroupHandler{consumer: consumer, recorder: rec}

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)}
	claim.messages <- &sarama.ConsumerMessage{Topic: "app-logs", Offset: 10, Value: []byte("plain text line")}
	claim.messages <- &sarama.ConsumerMessage{Topic: "app-logs", Offset: 11, Value: []byte(`{"broken":`)}
	claim.messages <- &sarama.ConsumerMessage{Topic: "app-logs", Offset: 12, Value: []byte(`{"level":"warn","message":"slow","source":"api"}`)}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, handler.Setup(session))
	require.NoError(t, handler.ConsumeClaim(session, claim))
	require.NoError(t, handler.Cleanup(session))

	events := rec.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "plain text line", events[0].Message)
	assert.Equal(t, "app-logs", events[0].Source, "topic is the default source")
	assert.Equal(t, event.LevelWarn, events[1].Level)
	assert.Equal(t, "api", events[1].Source)

	// Undecodable messages are marked too so they are not redelivered.
	assert.Equal(t, []int64{10, 11, 12}, session.marked)
	assert.Equal(t, 2, metrics.consumed)
	assert.Equal(t, 1, metrics.decodeErr)
}

func TestConsumerGroupHandler_StopsOnSessionDone(t *testing.T) {
	consumer := newSaramaConsumer(nil, ConsumerConfig{GroupID: "logship"}, discardLogger(), nil)
	handler := &consumerGroupHandler{consumer: consumer, recorder: &recorder{}}

	ctx, cancel := context.WithCancel(context.Background())
	session := &fakeSession{ctx: ctx}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage)}

	done := make(chan error, 1)
	go func() { done <- handler.ConsumeClaim(session, claim) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim() did not return after session ended")
	}
}
