package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jittakal/logship/internal/delivery"
	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/internal/format"
	"github.com/jittakal/logship/internal/sink"
	"github.com/jittakal/logship/internal/validator"
	"github.com/jittakal/logship/pkg/event"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// syncBuffer is a bytes.Buffer safe for the dispatch goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newConsoleTransport(t *testing.T, name string, minLevel event.Level, w io.Writer) *delivery.Transport {
	t.Helper()
	tr, err := delivery.NewTransport(
		delivery.Config{Name: name, Capacity: 100, ChunkSize: 10, MinLevel: minLevel},
		sink.NewConsoleSink(name, w),
		format.NewText(format.Options{}),
		nil,
		testLogger,
	)
	require.NoError(t, err)
	return tr
}

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) RecordAdmission(transport string, accepted bool) {
	m.Called(transport, accepted)
}

func (m *mockMetrics) SetBufferDepth(transport string, depth float64) {
	m.Called(transport, depth)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, nil, testLogger, nil)
	assert.Error(t, err)

	a := newConsoleTransport(t, "same", event.LevelDebug, io.Discard)
	b := newConsoleTransport(t, "same", event.LevelDebug, io.Discard)
	_, err = New(Config{}, []Transport{a, b}, testLogger, nil)
	assert.ErrorContains(t, err, "duplicate transport")

	ctx := context.Background()
	require.NoError(t, a.Close(ctx))
	require.NoError(t, b.Close(ctx))
}

func TestLogger_FanOutWithLevels(t *testing.T) {
	var all, errorsOnly syncBuffer
	everything := newConsoleTransport(t, "all", event.LevelDebug, &all)
	severe := newConsoleTransport(t, "errors", event.LevelError, &errorsOnly)

	metrics := new(mockMetrics)
	metrics.On("RecordAdmission", mock.Anything, mock.Anything).Return()

	l, err := New(Config{MinLevel: event.LevelInfo}, []Transport{everything, severe}, testLogger, metrics)
	require.NoError(t, err)

	assert.False(t, l.Log(event.LevelDebug, "below logger level", nil))
	assert.True(t, l.Log(event.LevelInfo, "info line", nil))
	assert.True(t, l.Log(event.LevelError, "error line", nil))

	require.NoError(t, l.Close(context.Background()))

	assert.Contains(t, all.String(), "info line")
	assert.Contains(t, all.String(), "error line")
	assert.NotContains(t, all.String(), "below logger level")
	assert.NotContains(t, errorsOnly.String(), "info line")
	assert.Contains(t, errorsOnly.String(), "error line")

	metrics.AssertCalled(t, "RecordAdmission", "errors", false)
	metrics.AssertNumberOfCalls(t, "RecordAdmission", 4)
}

func TestLogger_RejectsInvalidEvents(t *testing.T) {
	var out syncBuffer
	tr := newConsoleTransport(t, "console", event.LevelDebug, &out)
	l, err := New(Config{Validator: validator.NewEventValidator(16, 0)}, []Transport{tr}, testLogger, nil)
	require.NoError(t, err)

	assert.False(t, l.Record(event.Event{Level: event.LevelInfo}))
	assert.False(t, l.Log(event.LevelInfo, strings.Repeat("x", 17), nil))
	assert.True(t, l.Record(event.Event{Level: event.LevelWarn, Message: "ok"}))
	assert.Equal(t, uint64(2), l.Invalid())

	require.NoError(t, l.Close(context.Background()))
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
}

func TestLogger_CloseStopsRecording(t *testing.T) {
	tr := newConsoleTransport(t, "console", event.LevelDebug, io.Discard)
	l, err := New(Config{}, []Transport{tr}, testLogger, nil)
	require.NoError(t, err)

	assert.True(t, l.Liveness())
	assert.True(t, l.Readiness(context.Background()))

	require.NoError(t, l.Close(context.Background()))
	assert.ErrorIs(t, l.Close(context.Background()), apperrors.ErrLoggerClosed)
	assert.False(t, l.Log(event.LevelInfo, "late", nil))
	assert.False(t, l.Liveness())
	assert.False(t, l.Readiness(context.Background()))
	assert.Equal(t, map[string]string{"console": "closed"}, l.GetStatus())
}

// stubTransport fails to close and counts flushes.
type stubTransport struct {
	name     string
	flushes  int
	closeErr error
}

func (s *stubTransport) Name() string { return s.name }

func (s *stubTransport) Record(event.Event) bool { return true }

func (s *stubTransport) Flush() bool {
	s.flushes++
	return s.flushes == 1
}

func (s *stubTransport) Stats() delivery.Stats { return delivery.Stats{Buffered: 7} }

func (s *stubTransport) Close(context.Context) error { return s.closeErr }

func TestLogger_CloseReportsTransportError(t *testing.T) {
	broken := &stubTransport{name: "broken", closeErr: errors.New("disk gone")}
	ok := &stubTransport{name: "ok"}
	l, err := New(Config{}, []Transport{broken, ok}, testLogger, nil)
	require.NoError(t, err)

	err = l.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Contains(t, err.Error(), "disk gone")
}

// slowSink takes a fixed time per chunk and counts delivered entries.
type slowSink struct {
	delay     time.Duration
	mu        sync.Mutex
	delivered int
}

func (s *slowSink) Name() string { return "slow" }

func (s *slowSink) Deliver(ctx context.Context, chunk *event.Chunk) event.Outcome {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return event.ChunkFailed(ctx.Err())
	}
	s.mu.Lock()
	s.delivered += chunk.Len()
	s.mu.Unlock()
	return event.AllSent()
}

func (s *slowSink) Close() error { return nil }

func (s *slowSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

func TestLogger_CloseFailureDoesNotCutOtherTransports(t *testing.T) {
	broken := &stubTransport{name: "broken", closeErr: errors.New("close boom")}

	slow := &slowSink{delay: 20 * time.Millisecond}
	draining, err := delivery.NewTransport(
		delivery.Config{Name: "draining", Capacity: 200, ChunkSize: 10, MinLevel: event.LevelDebug},
		slow,
		format.NewJSON(format.Options{}),
		nil,
		testLogger,
	)
	require.NoError(t, err)

	l, err := New(Config{}, []Transport{broken, draining}, testLogger, nil)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.True(t, l.Log(event.LevelInfo, "queued", nil))
	}

	err = l.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close boom")

	assert.Equal(t, 100, slow.count())
	stats := draining.Stats()
	assert.Equal(t, uint64(100), stats.Sent)
	assert.Zero(t, stats.Discarded)
}

func TestLogger_Flush(t *testing.T) {
	a := &stubTransport{name: "a"}
	b := &stubTransport{name: "b"}
	l, err := New(Config{}, []Transport{a, b}, testLogger, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, l.Flush())
	assert.Equal(t, 0, l.Flush())
}

// depthGauge captures buffer depths reported from the gauge loop.
type depthGauge struct {
	depths chan float64
}

func (g *depthGauge) RecordAdmission(string, bool) {}

func (g *depthGauge) SetBufferDepth(_ string, depth float64) {
	select {
	case g.depths <- depth:
	default:
	}
}

func TestLogger_StatusAndGauges(t *testing.T) {
	metrics := &depthGauge{depths: make(chan float64, 1)}

	l, err := New(Config{}, []Transport{&stubTransport{name: "a"}}, testLogger, metrics)
	require.NoError(t, err)

	status := l.GetStatus()
	assert.Contains(t, status["a"], "buffered=7")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.ReportGauges(ctx, 5*time.Millisecond)
		close(done)
	}()

	select {
	case depth := <-metrics.depths:
		assert.Equal(t, float64(7), depth)
	case <-time.After(time.Second):
		t.Fatal("buffer depth was not reported")
	}
	cancel()
	<-done
}
