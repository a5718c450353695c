package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jittakal/logship/internal/generator"
	"github.com/jittakal/logship/internal/server"
	"github.com/jittakal/logship/internal/sink"
	"github.com/jittakal/logship/internal/source"
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

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    options
		wantErr bool
	}{
		{"valid", options{interval: time.Second, batch: 1}, false},
		{"zero interval", options{batch: 1}, true},
		{"zero batch", options{interval: time.Second}, true},
		{"negative count", options{interval: time.Second, batch: 1, count: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProduceEvents_StdoutLinesDecode(t *testing.T) {
	gen, err := generator.New(generator.Config{Sources: []string{"web"}})
	require.NoError(t, err)

	var out bytes.Buffer
	em := newEmitter(sink.NewConsoleSink("stdout", &out))
	opts := &options{interval: time.Millisecond, batch: 4, count: 10}

	sent, failed := produceEvents(context.Background(), em, gen, opts, zap.NewNop())
	assert.Equal(t, 10, sent)
	assert.Equal(t, 0, failed)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 10)
	for _, line := range lines {
		ev, err := source.Decode([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, "web", ev.Source)
		assert.NotEmpty(t, ev.Message)
	}
}

func TestProduceEvents_HTTPIngest(t *testing.T) {
	rec := &recorder{}
	ts := httptest.NewServer(server.IngestHandler(rec, 0, discardLogger()))
	defer ts.Close()

	s, err := sink.NewCloudEventsSink(sink.CloudEventsConfig{Name: "http", Target: ts.URL}, nil, discardLogger())
	require.NoError(t, err)
	em := newEmitter(s)
	defer em.close()

	gen, err := generator.New(generator.Config{})
	require.NoError(t, err)

	sent, failed := produceEvents(context.Background(), em, gen, &options{interval: time.Millisecond, batch: 3, count: 6}, zap.NewNop())
	assert.Equal(t, 6, sent)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 6, rec.count())
}

func TestProduceEvents_StopsOnCancel(t *testing.T) {
	gen, err := generator.New(generator.Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	em := newEmitter(sink.NewConsoleSink("stdout", io.Discard))
	sent, failed := produceEvents(ctx, em, gen, &options{interval: time.Hour, batch: 2}, zap.NewNop())

	// The first batch is attempted with a cancelled context.
	assert.Equal(t, 0, sent)
	assert.Equal(t, 2, failed)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, parseLogLevel("DEBUG").Level())
	assert.Equal(t, zap.WarnLevel, parseLogLevel("warn").Level())
	assert.Equal(t, zap.InfoLevel, parseLogLevel("bogus").Level())
}
