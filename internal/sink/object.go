package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/pkg/encoder"
	"github.com/jittakal/logship/pkg/event"
	"github.com/jittakal/logship/pkg/sink"
	"github.com/jittakal/logship/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Sink = (*ObjectSink)(nil)

// ObjectSink writes each chunk as one object file per event source.
type ObjectSink struct {
	name    string
	encoder encoder.Encoder
	writer  storage.Writer
	router  storage.Router
	tempDir string
	logger  *slog.Logger
	metrics MetricsCollector
	closed  atomic.Bool
}

// MetricsCollector records object files written by an ObjectSink.
type MetricsCollector interface {
	IncFilesWritten(format string)
	ObserveFileRecords(format string, records float64)
}

// ObjectSinkConfig configures an ObjectSink.
type ObjectSinkConfig struct {
	Name    string
	TempDir string // staging directory for encoded files; os.TempDir() when empty
}

// NewObjectSink creates an object sink.
func NewObjectSink(cfg ObjectSinkConfig, enc encoder.Encoder, writer storage.Writer, router storage.Router, logger *slog.Logger, metrics MetricsCollector) (*ObjectSink, error) {
	if enc == nil || writer == nil || router == nil {
		return nil, fmt.Errorf("object sink requires an encoder, a writer and a router")
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = "object-" + string(enc.Format())
	}

	return &ObjectSink{
		name:    cfg.Name,
		encoder: enc,
		writer:  writer,
		router:  router,
		tempDir: cfg.TempDir,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Name returns the sink name.
func (s *ObjectSink) Name() string {
	return s.name
}

// Deliver groups the chunk by event source, encodes each group into a staged
// file and uploads it. A failed group fails all of its entries.
func (s *ObjectSink) Deliver(ctx context.Context, chunk *event.Chunk) event.Outcome {
	if s.closed.Load() {
		return event.ChunkFailed(apperrors.ErrSinkClosed)
	}

	groups := groupBySource(chunk.Entries)
	sources := make([]string, 0, len(groups))
	for source := range groups {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	failed := make(map[string]error)
	for _, source := range sources {
		entries := groups[source]
		if err := s.writeGroup(ctx, chunk, source, entries); err != nil {
			s.logger.Warn("Failed to write object file",
				"source", source,
				"chunk_id", chunk.ID,
				"events", len(entries),
				"error", err)
			for _, e := range entries {
				failed[e.ID()] = err
			}
		}
	}
	return event.PartialFailure(failed)
}

func (s *ObjectSink) writeGroup(ctx context.Context, chunk *event.Chunk, source string, entries []*event.Entry) error {
	events := make([]event.Event, len(entries))
	for i, e := range entries {
		events[i] = e.Event
	}

	fileName := objectFileName(chunk, s.encoder.FileExtension())
	localPath := filepath.Join(s.tempDir, fileName)
	defer os.Remove(localPath)

	stats, err := s.encoder.Encode(localPath, events)
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}

	key := s.router.Route(source, events[0].Timestamp) + fileName
	if _, err := s.writer.Put(ctx, key, localPath); err != nil {
		return err
	}

	if s.metrics != nil {
		format := string(s.encoder.Format())
		s.metrics.IncFilesWritten(format)
		s.metrics.ObserveFileRecords(format, float64(stats.RecordCount))
	}
	return nil
}

// objectFileName returns part-<yyyymmddThhmmss>-<chunk>-<uuid><ext>.
func objectFileName(chunk *event.Chunk, ext string) string {
	created := chunk.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return fmt.Sprintf("part-%s-%06d-%s%s",
		created.UTC().Format("20060102T150405"), chunk.ID, uuid.NewString()[:8], ext)
}

func groupBySource(entries []*event.Entry) map[string][]*event.Entry {
	groups := make(map[string][]*event.Entry)
	for _, e := range entries {
		groups[e.Event.Source] = append(groups[e.Event.Source], e)
	}
	return groups
}

// Close closes the storage writer.
func (s *ObjectSink) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.writer.Close()
}
