package sink

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/internal/rotation"
	"github.com/jittakal/logship/pkg/event"
	"github.com/jittakal/logship/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Sink = (*FileSink)(nil)

// FileSink appends payloads to a size-rotated log file.
type FileSink struct {
	name       string
	controller *rotation.Controller
	append     func(p []byte) (int, error)
	syncChunks bool
	logger     *slog.Logger
}

// NewFileSink opens the rotation controller for cfg. When syncChunks is set the
// file is synced after every delivered chunk.
func NewFileSink(name string, cfg rotation.Config, syncChunks bool, observer rotation.Observer, logger *slog.Logger) (*FileSink, error) {
	controller, err := rotation.New(cfg, observer, logger)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = "file"
	}
	return &FileSink{
		name:       name,
		controller: controller,
		append:     controller.Append,
		syncChunks: syncChunks,
		logger:     logger,
	}, nil
}

// Name returns the sink name.
func (s *FileSink) Name() string {
	return s.name
}

// Controller exposes the underlying rotation controller.
func (s *FileSink) Controller() *rotation.Controller {
	return s.controller
}

// Deliver appends every payload in chunk order. Entries whose write fails are
// reported individually; a closed controller fails the whole chunk. An entry
// that was partly written counts as sent, since a retry would duplicate the
// bytes already in the file.
func (s *FileSink) Deliver(ctx context.Context, chunk *event.Chunk) event.Outcome {
	failed := make(map[string]error)

	for i, e := range chunk.Entries {
		if err := ctx.Err(); err != nil {
			for _, rest := range chunk.Entries[i:] {
				failed[rest.ID()] = err
			}
			break
		}
		n, err := s.append(e.Payload)
		if err == nil {
			continue
		}
		if errors.Is(err, apperrors.ErrControllerClosed) {
			return event.ChunkFailed(err)
		}
		if n > 0 {
			s.logger.Warn("Partial write, entry not retried",
				"event_id", e.ID(),
				"written", n,
				"size", len(e.Payload),
				"error", err)
			continue
		}
		failed[e.ID()] = err
	}

	if s.syncChunks && len(failed) < chunk.Len() {
		if err := s.controller.Sync(); err != nil {
			s.logger.Warn("Failed to sync log file", "path", s.controller.CurrentPath(), "error", err)
		}
	}

	return event.PartialFailure(failed)
}

// Close syncs and closes the current file.
func (s *FileSink) Close() error {
	return s.controller.Close()
}
