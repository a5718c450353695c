package sink

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/jittakal/logship/internal/rotation"
	"github.com/jittakal/logship/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ rotation.Observer = (*ArchiveShipper)(nil)

// DefaultUploadTimeout bounds a single archive upload.
const DefaultUploadTimeout = 2 * time.Minute

// ArchiveShipper uploads every rotated archive through a storage.Writer.
// Uploads run on the rotating goroutine, before the controller prunes, so an
// archive is shipped before retention can delete it.
type ArchiveShipper struct {
	source  string
	writer  storage.Writer
	router  storage.Router
	timeout time.Duration
	logger  *slog.Logger

	shipped atomic.Uint64
	failed  atomic.Uint64
}

// NewArchiveShipper creates a shipper routing archives under source.
func NewArchiveShipper(source string, writer storage.Writer, router storage.Router, timeout time.Duration, logger *slog.Logger) *ArchiveShipper {
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}
	return &ArchiveShipper{
		source:  source,
		writer:  writer,
		router:  router,
		timeout: timeout,
		logger:  logger,
	}
}

// Notify ships the archive of a Rotated notification and ignores the rest.
func (s *ArchiveShipper) Notify(n rotation.Notification) {
	if n.Kind != rotation.Rotated || n.ArchivedPath == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.Ship(ctx, n.ArchivedPath); err != nil {
		s.logger.Error("Failed to ship archive", "path", n.ArchivedPath, "error", err)
	}
}

// Ship uploads one archive file.
func (s *ArchiveShipper) Ship(ctx context.Context, path string) error {
	key := s.router.Route(s.source, time.Now()) + filepath.Base(path)
	n, err := s.writer.Put(ctx, key, path)
	if err != nil {
		s.failed.Add(1)
		return err
	}
	s.shipped.Add(1)
	s.logger.Debug("Shipped archive", "path", path, "key", key, "bytes", n)
	return nil
}

// Shipped returns the number of archives uploaded.
func (s *ArchiveShipper) Shipped() uint64 {
	return s.shipped.Load()
}

// Failed returns the number of failed uploads.
func (s *ArchiveShipper) Failed() uint64 {
	return s.failed.Load()
}

// Close closes the storage writer.
func (s *ArchiveShipper) Close() error {
	return s.writer.Close()
}
