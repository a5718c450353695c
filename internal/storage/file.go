package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*FileWriter)(nil)

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileWriter implements storage.Writer by copying files below a base directory.
type FileWriter struct {
	basePath string
	logger   *slog.Logger
	metrics  MetricsCollector
}

// NewFileWriter creates a new filesystem storage writer.
func NewFileWriter(config FileConfig, logger *slog.Logger, metrics MetricsCollector) (*FileWriter, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("file storage base path is required")
	}
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("filesystem writer created", "base_path", config.BasePath)

	return &FileWriter{
		basePath: config.BasePath,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Put copies localPath to basePath/key.
func (w *FileWriter) Put(ctx context.Context, key, localPath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	startTime := time.Now()

	dest := filepath.Join(w.basePath, filepath.FromSlash(objectKey(key)))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		w.incError("mkdir")
		return 0, &apperrors.StorageError{Operation: "create", Path: dest, Err: err}
	}

	src, err := os.Open(localPath)
	if err != nil {
		w.incError("file_open")
		return 0, &apperrors.StorageError{Operation: "open", Path: localPath, Err: err}
	}
	defer src.Close()

	// Write to a temp name first so readers never see a partial file.
	tmp := dest + ".partial"
	dst, err := os.Create(tmp)
	if err != nil {
		w.incError("create")
		return 0, &apperrors.StorageError{Operation: "create", Path: tmp, Err: err}
	}

	n, err := io.Copy(dst, src)
	if err == nil {
		err = dst.Sync()
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		w.incError("write")
		return 0, &apperrors.StorageError{Operation: "write", Path: dest, Err: err}
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		w.incError("rename")
		return 0, &apperrors.StorageError{Operation: "write", Path: dest, Err: err}
	}

	duration := time.Since(startTime)
	w.logger.Info("copied archive to filesystem",
		"path", dest,
		"file_size", n,
		"total_duration_ms", duration.Milliseconds(),
	)

	if w.metrics != nil {
		w.metrics.IncUploads(BackendFile, "success")
		w.metrics.ObserveUploadSize(BackendFile, float64(n))
		w.metrics.ObserveUploadDuration(BackendFile, duration.Seconds())
	}

	return n, nil
}

func (w *FileWriter) incError(operation string) {
	if w.metrics != nil {
		w.metrics.IncStorageErrors(BackendFile, operation)
	}
}

// Close closes the writer.
func (w *FileWriter) Close() error {
	w.logger.Info("closing filesystem writer")
	return nil
}
