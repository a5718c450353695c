// Package storage implements archive storage writers and routing.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	pkgstorage "github.com/jittakal/logship/pkg/storage"
)

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	IncUploads(backend string, status string)
	ObserveUploadSize(backend string, size float64)
	ObserveUploadDuration(backend string, duration float64)
	IncStorageErrors(backend string, operation string)
}

// Backend names.
const (
	BackendFile  = "file"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
	BackendAzure = "azure"
)

// Config selects and configures a storage backend.
type Config struct {
	Backend string
	File    FileConfig
	S3      S3Config
	GCS     GCSConfig
	Azure   AzureConfig
}

// Open creates the writer for the configured backend.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, metrics MetricsCollector) (pkgstorage.Writer, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendFile, "":
		return NewFileWriter(cfg.File, logger, metrics)
	case BackendS3:
		return NewS3Writer(ctx, cfg.S3, logger, metrics)
	case BackendGCS:
		return NewGCSWriter(ctx, cfg.GCS, logger, metrics)
	case BackendAzure:
		return NewAzureWriter(cfg.Azure, logger, metrics)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// objectKey strips an optional scheme://bucket/ prefix and leading slashes.
// Path format: s3://bucket/key/path, gs://bucket/key/path or just key/path.
func objectKey(key string) string {
	if i := strings.Index(key, "://"); i >= 0 {
		rest := key[i+3:]
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) == 2 {
			key = parts[1]
		} else {
			key = ""
		}
	}
	return strings.TrimPrefix(path.Clean("/"+key), "/")
}

// contentType guesses the object content type from the file name.
func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".gz"):
		return "application/gzip"
	case strings.HasSuffix(name, ".avro"):
		return "application/avro"
	case strings.HasSuffix(name, ".jsonl"):
		return "application/x-ndjson"
	case strings.HasSuffix(name, ".log"), strings.HasSuffix(name, ".txt"):
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
