package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	apperrors "github.com/jittakal/logship/internal/errors"
	pkgstorage "github.com/jittakal/logship/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.Writer = (*GCSWriter)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// Validate checks required settings.
func (c GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// clientOptions selects the authentication method: default credentials,
// inline JSON, or a credentials file, in that order of precedence.
func (c GCSConfig) clientOptions() ([]option.ClientOption, string) {
	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}

	switch {
	case c.UseDefaultCredential:
		return opts, "default"
	case c.CredentialsJSON != "":
		return append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON))), "json"
	case c.CredentialsFile != "":
		return append(opts, option.WithCredentialsFile(c.CredentialsFile)), "file"
	default:
		return opts, "default"
	}
}

// GCSWriter implements storage.Writer for Google Cloud Storage.
type GCSWriter struct {
	client  *storage.Client
	bucket  string
	logger  *slog.Logger
	metrics MetricsCollector
}

// NewGCSWriter creates a new Google Cloud Storage writer.
func NewGCSWriter(ctx context.Context, cfg GCSConfig, logger *slog.Logger, metrics MetricsCollector) (*GCSWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientOpts, auth := cfg.clientOptions()
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	logger.Info("GCS writer created",
		"bucket", cfg.Bucket,
		"project_id", cfg.ProjectID,
		"auth", auth,
	)

	return &GCSWriter{
		client:  client,
		bucket:  cfg.Bucket,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Put uploads localPath to the object named key.
func (w *GCSWriter) Put(ctx context.Context, key, localPath string) (int64, error) {
	startTime := time.Now()
	objectPath := objectKey(key)

	file, err := os.Open(localPath)
	if err != nil {
		w.incError("file_open")
		return 0, &apperrors.StorageError{Operation: "open", Path: localPath, Err: err}
	}
	defer file.Close()

	gcsWriter := w.client.Bucket(w.bucket).Object(objectPath).NewWriter(ctx)
	gcsWriter.ContentType = contentType(objectPath)

	bytesWritten, err := io.Copy(gcsWriter, file)
	if err != nil {
		w.incError("upload")
		gcsWriter.Close()
		return 0, &apperrors.StorageError{Operation: "upload", Path: "gs://" + w.bucket + "/" + objectPath, Err: err}
	}

	// Close finalizes the upload
	if err := gcsWriter.Close(); err != nil {
		w.incError("close")
		return 0, &apperrors.StorageError{Operation: "upload", Path: "gs://" + w.bucket + "/" + objectPath, Err: err}
	}

	duration := time.Since(startTime)
	w.logger.Info("uploaded archive to GCS",
		"bucket", w.bucket,
		"object", objectPath,
		"bytes_written", bytesWritten,
		"total_duration_ms", duration.Milliseconds(),
	)

	if w.metrics != nil {
		w.metrics.IncUploads(BackendGCS, "success")
		w.metrics.ObserveUploadSize(BackendGCS, float64(bytesWritten))
		w.metrics.ObserveUploadDuration(BackendGCS, duration.Seconds())
	}

	return bytesWritten, nil
}

func (w *GCSWriter) incError(operation string) {
	if w.metrics != nil {
		w.metrics.IncStorageErrors(BackendGCS, operation)
	}
}

// Close closes the GCS writer.
func (w *GCSWriter) Close() error {
	w.logger.Info("closing GCS writer")
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}
