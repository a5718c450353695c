package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*S3Writer)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// Validate checks required settings.
func (c S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// putInput builds the upload request, applying server-side encryption settings.
func (c S3Config) putInput(key string, body *os.File) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType(key)),
	}
	if c.SSEEnabled {
		if c.SSEKMSKeyID != "" {
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			input.SSEKMSKeyId = aws.String(c.SSEKMSKeyID)
		} else {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}
	return input
}

// S3Writer implements storage.Writer for AWS S3 storage with multipart upload
// support and server-side encryption (SSE).
type S3Writer struct {
	cfg      S3Config
	uploader *manager.Uploader
	logger   *slog.Logger
	metrics  MetricsCollector
}

// NewS3Writer creates a new S3 storage writer.
func NewS3Writer(ctx context.Context, cfg S3Config, logger *slog.Logger, metrics MetricsCollector) (*S3Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10MB parts
		u.Concurrency = 5
	})

	logger.Info("S3 writer created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"sse_enabled", cfg.SSEEnabled,
	)

	return &S3Writer{
		cfg:      cfg,
		uploader: uploader,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Put uploads localPath to the object named key.
func (w *S3Writer) Put(ctx context.Context, key, localPath string) (int64, error) {
	startTime := time.Now()
	s3Key := objectKey(key)

	file, err := os.Open(localPath)
	if err != nil {
		w.incError("file_open")
		return 0, &apperrors.StorageError{Operation: "open", Path: localPath, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		w.incError("stat")
		return 0, &apperrors.StorageError{Operation: "open", Path: localPath, Err: err}
	}

	result, err := w.uploader.Upload(ctx, w.cfg.putInput(s3Key, file))
	if err != nil {
		w.incError("upload")
		if w.metrics != nil {
			w.metrics.IncUploads(BackendS3, "error")
		}
		return 0, &apperrors.StorageError{Operation: "upload", Path: "s3://" + w.cfg.Bucket + "/" + s3Key, Err: err}
	}

	duration := time.Since(startTime)
	w.logger.Info("uploaded archive to S3",
		"bucket", w.cfg.Bucket,
		"key", s3Key,
		"file_size", info.Size(),
		"location", result.Location,
		"total_duration_ms", duration.Milliseconds(),
	)

	if w.metrics != nil {
		w.metrics.IncUploads(BackendS3, "success")
		w.metrics.ObserveUploadSize(BackendS3, float64(info.Size()))
		w.metrics.ObserveUploadDuration(BackendS3, duration.Seconds())
	}

	return info.Size(), nil
}

func (w *S3Writer) incError(operation string) {
	if w.metrics != nil {
		w.metrics.IncStorageErrors(BackendS3, operation)
	}
}

// Close closes the S3 writer.
func (w *S3Writer) Close() error {
	w.logger.Info("closing S3 writer")
	return nil
}
