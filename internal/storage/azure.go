package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*AzureWriter)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// Validate checks required settings.
func (c AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.AccountKey == "" {
		return fmt.Errorf("azure account key is required")
	}
	if c.ContainerName == "" {
		return fmt.Errorf("azure container name is required")
	}
	return nil
}

// ConnectionString builds the account connection string, using Endpoint as
// the blob endpoint when set (e.g. Azurite).
func (c AzureConfig) ConnectionString() string {
	if c.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			c.AccountName, c.AccountKey, c.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		c.AccountName, c.AccountKey)
}

// AzureWriter implements storage.Writer for Azure Blob Storage.
type AzureWriter struct {
	client        *azblob.Client
	containerName string
	logger        *slog.Logger
	metrics       MetricsCollector
}

// NewAzureWriter creates a new Azure Blob storage writer.
func NewAzureWriter(cfg AzureConfig, logger *slog.Logger, metrics MetricsCollector) (*AzureWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	logger.Info("Azure writer created",
		"container", cfg.ContainerName,
		"account", cfg.AccountName,
	)

	return &AzureWriter{
		client:        client,
		containerName: cfg.ContainerName,
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// Put uploads localPath to the blob named key.
func (w *AzureWriter) Put(ctx context.Context, key, localPath string) (int64, error) {
	startTime := time.Now()
	blobPath := objectKey(key)

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

	if _, err := w.client.UploadFile(ctx, w.containerName, blobPath, file, nil); err != nil {
		w.incError("upload")
		return 0, &apperrors.StorageError{Operation: "upload", Path: w.containerName + "/" + blobPath, Err: err}
	}

	duration := time.Since(startTime)
	w.logger.Info("uploaded archive to Azure",
		"container", w.containerName,
		"blob", blobPath,
		"file_size", info.Size(),
		"total_duration_ms", duration.Milliseconds(),
	)

	if w.metrics != nil {
		w.metrics.IncUploads(BackendAzure, "success")
		w.metrics.ObserveUploadSize(BackendAzure, float64(info.Size()))
		w.metrics.ObserveUploadDuration(BackendAzure, duration.Seconds())
	}

	return info.Size(), nil
}

func (w *AzureWriter) incError(operation string) {
	if w.metrics != nil {
		w.metrics.IncStorageErrors(BackendAzure, operation)
	}
}

// Close closes the Azure writer.
func (w *AzureWriter) Close() error {
	w.logger.Info("closing Azure writer")
	return nil
}
