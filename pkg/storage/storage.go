// Package storage defines interfaces for archive storage operations.
//
// This package provides abstractions for shipping rotated log archives to
// object storage backends (S3, Azure Blob, GCS, local filesystem).
package storage

import (
	"context"
	"time"

	"github.com/jittakal/logship/pkg/event"
)

// Writer uploads a local file to storage.
type Writer interface {
	// Put copies the file at localPath to the object named key.
	// Returns the number of bytes written.
	Put(ctx context.Context, key, localPath string) (int64, error)

	// Close closes the writer and releases resources.
	Close() error
}

// Router determines storage keys for archives based on partitioning strategy.
type Router interface {
	// Route returns the storage prefix for archives of a source created at t.
	Route(source string, t time.Time) string
}

// RotationPolicy decides when the current log file should be rotated.
type RotationPolicy interface {
	// ShouldRotate returns true if the file should be rotated based on stats.
	ShouldRotate(stats event.FileStats) bool
}
