// Package encoder defines interfaces for encoding events to various file formats.
package encoder

import "github.com/jittakal/logship/pkg/event"

// Encoder encodes events to a specific file format.
type Encoder interface {
	// Encode writes events to a file and returns file statistics.
	Encode(filePath string, events []event.Event) (*event.FileStats, error)

	// Format returns the file format this encoder produces.
	Format() event.FileFormat

	// FileExtension returns the file extension (e.g., ".parquet", ".avro").
	FileExtension() string
}
