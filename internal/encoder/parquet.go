package encoder

import (
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/jittakal/logship/pkg/encoder"
	"github.com/jittakal/logship/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// LogEventParquet is the Parquet schema for archived log events.
// Time columns use TIMESTAMP_MICROS for Athena compatibility.
type LogEventParquet struct {
	ID        string    `parquet:"id"`
	Level     string    `parquet:"level,dict"`
	Timestamp time.Time `parquet:"timestamp,timestamp(microsecond)"`
	Message   string    `parquet:"message"`

	Source *string `parquet:"source,dict,optional"`
	Fields *string `parquet:"fields,optional"`

	IngestedAt time.Time `parquet:"ingested_at,timestamp(microsecond)"`
}

// ParquetEncoder implements encoder.Encoder for Apache Parquet columnar format.
// Supports SNAPPY (default), GZIP, LZ4 and ZSTD compression.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Encode writes events to a Parquet file.
func (e *ParquetEncoder) Encode(filePath string, events []event.Event) (*event.FileStats, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to encode")
	}

	rows := make([]LogEventParquet, len(events))
	ingestedAt := time.Now()
	for i, ev := range events {
		row, err := e.convertToParquetRecord(ev, ingestedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to convert event %d: %w", i, err)
		}
		rows[i] = *row
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	writer := parquet.NewGenericWriter[LogEventParquet](
		file,
		parquet.SchemaOf(new(LogEventParquet)),
		compressionCodec(e.compressionName),
		parquet.CreatedBy("logship", "1.0", "0"),
	)

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		file.Close()
		return nil, fmt.Errorf("failed to write events: %w", err)
	}

	if err := writer.Close(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	// Close file before getting stats to ensure all data is flushed
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return statsFor(events, fileInfo.Size()), nil
}

// convertToParquetRecord converts an Event to LogEventParquet with native types.
func (e *ParquetEncoder) convertToParquetRecord(ev event.Event, ingestedAt time.Time) (*LogEventParquet, error) {
	fields, err := fieldsJSON(ev.Fields)
	if err != nil {
		return nil, err
	}

	row := &LogEventParquet{
		ID:         ev.ID,
		Level:      ev.Level.String(),
		Timestamp:  ev.Timestamp,
		Message:    ev.Message,
		Fields:     fields,
		IngestedAt: ingestedAt,
	}
	if ev.Source != "" {
		source := ev.Source
		row.Source = &source
	}
	return row, nil
}

// Format returns the file format.
func (e *ParquetEncoder) Format() event.FileFormat {
	return event.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}
