// Package encoder implements encoder factory for creating file format encoders.
package encoder

import (
	"encoding/json"
	"fmt"

	"github.com/jittakal/logship/pkg/encoder"
	"github.com/jittakal/logship/pkg/event"
)

// Factory creates encoders based on format and configuration.
type Factory struct {
	format      event.FileFormat
	compression string
}

// NewFactory creates a new encoder factory.
func NewFactory(format event.FileFormat, compression string) *Factory {
	return &Factory{
		format:      format,
		compression: compression,
	}
}

// CreateEncoder creates an encoder based on the configured format.
func (f *Factory) CreateEncoder() (encoder.Encoder, error) {
	switch f.format {
	case event.FormatParquet:
		return NewParquetEncoder(f.compression), nil
	case event.FormatAvro:
		return NewAvroEncoder(f.compression)
	case event.FormatJSONL:
		return NewJSONLEncoder(f.compression), nil
	default:
		return nil, fmt.Errorf("unsupported file format: %s", f.format)
	}
}

// SupportedFormats returns a list of supported file formats.
func SupportedFormats() []event.FileFormat {
	return []event.FileFormat{
		event.FormatParquet,
		event.FormatAvro,
		event.FormatJSONL,
	}
}

// SupportedCompressions returns supported compression codecs for a given format.
func SupportedCompressions(format event.FileFormat) []string {
	switch format {
	case event.FormatParquet:
		return []string{"uncompressed", "snappy", "gzip", "lz4", "zstd"}
	case event.FormatAvro, event.FormatJSONL:
		return []string{"uncompressed", "gzip"}
	default:
		return []string{}
	}
}

// DefaultCompression returns the default compression for a format.
func DefaultCompression(format event.FileFormat) string {
	switch format {
	case event.FormatParquet:
		return "snappy"
	case event.FormatAvro, event.FormatJSONL:
		return "gzip"
	default:
		return "uncompressed"
	}
}

func isGzip(compression string) bool {
	return compression == "gzip" || compression == "GZIP"
}

// fieldsJSON serializes structured fields, returning nil for none.
func fieldsJSON(fields event.Fields) (*string, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}
	s := string(data)
	return &s, nil
}

func statsFor(events []event.Event, size int64) *event.FileStats {
	stats := &event.FileStats{
		RecordCount: len(events),
		SizeBytes:   size,
	}
	for _, ev := range events {
		if stats.FirstWriteTime.IsZero() || ev.Timestamp.Before(stats.FirstWriteTime) {
			stats.FirstWriteTime = ev.Timestamp
		}
		if ev.Timestamp.After(stats.LastWriteTime) {
			stats.LastWriteTime = ev.Timestamp
		}
	}
	return stats
}
