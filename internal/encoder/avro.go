package encoder

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/logship/pkg/encoder"
	"github.com/jittakal/logship/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder implements encoder.Encoder for Apache Avro binary format.
// It supports optional gzip compression and produces OCF (Object Container File)
// output readable by Spark and other Avro readers.
type AvroEncoder struct {
	codec       *goavro.Codec
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(avroSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		codec:       codec,
		compression: compression,
	}, nil
}

// avroSchema returns the Avro schema for log events.
func avroSchema() string {
	return `{
		"type": "record",
		"name": "LogEvent",
		"namespace": "com.logship.event",
		"fields": [
			{"name": "id", "type": "string"},
			{"name": "level", "type": "string"},
			{"name": "timestamp", "type": "string"},
			{"name": "message", "type": "string"},
			{"name": "source", "type": ["null", "string"], "default": null},
			{"name": "fields", "type": ["null", "string"], "default": null},
			{"name": "ingested_at", "type": "string"}
		]
	}`
}

// Encode writes events to an Avro file.
func (e *AvroEncoder) Encode(filePath string, events []event.Event) (*event.FileStats, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := e.write(file, events); err != nil {
		return nil, err
	}

	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return statsFor(events, fileInfo.Size()), nil
}

// EncodeToBytes encodes events to bytes (useful for testing).
func (e *AvroEncoder) EncodeToBytes(events []event.Event) ([]byte, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to encode")
	}

	var buf bytes.Buffer
	if err := e.write(&buf, events); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *AvroEncoder) write(w io.Writer, events []event.Event) error {
	var gzipWriter *gzip.Writer
	if isGzip(e.compression) {
		gzipWriter = gzip.NewWriter(w)
		w = gzipWriter
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:     w,
		Codec: e.codec,
	})
	if err != nil {
		return fmt.Errorf("failed to create OCF writer: %w", err)
	}

	ingestedAt := time.Now()
	for _, ev := range events {
		avroMap, err := e.convertToAvroMap(ev, ingestedAt)
		if err != nil {
			return fmt.Errorf("failed to convert event %s: %w", ev.ID, err)
		}

		if err := ocfWriter.Append([]interface{}{avroMap}); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}
	return nil
}

// convertToAvroMap converts an Event to Avro map representation.
func (e *AvroEncoder) convertToAvroMap(ev event.Event, ingestedAt time.Time) (map[string]interface{}, error) {
	avroMap := map[string]interface{}{
		"id":          ev.ID,
		"level":       ev.Level.String(),
		"timestamp":   ev.Timestamp.Format(time.RFC3339Nano),
		"message":     ev.Message,
		"ingested_at": ingestedAt.Format(time.RFC3339Nano),
		"source":      nil,
		"fields":      nil,
	}

	// Nullable fields use goavro.Union
	if ev.Source != "" {
		avroMap["source"] = goavro.Union("string", ev.Source)
	}

	fields, err := fieldsJSON(ev.Fields)
	if err != nil {
		return nil, err
	}
	if fields != nil {
		avroMap["fields"] = goavro.Union("string", *fields)
	}

	return avroMap, nil
}

// Format returns the file format.
func (e *AvroEncoder) Format() event.FileFormat {
	return event.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if isGzip(e.compression) {
		return ".avro.gz"
	}
	return ".avro"
}
