package encoder

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jittakal/logship/pkg/encoder"
	"github.com/jittakal/logship/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*JSONLEncoder)(nil)

// JSONLEncoder writes one JSON document per event, optionally gzip-compressed.
type JSONLEncoder struct {
	compression string
}

// NewJSONLEncoder creates a new JSON Lines encoder.
func NewJSONLEncoder(compression string) *JSONLEncoder {
	return &JSONLEncoder{compression: compression}
}

// Encode writes events to a JSON Lines file.
func (e *JSONLEncoder) Encode(filePath string, events []event.Event) (*event.FileStats, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	var w io.Writer = file
	var gzipWriter *gzip.Writer
	if isGzip(e.compression) {
		gzipWriter = gzip.NewWriter(file)
		w = gzipWriter
	}
	bw := bufio.NewWriter(w)

	enc := json.NewEncoder(bw)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return nil, fmt.Errorf("failed to write event %s: %w", ev.ID, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush file: %w", err)
	}
	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
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

// Format returns the file format.
func (e *JSONLEncoder) Format() event.FileFormat {
	return event.FormatJSONL
}

// FileExtension returns the file extension.
func (e *JSONLEncoder) FileExtension() string {
	if isGzip(e.compression) {
		return ".jsonl.gz"
	}
	return ".jsonl"
}
