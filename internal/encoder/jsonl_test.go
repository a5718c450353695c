package encoder

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jittakal/logship/pkg/event"
)

func TestJSONLEncoder_Encode(t *testing.T) {
	tests := []struct {
		name        string
		compression string
	}{
		{"plain", "none"},
		{"gzip", "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewJSONLEncoder(tt.compression)
			path := filepath.Join(t.TempDir(), "events"+enc.FileExtension())

			if _, err := enc.Encode(path, sampleEvents()); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			file, err := os.Open(path)
			if err != nil {
				t.Fatalf("failed to open file: %v", err)
			}
			defer file.Close()

			var scanner *bufio.Scanner
			if tt.compression == "gzip" {
				gz, err := gzip.NewReader(file)
				if err != nil {
					t.Fatalf("gzip.NewReader() error = %v", err)
				}
				scanner = bufio.NewScanner(gz)
			} else {
				scanner = bufio.NewScanner(file)
			}

			var got []event.Event
			for scanner.Scan() {
				var ev event.Event
				if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
					t.Fatalf("line is not JSON: %v", err)
				}
				got = append(got, ev)
			}

			if len(got) != 2 {
				t.Fatalf("decoded %d events, want 2", len(got))
			}
			if got[1].ID != "evt-2" || got[1].Level != event.LevelError {
				t.Errorf("event 1 = %+v", got[1])
			}
		})
	}
}
