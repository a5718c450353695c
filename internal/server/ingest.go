package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"

	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"

	logsource "github.com/jittakal/logship/internal/source"
	"github.com/jittakal/logship/pkg/event"
	"github.com/jittakal/logship/pkg/source"
)

// DefaultMaxIngestBytes bounds an ingest request body.
const DefaultMaxIngestBytes = 4 << 20

// IngestResponse reports how many records of a request were accepted.
type IngestResponse struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Invalid  int `json:"invalid"`
}

// IngestHandler returns a handler that records log events posted over HTTP.
// A CloudEvents request (binary headers or structured content type) is one
// event; any other body is read as newline delimited records, each decoded like a
// stdin line.
func IngestHandler(rec source.Recorder, maxBytes int64, logger *slog.Logger) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxIngestBytes
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		var resp IngestResponse
		if isCloudEventRequest(r) {
			ce, err := cehttp.NewEventFromHTTPRequest(r)
			if err != nil {
				writeIngestError(w, http.StatusBadRequest, err, logger)
				return
			}
			ev, err := logsource.FromCloudEvent(*ce)
			if err != nil {
				writeIngestError(w, http.StatusBadRequest, err, logger)
				return
			}
			resp.record(rec, ev)
		} else {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeIngestError(w, http.StatusRequestEntityTooLarge, err, logger)
				return
			}
			scanner := bufio.NewScanner(bytes.NewReader(body))
			scanner.Buffer(make([]byte, 0, 64*1024), int(maxBytes))
			for scanner.Scan() {
				line := bytes.TrimSpace(scanner.Bytes())
				if len(line) == 0 {
					continue
				}
				ev, err := logsource.Decode(line)
				if err != nil {
					resp.Invalid++
					continue
				}
				resp.record(rec, ev)
			}
			if err := scanner.Err(); err != nil {
				writeIngestError(w, http.StatusBadRequest, err, logger)
				return
			}
		}

		status := http.StatusAccepted
		if resp.Accepted == 0 && (resp.Invalid > 0 || resp.Rejected > 0) {
			status = http.StatusUnprocessableEntity
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("failed to encode ingest response", "error", err)
		}
	})
}

func (resp *IngestResponse) record(rec source.Recorder, ev event.Event) {
	if rec.Record(ev) {
		resp.Accepted++
	} else {
		resp.Rejected++
	}
}

func isCloudEventRequest(r *http.Request) bool {
	if r.Header.Get("Ce-Id") != "" && r.Header.Get("Ce-Type") != "" {
		return true
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "application/cloudevents+json"
}

func writeIngestError(w http.ResponseWriter, status int, err error, logger *slog.Logger) {
	logger.Warn("rejected ingest request", "status", status, "error", err)
	http.Error(w, err.Error(), status)
}
