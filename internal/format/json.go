package format

import (
	"encoding/json"
	"fmt"

	"github.com/valyala/bytebufferpool"

	"github.com/jittakal/logship/pkg/event"
)

// JSON renders one JSON object per line.
type JSON struct {
	opts   Options
	redact map[string]struct{}
}

// NewJSON creates a JSON formatter.
func NewJSON(opts Options) *JSON {
	return &JSON{opts: opts, redact: opts.redactSet()}
}

type jsonRecord struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Source    string         `json:"source,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Format implements Formatter.
func (f *JSON) Format(ev event.Event) ([]byte, error) {
	_, fields := sortedFields(ev.Fields, f.redact)
	for k, v := range fields {
		if err, ok := v.(error); ok {
			fields[k] = err.Error()
		}
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(jsonRecord{
		ID:        ev.ID,
		Timestamp: f.opts.timestamp(ev.Timestamp),
		Level:     ev.Level.String(),
		Message:   ev.Message,
		Source:    ev.Source,
		Fields:    fields,
	}); err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out, nil
}
