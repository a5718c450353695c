// Package source implements log sources that feed the pipeline from outside
// the process.
package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/jittakal/logship/internal/sink"
	"github.com/jittakal/logship/pkg/event"
)

// Decode converts one input record into an event. It accepts, in order:
// a CloudEvent in JSON structured mode, a JSON encoded event, or a plain text
// line which becomes an info event. Missing IDs and timestamps are filled.
func Decode(data []byte) (event.Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return event.Event{}, fmt.Errorf("empty record")
	}

	if data[0] != '{' {
		return event.New(event.LevelInfo, string(data), nil), nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return event.Event{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	if _, ok := probe["specversion"]; ok {
		return decodeCloudEvent(data, probe)
	}

	var ev event.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return event.Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if ev.Message == "" && len(ev.Fields) == 0 {
		return event.Event{}, fmt.Errorf("event has neither message nor fields")
	}
	return ev.WithDefaults(), nil
}

func decodeCloudEvent(data []byte, probe map[string]json.RawMessage) (event.Event, error) {
	// Normalize legacy CloudEvents 0.1 to 1.0 for consistent processing
	var specVersion string
	if err := json.Unmarshal(probe["specversion"], &specVersion); err == nil && specVersion == "0.1" {
		probe["specversion"] = json.RawMessage(`"1.0"`)
		normalized, err := json.Marshal(probe)
		if err != nil {
			return event.Event{}, fmt.Errorf("failed to normalize cloud event: %w", err)
		}
		data = normalized
	}

	ce := cloudevents.NewEvent()
	if err := json.Unmarshal(data, &ce); err != nil {
		return event.Event{}, fmt.Errorf("failed to unmarshal cloud event: %w", err)
	}
	return FromCloudEvent(ce)
}

// FromCloudEvent converts a CloudEvent into a log event. Events produced by the
// CloudEvents sink are unwrapped; any other type becomes an info event named
// after its type with the payload under the "data" field.
func FromCloudEvent(ce cloudevents.Event) (event.Event, error) {
	// Our own log events carry the event as data.
	if strings.HasPrefix(ce.Type(), sink.EventTypePrefix) {
		var ev event.Event
		if err := json.Unmarshal(ce.Data(), &ev); err != nil {
			return event.Event{}, fmt.Errorf("failed to unmarshal log event data: %w", err)
		}
		if ev.ID == "" {
			ev.ID = ce.ID()
		}
		if ev.Source == "" {
			ev.Source = ce.Source()
		}
		return ev.WithDefaults(), nil
	}

	// Any other CloudEvent becomes an info event named after its type.
	fields := event.Fields{"ce_type": ce.Type()}
	if subject := ce.Subject(); subject != "" {
		fields["ce_subject"] = subject
	}
	if payload := ce.Data(); len(payload) > 0 {
		var decoded any
		if json.Unmarshal(payload, &decoded) == nil {
			fields["data"] = decoded
		} else {
			fields["data"] = string(payload)
		}
	}

	ev := event.Event{
		ID:        ce.ID(),
		Level:     event.LevelInfo,
		Timestamp: ce.Time(),
		Message:   ce.Type(),
		Source:    ce.Source(),
		Fields:    fields,
	}
	return ev.WithDefaults(), nil
}
