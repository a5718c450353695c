// Package format renders log events into the payload bytes cached on each entry.
//
// Formatting settings travel in an explicit Options value; there is no
// package-level mutable state.
package format

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jittakal/logship/pkg/event"
)

// Redacted replaces the value of redacted fields.
const Redacted = "[REDACTED]"

// Options configures a formatter.
type Options struct {
	// TimeLayout defaults to time.RFC3339Nano.
	TimeLayout string
	// Location converts timestamps before formatting; nil keeps UTC.
	Location *time.Location
	// RedactKeys lists field keys whose values are replaced by Redacted.
	RedactKeys []string
}

func (o Options) timestamp(t time.Time) string {
	layout := o.TimeLayout
	if layout == "" {
		layout = time.RFC3339Nano
	}
	loc := o.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(layout)
}

func (o Options) redactSet() map[string]struct{} {
	if len(o.RedactKeys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(o.RedactKeys))
	for _, k := range o.RedactKeys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return set
}

// Formatter renders an event.
type Formatter interface {
	Format(ev event.Event) ([]byte, error)
}

// New returns the formatter registered under name ("text" or "json").
func New(name string, opts Options) (Formatter, error) {
	switch strings.ToLower(name) {
	case "text", "":
		return NewText(opts), nil
	case "json":
		return NewJSON(opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", name)
	}
}

// sortedFields returns field keys in lexical order with redaction applied.
func sortedFields(fields event.Fields, redact map[string]struct{}) ([]string, map[string]any) {
	if len(fields) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(fields))
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		keys = append(keys, k)
		if _, ok := redact[strings.ToLower(k)]; ok {
			v = Redacted
		}
		out[k] = v
	}
	sort.Strings(keys)
	return keys, out
}
