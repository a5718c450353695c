package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"

	"github.com/jittakal/logship/pkg/event"
)

// Text renders one line per event:
//
//	2025-12-21T10:30:00Z INFO [auth] user signed in user_id=42
type Text struct {
	opts   Options
	redact map[string]struct{}
}

// NewText creates a text formatter.
func NewText(opts Options) *Text {
	return &Text{opts: opts, redact: opts.redactSet()}
}

// Format implements Formatter.
func (f *Text) Format(ev event.Event) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString(f.opts.timestamp(ev.Timestamp))
	buf.WriteByte(' ')
	buf.WriteString(ev.Level.String())
	if ev.Source != "" {
		buf.WriteString(" [")
		buf.WriteString(ev.Source)
		buf.WriteByte(']')
	}
	buf.WriteByte(' ')
	buf.WriteString(ev.Message)

	keys, fields := sortedFields(ev.Fields, f.redact)
	for _, k := range keys {
		buf.WriteByte(' ')
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(textValue(fields[k]))
	}
	buf.WriteByte('\n')

	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out, nil
}

func textValue(v any) string {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case error:
		s = val.Error()
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
