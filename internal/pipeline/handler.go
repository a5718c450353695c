package pipeline

import (
	"context"
	"log/slog"
	"maps"

	"github.com/jittakal/logship/pkg/event"
	"github.com/jittakal/logship/pkg/source"
)

// Ensure implementation satisfies interface at compile time.
var _ slog.Handler = (*Handler)(nil)

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// Level is the minimum record level; nil means slog.LevelDebug.
	Level slog.Leveler
	// Source is stamped on every event.
	Source string
}

// Handler is a slog.Handler that records every slog record as an event, so
// applications can log through log/slog into the pipeline. Group names prefix
// attribute keys with dots.
type Handler struct {
	rec    source.Recorder
	opts   HandlerOptions
	fields event.Fields
	prefix string
}

// NewHandler creates a handler recording into rec.
func NewHandler(rec source.Recorder, opts *HandlerOptions) *Handler {
	h := &Handler{rec: rec}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelDebug
	}
	return h
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle implements slog.Handler. Records the pipeline does not accept are
// dropped silently; the pipeline reports its own losses.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	fields := make(event.Fields, len(h.fields)+r.NumAttrs())
	maps.Copy(fields, h.fields)
	r.Attrs(func(a slog.Attr) bool {
		addAttr(fields, h.prefix, a)
		return true
	})
	if len(fields) == 0 {
		fields = nil
	}

	ev := event.Event{
		Level:     event.FromSlog(r.Level),
		Timestamp: r.Time,
		Message:   r.Message,
		Source:    h.opts.Source,
		Fields:    fields,
	}
	h.rec.Record(ev)
	return nil
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := h.clone()
	for _, a := range attrs {
		addAttr(h2.fields, h2.prefix, a)
	}
	return h2
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.prefix += name + "."
	return h2
}

func (h *Handler) clone() *Handler {
	h2 := *h
	h2.fields = make(event.Fields, len(h.fields))
	maps.Copy(h2.fields, h.fields)
	return &h2
}

func addAttr(fields event.Fields, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		if len(attrs) == 0 {
			return
		}
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix += a.Key + "."
		}
		for _, ga := range attrs {
			addAttr(fields, groupPrefix, ga)
		}
		return
	}

	if a.Key == "" {
		return
	}
	value := a.Value.Any()
	if err, ok := value.(error); ok {
		value = err.Error()
	}
	fields[prefix+a.Key] = value
}
