package event

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		want  string
	}{
		{name: "debug", level: LevelDebug, want: "DEBUG"},
		{name: "info", level: LevelInfo, want: "INFO"},
		{name: "warn", level: LevelWarn, want: "WARN"},
		{name: "error", level: LevelError, want: "ERROR"},
		{name: "fatal", level: LevelFatal, want: "FATAL"},
		{name: "out of range", level: Level(9), want: "LEVEL(9)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Level
		wantErr bool
	}{
		{name: "lower case", input: "debug", want: LevelDebug},
		{name: "upper case", input: "WARN", want: LevelWarn},
		{name: "alias warning", input: "warning", want: LevelWarn},
		{name: "alias critical", input: "critical", want: LevelFatal},
		{name: "empty defaults to info", input: "", want: LevelInfo},
		{name: "padded", input: "  error ", want: LevelError},
		{name: "unknown", input: "verbose", want: LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevel_SlogRoundTrip(t *testing.T) {
	for _, l := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal} {
		if got := FromSlog(l.Slog()); got != l {
			t.Errorf("FromSlog(%v.Slog()) = %v", l, got)
		}
	}
	if got := FromSlog(slog.LevelDebug - 4); got != LevelDebug {
		t.Errorf("FromSlog(below debug) = %v, want DEBUG", got)
	}
}

func TestEvent_JSONLevel(t *testing.T) {
	ev := Event{ID: "e-1", Level: LevelWarn, Message: "disk almost full"}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded["level"] != "warn" {
		t.Errorf("level = %v, want warn", decoded["level"])
	}

	var back Event
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("json.Unmarshal() into Event error = %v", err)
	}
	if back.Level != LevelWarn {
		t.Errorf("Level = %v, want WARN", back.Level)
	}
}

func TestEvent_WithDefaults(t *testing.T) {
	ev := Event{Message: "hello"}.WithDefaults()
	if ev.ID == "" {
		t.Error("WithDefaults() left ID empty")
	}
	if ev.Timestamp.IsZero() {
		t.Error("WithDefaults() left Timestamp zero")
	}

	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	kept := Event{ID: "fixed", Timestamp: ts}.WithDefaults()
	if kept.ID != "fixed" || !kept.Timestamp.Equal(ts) {
		t.Errorf("WithDefaults() overwrote existing values: %+v", kept)
	}
}

func TestNew_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ev := New(LevelInfo, "msg", nil)
		if seen[ev.ID] {
			t.Fatalf("duplicate ID %s", ev.ID)
		}
		seen[ev.ID] = true
	}
}

func TestPartialFailure_EmptyIsAllSent(t *testing.T) {
	if got := PartialFailure(nil).Kind; got != OutcomeAllSent {
		t.Errorf("PartialFailure(nil).Kind = %v, want %v", got, OutcomeAllSent)
	}
	got := PartialFailure(map[string]error{"a": errors.New("boom")})
	if got.Kind != OutcomePartialFailure {
		t.Errorf("PartialFailure().Kind = %v, want %v", got.Kind, OutcomePartialFailure)
	}
}

func TestChunk_Accessors(t *testing.T) {
	chunk := &Chunk{Entries: []*Entry{
		{Event: Event{ID: "a"}, Payload: []byte("12345")},
		{Event: Event{ID: "b"}, Payload: []byte("123")},
	}}

	if chunk.Len() != 2 {
		t.Errorf("Len() = %d, want 2", chunk.Len())
	}
	if ids := chunk.IDs(); ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs() = %v, want [a b]", ids)
	}
	if chunk.Size() != 8 {
		t.Errorf("Size() = %d, want 8", chunk.Size())
	}
}

func TestObservers_SkipsNil(t *testing.T) {
	var calls int
	count := ObserverFunc(func(Notification) { calls++ })

	obs := Observers(count, nil, count)
	obs.Notify(Notification{Kind: Overflow})

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
