package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jittakal/logship/internal/rotation"
	"github.com/jittakal/logship/pkg/event"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestMetrics_IncMessagesConsumed(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.IncMessagesConsumed("test-topic", 0)
	metrics.IncMessagesConsumed("test-topic", 0)
	metrics.IncMessagesConsumed("test-topic", 1)

	if got := testutil.ToFloat64(metrics.MessagesConsumed.WithLabelValues("test-topic", "0")); got != 2 {
		t.Errorf("MessagesConsumed(test-topic, 0) = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.MessagesConsumed.WithLabelValues("test-topic", "1")); got != 1 {
		t.Errorf("MessagesConsumed(test-topic, 1) = %v, want 1", got)
	}
}

func TestMetrics_Storage(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.IncUploads("s3", "success")
	metrics.IncUploads("s3", "error")
	metrics.ObserveUploadSize("s3", 2048)
	metrics.ObserveUploadDuration("s3", 0.5)
	metrics.IncStorageErrors("azure", "upload")
	metrics.IncFilesWritten("parquet")
	metrics.ObserveFileRecords("parquet", 100)

	if got := testutil.ToFloat64(metrics.Uploads.WithLabelValues("s3", "success")); got != 1 {
		t.Errorf("Uploads(s3, success) = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.StorageErrors.WithLabelValues("azure", "upload")); got != 1 {
		t.Errorf("StorageErrors(azure, upload) = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.FilesWritten.WithLabelValues("parquet")); got != 1 {
		t.Errorf("FilesWritten(parquet) = %v, want 1", got)
	}
}

func TestMetrics_Kafka(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.IncDecodeErrors("logs")
	metrics.IncRebalances("group")
	metrics.ObserveRebalanceDuration("group", 1.5)
	metrics.SetPartitionsAssigned("logs", 3)
	metrics.AddMessagesProduced("logs", "success", 10)
	metrics.IncDLQPublished("overflow", "success")

	if got := testutil.ToFloat64(metrics.PartitionsAssigned.WithLabelValues("logs")); got != 3 {
		t.Errorf("PartitionsAssigned(logs) = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.MessagesProduced.WithLabelValues("logs", "success")); got != 10 {
		t.Errorf("MessagesProduced(logs, success) = %v, want 10", got)
	}
	if got := testutil.ToFloat64(metrics.DLQPublished.WithLabelValues("overflow", "success")); got != 1 {
		t.Errorf("DLQPublished(overflow, success) = %v, want 1", got)
	}
}

func TestMetrics_RecordAdmission(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordAdmission("console", true)
	metrics.RecordAdmission("console", true)
	metrics.RecordAdmission("console", false)

	if got := testutil.ToFloat64(metrics.EventsRecorded.WithLabelValues("console", "accepted")); got != 2 {
		t.Errorf("EventsRecorded(accepted) = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.EventsRecorded.WithLabelValues("console", "rejected")); got != 1 {
		t.Errorf("EventsRecorded(rejected) = %v, want 1", got)
	}
}

func entries(n int) []*event.Entry {
	out := make([]*event.Entry, n)
	for i := range out {
		out[i] = &event.Entry{Event: event.New(event.LevelInfo, "msg", nil)}
	}
	return out
}

func failures(n int) []event.Failure {
	out := make([]event.Failure, n)
	for i, e := range entries(n) {
		out[i] = event.Failure{Entry: e, Err: errors.New("boom")}
	}
	return out
}

func TestDeliveryObserver(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	observer := metrics.DeliveryObserver()

	observer.Notify(event.Notification{
		Kind:      event.ChunkFinished,
		Transport: "file",
		ChunkID:   1,
		Result:    event.DeliveryResult{Sent: entries(3), Retried: failures(2), Discarded: failures(1)},
		Duration:  20 * time.Millisecond,
	})
	observer.Notify(event.Notification{
		Kind:      event.ChunkFinished,
		Transport: "file",
		ChunkID:   2,
		Result:    event.DeliveryResult{Sent: entries(4)},
	})
	observer.Notify(event.Notification{Kind: event.Overflow, Transport: "file", Dropped: entries(5)})
	observer.Notify(event.Notification{Kind: event.ShutdownDiscard, Transport: "file", Dropped: entries(6)})

	tests := []struct {
		name      string
		collector prometheus.Collector
		want      float64
	}{
		{"sent", metrics.EventsSent.WithLabelValues("file"), 7},
		{"retried", metrics.EventsRetried.WithLabelValues("file"), 2},
		{"retry exhausted", metrics.EventsDiscarded.WithLabelValues("file", ReasonRetryExhausted), 1},
		{"overflow", metrics.EventsDiscarded.WithLabelValues("file", ReasonOverflow), 5},
		{"shutdown", metrics.EventsDiscarded.WithLabelValues("file", ReasonShutdown), 6},
		{"partial chunks", metrics.ChunksDispatched.WithLabelValues("file", "partial_failure"), 1},
		{"sent chunks", metrics.ChunksDispatched.WithLabelValues("file", "all_sent"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.collector); got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestDispatchOutcome(t *testing.T) {
	tests := []struct {
		name   string
		result event.DeliveryResult
		want   string
	}{
		{"all sent", event.DeliveryResult{Sent: entries(2)}, "all_sent"},
		{"nothing sent", event.DeliveryResult{Retried: failures(2)}, "chunk_failed"},
		{"mixed", event.DeliveryResult{Sent: entries(1), Discarded: failures(1)}, "partial_failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dispatchOutcome(tt.result); got != tt.want {
				t.Errorf("dispatchOutcome() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRotationObserver(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	observer := metrics.RotationObserver("file")

	metrics.SetCurrentFileSize("file", 512)
	observer.Notify(rotation.Notification{Kind: rotation.Rotated, ArchivedPath: "a", NewPath: "b"})
	observer.Notify(rotation.Notification{Kind: rotation.Pruned, Pruned: []string{"x", "y"}})
	observer.Notify(rotation.Notification{Kind: rotation.RotateFailed, Err: errors.New("rename")})

	if got := testutil.ToFloat64(metrics.Rotations.WithLabelValues("file")); got != 1 {
		t.Errorf("Rotations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ArchivesPruned.WithLabelValues("file")); got != 2 {
		t.Errorf("ArchivesPruned = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.RotationErrors.WithLabelValues("file")); got != 1 {
		t.Errorf("RotationErrors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.CurrentFileSize.WithLabelValues("file")); got != 0 {
		t.Errorf("CurrentFileSize = %v, want 0", got)
	}
}
