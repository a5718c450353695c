package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Pipeline metrics
	EventsRecorded   *prometheus.CounterVec
	EventsSent       *prometheus.CounterVec
	EventsRetried    *prometheus.CounterVec
	EventsDiscarded  *prometheus.CounterVec
	ChunksDispatched *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	BufferDepth      *prometheus.GaugeVec

	// Rotation metrics
	Rotations       *prometheus.CounterVec
	ArchivesPruned  *prometheus.CounterVec
	RotationErrors  *prometheus.CounterVec
	CurrentFileSize *prometheus.GaugeVec

	// Storage metrics
	Uploads        *prometheus.CounterVec
	UploadSize     *prometheus.HistogramVec
	UploadDuration *prometheus.HistogramVec
	StorageErrors  *prometheus.CounterVec
	FilesWritten   *prometheus.CounterVec
	FileRecords    *prometheus.HistogramVec

	// Kafka metrics
	MessagesConsumed   *prometheus.CounterVec
	DecodeErrors       *prometheus.CounterVec
	Rebalances         *prometheus.CounterVec
	RebalanceDuration  *prometheus.HistogramVec
	PartitionsAssigned *prometheus.GaugeVec
	MessagesProduced   *prometheus.CounterVec
	DLQPublished       *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Pipeline metrics
		EventsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logship_events_recorded_total",
				Help: "Total number of events offered to a transport",
			},
			[]string{"transport", "status"},
		),
		EventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logship_events_sent_total",
				Help: "Total number of events delivered by a sink",
			},
			[]string{"transport"},
		),
		EventsRetried: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logship_events_retried_total",
				Help: "Total number of events re-queued after a failed delivery",
			},
			[]string{"transport"},
		),
		EventsDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logship_events_discarded_total",
				Help: "Total number of events dropped without delivery",
			},
			[]string{"transport", "reason"},
		),
		ChunksDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logship_chunks_dispatched_total",
				Help: "Total number of chunks handed to a sink",
			},
			[]string{"transport", "outcome"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "logship_dispatch_duration_seconds",
				Help:    "Time spent delivering one chunk",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
			},
			[]string{"transport"},
		),
		BufferDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "logship_buffer_depth",
				Help: "Number of events waiting in a transport buffer",
			},
			[]string{"transport"},
		),

		// Rotation metrics
		Rotations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logship_file_rotations_total",
				Help: "Total number of log file rotations",
			},
			[]string{"sink"},
		),
		ArchivesPruned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logship_file_archives_pruned_total",
				Help: "Total number of archived log files deleted by retention",
			},
			[]string{"sink"},
		),
		RotationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logship_file_rotation_errors_total",
				Help: "Total number of failed rotations or prunes",
			},
			[]string{"sink"},
		),
		CurrentFileSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "logship_file_current_size_bytes",
				Help: "Size of the current log file",
			},
			[]string{"sink"},
		),

		// Storage metrics
		Uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logship_storage_uploads_total",
				Help: "Total number of objects written to storage",
			},
			[]string{"backend", "status"},
		),
		UploadSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "logship_storage_upload_size_bytes",
				Help:    "Size of uploaded objects",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to 256MB
			},
			[]string{"backend"},
		),
		UploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "logship_storage_upload_duration_seconds",
				Help:    "Time taken to upload an object",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"backend"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logship_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"backend", "operation"},
		),
		FilesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logship_object_files_written_total",
				Help: "Total number of encoded object files written",
			},
			[]string{"format"},
		),
		FileRecords: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "logship_object_file_records",
				Help:    "Number of events per encoded object file",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"format"},
		),

		// Kafka metrics
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_consumed_total",
				Help: "Total number of messages consumed from Kafka",
			},
			[]string{"topic", "partition"},
		),
		DecodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_decode_errors_total",
				Help: "Total number of consumed messages that could not be decoded",
			},
			[]string{"topic"},
		),
		Rebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_rebalance_total",
				Help: "Total number of consumer group rebalances",
			},
			[]string{"group"},
		),
		RebalanceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_rebalance_duration_seconds",
				Help:    "Duration of consumer group rebalances",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"group"},
		),
		PartitionsAssigned: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kafka_partitions_assigned",
				Help: "Number of partitions currently assigned to this consumer",
			},
			[]string{"topic"},
		),
		MessagesProduced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_produced_total",
				Help: "Total number of messages produced to Kafka",
			},
			[]string{"topic", "status"},
		),
		DLQPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_dlq_published_total",
				Help: "Total number of events published to the dead letter topic",
			},
			[]string{"reason", "status"},
		),
	}
}

// RecordAdmission counts an event offered to a transport.
func (m *Metrics) RecordAdmission(transport string, accepted bool) {
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	m.EventsRecorded.WithLabelValues(transport, status).Inc()
}

// AddEventsSent adds delivered events.
func (m *Metrics) AddEventsSent(transport string, count float64) {
	m.EventsSent.WithLabelValues(transport).Add(count)
}

// AddEventsRetried adds re-queued events.
func (m *Metrics) AddEventsRetried(transport string, count float64) {
	m.EventsRetried.WithLabelValues(transport).Add(count)
}

// AddEventsDiscarded adds dropped events.
func (m *Metrics) AddEventsDiscarded(transport string, reason string, count float64) {
	m.EventsDiscarded.WithLabelValues(transport, reason).Add(count)
}

// ObserveDispatch records one chunk delivery.
func (m *Metrics) ObserveDispatch(transport string, outcome string, duration float64) {
	m.ChunksDispatched.WithLabelValues(transport, outcome).Inc()
	m.DispatchDuration.WithLabelValues(transport).Observe(duration)
}

// SetBufferDepth sets the number of buffered events.
func (m *Metrics) SetBufferDepth(transport string, depth float64) {
	m.BufferDepth.WithLabelValues(transport).Set(depth)
}

// IncRotations increments the rotation counter.
func (m *Metrics) IncRotations(sink string) {
	m.Rotations.WithLabelValues(sink).Inc()
}

// AddArchivesPruned adds deleted archives.
func (m *Metrics) AddArchivesPruned(sink string, count float64) {
	m.ArchivesPruned.WithLabelValues(sink).Add(count)
}

// IncRotationErrors increments the rotation error counter.
func (m *Metrics) IncRotationErrors(sink string) {
	m.RotationErrors.WithLabelValues(sink).Inc()
}

// SetCurrentFileSize sets the size of the current file.
func (m *Metrics) SetCurrentFileSize(sink string, size float64) {
	m.CurrentFileSize.WithLabelValues(sink).Set(size)
}

// IncUploads increments the upload counter.
func (m *Metrics) IncUploads(backend string, status string) {
	m.Uploads.WithLabelValues(backend, status).Inc()
}

// ObserveUploadSize records the size of an uploaded object.
func (m *Metrics) ObserveUploadSize(backend string, size float64) {
	m.UploadSize.WithLabelValues(backend).Observe(size)
}

// ObserveUploadDuration records upload duration.
func (m *Metrics) ObserveUploadDuration(backend string, duration float64) {
	m.UploadDuration.WithLabelValues(backend).Observe(duration)
}

// IncStorageErrors increments the storage error counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}

// IncFilesWritten increments the encoded file counter.
func (m *Metrics) IncFilesWritten(format string) {
	m.FilesWritten.WithLabelValues(format).Inc()
}

// ObserveFileRecords records the number of events in an encoded file.
func (m *Metrics) ObserveFileRecords(format string, records float64) {
	m.FileRecords.WithLabelValues(format).Observe(records)
}

// IncMessagesConsumed increments the messages consumed counter.
func (m *Metrics) IncMessagesConsumed(topic string, partition int32) {
	m.MessagesConsumed.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Inc()
}

// IncDecodeErrors increments the decode error counter.
func (m *Metrics) IncDecodeErrors(topic string) {
	m.DecodeErrors.WithLabelValues(topic).Inc()
}

// IncRebalances increments the rebalance counter.
func (m *Metrics) IncRebalances(groupID string) {
	m.Rebalances.WithLabelValues(groupID).Inc()
}

// ObserveRebalanceDuration records rebalance duration.
func (m *Metrics) ObserveRebalanceDuration(groupID string, duration float64) {
	m.RebalanceDuration.WithLabelValues(groupID).Observe(duration)
}

// SetPartitionsAssigned sets the number of assigned partitions.
func (m *Metrics) SetPartitionsAssigned(topic string, count float64) {
	m.PartitionsAssigned.WithLabelValues(topic).Set(count)
}

// AddMessagesProduced adds produced messages.
func (m *Metrics) AddMessagesProduced(topic string, status string, count float64) {
	m.MessagesProduced.WithLabelValues(topic, status).Add(count)
}

// IncDLQPublished increments the dead letter counter.
func (m *Metrics) IncDLQPublished(reason string, status string) {
	m.DLQPublished.WithLabelValues(reason, status).Inc()
}
