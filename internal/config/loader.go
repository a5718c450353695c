// Package config loads the daemon configuration from YAML and APP_ environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jittakal/logship/internal/config/dto"
	"github.com/jittakal/logship/internal/delivery"
	"github.com/jittakal/logship/internal/encoder"
	"github.com/jittakal/logship/internal/format"
	"github.com/jittakal/logship/internal/rotation"
	"github.com/jittakal/logship/pkg/event"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Only expand values containing a ${...} reference.
	for _, key := range l.v.AllKeys() {
		value, ok := l.v.Get(key).(string)
		if ok && strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyTransportDefaults(&config)

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	l.v.SetDefault("application.name", "logship")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Pipeline defaults
	l.v.SetDefault("logger.min_level", "debug")
	l.v.SetDefault("logger.max_message_bytes", 64*1024)
	l.v.SetDefault("logger.max_fields", 64)
	l.v.SetDefault("transports", []map[string]any{
		{"name": "console", "sink": dto.SinkConsole, "format": "text"},
	})

	// Sink defaults
	l.v.SetDefault("sinks.console.output", "stdout")
	l.v.SetDefault("sinks.file.directory", "./logs")
	l.v.SetDefault("sinks.file.prefix", "app-")
	l.v.SetDefault("sinks.file.extension", "log")
	l.v.SetDefault("sinks.file.max_file_size", "10MB")
	l.v.SetDefault("sinks.file.max_files_count", 10)
	l.v.SetDefault("sinks.file.archive_naming", string(rotation.NamingSequence))
	l.v.SetDefault("sinks.file.ship.upload_timeout", 2*time.Minute)
	l.v.SetDefault("sinks.cloudevents.source", "/logship")
	l.v.SetDefault("sinks.cloudevents.max_inflight_bytes", "1MB")
	l.v.SetDefault("sinks.object.format", string(event.FormatParquet))
	l.v.SetDefault("sinks.object.compression", "snappy")
	l.v.SetDefault("sinks.kafka.required_acks", "all")
	l.v.SetDefault("sinks.kafka.compression", "snappy")
	l.v.SetDefault("sinks.kafka.idempotent", true)
	l.v.SetDefault("sinks.kafka.retry_max", 5)
	l.v.SetDefault("sinks.kafka.retry_backoff", 100*time.Millisecond)

	// Storage defaults
	l.v.SetDefault("storage.backend", "file")
	l.v.SetDefault("storage.base_path", "logs")
	l.v.SetDefault("storage.s3.use_path_style", false)
	l.v.SetDefault("storage.s3.sse_enabled", true)

	// Kafka defaults
	l.v.SetDefault("kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("kafka.consumer.auto_offset_reset", "latest")
	l.v.SetDefault("kafka.consumer.max_poll_interval_ms", 300000)
	l.v.SetDefault("kafka.consumer.session_timeout_ms", 30000)
	l.v.SetDefault("kafka.consumer.heartbeat_interval_ms", 10000)
	l.v.SetDefault("kafka.dlq.topic", "logship-dlq")
	l.v.SetDefault("kafka.dlq.queue_size", 1000)

	// Source defaults
	l.v.SetDefault("sources.stdin.max_line_bytes", "1MB")

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stderr")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.health.enabled", true)
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.ingest", true)
	l.v.SetDefault("observability.health.max_ingest_bytes", "4MB")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period", 30*time.Second)
}

// applyTransportDefaults fills per-transport settings that viper cannot default
// inside a list.
func applyTransportDefaults(config *dto.ApplicationConfig) {
	for i := range config.Transports {
		t := &config.Transports[i]
		if t.Name == "" {
			t.Name = t.Sink
		}
		if t.Format == "" {
			t.Format = "text"
		}
		if t.MinLevel == "" {
			t.MinLevel = "debug"
		}
		if t.BufferCapacity == 0 {
			t.BufferCapacity = delivery.DefaultCapacity
		}
		if t.ChunkSize == 0 {
			t.ChunkSize = min(delivery.DefaultChunkSize, t.BufferCapacity)
		}
		if t.MaxRetries == nil {
			retries := delivery.DefaultMaxRetries
			t.MaxRetries = &retries
		}
		if t.DispatchTimeout == 0 {
			t.DispatchTimeout = delivery.DefaultDispatchTimeout
		}
	}
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if config.Application.Name == "" {
		return errors.New("application.name is required")
	}

	if _, err := event.ParseLevel(config.Logger.MinLevel); err != nil {
		return fmt.Errorf("logger.min_level: %w", err)
	}
	if _, err := config.Logger.Location(); err != nil {
		return fmt.Errorf("logger.time_zone: %w", err)
	}

	if err := validateTransports(config.Transports); err != nil {
		return err
	}
	if err := validateSinks(config); err != nil {
		return err
	}
	if config.NeedsStorage() {
		if err := validateStorage(&config.Storage); err != nil {
			return err
		}
	}
	if err := validateKafka(config); err != nil {
		return err
	}

	if _, err := dto.ParseSize(config.Sources.Stdin.MaxLineBytes); err != nil {
		return fmt.Errorf("sources.stdin.max_line_bytes: %w", err)
	}
	if _, err := dto.ParseSize(config.Observability.Health.MaxIngestBytes); err != nil {
		return fmt.Errorf("observability.health.max_ingest_bytes: %w", err)
	}

	// Port validation
	obs := config.Observability
	if obs.Metrics.Enabled && (obs.Metrics.Port < 1 || obs.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", obs.Metrics.Port)
	}
	if obs.Health.Enabled && (obs.Health.Port < 1 || obs.Health.Port > 65535) {
		return fmt.Errorf("invalid health port: %d", obs.Health.Port)
	}
	if obs.Metrics.Enabled && obs.Health.Enabled && obs.Metrics.Port == obs.Health.Port {
		return fmt.Errorf("metrics and health ports must differ: %d", obs.Metrics.Port)
	}

	if config.Shutdown.GracePeriod <= 0 {
		return fmt.Errorf("shutdown.grace_period must be positive")
	}
	return nil
}

func validateTransports(transports []dto.TransportConfig) error {
	if len(transports) == 0 {
		return errors.New("at least one transport is required")
	}

	seen := make(map[string]struct{}, len(transports))
	fileOwner := ""
	for _, t := range transports {
		if err := t.Validate(); err != nil {
			return err
		}
		name := t.DisplayName()
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate transport name %q", name)
		}
		seen[name] = struct{}{}

		// sinks.file names a single active file; one rotation controller owns it.
		if t.Sink == dto.SinkFile {
			if fileOwner != "" {
				return fmt.Errorf("transport %q: file sink already used by transport %q", name, fileOwner)
			}
			fileOwner = name
		}

		if _, err := format.New(t.Format, format.Options{}); err != nil {
			return fmt.Errorf("transport %q: %w", name, err)
		}
		if _, err := event.ParseLevel(t.MinLevel); err != nil {
			return fmt.Errorf("transport %q: min_level: %w", name, err)
		}
	}
	return nil
}

func validateSinks(config *dto.ApplicationConfig) error {
	sinks := config.Sinks

	if config.UsesSink(dto.SinkConsole) {
		switch sinks.Console.Output {
		case "stdout", "stderr":
		default:
			return fmt.Errorf("unsupported console output: %s", sinks.Console.Output)
		}
	}

	if config.UsesSink(dto.SinkFile) {
		size, err := sinks.File.MaxFileSizeBytes()
		if err != nil {
			return fmt.Errorf("sinks.file.max_file_size: %w", err)
		}
		if size <= 0 {
			return errors.New("sinks.file.max_file_size must be positive")
		}
		if sinks.File.MaxFilesCount < 0 {
			return errors.New("sinks.file.max_files_count cannot be negative")
		}
		if _, err := rotation.ParseNaming(sinks.File.ArchiveNaming); err != nil {
			return fmt.Errorf("sinks.file.archive_naming: %w", err)
		}
	}

	if config.UsesSink(dto.SinkCloudEvents) {
		if sinks.CloudEvents.Target == "" {
			return errors.New("sinks.cloudevents.target is required")
		}
		if _, err := sinks.CloudEvents.MaxInflightBytesValue(); err != nil {
			return fmt.Errorf("sinks.cloudevents.max_inflight_bytes: %w", err)
		}
	}

	if config.UsesSink(dto.SinkObject) {
		if !isSupportedFormat(event.FileFormat(sinks.Object.Format)) {
			return fmt.Errorf("unsupported object format: %s", sinks.Object.Format)
		}
	}

	if config.UsesSink(dto.SinkKafka) {
		if sinks.Kafka.Topic == "" {
			return errors.New("sinks.kafka.topic is required")
		}
		if _, err := dto.ParseSize(sinks.Kafka.MaxMessageBytes); err != nil {
			return fmt.Errorf("sinks.kafka.max_message_bytes: %w", err)
		}
	}
	return nil
}

func isSupportedFormat(f event.FileFormat) bool {
	for _, supported := range encoder.SupportedFormats() {
		if f == supported {
			return true
		}
	}
	return false
}

func validateStorage(storage *dto.StorageConfig) error {
	switch storage.Backend {
	case "s3":
		if err := storage.S3.Validate(); err != nil {
			return fmt.Errorf("storage.s3: %w", err)
		}
	case "azure":
		if err := storage.Azure.Validate(); err != nil {
			return fmt.Errorf("storage.azure: %w", err)
		}
	case "gcs":
		if err := storage.GCS.Validate(); err != nil {
			return fmt.Errorf("storage.gcs: %w", err)
		}
	case "file":
		if err := storage.File.Validate(); err != nil {
			return fmt.Errorf("storage.file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", storage.Backend)
	}
	return nil
}

func validateKafka(config *dto.ApplicationConfig) error {
	if !config.NeedsKafka() {
		return nil
	}
	kafka := config.Kafka
	if len(kafka.BootstrapServers) == 0 {
		return errors.New("kafka.bootstrap_servers is required")
	}
	if kafka.Consumer.Enabled {
		if kafka.Consumer.GroupID == "" {
			return errors.New("kafka.consumer.group_id is required")
		}
		if len(kafka.Consumer.Topics) == 0 {
			return errors.New("kafka.consumer.topics is required")
		}
	}
	if kafka.DLQ.Enabled && kafka.DLQ.Topic == "" {
		return errors.New("kafka.dlq.topic is required")
	}
	return nil
}
