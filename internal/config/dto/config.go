package dto

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
)

// Sink kinds a transport can deliver to.
const (
	SinkConsole     = "console"
	SinkFile        = "file"
	SinkCloudEvents = "cloudevents"
	SinkObject      = "object"
	SinkKafka       = "kafka"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Transports    []TransportConfig   `mapstructure:"transports"`
	Sinks         SinksConfig         `mapstructure:"sinks"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Sources       SourcesConfig       `mapstructure:"sources"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// LoggerConfig configures the pipeline façade shared by all transports.
type LoggerConfig struct {
	MinLevel        string   `mapstructure:"min_level"`
	MaxMessageBytes int      `mapstructure:"max_message_bytes"`
	MaxFields       int      `mapstructure:"max_fields"`
	TimeLayout      string   `mapstructure:"time_layout"`
	TimeZone        string   `mapstructure:"time_zone"`
	RedactKeys      []string `mapstructure:"redact_keys"`
}

// Location resolves TimeZone; an empty zone means UTC.
func (c LoggerConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// TransportConfig pairs one buffer and scheduler with one sink.
type TransportConfig struct {
	Name              string        `mapstructure:"name"`
	Sink              string        `mapstructure:"sink"`
	Format            string        `mapstructure:"format"`
	MinLevel          string        `mapstructure:"min_level"`
	BufferCapacity    int           `mapstructure:"buffer_capacity"`
	ChunkSize         int           `mapstructure:"chunk_size"`
	AutoFlushInterval time.Duration `mapstructure:"auto_flush_interval"`
	MaxRetries        *int          `mapstructure:"max_retries"` // nil uses the default
	DispatchTimeout   time.Duration `mapstructure:"dispatch_timeout"`
}

// DisplayName returns the transport name, falling back to the sink kind.
func (c TransportConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Sink
}

// Validate validates a transport definition.
func (c TransportConfig) Validate() error {
	switch c.Sink {
	case SinkConsole, SinkFile, SinkCloudEvents, SinkObject, SinkKafka:
	default:
		return fmt.Errorf("transport %q: unsupported sink %q", c.DisplayName(), c.Sink)
	}
	if c.BufferCapacity < 0 {
		return fmt.Errorf("transport %q: buffer_capacity cannot be negative", c.DisplayName())
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("transport %q: chunk_size cannot be negative", c.DisplayName())
	}
	if c.BufferCapacity > 0 && c.ChunkSize > c.BufferCapacity {
		return fmt.Errorf("transport %q: chunk_size %d exceeds buffer_capacity %d", c.DisplayName(), c.ChunkSize, c.BufferCapacity)
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return fmt.Errorf("transport %q: max_retries cannot be negative", c.DisplayName())
	}
	if c.AutoFlushInterval < 0 {
		return fmt.Errorf("transport %q: auto_flush_interval cannot be negative", c.DisplayName())
	}
	return nil
}

// Retries returns MaxRetries or def when unset.
func (c TransportConfig) Retries(def int) int {
	if c.MaxRetries == nil {
		return def
	}
	return *c.MaxRetries
}

// SinksConfig holds the settings of each sink kind.
type SinksConfig struct {
	Console     ConsoleSinkConfig     `mapstructure:"console"`
	File        FileSinkConfig        `mapstructure:"file"`
	CloudEvents CloudEventsSinkConfig `mapstructure:"cloudevents"`
	Object      ObjectSinkConfig      `mapstructure:"object"`
	Kafka       KafkaSinkConfig       `mapstructure:"kafka"`
}

// ConsoleSinkConfig contains console sink settings
type ConsoleSinkConfig struct {
	Output string `mapstructure:"output"`
}

// FileSinkConfig contains rotating file sink settings
type FileSinkConfig struct {
	Directory     string        `mapstructure:"directory"`
	Prefix        string        `mapstructure:"prefix"`
	Extension     string        `mapstructure:"extension"`
	MaxFileSize   string        `mapstructure:"max_file_size"`
	MaxFilesCount int           `mapstructure:"max_files_count"`
	ArchiveNaming string        `mapstructure:"archive_naming"`
	MaxRecords    int           `mapstructure:"max_records_per_file"`
	MaxAge        time.Duration `mapstructure:"max_age"`
	SyncChunks    bool          `mapstructure:"sync_chunks"`
	Ship          ShipConfig    `mapstructure:"ship"`
}

// MaxFileSizeBytes resolves MaxFileSize ("100KB", "10MB") in binary multiples.
func (c FileSinkConfig) MaxFileSizeBytes() (int64, error) {
	return ParseSize(c.MaxFileSize)
}

// ShipConfig uploads rotated archives through the storage backend.
type ShipConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Source        string        `mapstructure:"source"`
	UploadTimeout time.Duration `mapstructure:"upload_timeout"`
}

// CloudEventsSinkConfig contains HTTP CloudEvents sink settings
type CloudEventsSinkConfig struct {
	Target           string `mapstructure:"target"`
	Source           string `mapstructure:"source"`
	MaxInflightBytes string `mapstructure:"max_inflight_bytes"`
}

// MaxInflightBytesValue resolves MaxInflightBytes; zero disables the budget.
func (c CloudEventsSinkConfig) MaxInflightBytesValue() (int64, error) {
	return ParseSize(c.MaxInflightBytes)
}

// ObjectSinkConfig contains encoded object sink settings
type ObjectSinkConfig struct {
	Format           string `mapstructure:"format"`
	Compression      string `mapstructure:"compression"`
	TempDir          string `mapstructure:"temp_dir"`
	HourlyPartitions bool   `mapstructure:"hourly_partitions"`
}

// KafkaSinkConfig contains Kafka producer sink settings
type KafkaSinkConfig struct {
	Topic           string        `mapstructure:"topic"`
	ClientID        string        `mapstructure:"client_id"`
	RequiredAcks    string        `mapstructure:"required_acks"`
	Compression     string        `mapstructure:"compression"`
	Idempotent      bool          `mapstructure:"idempotent"`
	RetryMax        int           `mapstructure:"retry_max"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	MaxMessageBytes string        `mapstructure:"max_message_bytes"`
}

// StorageConfig contains storage backend configuration
type StorageConfig struct {
	Backend  string      `mapstructure:"backend"`
	BasePath string      `mapstructure:"base_path"`
	S3       S3Config    `mapstructure:"s3"`
	Azure    AzureConfig `mapstructure:"azure"`
	GCS      GCSConfig   `mapstructure:"gcs"`
	File     FileConfig  `mapstructure:"file"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	Endpoint    string `mapstructure:"endpoint"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	Endpoint             string `mapstructure:"endpoint"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// KafkaConfig contains Kafka connection, source and DLQ configuration
type KafkaConfig struct {
	BootstrapServers []string       `mapstructure:"bootstrap_servers"`
	SecurityProtocol string         `mapstructure:"security_protocol"`
	SASLMechanism    string         `mapstructure:"sasl_mechanism"`
	SASLUsername     string         `mapstructure:"sasl_username"`
	SASLPassword     string         `mapstructure:"sasl_password"`
	AWSRegion        string         `mapstructure:"aws_region"`
	TLS              TLSConfig      `mapstructure:"tls"`
	Consumer         ConsumerConfig `mapstructure:"consumer"`
	DLQ              DLQConfig      `mapstructure:"dlq"`
}

// TLSConfig contains client TLS settings
type TLSConfig struct {
	CACertFile         string `mapstructure:"ca_cert_file"`
	ClientCertFile     string `mapstructure:"client_cert_file"`
	ClientKeyFile      string `mapstructure:"client_key_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// ConsumerConfig contains Kafka consumer configuration
type ConsumerConfig struct {
	Enabled             bool     `mapstructure:"enabled"`
	GroupID             string   `mapstructure:"group_id"`
	Topics              []string `mapstructure:"topics"`
	AutoOffsetReset     string   `mapstructure:"auto_offset_reset"`
	MaxPollIntervalMS   int      `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMS    int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS int      `mapstructure:"heartbeat_interval_ms"`
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Topic     string `mapstructure:"topic"`
	QueueSize int    `mapstructure:"queue_size"`
}

// SourcesConfig enables sources that feed the pipeline.
type SourcesConfig struct {
	Stdin StdinSourceConfig `mapstructure:"stdin"`
}

// StdinSourceConfig contains stdin line source settings
type StdinSourceConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MaxLineBytes string `mapstructure:"max_line_bytes"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains settings of the daemon's own logs
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check and ingest settings
type HealthConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Port           int    `mapstructure:"port"`
	Ingest         bool   `mapstructure:"ingest"`
	MaxIngestBytes string `mapstructure:"max_ingest_bytes"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

// ParseSize converts a human-readable size in binary multiples ("100KB" is
// 102400 bytes) to bytes. An empty string is zero.
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid size %q: cannot be negative", s)
	}
	return n, nil
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	return nil
}

// UsesSink reports whether any transport delivers to the given sink kind.
func (c *ApplicationConfig) UsesSink(kind string) bool {
	for _, t := range c.Transports {
		if t.Sink == kind {
			return true
		}
	}
	return false
}

// NeedsStorage reports whether a component writes through the storage backend.
func (c *ApplicationConfig) NeedsStorage() bool {
	return c.UsesSink(SinkObject) || (c.UsesSink(SinkFile) && c.Sinks.File.Ship.Enabled)
}

// NeedsKafka reports whether a component connects to Kafka.
func (c *ApplicationConfig) NeedsKafka() bool {
	return c.UsesSink(SinkKafka) || c.Kafka.Consumer.Enabled || c.Kafka.DLQ.Enabled
}
