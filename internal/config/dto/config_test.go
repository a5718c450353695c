package dto

import (
	"testing"
	"time"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"100KB", 100 * 1024, false},
		{"100kb", 100 * 1024, false},
		{"10MB", 10 * 1024 * 1024, false},
		{"1GiB", 1024 * 1024 * 1024, false},
		{"512", 512, false},
		{"lots", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestTransportConfig_Validate(t *testing.T) {
	negative := -1
	tests := []struct {
		name    string
		config  TransportConfig
		wantErr bool
	}{
		{"console", TransportConfig{Sink: SinkConsole}, false},
		{"kafka with sizes", TransportConfig{Sink: SinkKafka, BufferCapacity: 100, ChunkSize: 100}, false},
		{"missing sink", TransportConfig{Name: "x"}, true},
		{"negative capacity", TransportConfig{Sink: SinkFile, BufferCapacity: -1}, true},
		{"chunk exceeds capacity", TransportConfig{Sink: SinkFile, BufferCapacity: 10, ChunkSize: 11}, true},
		{"negative retries", TransportConfig{Sink: SinkFile, MaxRetries: &negative}, true},
		{"negative interval", TransportConfig{Sink: SinkFile, AutoFlushInterval: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransportConfig_DisplayName(t *testing.T) {
	if got := (TransportConfig{Sink: SinkFile}).DisplayName(); got != "file" {
		t.Errorf("DisplayName() = %s, want file", got)
	}
	if got := (TransportConfig{Name: "audit", Sink: SinkFile}).DisplayName(); got != "audit" {
		t.Errorf("DisplayName() = %s, want audit", got)
	}
}

func TestLoggerConfig_Location(t *testing.T) {
	loc, err := LoggerConfig{}.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Location() = %v, %v, want UTC", loc, err)
	}
	if _, err := (LoggerConfig{TimeZone: "Mars/Olympus"}).Location(); err == nil {
		t.Error("expected error for unknown time zone")
	}
}

func TestApplicationConfig_Needs(t *testing.T) {
	tests := []struct {
		name        string
		config      ApplicationConfig
		wantStorage bool
		wantKafka   bool
	}{
		{
			name:   "console only",
			config: ApplicationConfig{Transports: []TransportConfig{{Sink: SinkConsole}}},
		},
		{
			name:        "object sink",
			config:      ApplicationConfig{Transports: []TransportConfig{{Sink: SinkObject}}},
			wantStorage: true,
		},
		{
			name: "file sink shipping archives",
			config: ApplicationConfig{
				Transports: []TransportConfig{{Sink: SinkFile}},
				Sinks:      SinksConfig{File: FileSinkConfig{Ship: ShipConfig{Enabled: true}}},
			},
			wantStorage: true,
		},
		{
			name:      "kafka sink",
			config:    ApplicationConfig{Transports: []TransportConfig{{Sink: SinkKafka}}},
			wantKafka: true,
		},
		{
			name: "dlq only",
			config: ApplicationConfig{
				Transports: []TransportConfig{{Sink: SinkConsole}},
				Kafka:      KafkaConfig{DLQ: DLQConfig{Enabled: true}},
			},
			wantKafka: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.NeedsStorage(); got != tt.wantStorage {
				t.Errorf("NeedsStorage() = %v, want %v", got, tt.wantStorage)
			}
			if got := tt.config.NeedsKafka(); got != tt.wantKafka {
				t.Errorf("NeedsKafka() = %v, want %v", got, tt.wantKafka)
			}
		})
	}
}

func TestStorageConfig_Validate(t *testing.T) {
	if err := (&S3Config{Bucket: "b"}).Validate(); err == nil {
		t.Error("S3 without region should fail")
	}
	if err := (&S3Config{Bucket: "b", Region: "us-east-1"}).Validate(); err != nil {
		t.Errorf("S3 Validate() error = %v", err)
	}
	if err := (&AzureConfig{AccountName: "acct"}).Validate(); err == nil {
		t.Error("Azure without container should fail")
	}
	if err := (&GCSConfig{}).Validate(); err == nil {
		t.Error("GCS without bucket should fail")
	}
	if err := (&FileConfig{BasePath: "/tmp"}).Validate(); err != nil {
		t.Errorf("File Validate() error = %v", err)
	}
}
