package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	apperrors "github.com/jittakal/logship/internal/errors"
)

type recordingMetrics struct {
	mu      sync.Mutex
	uploads map[string]int
	errors  map[string]int
	bytes   float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{uploads: map[string]int{}, errors: map[string]int{}}
}

func (m *recordingMetrics) IncUploads(backend, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[backend+"/"+status]++
}

func (m *recordingMetrics) ObserveUploadSize(_ string, size float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes += size
}

func (m *recordingMetrics) ObserveUploadDuration(string, float64) {}

func (m *recordingMetrics) IncStorageErrors(backend, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[backend+"/"+operation]++
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewFileWriter(t *testing.T) {
	if _, err := NewFileWriter(FileConfig{}, discardLogger(), nil); err == nil {
		t.Error("NewFileWriter() with empty base path should fail")
	}

	base := filepath.Join(t.TempDir(), "nested", "archive")
	w, err := NewFileWriter(FileConfig{BasePath: base}, discardLogger(), nil)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	defer w.Close()

	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		t.Errorf("base path not created: %v", err)
	}
}

func TestFileWriter_Put(t *testing.T) {
	base := t.TempDir()
	metrics := newRecordingMetrics()
	w, err := NewFileWriter(FileConfig{BasePath: base}, discardLogger(), metrics)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}

	src := filepath.Join(t.TempDir(), "app-000001.log")
	content := []byte("line one\nline two\n")
	if err := os.WriteFile(src, content, 0644); err != nil {
		t.Fatal(err)
	}

	n, err := w.Put(context.Background(), "file://local/logs/app/dt=2025-12-18/app-000001.log", src)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("Put() = %d bytes, want %d", n, len(content))
	}

	got, err := os.ReadFile(filepath.Join(base, "logs", "app", "dt=2025-12-18", "app-000001.log"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("copied content = %q, want %q", got, content)
	}

	if metrics.uploads["file/success"] != 1 {
		t.Errorf("uploads = %v, want one success", metrics.uploads)
	}
	if metrics.bytes != float64(len(content)) {
		t.Errorf("observed bytes = %v, want %d", metrics.bytes, len(content))
	}

	// The source is left in place
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source removed: %v", err)
	}
}

func TestFileWriter_PutMissingSource(t *testing.T) {
	metrics := newRecordingMetrics()
	w, err := NewFileWriter(FileConfig{BasePath: t.TempDir()}, discardLogger(), metrics)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}

	_, err = w.Put(context.Background(), "a.log", filepath.Join(t.TempDir(), "missing.log"))
	if err == nil {
		t.Fatal("Put() with missing source should fail")
	}

	var storageErr *apperrors.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("Put() error = %T, want *StorageError", err)
	}
	if storageErr.Operation != "open" {
		t.Errorf("Operation = %q, want open", storageErr.Operation)
	}
	if metrics.errors["file/file_open"] != 1 {
		t.Errorf("errors = %v, want file_open", metrics.errors)
	}
}

func TestFileWriter_PutCancelled(t *testing.T) {
	w, err := NewFileWriter(FileConfig{BasePath: t.TempDir()}, discardLogger(), nil)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := w.Put(ctx, "a.log", "unused"); !errors.Is(err, context.Canceled) {
		t.Errorf("Put() error = %v, want context.Canceled", err)
	}
}

func TestCloudConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     interface{ Validate() error }
		wantErr bool
	}{
		{"s3 valid", S3Config{Bucket: "b", Region: "us-east-1"}, false},
		{"s3 missing bucket", S3Config{Region: "us-east-1"}, true},
		{"s3 missing region", S3Config{Bucket: "b"}, true},
		{"gcs valid", GCSConfig{Bucket: "b"}, false},
		{"gcs missing bucket", GCSConfig{}, true},
		{"azure valid", AzureConfig{AccountName: "a", AccountKey: "k", ContainerName: "c"}, false},
		{"azure missing key", AzureConfig{AccountName: "a", ContainerName: "c"}, true},
		{"azure missing container", AzureConfig{AccountName: "a", AccountKey: "k"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAzureConfig_ConnectionString(t *testing.T) {
	cfg := AzureConfig{AccountName: "acct", AccountKey: "key"}
	want := "DefaultEndpointsProtocol=https;AccountName=acct;AccountKey=key;EndpointSuffix=core.windows.net"
	if got := cfg.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}

	cfg.Endpoint = "http://127.0.0.1:10000/acct"
	want = "DefaultEndpointsProtocol=https;AccountName=acct;AccountKey=key;BlobEndpoint=http://127.0.0.1:10000/acct"
	if got := cfg.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

func TestS3Config_PutInput(t *testing.T) {
	tests := []struct {
		name    string
		cfg     S3Config
		wantSSE string
		wantKMS bool
	}{
		{"no encryption", S3Config{Bucket: "b"}, "", false},
		{"aes256", S3Config{Bucket: "b", SSEEnabled: true}, "AES256", false},
		{"kms", S3Config{Bucket: "b", SSEEnabled: true, SSEKMSKeyID: "key-1"}, "aws:kms", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.cfg.putInput("logs/a.jsonl", nil)
			if got := string(input.ServerSideEncryption); got != tt.wantSSE {
				t.Errorf("ServerSideEncryption = %q, want %q", got, tt.wantSSE)
			}
			if (input.SSEKMSKeyId != nil) != tt.wantKMS {
				t.Errorf("SSEKMSKeyId set = %v, want %v", input.SSEKMSKeyId != nil, tt.wantKMS)
			}
			if *input.ContentType != "application/x-ndjson" {
				t.Errorf("ContentType = %q", *input.ContentType)
			}
		})
	}
}

func TestGCSConfig_ClientOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      GCSConfig
		wantAuth string
		wantOpts int
	}{
		{"default", GCSConfig{Bucket: "b"}, "default", 0},
		{"json", GCSConfig{Bucket: "b", CredentialsJSON: "{}"}, "json", 1},
		{"file", GCSConfig{Bucket: "b", CredentialsFile: "/sa.json"}, "file", 1},
		{"default wins", GCSConfig{Bucket: "b", CredentialsFile: "/sa.json", UseDefaultCredential: true}, "default", 0},
		{"endpoint", GCSConfig{Bucket: "b", Endpoint: "http://localhost:4443", CredentialsJSON: "{}"}, "json", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, auth := tt.cfg.clientOptions()
			if auth != tt.wantAuth {
				t.Errorf("auth = %q, want %q", auth, tt.wantAuth)
			}
			if len(opts) != tt.wantOpts {
				t.Errorf("len(opts) = %d, want %d", len(opts), tt.wantOpts)
			}
		})
	}
}

func TestOpen_UnsupportedBackend(t *testing.T) {
	if _, err := Open(context.Background(), Config{Backend: "ftp"}, discardLogger(), nil); err == nil {
		t.Error("Open() with unsupported backend should fail")
	}
}

func TestOpen_File(t *testing.T) {
	w, err := Open(context.Background(), Config{Backend: "FILE", File: FileConfig{BasePath: t.TempDir()}}, discardLogger(), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := w.(*FileWriter); !ok {
		t.Errorf("Open() = %T, want *FileWriter", w)
	}
}
