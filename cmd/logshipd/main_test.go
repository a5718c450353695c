package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jittakal/logship/internal/config/dto"
	"github.com/jittakal/logship/internal/delivery"
	"github.com/jittakal/logship/internal/observability"
	"github.com/jittakal/logship/internal/pipeline"
	"github.com/jittakal/logship/pkg/event"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, defaultConfigPath, resolveConfigPath(""))

	t.Setenv("CONFIG_PATH", "/etc/logship.yaml")
	assert.Equal(t, "/etc/logship.yaml", resolveConfigPath(""))
	assert.Equal(t, "cli.yaml", resolveConfigPath("cli.yaml"))
}

func TestCleanupStack_RunsInReverseOrder(t *testing.T) {
	var order []string
	s := &cleanupStack{logger: discardLogger()}
	s.add("first", func() error { order = append(order, "first"); return nil })
	s.add("second", func() error { order = append(order, "second"); return errors.New("boom") })
	s.add("third", func() error { order = append(order, "third"); return nil })

	s.run()
	s.run()

	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestNewRouter(t *testing.T) {
	ts := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cfg  dto.StorageConfig
		want string
	}{
		{"file", dto.StorageConfig{Backend: "file", BasePath: "logs"}, "logs/api/dt=2026-03-04/"},
		{"s3", dto.StorageConfig{Backend: "s3", BasePath: "raw", S3: dto.S3Config{Bucket: "b"}}, "s3://b/raw/api/dt=2026-03-04/"},
		{"gcs", dto.StorageConfig{Backend: "gcs", GCS: dto.GCSConfig{Bucket: "g"}}, "gs://g/api/dt=2026-03-04/"},
		{"azure", dto.StorageConfig{Backend: "azure", Azure: dto.AzureConfig{Container: "c"}}, "wasbs://c/api/dt=2026-03-04/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newRouter(tt.cfg, false).Route("api", ts))
		})
	}
}

func TestStorageConfig_EnvFallbacks(t *testing.T) {
	t.Setenv("AZURE_STORAGE_ACCOUNT_KEY", "env-key")

	got := storageConfig(dto.StorageConfig{Backend: "azure", Azure: dto.AzureConfig{AccountName: "acct", Container: "c"}})
	assert.Equal(t, "env-key", got.Azure.AccountKey)
	assert.Equal(t, "c", got.Azure.ContainerName)

	got = storageConfig(dto.StorageConfig{Azure: dto.AzureConfig{AccountKey: "cfg-key"}})
	assert.Equal(t, "cfg-key", got.Azure.AccountKey)
}

func TestComponents_FileTransportEndToEnd(t *testing.T) {
	dir := t.TempDir()
	retries := 1

	cfg := &dto.ApplicationConfig{
		Application: dto.ApplicationInfo{Name: "logship"},
		Transports: []dto.TransportConfig{{
			Name:           "file",
			Sink:           dto.SinkFile,
			Format:         "text",
			MinLevel:       "info",
			BufferCapacity: 100,
			ChunkSize:      10,
			MaxRetries:     &retries,
		}},
		Sinks: dto.SinksConfig{File: dto.FileSinkConfig{
			Directory:     dir,
			Prefix:        "app-",
			Extension:     "log",
			MaxFileSize:   "1MB",
			MaxFilesCount: 3,
			ArchiveNaming: "sequence",
		}},
	}

	c := &components{
		cfg:      cfg,
		logger:   discardLogger(),
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
		cleanups: &cleanupStack{logger: discardLogger()},
	}
	require.NoError(t, c.newDLQ())
	assert.Nil(t, c.dlq)

	transports, err := c.newTransports(context.Background())
	require.NoError(t, err)
	require.Len(t, transports, 1)

	logs, err := pipeline.New(pipeline.Config{}, transports, discardLogger(), c.metrics)
	require.NoError(t, err)

	assert.True(t, logs.Log(event.LevelInfo, "hello file", event.Fields{"k": "v"}))
	assert.False(t, logs.Log(event.LevelDebug, "below transport level", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, logs.Close(ctx))
	c.cleanups.run()

	data, err := os.ReadFile(filepath.Join(dir, "app-current.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "hello file"))
	assert.False(t, strings.Contains(string(data), "below transport level"))
}

func TestComponents_UnknownFormat(t *testing.T) {
	cfg := &dto.ApplicationConfig{
		Transports: []dto.TransportConfig{{Name: "c", Sink: dto.SinkConsole, Format: "xml", MinLevel: "info"}},
	}
	c := &components{
		cfg:      cfg,
		logger:   discardLogger(),
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
		cleanups: &cleanupStack{logger: discardLogger()},
	}

	_, err := c.newTransports(context.Background())
	assert.Error(t, err)
}

// closingTransport records Close calls.
type closingTransport struct {
	name     string
	closed   bool
	closeErr error
}

func (c *closingTransport) Name() string { return c.name }

func (c *closingTransport) Record(event.Event) bool { return true }

func (c *closingTransport) Flush() bool { return false }

func (c *closingTransport) Stats() delivery.Stats { return delivery.Stats{} }

func (c *closingTransport) Close(context.Context) error {
	c.closed = true
	return c.closeErr
}

func TestCloseTransports_ClosesAllAndJoinsErrors(t *testing.T) {
	a := &closingTransport{name: "a", closeErr: errors.New("disk gone")}
	b := &closingTransport{name: "b"}

	err := closeTransports(context.Background(), []pipeline.Transport{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "disk gone")
	assert.True(t, a.closed)
	assert.True(t, b.closed)

	assert.NoError(t, closeTransports(context.Background(), nil))
}

func TestComponents_BuildErrorClosesEarlierTransports(t *testing.T) {
	dir := t.TempDir()
	cfg := &dto.ApplicationConfig{
		Transports: []dto.TransportConfig{
			{Name: "file", Sink: dto.SinkFile, Format: "json", MinLevel: "info", BufferCapacity: 10, ChunkSize: 5},
			{Name: "broken", Sink: dto.SinkConsole, Format: "xml", MinLevel: "info"},
		},
		Sinks: dto.SinksConfig{File: dto.FileSinkConfig{
			Directory:     dir,
			Prefix:        "app-",
			Extension:     "log",
			MaxFileSize:   "1MB",
			MaxFilesCount: 3,
			ArchiveNaming: "sequence",
		}},
	}
	c := &components{
		cfg:      cfg,
		logger:   discardLogger(),
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
		cleanups: &cleanupStack{logger: discardLogger()},
	}

	transports, err := c.newTransports(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Nil(t, transports)

	cfg.Transports = cfg.Transports[:1]
	transports, err = c.newTransports(context.Background())
	require.NoError(t, err)
	require.NoError(t, closeTransports(context.Background(), transports))
	c.cleanups.run()
}
