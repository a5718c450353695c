package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jittakal/logship/internal/config/dto"
	"github.com/jittakal/logship/internal/delivery"
	"github.com/jittakal/logship/internal/encoder"
	"github.com/jittakal/logship/internal/format"
	"github.com/jittakal/logship/internal/kafka"
	"github.com/jittakal/logship/internal/observability"
	"github.com/jittakal/logship/internal/pipeline"
	"github.com/jittakal/logship/internal/rotation"
	"github.com/jittakal/logship/internal/sink"
	"github.com/jittakal/logship/internal/storage"
	"github.com/jittakal/logship/pkg/event"
	pkgsink "github.com/jittakal/logship/pkg/sink"
	pkgstorage "github.com/jittakal/logship/pkg/storage"
)

// components collects everything built from the configuration.
type components struct {
	cfg      *dto.ApplicationConfig
	logger   *slog.Logger
	metrics  *observability.Metrics
	dlq      *kafka.DLQPublisher
	cleanups *cleanupStack
}

type cleanupFunc struct {
	name string
	fn   func() error
}

// cleanupStack runs registered functions in reverse registration order.
type cleanupStack struct {
	funcs  []cleanupFunc
	logger *slog.Logger
}

func (s *cleanupStack) add(name string, fn func() error) {
	s.funcs = append(s.funcs, cleanupFunc{name: name, fn: fn})
	s.logger.Debug("registered cleanup", "component", name)
}

func (s *cleanupStack) run() {
	for i := len(s.funcs) - 1; i >= 0; i-- {
		c := s.funcs[i]
		if err := c.fn(); err != nil {
			s.logger.Error("cleanup failed", "component", c.name, "error", err)
		}
	}
	s.funcs = nil
}

func kafkaSecurity(cfg dto.KafkaConfig) kafka.SecurityConfig {
	return kafka.SecurityConfig{
		Protocol:      cfg.SecurityProtocol,
		SASLMechanism: cfg.SASLMechanism,
		SASLUsername:  cfg.SASLUsername,
		SASLPassword:  cfg.SASLPassword,
		AWSRegion:     cfg.AWSRegion,
		TLS: kafka.TLSConfig{
			CACertFile:         cfg.TLS.CACertFile,
			ClientCertFile:     cfg.TLS.ClientCertFile,
			ClientKeyFile:      cfg.TLS.ClientKeyFile,
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		},
	}
}

func storageConfig(cfg dto.StorageConfig) storage.Config {
	return storage.Config{
		Backend: cfg.Backend,
		File:    storage.FileConfig{BasePath: cfg.File.BasePath},
		S3: storage.S3Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
			SSEEnabled:   cfg.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.S3.SSEKMSKeyID,
		},
		GCS: storage.GCSConfig{
			Bucket:               cfg.GCS.Bucket,
			ProjectID:            cfg.GCS.ProjectID,
			CredentialsFile:      cfg.GCS.CredentialsFile,
			CredentialsJSON:      firstNonEmpty(cfg.GCS.CredentialsJSON, os.Getenv("GCP_CREDENTIALS_JSON")),
			Endpoint:             cfg.GCS.Endpoint,
			UseDefaultCredential: cfg.GCS.UseDefaultCredential,
		},
		Azure: storage.AzureConfig{
			AccountName:   cfg.Azure.AccountName,
			AccountKey:    firstNonEmpty(cfg.Azure.AccountKey, os.Getenv("AZURE_STORAGE_ACCOUNT_KEY")),
			ContainerName: cfg.Azure.Container,
			Endpoint:      cfg.Azure.Endpoint,
		},
	}
}

// newRouter builds the partition router for the configured backend. The file
// backend resolves paths below its own base path, so only the prefix is used.
func newRouter(cfg dto.StorageConfig, hourly bool) *storage.DefaultRouter {
	switch strings.ToLower(cfg.Backend) {
	case storage.BackendS3:
		return storage.NewRouter("s3", cfg.S3.Bucket, cfg.BasePath, hourly)
	case storage.BackendGCS:
		return storage.NewRouter("gs", cfg.GCS.Bucket, cfg.BasePath, hourly)
	case storage.BackendAzure:
		return storage.NewRouter("wasbs", cfg.Azure.Container, cfg.BasePath, hourly)
	default:
		return storage.NewRouter("", "", cfg.BasePath, hourly)
	}
}

// openStorage opens a writer owned by a single component, which closes it.
func (c *components) openStorage(ctx context.Context) (pkgstorage.Writer, error) {
	writer, err := storage.Open(ctx, storageConfig(c.cfg.Storage), c.logger, c.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", c.cfg.Storage.Backend, err)
	}
	return writer, nil
}

func (c *components) newDLQ() error {
	dlq, err := kafka.NewDLQPublisher(
		c.cfg.Kafka.BootstrapServers,
		kafkaSecurity(c.cfg.Kafka),
		kafka.DLQConfig{
			Enabled:   c.cfg.Kafka.DLQ.Enabled,
			Topic:     c.cfg.Kafka.DLQ.Topic,
			QueueSize: c.cfg.Kafka.DLQ.QueueSize,
		},
		c.cfg.Application.Name,
		c.logger,
		c.metrics,
	)
	if err != nil {
		return fmt.Errorf("failed to create DLQ publisher: %w", err)
	}
	if dlq != nil {
		c.dlq = dlq
		c.cleanups.add("dlq-publisher", dlq.Close)
	}
	return nil
}

func (c *components) formatOptions() (format.Options, error) {
	loc, err := c.cfg.Logger.Location()
	if err != nil {
		return format.Options{}, err
	}
	return format.Options{
		TimeLayout: c.cfg.Logger.TimeLayout,
		Location:   loc,
		RedactKeys: c.cfg.Logger.RedactKeys,
	}, nil
}

// newTransports builds one delivery transport per configured transport. On
// error the transports already built are closed.
func (c *components) newTransports(ctx context.Context) (_ []pipeline.Transport, err error) {
	opts, err := c.formatOptions()
	if err != nil {
		return nil, err
	}

	observers := []event.Observer{c.metrics.DeliveryObserver()}
	if c.dlq != nil {
		observers = append(observers, c.dlq)
	}
	observer := event.Observers(observers...)

	transports := make([]pipeline.Transport, 0, len(c.cfg.Transports))
	defer func() {
		if err != nil {
			if cerr := closeTransports(context.Background(), transports); cerr != nil {
				c.logger.Warn("Failed to close transports after build error", "error", cerr)
			}
		}
	}()

	for _, tc := range c.cfg.Transports {
		formatter, err := format.New(tc.Format, opts)
		if err != nil {
			return nil, fmt.Errorf("transport %q: %w", tc.DisplayName(), err)
		}
		minLevel, err := event.ParseLevel(tc.MinLevel)
		if err != nil {
			return nil, fmt.Errorf("transport %q: %w", tc.DisplayName(), err)
		}

		s, err := c.newSink(ctx, tc)
		if err != nil {
			return nil, fmt.Errorf("transport %q: %w", tc.DisplayName(), err)
		}

		t, err := delivery.NewTransport(delivery.Config{
			Name:            tc.DisplayName(),
			Capacity:        tc.BufferCapacity,
			ChunkSize:       tc.ChunkSize,
			FlushInterval:   tc.AutoFlushInterval,
			MaxRetries:      tc.Retries(delivery.DefaultMaxRetries),
			DispatchTimeout: tc.DispatchTimeout,
			MinLevel:        minLevel,
		}, s, formatter, observer, c.logger)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		transports = append(transports, t)
	}
	return transports, nil
}

// closeTransports closes every transport and joins their errors.
func closeTransports(ctx context.Context, transports []pipeline.Transport) error {
	var errs []error
	for _, t := range transports {
		if err := t.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close transport %s: %w", t.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (c *components) newSink(ctx context.Context, tc dto.TransportConfig) (pkgsink.Sink, error) {
	name := tc.DisplayName()
	switch tc.Sink {
	case dto.SinkConsole:
		return sink.NewConsoleSink(name, consoleOutput(c.cfg.Sinks.Console.Output)), nil
	case dto.SinkFile:
		return c.newFileSink(ctx, name)
	case dto.SinkCloudEvents:
		return c.newCloudEventsSink(name)
	case dto.SinkObject:
		return c.newObjectSink(ctx, name)
	case dto.SinkKafka:
		return c.newKafkaSink(name)
	default:
		return nil, fmt.Errorf("unsupported sink %q", tc.Sink)
	}
}

func consoleOutput(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

func (c *components) newFileSink(ctx context.Context, name string) (pkgsink.Sink, error) {
	fc := c.cfg.Sinks.File
	maxSize, err := fc.MaxFileSizeBytes()
	if err != nil {
		return nil, err
	}
	naming, err := rotation.ParseNaming(fc.ArchiveNaming)
	if err != nil {
		return nil, err
	}

	observers := []rotation.Observer{c.metrics.RotationObserver(name)}
	if fc.Ship.Enabled {
		writer, err := c.openStorage(ctx)
		if err != nil {
			return nil, err
		}
		source := fc.Ship.Source
		if source == "" {
			source = name
		}
		shipper := sink.NewArchiveShipper(source, writer, newRouter(c.cfg.Storage, false), fc.Ship.UploadTimeout, c.logger)
		observers = append(observers, shipper)
		c.cleanups.add("archive-shipper", shipper.Close)
	}

	return sink.NewFileSink(name, rotation.Config{
		Directory:   fc.Directory,
		Prefix:      fc.Prefix,
		Extension:   fc.Extension,
		MaxFileSize: maxSize,
		MaxFiles:    fc.MaxFilesCount,
		Naming:      naming,
		Policy: storage.NewCompositePolicy(storage.PolicyConfig{
			MaxRecordsPerFile: fc.MaxRecords,
			MaxAge:            fc.MaxAge,
		}),
	}, fc.SyncChunks, rotation.Observers(observers...), c.logger)
}

func (c *components) newCloudEventsSink(name string) (pkgsink.Sink, error) {
	ce := c.cfg.Sinks.CloudEvents
	maxInflight, err := ce.MaxInflightBytesValue()
	if err != nil {
		return nil, err
	}
	return sink.NewCloudEventsSink(sink.CloudEventsConfig{
		Name:   name,
		Target: ce.Target,
		Source: ce.Source,
	}, sink.NewByteBudget(maxInflight), c.logger)
}

func (c *components) newObjectSink(ctx context.Context, name string) (pkgsink.Sink, error) {
	oc := c.cfg.Sinks.Object
	enc, err := encoder.NewFactory(event.FileFormat(oc.Format), oc.Compression).CreateEncoder()
	if err != nil {
		return nil, err
	}
	writer, err := c.openStorage(ctx)
	if err != nil {
		return nil, err
	}
	return sink.NewObjectSink(sink.ObjectSinkConfig{
		Name:    name,
		TempDir: oc.TempDir,
	}, enc, writer, newRouter(c.cfg.Storage, oc.HourlyPartitions), c.logger, c.metrics)
}

func (c *components) newKafkaSink(name string) (pkgsink.Sink, error) {
	kc := c.cfg.Sinks.Kafka
	maxMessage, err := dto.ParseSize(kc.MaxMessageBytes)
	if err != nil {
		return nil, err
	}
	return kafka.NewProducerSink(kafka.ProducerConfig{
		Name:             name,
		BootstrapServers: c.cfg.Kafka.BootstrapServers,
		Topic:            kc.Topic,
		ClientID:         kc.ClientID,
		RequiredAcks:     kc.RequiredAcks,
		Compression:      kc.Compression,
		Idempotent:       kc.Idempotent,
		RetryMax:         kc.RetryMax,
		RetryBackoff:     kc.RetryBackoff,
		MaxMessageBytes:  int(maxMessage),
		Security:         kafkaSecurity(c.cfg.Kafka),
	}, c.logger, c.metrics)
}

func (c *components) newConsumer() (*kafka.SaramaConsumer, error) {
	cc := c.cfg.Kafka.Consumer
	return kafka.NewSaramaConsumer(kafka.ConsumerConfig{
		BootstrapServers:    c.cfg.Kafka.BootstrapServers,
		GroupID:             cc.GroupID,
		Topics:              cc.Topics,
		AutoOffsetReset:     cc.AutoOffsetReset,
		SessionTimeoutMS:    cc.SessionTimeoutMS,
		HeartbeatIntervalMS: cc.HeartbeatIntervalMS,
		MaxPollIntervalMS:   cc.MaxPollIntervalMS,
		Security:            kafkaSecurity(c.cfg.Kafka),
	}, c.logger, c.metrics)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
