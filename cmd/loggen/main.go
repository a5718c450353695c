// Command loggen generates fake log events and sends them to logshipd, either
// as JSON lines on stdout, as CloudEvents over HTTP or as Kafka messages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jittakal/logship/internal/generator"
	"github.com/jittakal/logship/internal/kafka"
	"github.com/jittakal/logship/internal/sink"
	pkgsink "github.com/jittakal/logship/pkg/sink"
)

var (
	// Version information (set during build)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// options are the flags shared by every output.
type options struct {
	logLevel string
	interval time.Duration
	batch    int
	count    int
	sources  []string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "loggen",
		Short:        "Fake log event generator",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	root.PersistentFlags().DurationVar(&opts.interval, "interval", 100*time.Millisecond, "Interval between batches")
	root.PersistentFlags().IntVar(&opts.batch, "batch", 10, "Events per batch")
	root.PersistentFlags().IntVar(&opts.count, "count", 0, "Total events to send, 0 runs until interrupted")
	root.PersistentFlags().StringSliceVar(&opts.sources, "sources", []string{"web", "api", "worker"}, "Event sources to pick from")

	root.AddCommand(newStdoutCommand(opts), newHTTPCommand(opts), newKafkaCommand(opts))
	return root
}

func newStdoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stdout",
		Short: "Write JSON lines to stdout, for piping into logshipd",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(opts, func(*slog.Logger) (pkgsink.Sink, error) {
				return sink.NewConsoleSink("stdout", cmd.OutOrStdout()), nil
			})
		},
	}
}

func newHTTPCommand(opts *options) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Send CloudEvents to an HTTP ingest endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(opts, func(logger *slog.Logger) (pkgsink.Sink, error) {
				return sink.NewCloudEventsSink(sink.CloudEventsConfig{Name: "http", Target: target}, nil, logger)
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", "http://localhost:8080/v1/logs", "Ingest URL")
	return cmd
}

func newKafkaCommand(opts *options) *cobra.Command {
	var (
		brokers  []string
		topic    string
		security kafka.SecurityConfig
	)

	cmd := &cobra.Command{
		Use:   "kafka",
		Short: "Produce JSON events to a Kafka topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(opts, func(logger *slog.Logger) (pkgsink.Sink, error) {
				return kafka.NewProducerSink(kafka.ProducerConfig{
					Name:             "kafka",
					BootstrapServers: brokers,
					Topic:            topic,
					ClientID:         "loggen",
					RequiredAcks:     "all",
					Compression:      "snappy",
					Idempotent:       true,
					RetryMax:         5,
					Security:         security,
				}, logger, nil)
			})
		},
	}
	cmd.Flags().StringSliceVar(&brokers, "brokers", []string{"localhost:9092"}, "Kafka bootstrap servers")
	cmd.Flags().StringVar(&topic, "topic", "logs", "Target topic")
	cmd.Flags().StringVar(&security.Protocol, "security-protocol", "PLAINTEXT", "PLAINTEXT, SSL, SASL_PLAINTEXT or SASL_SSL")
	cmd.Flags().StringVar(&security.SASLMechanism, "sasl-mechanism", "", "PLAIN, SCRAM-SHA-256, SCRAM-SHA-512 or AWS_MSK_IAM")
	cmd.Flags().StringVar(&security.SASLUsername, "sasl-username", getEnv("KAFKA_SASL_USERNAME", ""), "SASL username")
	cmd.Flags().StringVar(&security.SASLPassword, "sasl-password", getEnv("KAFKA_SASL_PASSWORD", ""), "SASL password")
	cmd.Flags().StringVar(&security.AWSRegion, "aws-region", getEnv("AWS_REGION", ""), "Region for AWS_MSK_IAM")
	return cmd
}

func (o *options) validate() error {
	if o.interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if o.batch <= 0 {
		return fmt.Errorf("batch must be positive")
	}
	if o.count < 0 {
		return fmt.Errorf("count cannot be negative")
	}
	return nil
}

func runWith(opts *options, newSink func(*slog.Logger) (pkgsink.Sink, error)) error {
	if err := opts.validate(); err != nil {
		return err
	}

	logger, err := initLogger(opts.logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting loggen",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("buildTime", buildTime),
	)

	gen, err := generator.New(generator.Config{Sources: opts.sources})
	if err != nil {
		return err
	}

	// Library components log through slog; keep them on stderr so stdout
	// carries only events.
	s, err := newSink(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	if err != nil {
		return fmt.Errorf("failed to create sink: %w", err)
	}
	em := newEmitter(s)
	defer em.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sent, failed := produceEvents(ctx, em, gen, opts, logger)
	logger.Info("Shutdown complete", zap.Int("sent", sent), zap.Int("failed", failed))
	return nil
}

// produceEvents emits a batch every interval until ctx is done or count events
// have been generated.
func produceEvents(ctx context.Context, em *emitter, gen *generator.Generator, opts *options, logger *zap.Logger) (sent, failed int) {
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for {
		n := opts.batch
		if opts.count > 0 {
			n = min(n, opts.count-sent-failed)
			if n <= 0 {
				return sent, failed
			}
		}

		res := em.emit(ctx, gen.Batch(n))
		sent += res.Sent
		failed += res.Failed
		if res.Err != nil {
			logger.Error("Failed to send batch",
				zap.Error(res.Err),
				zap.Int("sent", res.Sent),
				zap.Int("failed", res.Failed),
			)
		} else {
			logger.Debug("Sent batch", zap.Int("events", res.Sent))
		}

		select {
		case <-ctx.Done():
			logger.Info("Stopping event production")
			return sent, failed
		case <-ticker.C:
		}
	}
}

// initLogger initializes the zap logger based on the log level
func initLogger(level string) (*zap.Logger, error) {
	var config zap.Config

	switch strings.ToLower(level) {
	case "debug":
		config = zap.NewDevelopmentConfig()
	default:
		config = zap.NewProductionConfig()
		config.Level = parseLogLevel(level)
	}
	config.OutputPaths = []string{"stderr"}

	return config.Build()
}

// parseLogLevel parses the log level string
func parseLogLevel(level string) zap.AtomicLevel {
	switch strings.ToLower(level) {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
