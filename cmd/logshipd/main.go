// Command logshipd runs the log shipping pipeline: it accepts events from
// stdin, Kafka and HTTP and delivers them to the configured transports.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jittakal/logship/internal/config"
	"github.com/jittakal/logship/internal/config/dto"
	"github.com/jittakal/logship/internal/observability"
	"github.com/jittakal/logship/internal/pipeline"
	"github.com/jittakal/logship/internal/server"
	"github.com/jittakal/logship/internal/source"
	"github.com/jittakal/logship/internal/validator"
	"github.com/jittakal/logship/pkg/event"
	pkgsource "github.com/jittakal/logship/pkg/source"
)

const defaultConfigPath = "config/application.yaml"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "logshipd",
		Short:         "Asynchronous log shipping daemon",
		Long:          "logshipd buffers log events and delivers them in chunks to console, file, CloudEvents, object storage and Kafka sinks.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to configuration file (defaults to $CONFIG_PATH, then "+defaultConfigPath+")")
	return cmd
}

// resolveConfigPath applies the priority CLI flag > CONFIG_PATH env var > default path.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return defaultConfigPath
}

func run(cfgPath string) error {
	cfg, err := config.NewLoader().Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:   cfg.Observability.Logging.Level,
		Format:  cfg.Observability.Logging.Format,
		Output:  cfg.Observability.Logging.Output,
		Service: cfg.Application.Name,
	})
	logger.Info("starting logshipd",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
		"transports", len(cfg.Transports),
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	cleanups := &cleanupStack{logger: logger}
	defer cleanups.run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &components{cfg: cfg, logger: logger, metrics: metrics, cleanups: cleanups}

	if err := c.newDLQ(); err != nil {
		return err
	}

	transports, err := c.newTransports(ctx)
	if err != nil {
		return fmt.Errorf("failed to create transports: %w", err)
	}

	minLevel, err := event.ParseLevel(cfg.Logger.MinLevel)
	if err != nil {
		return err
	}
	logs, err := pipeline.New(pipeline.Config{
		MinLevel:  minLevel,
		Validator: validator.NewEventValidator(cfg.Logger.MaxMessageBytes, cfg.Logger.MaxFields),
	}, transports, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	cleanups.add("pipeline", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.GracePeriod)
		defer cancel()
		return logs.Close(shutdownCtx)
	})

	if err := startServer(cfg, logs, registry, c); err != nil {
		return err
	}

	sources, err := c.newSources()
	if err != nil {
		return err
	}

	go logs.ReportGauges(ctx, 5*time.Second)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			return src.Run(gctx, logs)
		})
	}
	sourcesDone := make(chan error, 1)
	go func() {
		sourcesDone <- g.Wait()
	}()

	logger.Info("application started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received termination signal", "signal", sig.String())
	case err := <-sourcesDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("source failed", "error", err)
			return err
		}
		if len(sources) > 0 {
			logger.Info("all sources finished")
		} else {
			// Nothing to drain on our own; wait for a signal.
			sig := <-sigChan
			logger.Info("received termination signal", "signal", sig.String())
		}
	}

	logger.Info("initiating graceful shutdown", "grace_period", cfg.Shutdown.GracePeriod)
	cancel()
	cleanups.run()

	for name, s := range logs.Stats() {
		logger.Info("transport summary",
			"transport", name,
			"sent", s.Sent,
			"retried", s.Retried,
			"discarded", s.Discarded,
			"evicted", s.Evicted)
	}
	logger.Info("application stopped successfully")
	return nil
}

func startServer(cfg *dto.ApplicationConfig, logs *pipeline.Logger, registry *prometheus.Registry, c *components) error {
	obs := cfg.Observability

	var srvCfg server.Config
	if obs.Health.Enabled {
		srvCfg.HealthAddr = fmt.Sprintf(":%d", obs.Health.Port)
	}
	if obs.Metrics.Enabled {
		srvCfg.MetricsAddr = fmt.Sprintf(":%d", obs.Metrics.Port)
	}
	if srvCfg.HealthAddr == "" && srvCfg.MetricsAddr == "" {
		return nil
	}

	maxIngest, err := dto.ParseSize(obs.Health.MaxIngestBytes)
	if err != nil {
		return err
	}
	srvCfg.MaxIngestBytes = maxIngest

	var recorder pkgsource.Recorder
	if obs.Health.Ingest {
		recorder = logs
	}

	httpServer, err := server.NewServer(srvCfg, logs, recorder, registry, c.logger)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	c.cleanups.add("http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})
	return nil
}

// newSources builds the enabled sources. Their cleanups are registered last so
// they stop before the pipeline drains.
func (c *components) newSources() ([]pkgsource.Source, error) {
	var sources []pkgsource.Source

	if c.cfg.Sources.Stdin.Enabled {
		maxLine, err := dto.ParseSize(c.cfg.Sources.Stdin.MaxLineBytes)
		if err != nil {
			return nil, err
		}
		stdin := source.NewLineSource("stdin", os.Stdin, int(maxLine), c.logger)
		c.cleanups.add("stdin-source", stdin.Close)
		sources = append(sources, stdin)
	}

	if c.cfg.Kafka.Consumer.Enabled {
		consumer, err := c.newConsumer()
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer: %w", err)
		}
		c.cleanups.add("kafka-consumer", consumer.Close)
		sources = append(sources, consumer)
	}

	return sources, nil
}
