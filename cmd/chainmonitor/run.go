package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/export"
	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/scheduler"
	"github.com/ava-labs/chain-monitor/pkg/server"
	"github.com/ava-labs/chain-monitor/pkg/source"
	"github.com/ava-labs/chain-monitor/pkg/utils"
)

func run(c *cli.Context) error {
	cfg, err := buildConfig(c, export.LoadConfig())
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose, cfg.Instance)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"listen", cfg.Server.Addr,
		"sources", cfg.Sources.Sources,
		"mirrorURL", cfg.Sources.MirrorURL,
		"mirrorChains", cfg.Sources.MirrorChains,
		"mirrorPeriodicChecks", cfg.Sources.MirrorPeriodicChecks,
		"evmChains", len(cfg.Sources.EVMEndpoints),
		"pollInterval", cfg.Scheduler.Interval,
		"cycleTimeout", cfg.Scheduler.CycleTimeout,
		"subscriberBuffer", cfg.SubscriberBuffer,
		"maxSubscribers", cfg.Server.MaxSubscribers,
		"httpTimeout", cfg.Sources.HTTP.Timeout,
		"requestsPerSecond", cfg.Sources.HTTP.RequestsPerSecond,
		"exportEnabled", cfg.Export.Enabled,
		"exportTopic", cfg.Export.Topic,
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
		"environment", cfg.Environment,
		"region", cfg.Region,
		"cloudProvider", cfg.CloudProvider,
	)

	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metrics.Labels{
		Instance:      cfg.Instance,
		Environment:   cfg.Environment,
		Region:        cfg.Region,
		CloudProvider: cfg.CloudProvider,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := chainstate.New(sugar,
		chainstate.WithMetrics(m),
		chainstate.WithSubscriberBuffer(cfg.SubscriberBuffer),
	)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	sources, err := source.Build(ctx, sugar, cfg.Sources, m)
	if err != nil {
		return fmt.Errorf("failed to build sources: %w", err)
	}
	defer source.CloseAll(sources)

	sched, err := scheduler.New(sugar, sources, store, cfg.Scheduler, m)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	api, err := server.New(sugar, store, source.Catalog(sources), cfg.Server, m)
	if err != nil {
		return fmt.Errorf("failed to create api server: %w", err)
	}

	var exporter *export.Exporter
	var publisher *export.KafkaPublisher
	if cfg.Export.Enabled {
		publisher, err = setupExport(ctx, sugar, cfg.Export)
		if err != nil {
			return err
		}
		defer publisher.Close(cfg.Export.FlushTimeout)

		exporter, err = export.NewExporter(sugar, store, publisher, cfg.Export, cfg.Instance, m)
		if err != nil {
			return fmt.Errorf("failed to create exporter: %w", err)
		}
	}

	metricsServer := metrics.NewServer(cfg.MetricsAddr(), registry, sched.Ready)
	metricsErrCh := metricsServer.Start()
	if cfg.MetricsHost == "" {
		sugar.Infof("metrics server listening on http://0.0.0.0:%d/metrics", cfg.MetricsPort)
	} else {
		sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())
	}
	apiErrCh := api.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		return waitServer(gctx, "metrics server", metricsErrCh)
	})
	g.Go(func() error {
		return waitServer(gctx, "api server", apiErrCh)
	})
	if exporter != nil {
		g.Go(func() error {
			return exporter.Run(gctx)
		})
	}
	// Servers only return on failure, so stop them once any task ends.
	g.Go(func() error {
		<-gctx.Done()
		shutdown(sugar, cfg, api, metricsServer)
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		sugar.Infow("exiting due to context cancellation")
		err = nil
	} else if err != nil {
		sugar.Errorw("run failed", "error", err)
	}

	sugar.Info("shutdown complete")
	return err
}

// setupExport bootstraps the export topic and connects the publisher.
func setupExport(ctx context.Context, sugar *zap.SugaredLogger, cfg export.Config) (*export.KafkaPublisher, error) {
	admin, err := confluentKafka.NewAdminClient(cfg.AdminConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka admin client: %w", err)
	}
	defer admin.Close()

	if err := export.EnsureTopic(ctx, admin, cfg.TopicConfig(), sugar); err != nil {
		return nil, fmt.Errorf("failed to ensure kafka topic exists: %w", err)
	}

	publisher, err := export.NewKafkaPublisher(ctx, cfg.ProducerConfig(), sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	return publisher, nil
}

func waitServer(ctx context.Context, name string, errCh <-chan error) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s failed: %w", name, err)
		}
		return nil
	}
}

func shutdown(sugar *zap.SugaredLogger, cfg *Config, api *server.Server, metricsServer *metrics.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	sugar.Info("shutting down api server")
	if err := api.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("api server shutdown error", "error", err)
	}
	sugar.Info("shutting down metrics server")
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("metrics server shutdown error", "error", err)
	}
}
