package main

import (
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/chain-monitor/pkg/broadcast"
	"github.com/ava-labs/chain-monitor/pkg/scheduler"
	"github.com/ava-labs/chain-monitor/pkg/server"
	"github.com/ava-labs/chain-monitor/pkg/source"
)

// runFlags returns all CLI flags for the run command
func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
			Value:   false,
		},
		&cli.StringFlag{
			Name:    "instance",
			Usage:   "Name of this monitor instance, added to logs, metrics and exported events",
			EnvVars: []string{"INSTANCE"},
		},
		&cli.StringFlag{
			Name:    "listen",
			Aliases: []string{"l"},
			Usage:   "Address of the REST and WebSocket API",
			EnvVars: []string{"LISTEN"},
			Value:   ":8080",
		},
		&cli.StringFlag{
			Name:    "sources",
			Aliases: []string{"s"},
			Usage:   "Comma-separated explorer sources to poll",
			EnvVars: []string{"SOURCES"},
			Value:   joinIDs(source.DefaultSources),
		},
		&cli.StringFlag{
			Name:    "mirror-url",
			Usage:   "Base URL of another chain monitor whose /state is mirrored as a source",
			EnvVars: []string{"MIRROR_URL"},
		},
		&cli.StringFlag{
			Name:    "mirror-chains",
			Usage:   "Comma-separated chains taken from the mirrored monitor",
			EnvVars: []string{"MIRROR_CHAINS"},
			Value:   joinIDs(source.DefaultMirrorChains),
		},
		&cli.BoolFlag{
			Name:    "mirror-periodic-checks",
			Usage:   "Re-check mirrored chains on the staleness schedule, not only when behind",
			EnvVars: []string{"MIRROR_PERIODIC_CHECKS"},
			Value:   true,
		},
		&cli.StringSliceFlag{
			Name:    "evm-rpc",
			Usage:   "EVM JSON-RPC endpoint as chain=url, repeatable (e.g. avalanche=https://api.avax.network/ext/bc/C/rpc)",
			EnvVars: []string{"EVM_RPC"},
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Aliases: []string{"i"},
			Usage:   "Pause between polling cycles",
			EnvVars: []string{"POLL_INTERVAL"},
			Value:   scheduler.DefaultInterval,
		},
		&cli.DurationFlag{
			Name:    "cycle-timeout",
			Usage:   "Maximum time a polling cycle waits for its sources",
			EnvVars: []string{"CYCLE_TIMEOUT"},
			Value:   scheduler.DefaultCycleTimeout,
		},
		&cli.IntFlag{
			Name:    "subscriber-buffer",
			Usage:   "Per-subscriber queue length before the oldest updates are dropped",
			EnvVars: []string{"SUBSCRIBER_BUFFER"},
			Value:   broadcast.DefaultCapacity,
		},
		&cli.Int64Flag{
			Name:    "max-subscribers",
			Usage:   "Maximum concurrent WebSocket subscribers",
			EnvVars: []string{"MAX_SUBSCRIBERS"},
			Value:   server.DefaultMaxSubscribers,
		},
		&cli.DurationFlag{
			Name:    "http-timeout",
			Usage:   "Timeout of one explorer request",
			EnvVars: []string{"HTTP_TIMEOUT"},
			Value:   source.DefaultHTTPTimeout,
		},
		&cli.Float64Flag{
			Name:    "requests-per-second",
			Usage:   "Per-source outgoing request rate, 0 for unlimited",
			EnvVars: []string{"REQUESTS_PER_SECOND"},
			Value:   0,
		},
		&cli.StringFlag{
			Name:    "user-agent",
			Usage:   "User-Agent header sent to explorers",
			EnvVars: []string{"USER_AGENT"},
			Value:   source.DefaultUserAgent,
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Usage:   "Port for Prometheus metrics server",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.StringFlag{
			Name:    "environment",
			Usage:   "Deployment environment label for metrics",
			EnvVars: []string{"ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "Region label for metrics",
			EnvVars: []string{"REGION"},
		},
		&cli.StringFlag{
			Name:    "cloud-provider",
			Usage:   "Cloud provider label for metrics",
			EnvVars: []string{"CLOUD_PROVIDER"},
		},
		&cli.DurationFlag{
			Name:    "shutdown-timeout",
			Usage:   "Grace period for servers and the exporter on shutdown",
			EnvVars: []string{"SHUTDOWN_TIMEOUT"},
			Value:   5 * time.Second,
		},
	}
}

func joinIDs[T ~string](ids []T) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}
