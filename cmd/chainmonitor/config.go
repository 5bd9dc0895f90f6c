package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/chain-monitor/pkg/export"
	"github.com/ava-labs/chain-monitor/pkg/registry"
	"github.com/ava-labs/chain-monitor/pkg/scheduler"
	"github.com/ava-labs/chain-monitor/pkg/server"
	"github.com/ava-labs/chain-monitor/pkg/source"
)

// Config holds all configuration for the chainmonitor application
type Config struct {
	// Application settings
	Verbose         bool
	Instance        string
	ShutdownTimeout time.Duration

	// Polling
	Sources          source.Config
	Scheduler        scheduler.Config
	SubscriberBuffer int

	// API
	Server server.Config

	// Kafka export, loaded from the environment
	Export export.Config

	// Metrics settings
	MetricsHost   string
	MetricsPort   int
	Environment   string
	Region        string
	CloudProvider string
}

// MetricsAddr returns the formatted metrics address
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// buildConfig builds a Config from CLI context flags and the export environment
func buildConfig(c *cli.Context, exportCfg export.Config) (*Config, error) {
	sources, err := source.ParseSourceIDs(c.String("sources"))
	if err != nil {
		return nil, fmt.Errorf("invalid sources: %w", err)
	}

	mirrorChains, err := parseChainIDs(c.String("mirror-chains"))
	if err != nil {
		return nil, fmt.Errorf("invalid mirror chains: %w", err)
	}

	evm, err := source.ParseEVMEndpoints(splitList(c.StringSlice("evm-rpc")))
	if err != nil {
		return nil, fmt.Errorf("invalid evm rpc endpoints: %w", err)
	}

	if err := exportCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid export config: %w", err)
	}

	shutdownTimeout := c.Duration("shutdown-timeout")
	if shutdownTimeout <= 0 {
		return nil, errors.New("shutdown-timeout must be > 0")
	}

	return &Config{
		Verbose:         c.Bool("verbose"),
		Instance:        c.String("instance"),
		ShutdownTimeout: shutdownTimeout,
		Sources: source.Config{
			Sources:              sources,
			MirrorURL:            strings.TrimRight(c.String("mirror-url"), "/"),
			MirrorChains:         mirrorChains,
			MirrorPeriodicChecks: c.Bool("mirror-periodic-checks"),
			EVMEndpoints:         evm,
			HTTP: source.HTTPConfig{
				Timeout:           c.Duration("http-timeout"),
				RequestsPerSecond: c.Float64("requests-per-second"),
				UserAgent:         c.String("user-agent"),
			},
		},
		Scheduler: scheduler.Config{
			Interval:     c.Duration("poll-interval"),
			CycleTimeout: c.Duration("cycle-timeout"),
		},
		SubscriberBuffer: c.Int("subscriber-buffer"),
		Server: server.Config{
			Addr:           c.String("listen"),
			MaxSubscribers: c.Int64("max-subscribers"),
		},
		Export:        exportCfg.WithDefaults(),
		MetricsHost:   c.String("metrics-host"),
		MetricsPort:   c.Int("metrics-port"),
		Environment:   c.String("environment"),
		Region:        c.String("region"),
		CloudProvider: c.String("cloud-provider"),
	}, nil
}

// parseChainIDs parses a comma-separated list of registered chain ids.
func parseChainIDs(list string) ([]registry.ChainID, error) {
	var out []registry.ChainID
	for _, raw := range strings.Split(list, ",") {
		id := registry.ChainID(strings.TrimSpace(raw))
		if id == "" {
			continue
		}
		if _, ok := registry.LookupChain(id); !ok {
			return nil, fmt.Errorf("unknown chain %q", id)
		}
		out = append(out, id)
	}
	return out, nil
}

// splitList flattens values that were passed as one comma-separated string,
// e.g. from an env var.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
