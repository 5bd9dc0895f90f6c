package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/ratelimiter"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

// DefaultSources are the explorer adapters enabled when none are selected.
var DefaultSources = []registry.SourceID{
	registry.BitGo,
	registry.BlockCypher,
	registry.Blockchain,
	registry.Blockchair,
	registry.MempoolSpace,
	registry.Other,
}

// Config selects and configures the sources of a monitor.
type Config struct {
	Sources []registry.SourceID

	MirrorURL            string
	MirrorChains         []registry.ChainID
	MirrorPeriodicChecks bool

	EVMEndpoints map[registry.ChainID]string

	HTTP HTTPConfig
}

// Build creates the configured sources. Sources holding connections
// implement io.Closer.
func Build(ctx context.Context, log *zap.SugaredLogger, cfg Config, m *metrics.Metrics) ([]Source, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}

	var out []Source
	for _, id := range cfg.Sources {
		s, err := newExplorer(id, log, cfg.HTTP, m)
		if err != nil {
			CloseAll(out)
			return nil, err
		}
		out = append(out, s)
	}

	if cfg.MirrorURL != "" {
		var opts []Option
		if !cfg.MirrorPeriodicChecks {
			opts = append(opts, WithLimiterOptions(ratelimiter.WithoutPeriodicChecks()))
		}
		s, err := NewChainMonitor(log, cfg.MirrorURL, cfg.MirrorChains, cfg.HTTP, m, opts...)
		if err != nil {
			CloseAll(out)
			return nil, err
		}
		out = append(out, s)
	}

	if len(cfg.EVMEndpoints) > 0 {
		s, err := DialEVMRPC(ctx, log, cfg.EVMEndpoints, m)
		if err != nil {
			CloseAll(out)
			return nil, err
		}
		out = append(out, s)
	}

	if len(out) == 0 {
		return nil, errors.New("no sources configured")
	}
	return out, nil
}

func newExplorer(id registry.SourceID, log *zap.SugaredLogger, cfg HTTPConfig, m *metrics.Metrics) (Source, error) {
	switch id {
	case registry.BitGo:
		return NewBitGo(log, cfg, m)
	case registry.BlockCypher:
		return NewBlockCypher(log, cfg, m)
	case registry.Blockchain:
		return NewBlockchain(log, cfg, m)
	case registry.Blockchair:
		return NewBlockchair(log, cfg, m)
	case registry.MempoolSpace:
		return NewMempoolSpace(log, cfg, m)
	case registry.Other:
		return NewOther(log, cfg, m)
	case registry.ChainMonitor, registry.EVMRPC:
		return nil, fmt.Errorf("source %q is configured by its own flags", id)
	default:
		return nil, fmt.Errorf("unknown source %q", id)
	}
}

// CloseAll closes every source that holds connections.
func CloseAll(sources []Source) {
	for _, s := range sources {
		if c, ok := s.(io.Closer); ok {
			c.Close() //nolint:errcheck // best-effort cleanup
		}
	}
}

// Catalog lists every chain and source the given sources can report, for
// the registry info sent to subscribers.
func Catalog(sources []Source) *registry.Catalog {
	c := registry.NewCatalog()
	for _, s := range sources {
		c.AddSources(s.SupportedSources())
		c.AddChains(s.SupportedChains())
	}
	return c
}
