package source

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

// DefaultMirrorChains are the chains a peer monitor is mirrored for when no
// explicit list is configured: the ones only single-chain explorers cover.
var DefaultMirrorChains = []registry.ChainID{
	registry.Algorand,
	registry.Avalanche,
	registry.Casper,
	registry.Celo,
	registry.EthereumClassic,
	registry.Stacks,
	registry.Tezos,
}

// ChainMonitor mirrors the best states published by another monitor instance
// on its /state endpoint.
type ChainMonitor struct {
	base
	url     string
	http    *httpClient
	metrics *metrics.Metrics
}

var _ Source = (*ChainMonitor)(nil)

func NewChainMonitor(
	log *zap.SugaredLogger,
	url string,
	chains []registry.ChainID,
	cfg HTTPConfig,
	m *metrics.Metrics,
	opts ...Option,
) (*ChainMonitor, error) {
	url = strings.TrimRight(url, "/")
	if url == "" {
		return nil, errors.New("invalid mirror url: must not be empty")
	}
	if len(chains) == 0 {
		chains = DefaultMirrorChains
	}
	b, err := newBase(registry.ChainMonitor, chains, log, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return &ChainMonitor{
		base:    b,
		url:     url,
		http:    newHTTPClient(registry.ChainMonitor, cfg, m),
		metrics: m,
	}, nil
}

func (s *ChainMonitor) CheckUpdates(ctx context.Context, rec Recorder) error {
	return s.bulkSweep(ctx, rec, s.fetchAll)
}

func (s *ChainMonitor) fetchAll(ctx context.Context) (map[registry.ChainID]chainstate.ChainState, error) {
	var body map[string]chainstate.TimestampedChainState
	if err := s.http.getJSON(ctx, s.url+"/state", &body); err != nil {
		return nil, err
	}

	out := make(map[registry.ChainID]chainstate.ChainState, len(body))
	for ticker, st := range body {
		chain, ok := registry.ChainByTicker(ticker)
		if !ok {
			s.log.Debugw("unknown ticker ignored", "ticker", ticker, "url", s.url)
			s.metrics.IncError(metrics.ErrTypeUnknownTicker)
			continue
		}
		out[chain] = st.ChainState
	}
	return out, nil
}
