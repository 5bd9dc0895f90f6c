package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

var mempoolSpacePrefixes = map[registry.ChainID]string{
	registry.Bitcoin:        "",
	registry.BitcoinTestnet: "testnet/",
	registry.BitcoinSignet:  "signet/",
}

type mempoolSpaceBlock struct {
	ID     string `json:"id"`
	Height uint64 `json:"height"`
}

// MempoolSpace reads the newest block from the mempool.space block list.
type MempoolSpace struct {
	base
	http *httpClient
	opts options
}

var _ Source = (*MempoolSpace)(nil)

func NewMempoolSpace(log *zap.SugaredLogger, cfg HTTPConfig, m *metrics.Metrics, opts ...Option) (*MempoolSpace, error) {
	o := buildOptions(opts)
	b, err := newBase(registry.MempoolSpace, []registry.ChainID{
		registry.Bitcoin,
		registry.BitcoinTestnet,
		registry.BitcoinSignet,
	}, log, o)
	if err != nil {
		return nil, err
	}
	return &MempoolSpace{base: b, http: newHTTPClient(registry.MempoolSpace, cfg, m), opts: o}, nil
}

func (s *MempoolSpace) CheckUpdates(ctx context.Context, rec Recorder) error {
	return s.sweep(ctx, rec, s.fetch)
}

func (s *MempoolSpace) fetch(ctx context.Context, chain registry.ChainID) (chainstate.ChainState, error) {
	prefix, ok := mempoolSpacePrefixes[chain]
	if !ok {
		return chainstate.ChainState{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}

	var blocks []mempoolSpaceBlock
	url := s.opts.urlFor(fmt.Sprintf("https://mempool.space/%sapi/blocks/", prefix))
	if err := s.http.getJSON(ctx, url, &blocks); err != nil {
		return chainstate.ChainState{}, err
	}
	if len(blocks) == 0 {
		return chainstate.ChainState{}, ErrNoBlocks
	}
	return newState(chain, blocks[0].ID, blocks[0].Height)
}
