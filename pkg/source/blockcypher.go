package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

var blockCypherPaths = map[registry.ChainID]string{
	registry.Bitcoin:        "btc/main",
	registry.Litecoin:       "ltc/main",
	registry.Dash:           "dash/main",
	registry.Doge:           "doge/main",
	registry.BitcoinTestnet: "btc/test3",
}

type blockCypherChain struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
}

// BlockCypher reads the chain endpoint of the BlockCypher v1 API.
type BlockCypher struct {
	base
	http *httpClient
	opts options
}

var _ Source = (*BlockCypher)(nil)

func NewBlockCypher(log *zap.SugaredLogger, cfg HTTPConfig, m *metrics.Metrics, opts ...Option) (*BlockCypher, error) {
	o := buildOptions(opts)
	b, err := newBase(registry.BlockCypher, []registry.ChainID{
		registry.Bitcoin,
		registry.Litecoin,
		registry.Dash,
		registry.Doge,
		registry.BitcoinTestnet,
	}, log, o)
	if err != nil {
		return nil, err
	}
	return &BlockCypher{base: b, http: newHTTPClient(registry.BlockCypher, cfg, m), opts: o}, nil
}

func (s *BlockCypher) CheckUpdates(ctx context.Context, rec Recorder) error {
	return s.sweep(ctx, rec, s.fetch)
}

func (s *BlockCypher) fetch(ctx context.Context, chain registry.ChainID) (chainstate.ChainState, error) {
	path, ok := blockCypherPaths[chain]
	if !ok {
		return chainstate.ChainState{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}

	var body blockCypherChain
	if err := s.http.getJSON(ctx, s.opts.urlFor("https://api.blockcypher.com/v1/"+path), &body); err != nil {
		return chainstate.ChainState{}, err
	}
	return newState(chain, body.Hash, body.Height)
}
