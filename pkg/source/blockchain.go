package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

var blockchainSymbols = map[registry.ChainID]string{
	registry.Bitcoin:            "btc",
	registry.BitcoinCash:        "bch",
	registry.Ethereum:           "eth",
	registry.BitcoinTestnet:     "btc-testnet",
	registry.BitcoinCashTestnet: "bch-testnet",
}

type blockchainBestBlock struct {
	Hash   string     `json:"hash"`
	Height jsonHeight `json:"height"`
}

type blockchainBlockHeaders struct {
	BlockHeaders []struct {
		Hash   string     `json:"hash"`
		Number jsonHeight `json:"number"`
	} `json:"blockHeaders"`
}

// Blockchain reads Blockchain.com: the haskoin store for UTXO chains and the
// v2 data API for Ethereum.
type Blockchain struct {
	base
	http *httpClient
	opts options
}

var _ Source = (*Blockchain)(nil)

func NewBlockchain(log *zap.SugaredLogger, cfg HTTPConfig, m *metrics.Metrics, opts ...Option) (*Blockchain, error) {
	o := buildOptions(opts)
	b, err := newBase(registry.Blockchain, []registry.ChainID{
		registry.Bitcoin,
		registry.BitcoinCash,
		registry.Ethereum,
		registry.BitcoinTestnet,
		registry.BitcoinCashTestnet,
	}, log, o)
	if err != nil {
		return nil, err
	}
	return &Blockchain{base: b, http: newHTTPClient(registry.Blockchain, cfg, m), opts: o}, nil
}

func (s *Blockchain) CheckUpdates(ctx context.Context, rec Recorder) error {
	return s.sweep(ctx, rec, s.fetch)
}

func (s *Blockchain) fetch(ctx context.Context, chain registry.ChainID) (chainstate.ChainState, error) {
	symbol, ok := blockchainSymbols[chain]
	if !ok {
		return chainstate.ChainState{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
	if chain == registry.Ethereum {
		return s.fetchV2(ctx, chain, symbol)
	}

	var body blockchainBestBlock
	url := s.opts.urlFor(fmt.Sprintf("https://api.blockchain.info/haskoin-store/%s/block/best?notx=true", symbol))
	if err := s.http.getJSON(ctx, url, &body); err != nil {
		return chainstate.ChainState{}, err
	}
	return newState(chain, body.Hash, uint64(body.Height))
}

func (s *Blockchain) fetchV2(ctx context.Context, chain registry.ChainID, symbol string) (chainstate.ChainState, error) {
	var body blockchainBlockHeaders
	url := s.opts.urlFor(fmt.Sprintf("https://api.blockchain.info/v2/%s/data/blocks?size=1", symbol))
	if err := s.http.getJSON(ctx, url, &body); err != nil {
		return chainstate.ChainState{}, err
	}
	if len(body.BlockHeaders) == 0 {
		return chainstate.ChainState{}, ErrNoBlocks
	}
	head := body.BlockHeaders[0]
	return newState(chain, head.Hash, uint64(head.Number))
}
