package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

type bitGoCoin struct {
	host   string
	symbol string
}

var bitGoCoins = map[registry.ChainID]bitGoCoin{
	registry.Bitcoin:            {host: "www.bitgo.com", symbol: "btc"},
	registry.BitcoinTestnet:     {host: "test.bitgo.com", symbol: "tbtc"},
	registry.BitcoinCash:        {host: "www.bitgo.com", symbol: "bch"},
	registry.BitcoinCashTestnet: {host: "test.bitgo.com", symbol: "tbch"},
	registry.Ethereum:           {host: "www.bitgo.com", symbol: "eth"},
}

type bitGoLatestBlock struct {
	ID     string     `json:"id"`
	Height jsonHeight `json:"height"`
}

// BitGo reads the public latest-block endpoint of the BitGo v2 API.
type BitGo struct {
	base
	http *httpClient
	opts options
}

var _ Source = (*BitGo)(nil)

func NewBitGo(log *zap.SugaredLogger, cfg HTTPConfig, m *metrics.Metrics, opts ...Option) (*BitGo, error) {
	o := buildOptions(opts)
	b, err := newBase(registry.BitGo, []registry.ChainID{
		registry.Bitcoin,
		registry.BitcoinTestnet,
		registry.BitcoinCash,
		registry.BitcoinCashTestnet,
		registry.Ethereum,
	}, log, o)
	if err != nil {
		return nil, err
	}
	return &BitGo{base: b, http: newHTTPClient(registry.BitGo, cfg, m), opts: o}, nil
}

func (s *BitGo) CheckUpdates(ctx context.Context, rec Recorder) error {
	return s.sweep(ctx, rec, s.fetch)
}

func (s *BitGo) fetch(ctx context.Context, chain registry.ChainID) (chainstate.ChainState, error) {
	coin, ok := bitGoCoins[chain]
	if !ok {
		return chainstate.ChainState{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}

	var body bitGoLatestBlock
	url := s.opts.urlFor(fmt.Sprintf("https://%s/api/v2/%s/public/block/latest", coin.host, coin.symbol))
	if err := s.http.getJSON(ctx, url, &body); err != nil {
		return chainstate.ChainState{}, err
	}
	return newState(chain, body.ID, uint64(body.Height))
}
