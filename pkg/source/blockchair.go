package source

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

type blockchairCoin struct {
	Data struct {
		BestBlockHeight jsonHeight `json:"best_block_height"`
		BestBlockHash   string     `json:"best_block_hash"`
	} `json:"data"`
}

type blockchairHomepage struct {
	Data struct {
		Stats struct {
			Data map[string]blockchairCoin `json:"data"`
		} `json:"stats"`
	} `json:"data"`
}

var blockchairKeys = map[registry.ChainID]string{
	registry.Bitcoin:     "bitcoin",
	registry.BitcoinCash: "bitcoin-cash",
	registry.Ethereum:    "ethereum",
}

// Blockchair reads all its chains from one homepage stats call.
type Blockchair struct {
	base
	http *httpClient
	opts options
}

var _ Source = (*Blockchair)(nil)

func NewBlockchair(log *zap.SugaredLogger, cfg HTTPConfig, m *metrics.Metrics, opts ...Option) (*Blockchair, error) {
	o := buildOptions(opts)
	b, err := newBase(registry.Blockchair, []registry.ChainID{
		registry.Bitcoin,
		registry.BitcoinCash,
		registry.Ethereum,
	}, log, o)
	if err != nil {
		return nil, err
	}
	return &Blockchair{base: b, http: newHTTPClient(registry.Blockchair, cfg, m), opts: o}, nil
}

func (s *Blockchair) CheckUpdates(ctx context.Context, rec Recorder) error {
	return s.bulkSweep(ctx, rec, s.fetchAll)
}

func (s *Blockchair) fetchAll(ctx context.Context) (map[registry.ChainID]chainstate.ChainState, error) {
	var body blockchairHomepage
	if err := s.http.getJSON(ctx, s.opts.urlFor("https://api.blockchair.com/internal/homepage/en"), &body); err != nil {
		return nil, err
	}

	out := make(map[registry.ChainID]chainstate.ChainState, len(blockchairKeys))
	var errs []error
	for chain, key := range blockchairKeys {
		coin, ok := body.Data.Stats.Data[key]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingField, key))
			continue
		}
		state, err := newState(chain, coin.Data.BestBlockHash, uint64(coin.Data.BestBlockHeight))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		out[chain] = state
	}
	if len(out) == 0 {
		return nil, errors.Join(errs...)
	}
	if len(errs) > 0 {
		s.log.Warnw("partial blockchair response", "error", errors.Join(errs...))
	}
	return out, nil
}
