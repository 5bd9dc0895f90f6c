package source

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ava-labs/coreth/plugin/evm/customethclient"
	"github.com/ava-labs/coreth/plugin/evm/customtypes"
	"github.com/ava-labs/coreth/rpc"
	"go.uber.org/zap"

	libevmtypes "github.com/ava-labs/libevm/core/types"

	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

var registerCustomTypesOnce sync.Once

// BlockReader is the part of an EVM client the RPC source needs.
// A nil number asks for the latest block.
type BlockReader interface {
	BlockByNumber(ctx context.Context, number *big.Int) (*libevmtypes.Block, error)
}

type evmEndpoint struct {
	reader BlockReader
	close  func()
}

// EVMRPC reads the latest block straight from EVM JSON-RPC nodes, one
// endpoint per chain.
type EVMRPC struct {
	base
	endpoints map[registry.ChainID]evmEndpoint
	metrics   *metrics.Metrics
}

var _ Source = (*EVMRPC)(nil)

// DialEVMRPC connects to one node per chain. HTTP endpoints connect lazily,
// so a node that is down only fails its own chain's fetches.
func DialEVMRPC(
	ctx context.Context,
	log *zap.SugaredLogger,
	urls map[registry.ChainID]string,
	m *metrics.Metrics,
	opts ...Option,
) (*EVMRPC, error) {
	registerCustomTypesOnce.Do(func() {
		customtypes.Register()
	})

	endpoints := make(map[registry.ChainID]evmEndpoint, len(urls))
	closeAll := func() {
		for _, ep := range endpoints {
			ep.close()
		}
	}
	for chain, url := range urls {
		c, err := rpc.DialContext(ctx, url)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("dial %s rpc: %w", chain, err)
		}
		endpoints[chain] = evmEndpoint{reader: customethclient.New(c), close: c.Close}
	}

	s, err := newEVMRPC(log, endpoints, m, opts...)
	if err != nil {
		closeAll()
		return nil, err
	}
	return s, nil
}

// NewEVMRPC builds the source from already connected readers.
func NewEVMRPC(log *zap.SugaredLogger, readers map[registry.ChainID]BlockReader, m *metrics.Metrics, opts ...Option) (*EVMRPC, error) {
	endpoints := make(map[registry.ChainID]evmEndpoint, len(readers))
	for chain, r := range readers {
		endpoints[chain] = evmEndpoint{reader: r, close: func() {}}
	}
	return newEVMRPC(log, endpoints, m, opts...)
}

func newEVMRPC(log *zap.SugaredLogger, endpoints map[registry.ChainID]evmEndpoint, m *metrics.Metrics, opts ...Option) (*EVMRPC, error) {
	chains := slices.Sorted(maps.Keys(endpoints))
	b, err := newBase(registry.EVMRPC, chains, log, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return &EVMRPC{base: b, endpoints: endpoints, metrics: m}, nil
}

func (s *EVMRPC) CheckUpdates(ctx context.Context, rec Recorder) error {
	return s.sweep(ctx, rec, s.fetch)
}

func (s *EVMRPC) fetch(ctx context.Context, chain registry.ChainID) (_ chainstate.ChainState, err error) {
	ep, ok := s.endpoints[chain]
	if !ok {
		return chainstate.ChainState{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}

	start := time.Now()
	defer func() {
		s.metrics.RecordFetch(s.id, err, time.Since(start).Seconds())
	}()

	block, err := ep.reader.BlockByNumber(ctx, nil)
	if err != nil {
		return chainstate.ChainState{}, fmt.Errorf("get latest block: %w", err)
	}
	if block == nil || block.Number() == nil {
		return chainstate.ChainState{}, ErrNoBlocks
	}
	if !block.Number().IsUint64() {
		return chainstate.ChainState{}, fmt.Errorf("block number %s overflows uint64", block.Number())
	}
	return newState(chain, block.Hash().Hex(), block.Number().Uint64())
}

// Close closes every node connection.
func (s *EVMRPC) Close() error {
	for _, ep := range s.endpoints {
		ep.close()
	}
	return nil
}

// ParseEVMEndpoints parses "chain=url" pairs as given on the command line.
func ParseEVMEndpoints(pairs []string) (map[registry.ChainID]string, error) {
	out := make(map[registry.ChainID]string, len(pairs))
	var errs []error
	for _, pair := range pairs {
		chainStr, url, ok := cutPair(pair)
		if !ok {
			errs = append(errs, fmt.Errorf("invalid endpoint %q: want chain=url", pair))
			continue
		}
		chain := registry.ChainID(chainStr)
		if _, known := registry.LookupChain(chain); !known {
			errs = append(errs, fmt.Errorf("invalid endpoint %q: unknown chain %q", pair, chainStr))
			continue
		}
		if _, dup := out[chain]; dup {
			errs = append(errs, fmt.Errorf("duplicate endpoint for chain %q", chainStr))
			continue
		}
		out[chain] = url
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}
