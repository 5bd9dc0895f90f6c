package source

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

const (
	// Hedera has no block height; heights are derived from consensus time
	// assuming one 5s record file since the start of open access.
	hederaEpoch        = 1596139200
	hederaRecordPeriod = 5
)

// Other is a catch-all of single-chain explorers.
type Other struct {
	base
	http *httpClient
	opts options
}

var _ Source = (*Other)(nil)

func NewOther(log *zap.SugaredLogger, cfg HTTPConfig, m *metrics.Metrics, opts ...Option) (*Other, error) {
	o := buildOptions(opts)
	b, err := newBase(registry.Other, []registry.ChainID{
		registry.Algorand,
		registry.Casper,
		registry.HederaHashgraph,
		registry.Stacks,
		registry.Tezos,
	}, log, o)
	if err != nil {
		return nil, err
	}
	return &Other{base: b, http: newHTTPClient(registry.Other, cfg, m), opts: o}, nil
}

func (s *Other) CheckUpdates(ctx context.Context, rec Recorder) error {
	return s.sweep(ctx, rec, s.fetch)
}

func (s *Other) fetch(ctx context.Context, chain registry.ChainID) (chainstate.ChainState, error) {
	switch chain {
	case registry.Algorand:
		return s.fetchAlgorand(ctx)
	case registry.Casper:
		return s.fetchCasper(ctx)
	case registry.HederaHashgraph:
		return s.fetchHedera(ctx)
	case registry.Stacks:
		return s.fetchStacks(ctx)
	case registry.Tezos:
		return s.fetchTezos(ctx)
	default:
		return chainstate.ChainState{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
}

func (s *Other) fetchAlgorand(ctx context.Context) (chainstate.ChainState, error) {
	var body struct {
		Blocks []struct {
			Hash  string     `json:"hash"`
			Round jsonHeight `json:"round"`
		} `json:"blocks"`
	}
	if err := s.http.getJSON(ctx, s.opts.urlFor("https://indexer.algoexplorerapi.io/v2/blocks?latest=1"), &body); err != nil {
		return chainstate.ChainState{}, err
	}
	if len(body.Blocks) == 0 {
		return chainstate.ChainState{}, ErrNoBlocks
	}
	return newState(registry.Algorand, body.Blocks[0].Hash, uint64(body.Blocks[0].Round))
}

func (s *Other) fetchCasper(ctx context.Context) (chainstate.ChainState, error) {
	var body struct {
		Data []struct {
			BlockHash string     `json:"blockHash"`
			Height    jsonHeight `json:"height"`
		} `json:"data"`
	}
	url := s.opts.urlFor("https://event-store-api-clarity-mainnet.make.services/blocks?page=1&limit=1&order_direction=DESC")
	if err := s.http.getJSON(ctx, url, &body); err != nil {
		return chainstate.ChainState{}, err
	}
	if len(body.Data) == 0 {
		return chainstate.ChainState{}, ErrNoBlocks
	}
	return newState(registry.Casper, body.Data[0].BlockHash, uint64(body.Data[0].Height))
}

func (s *Other) fetchHedera(ctx context.Context) (chainstate.ChainState, error) {
	var body struct {
		Transactions []struct {
			TransactionHash    string `json:"transaction_hash"`
			ConsensusTimestamp string `json:"consensus_timestamp"`
		} `json:"transactions"`
	}
	url := s.opts.urlFor("https://mainnet-public.mirrornode.hedera.com/api/v1/transactions?limit=1")
	if err := s.http.getJSON(ctx, url, &body); err != nil {
		return chainstate.ChainState{}, err
	}
	if len(body.Transactions) == 0 {
		return chainstate.ChainState{}, ErrNoBlocks
	}
	tx := body.Transactions[0]
	ts, err := strconv.ParseFloat(tx.ConsensusTimestamp, 64)
	if err != nil {
		return chainstate.ChainState{}, fmt.Errorf("parse consensus timestamp %q: %w", tx.ConsensusTimestamp, err)
	}
	if ts < hederaEpoch {
		return chainstate.ChainState{}, fmt.Errorf("consensus timestamp %q before %d", tx.ConsensusTimestamp, hederaEpoch)
	}
	return newState(registry.HederaHashgraph, tx.TransactionHash, uint64((ts-hederaEpoch)/hederaRecordPeriod))
}

func (s *Other) fetchStacks(ctx context.Context) (chainstate.ChainState, error) {
	var body struct {
		Results []struct {
			Hash   string     `json:"hash"`
			Height jsonHeight `json:"height"`
		} `json:"results"`
	}
	url := s.opts.urlFor("https://stacks-node-api.stacks.co/extended/v1/block?limit=1&offset=0&unanchored=true")
	if err := s.http.getJSON(ctx, url, &body); err != nil {
		return chainstate.ChainState{}, err
	}
	if len(body.Results) == 0 {
		return chainstate.ChainState{}, ErrNoBlocks
	}
	return newState(registry.Stacks, body.Results[0].Hash, uint64(body.Results[0].Height))
}

func (s *Other) fetchTezos(ctx context.Context) (chainstate.ChainState, error) {
	var body struct {
		BlockHash string     `json:"block_hash"`
		Height    jsonHeight `json:"height"`
	}
	if err := s.http.getJSON(ctx, s.opts.urlFor("https://api.tzstats.com/explorer/tip"), &body); err != nil {
		return chainstate.ChainState{}, err
	}
	return newState(registry.Tezos, body.BlockHash, uint64(body.Height))
}
