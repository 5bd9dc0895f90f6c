package source

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/ratelimiter"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

var (
	ErrUnsupportedChain = errors.New("unsupported chain")
	ErrNoBlocks         = errors.New("no blocks in response")
	ErrMissingField     = errors.New("missing field in response")
)

// Recorder receives the chain states fetched by a source.
type Recorder interface {
	Update(source registry.SourceID, chain registry.ChainID, state chainstate.ChainState) bool
	HowFarBehind(source registry.SourceID, chain registry.ChainID) uint64
}

// Source fetches chain tips from one provider.
type Source interface {
	ID() registry.SourceID
	SupportedChains() []registry.ChainID
	SupportedSources() []registry.SourceID
	// CheckUpdates fetches every chain that is due and records the results.
	// Per-chain failures are logged and skipped; only a cancelled ctx is returned.
	CheckUpdates(ctx context.Context, rec Recorder) error
}

type fetchFunc func(ctx context.Context, chain registry.ChainID) (chainstate.ChainState, error)

// base carries what every adapter shares: identity, supported chains, the
// per-chain limiter and the sweep over due chains.
type base struct {
	id      registry.SourceID
	chains  []registry.ChainID
	log     *zap.SugaredLogger
	limiter *ratelimiter.Limiter
}

func newBase(id registry.SourceID, chains []registry.ChainID, log *zap.SugaredLogger, o options) (base, error) {
	if log == nil {
		return base{}, errors.New("invalid logger: must not be nil")
	}
	if len(chains) == 0 {
		return base{}, fmt.Errorf("source %s: no chains configured", id)
	}
	return base{
		id:      id,
		chains:  chains,
		log:     log.With("source", id),
		limiter: ratelimiter.New(id, o.limiterOpts...),
	}, nil
}

func (b *base) ID() registry.SourceID { return b.id }

func (b *base) SupportedChains() []registry.ChainID { return slices.Clone(b.chains) }

func (b *base) SupportedSources() []registry.SourceID { return []registry.SourceID{b.id} }

// sweep visits the supported chains in random order so every chain gets a
// chance even when a provider throttles, and fetches the ones that are due.
func (b *base) sweep(ctx context.Context, rec Recorder, fetch fetchFunc) error {
	chains := slices.Clone(b.chains)
	rand.Shuffle(len(chains), func(i, j int) { chains[i], chains[j] = chains[j], chains[i] })

	for _, chain := range chains {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !b.limiter.ShouldCheck(chain, rec) {
			continue
		}
		state, err := fetch(ctx, chain)
		if err != nil {
			b.log.Warnw("could not get chain state",
				"chain", chain,
				"error", err,
			)
			continue
		}
		rec.Update(b.id, chain, state)
	}
	return nil
}

type fetchAllFunc func(ctx context.Context) (map[registry.ChainID]chainstate.ChainState, error)

// bulkSweep serves providers that return every chain in one response: a
// single fetch is made when at least one supported chain is due, and every
// supported chain in the response is recorded.
func (b *base) bulkSweep(ctx context.Context, rec Recorder, fetchAll fetchAllFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	due := false
	for _, chain := range b.chains {
		// Every chain is asked so each limiter entry is refreshed.
		if b.limiter.ShouldCheck(chain, rec) {
			due = true
		}
	}
	if !due {
		return nil
	}

	states, err := fetchAll(ctx)
	if err != nil {
		b.log.Warnw("could not get chain states", "error", err)
		return nil
	}
	for _, chain := range b.chains {
		if state, ok := states[chain]; ok {
			rec.Update(b.id, chain, state)
		}
	}
	return nil
}

// ParseSourceIDs parses a comma separated list of source ids.
func ParseSourceIDs(list string) ([]registry.SourceID, error) {
	var out []registry.SourceID
	for _, raw := range strings.Split(list, ",") {
		id := registry.SourceID(strings.TrimSpace(raw))
		if id == "" {
			continue
		}
		if _, ok := registry.LookupSource(id); !ok {
			return nil, fmt.Errorf("unknown source %q", id)
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out, nil
}
