package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/registry"
	"github.com/ava-labs/chain-monitor/pkg/utils"
)

// Chains whose block hashes are 32-byte double-SHA256 digests.
var sha256dChains = map[registry.ChainID]struct{}{
	registry.Bitcoin:            {},
	registry.BitcoinTestnet:     {},
	registry.BitcoinSignet:      {},
	registry.BitcoinCash:        {},
	registry.BitcoinCashTestnet: {},
	registry.BitcoinSV:          {},
	registry.ECash:              {},
	registry.Litecoin:           {},
	registry.LitecoinTestnet:    {},
	registry.Dash:               {},
	registry.DashTestnet:        {},
	registry.Doge:               {},
	registry.ZCash:              {},
	registry.Groestlcoin:        {},
}

// newState builds a ChainState from a hash and height reported by an
// explorer, canonicalizing the hash so every source agrees on its spelling.
func newState(chain registry.ChainID, hash string, height uint64) (chainstate.ChainState, error) {
	if _, ok := sha256dChains[chain]; ok {
		hash = strings.TrimSpace(hash)
		if hash == "" {
			return chainstate.ChainState{}, utils.ErrEmptyHash
		}
		// NewHashFromStr zero-pads short input.
		if len(hash) != chainhash.MaxHashStringSize {
			return chainstate.ChainState{}, fmt.Errorf("invalid %s block hash %q: want %d hex characters",
				chain, hash, chainhash.MaxHashStringSize)
		}
		h, err := chainhash.NewHashFromStr(hash)
		if err != nil {
			return chainstate.ChainState{}, fmt.Errorf("invalid %s block hash %q: %w", chain, hash, err)
		}
		return chainstate.ChainState{Hash: h.String(), Height: height}, nil
	}

	normalized, err := utils.NormalizeHash(hash)
	if err != nil {
		return chainstate.ChainState{}, err
	}
	return chainstate.ChainState{Hash: normalized, Height: height}, nil
}

// jsonHeight decodes a block height sent either as a JSON number or as a
// decimal or 0x-hex string.
type jsonHeight uint64

func (h *jsonHeight) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if raw == "null" {
		return fmt.Errorf("%w: height", ErrMissingField)
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	v, err := utils.ParseHeight(raw)
	if err != nil {
		return err
	}
	*h = jsonHeight(v)
	return nil
}
