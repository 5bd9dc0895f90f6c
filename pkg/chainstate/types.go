package chainstate

import "github.com/ava-labs/chain-monitor/pkg/registry"

// ChainState is the tip of a chain as reported by one source.
type ChainState struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
}

// TimestampedChainState carries the unix-second timestamps of when the state
// was first reported and when it was last confirmed. FirstSeen <= LastChecked.
type TimestampedChainState struct {
	ChainState
	FirstSeen   uint64 `json:"firstSeenTs"`
	LastChecked uint64 `json:"lastCheckedTs"`
}

// Key identifies the state reported by one source for one chain.
type Key struct {
	Source registry.SourceID
	Chain  registry.ChainID
}

// Event is published whenever a source reports a new state for a chain.
type Event struct {
	Source registry.SourceID
	Chain  registry.ChainID
	State  TimestampedChainState
}
