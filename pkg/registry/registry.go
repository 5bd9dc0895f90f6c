// Package registry is the static catalog of chains and sources known to the monitor.
//
// Every chain and source is described by a row in a data table built at package
// initialization. Adding a chain is a data-only change: add a constant and a row.
package registry

import (
	"slices"
	"time"
)

type (
	ChainID     string
	SourceID    string
	NetworkType string
)

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
	Signet  NetworkType = "signet"
)

// ChainMeta holds the display metadata of a chain.
type ChainMeta struct {
	Ticker    string
	ShortName string
	FullName  string
	BlockTime time.Duration // estimated average interval between blocks
	Network   NetworkType
}

// SourceMeta holds the display metadata of a data provider.
type SourceMeta struct {
	ShortName string
	FullName  string
	URL       string
}

// LookupChain returns the metadata row for id.
func LookupChain(id ChainID) (ChainMeta, bool) {
	m, ok := chains[id]
	return m, ok
}

// LookupSource returns the metadata row for id.
func LookupSource(id SourceID) (SourceMeta, bool) {
	m, ok := sources[id]
	return m, ok
}

// ChainByTicker maps a ticker (as published on /state) back to its chain.
func ChainByTicker(ticker string) (ChainID, bool) {
	id, ok := chainsByTicker[ticker]
	return id, ok
}

// AllChains returns every known chain id in ascending order.
func AllChains() []ChainID {
	out := make([]ChainID, 0, len(chains))
	for id := range chains {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// AllSources returns every known source id in ascending order.
func AllSources() []SourceID {
	out := make([]SourceID, 0, len(sources))
	for id := range sources {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Unknown ids fall back to the raw id for names so that logs stay readable.

func (c ChainID) Ticker() string {
	if m, ok := chains[c]; ok {
		return m.Ticker
	}
	return string(c)
}

func (c ChainID) ShortName() string {
	if m, ok := chains[c]; ok {
		return m.ShortName
	}
	return string(c)
}

func (c ChainID) FullName() string {
	if m, ok := chains[c]; ok {
		return m.FullName
	}
	return string(c)
}

// BlockTime returns the estimated block interval, or 0 for unknown chains.
func (c ChainID) BlockTime() time.Duration {
	return chains[c].BlockTime
}

func (c ChainID) NetworkType() NetworkType {
	if m, ok := chains[c]; ok {
		return m.Network
	}
	return Mainnet
}

func (s SourceID) ShortName() string {
	if m, ok := sources[s]; ok {
		return m.ShortName
	}
	return string(s)
}

func (s SourceID) FullName() string {
	if m, ok := sources[s]; ok {
		return m.FullName
	}
	return string(s)
}

func (s SourceID) URL() string {
	return sources[s].URL
}
