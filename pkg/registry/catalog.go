package registry

import (
	"cmp"
	"slices"
)

// SourceInfo describes a registered source for client init payloads.
type SourceInfo struct {
	ID        SourceID `json:"id"`
	URL       string   `json:"url"`
	ShortName string   `json:"shortName"`
	FullName  string   `json:"fullName"`
}

// ChainInfo describes a registered chain for client init payloads.
type ChainInfo struct {
	ID            ChainID     `json:"id"`
	Ticker        string      `json:"ticker"`
	ShortName     string      `json:"shortName"`
	FullName      string      `json:"fullName"`
	BlockTimeSecs uint32      `json:"blockTimeSecs"`
	NetworkType   NetworkType `json:"networkType"`
}

// Catalog is the append-only set of sources and chains that are active in this
// process, kept sorted by id. It is populated once at startup and read-only
// afterwards, so it carries no lock.
type Catalog struct {
	sources []SourceInfo
	chains  []ChainInfo
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// AddSource registers a source. Adding the same id twice is a no-op.
func (c *Catalog) AddSource(id SourceID) {
	pos, found := slices.BinarySearchFunc(c.sources, id, func(s SourceInfo, id SourceID) int {
		return cmp.Compare(s.ID, id)
	})
	if found {
		return
	}
	c.sources = slices.Insert(c.sources, pos, SourceInfo{
		ID:        id,
		URL:       id.URL(),
		ShortName: id.ShortName(),
		FullName:  id.FullName(),
	})
}

// AddChain registers a chain. Adding the same id twice is a no-op.
func (c *Catalog) AddChain(id ChainID) {
	pos, found := slices.BinarySearchFunc(c.chains, id, func(ch ChainInfo, id ChainID) int {
		return cmp.Compare(ch.ID, id)
	})
	if found {
		return
	}
	c.chains = slices.Insert(c.chains, pos, ChainInfo{
		ID:            id,
		Ticker:        id.Ticker(),
		ShortName:     id.ShortName(),
		FullName:      id.FullName(),
		BlockTimeSecs: uint32(id.BlockTime().Seconds()),
		NetworkType:   id.NetworkType(),
	})
}

func (c *Catalog) AddSources(ids []SourceID) {
	for _, id := range ids {
		c.AddSource(id)
	}
}

func (c *Catalog) AddChains(ids []ChainID) {
	for _, id := range ids {
		c.AddChain(id)
	}
}

// Sources returns a copy of the registered sources, sorted by id.
func (c *Catalog) Sources() []SourceInfo {
	return slices.Clone(c.sources)
}

// Chains returns a copy of the registered chains, sorted by id.
func (c *Catalog) Chains() []ChainInfo {
	return slices.Clone(c.chains)
}
