package server

import (
	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

const (
	messageTypeInit   = "init"
	messageTypeUpdate = "update"
)

// initMessage is the first message of every stream: what the monitor tracks.
type initMessage struct {
	Type    string                `json:"type"`
	Sources []registry.SourceInfo `json:"sources"`
	Chains  []registry.ChainInfo  `json:"chains"`
}

// updateMessage carries one (source, chain) state.
type updateMessage struct {
	Type      string            `json:"type"`
	Source    registry.SourceID `json:"source"`
	Chain     registry.ChainID  `json:"chain"`
	FirstSeen uint64            `json:"firstSeenTs"`
	Hash      string            `json:"hash"`
	Height    uint64            `json:"height"`
}

func newInitMessage(c *registry.Catalog) initMessage {
	return initMessage{
		Type:    messageTypeInit,
		Sources: c.Sources(),
		Chains:  c.Chains(),
	}
}

func newUpdateMessage(ev chainstate.Event) updateMessage {
	return updateMessage{
		Type:      messageTypeUpdate,
		Source:    ev.Source,
		Chain:     ev.Chain,
		FirstSeen: ev.State.FirstSeen,
		Hash:      ev.State.Hash,
		Height:    ev.State.Height,
	}
}
