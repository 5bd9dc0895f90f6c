// Package chainstate aggregates the chain tips reported by every source.
//
// The Store keeps the latest state per (source, chain) and the best height
// per chain, and fans state changes out to subscribers through a
// broadcast.Broadcaster it owns.
package chainstate
