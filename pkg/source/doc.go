// Package source implements the adapters that fetch chain tips from block
// explorers, peer monitors and EVM nodes.
package source
