// Package ratelimiter decides, per source and chain, whether a chain is due for a re-check.
package ratelimiter

import (
	"sync"
	"time"

	"github.com/ava-labs/chain-monitor/pkg/registry"
)

// MinStaleAfter is the floor of the staleness threshold.
const MinStaleAfter = 45 * time.Second

// Behind reports how many blocks a source lags the best known height of a chain.
type Behind interface {
	HowFarBehind(source registry.SourceID, chain registry.ChainID) uint64
}

type Option func(*Limiter)

// WithoutPeriodicChecks disables staleness-driven checks. Chains are then only
// re-checked when the source is behind, or on their very first check.
func WithoutPeriodicChecks() Option {
	return func(l *Limiter) { l.periodic = false }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// Limiter is owned by exactly one source and is safe for concurrent use.
type Limiter struct {
	source   registry.SourceID
	periodic bool
	now      func() time.Time

	mu          sync.Mutex
	lastChecked map[registry.ChainID]time.Time
}

func New(source registry.SourceID, opts ...Option) *Limiter {
	l := &Limiter{
		source:      source,
		periodic:    true,
		now:         time.Now,
		lastChecked: make(map[registry.ChainID]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// StaleAfter returns the re-check threshold of a chain: half its block time,
// but never less than MinStaleAfter.
func StaleAfter(chain registry.ChainID) time.Duration {
	return max(chain.BlockTime()/2, MinStaleAfter)
}

// ShouldCheck reports whether chain is due and, if so, records the check.
//
// A chain is due when the source is behind the best known height, or when
// periodic checks are enabled and the last check is older than StaleAfter.
func (l *Limiter) ShouldCheck(chain registry.ChainID, behind Behind) bool {
	// Queried before taking the lock: the store has its own.
	isBehind := behind.HowFarBehind(l.source, chain) > 0

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	last, seen := l.lastChecked[chain]

	var isStale bool
	if l.periodic {
		// A never-checked chain counts from the epoch and is always stale.
		isStale = !seen || now.Sub(last) >= StaleAfter(chain)
	} else {
		isStale = !seen
	}

	if isBehind || isStale {
		l.lastChecked[chain] = now
		return true
	}
	return false
}

// LastChecked returns when chain was last marked as checked.
func (l *Limiter) LastChecked(chain registry.ChainID) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.lastChecked[chain]
	return t, ok
}

// Source returns the source this limiter belongs to.
func (l *Limiter) Source() registry.SourceID {
	return l.source
}
