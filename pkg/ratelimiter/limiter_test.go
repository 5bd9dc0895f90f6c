package ratelimiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/chain-monitor/pkg/registry"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type behindStub uint64

func (b behindStub) HowFarBehind(registry.SourceID, registry.ChainID) uint64 {
	return uint64(b)
}

func TestStaleAfter(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		chain registry.ChainID
		want  time.Duration
	}{
		{name: "bitcoin uses half the block time", chain: registry.Bitcoin, want: 300 * time.Second},
		{name: "litecoin floors at 75s", chain: registry.Litecoin, want: 75 * time.Second},
		{name: "fast chain floors at minimum", chain: registry.Ethereum, want: MinStaleAfter},
		{name: "unknown chain floors at minimum", chain: registry.ChainID("nope"), want: MinStaleAfter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, StaleAfter(tt.chain))
		})
	}
}

func TestShouldCheck_ThrottlesUntilThreshold(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := New(registry.BitGo, WithClock(clock.Now))

	// First check is always due.
	require.True(t, l.ShouldCheck(registry.Bitcoin, behindStub(0)))

	clock.Advance(299 * time.Second)
	require.False(t, l.ShouldCheck(registry.Bitcoin, behindStub(0)))

	clock.Advance(time.Second)
	require.True(t, l.ShouldCheck(registry.Bitcoin, behindStub(0)))

	// The successful check reset the timer.
	clock.Advance(10 * time.Second)
	require.False(t, l.ShouldCheck(registry.Bitcoin, behindStub(0)))
}

func TestShouldCheck_BehindAlwaysDue(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := New(registry.BitGo, WithClock(clock.Now))

	require.True(t, l.ShouldCheck(registry.Bitcoin, behindStub(0)))
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		require.True(t, l.ShouldCheck(registry.Bitcoin, behindStub(1)))
	}
	last, ok := l.LastChecked(registry.Bitcoin)
	require.True(t, ok)
	require.Equal(t, clock.Now(), last)
}

func TestShouldCheck_ChainsAreIndependent(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := New(registry.BlockCypher, WithClock(clock.Now))

	require.True(t, l.ShouldCheck(registry.Bitcoin, behindStub(0)))
	require.True(t, l.ShouldCheck(registry.Litecoin, behindStub(0)))

	clock.Advance(80 * time.Second)
	require.False(t, l.ShouldCheck(registry.Bitcoin, behindStub(0)))
	require.True(t, l.ShouldCheck(registry.Litecoin, behindStub(0)))
}

func TestShouldCheck_WithoutPeriodicChecks(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := New(registry.ChainMonitor, WithClock(clock.Now), WithoutPeriodicChecks())

	require.True(t, l.ShouldCheck(registry.Bitcoin, behindStub(0)), "first check is due")

	clock.Advance(24 * time.Hour)
	require.False(t, l.ShouldCheck(registry.Bitcoin, behindStub(0)), "staleness is ignored")
	require.True(t, l.ShouldCheck(registry.Bitcoin, behindStub(2)), "behind is still due")
}

func TestShouldCheck_Concurrent(t *testing.T) {
	t.Parallel()
	l := New(registry.Blockchair)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		hits int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.ShouldCheck(registry.Bitcoin, behindStub(0)) {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, hits, "only one caller may win the first check")
	require.Equal(t, registry.Blockchair, l.Source())
}
