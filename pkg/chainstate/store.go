package chainstate

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/chain-monitor/pkg/broadcast"
	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

// Store is a thread-safe in-memory aggregate of the latest state every source
// reported for every chain, plus the best height seen per chain.
type Store struct {
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
	now     func() time.Time

	mu         sync.Mutex
	states     map[Key]TimestampedChainState
	bestHeight map[registry.ChainID]uint64

	events    *broadcast.Broadcaster[Event]
	subBuffer int
}

type Option func(*Store)

// WithClock overrides the time source used to stamp updates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics records updates, best heights and dropped events.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithSubscriberBuffer sets the queue capacity of new subscriptions.
func WithSubscriberBuffer(n int) Option {
	return func(s *Store) { s.subBuffer = n }
}

// New creates an empty Store.
func New(log *zap.SugaredLogger, opts ...Option) (*Store, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	s := &Store{
		log:        log,
		now:        time.Now,
		states:     make(map[Key]TimestampedChainState),
		bestHeight: make(map[registry.ChainID]uint64),
		subBuffer:  broadcast.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.subBuffer <= 0 {
		return nil, errors.New("invalid subscriber buffer: must be > 0")
	}
	s.events = broadcast.New[Event](s.metrics.IncDroppedEvents)
	return s, nil
}

// Update records the state a source reported for a chain and reports whether
// it differs from what that source reported before. FirstSeen is carried over
// while the height stays the same; LastChecked is always refreshed.
func (s *Store) Update(source registry.SourceID, chain registry.ChainID, state ChainState) bool {
	ts := uint64(max(s.now().Unix(), 0))
	next := TimestampedChainState{ChainState: state, FirstSeen: ts, LastChecked: ts}

	s.mu.Lock()
	defer s.mu.Unlock()

	best := max(s.bestHeight[chain], state.Height)
	s.bestHeight[chain] = best

	key := Key{Source: source, Chain: chain}
	prev, ok := s.states[key]
	if ok && prev.Height == state.Height {
		next.FirstSeen = min(prev.FirstSeen, ts)
	}
	changed := !ok || prev.ChainState != state
	s.states[key] = next

	s.metrics.RecordUpdate(source, chain, state.Height, changed)
	s.metrics.SetBestHeight(chain, best)

	if changed {
		s.log.Debugw("chain state changed",
			"source", source,
			"chain", chain,
			"height", state.Height,
			"hash", state.Hash,
		)
		// Published under the lock so subscribers see a source's events in update order.
		s.events.Publish(Event{Source: source, Chain: chain, State: next})
	}
	return changed
}

// HowFarBehind returns how many blocks the source's last report for the chain
// trails the best height. A source that never reported counts as height 0.
func (s *Store) HowFarBehind(source registry.SourceID, chain registry.ChainID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := s.bestHeight[chain]
	height := s.states[Key{Source: source, Chain: chain}].Height
	if height > best {
		s.log.Warnw("source height above best height",
			"source", source,
			"chain", chain,
			"height", height,
			"best", best,
		)
		s.metrics.IncError(metrics.ErrTypeBehindUnderflow)
		return 0
	}
	return best - height
}

// BestHeight returns the highest height any source reported for the chain.
func (s *Store) BestHeight(chain registry.ChainID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bestHeight[chain]
}

// Get returns the state last reported by a source for a chain.
func (s *Store) Get(source registry.SourceID, chain registry.ChainID) (TimestampedChainState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[Key{Source: source, Chain: chain}]
	return st, ok
}

// BestStatesByTicker returns, per chain ticker, the state of a source that is
// at the best height. Sources are visited in id order so the pick is stable.
func (s *Store) BestStatesByTicker() map[string]TimestampedChainState {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := sortedKeys(s.states)
	out := make(map[string]TimestampedChainState, len(s.bestHeight))
	for _, k := range keys {
		ticker := k.Chain.Ticker()
		if _, done := out[ticker]; done {
			continue
		}
		st := s.states[k]
		if st.Height == s.bestHeight[k.Chain] {
			out[ticker] = st
		}
	}
	return out
}

// AllStates returns every stored state ordered by chain, then source.
func (s *Store) AllStates() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []Event {
	keys := sortedKeys(s.states)
	out := make([]Event, 0, len(keys))
	for _, k := range keys {
		out = append(out, Event{Source: k.Source, Chain: k.Chain, State: s.states[k]})
	}
	return out
}

// Subscribe registers a live-update subscription and returns it together with
// a snapshot of every stored state. The subscription is registered before the
// snapshot is read, so an update racing with Subscribe may be seen twice but
// is never missed. Callers must Close the subscription.
func (s *Store) Subscribe() (*broadcast.Subscription[Event], []Event) {
	sub := s.events.Subscribe(s.subBuffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	return sub, s.snapshotLocked()
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	return s.events.Len()
}

func sortedKeys(m map[Key]TimestampedChainState) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		if c := cmp.Compare(a.Chain, b.Chain); c != 0 {
			return c
		}
		return cmp.Compare(a.Source, b.Source)
	})
	return keys
}
