// Package broadcast implements a multi-consumer fan-out of events.
//
// Every subscriber owns a bounded queue. Publishing never blocks: when a queue
// is full its oldest event is dropped to make room. A subscriber therefore sees
// every event published after it subscribed, in publish order, unless it falls
// more than its capacity behind.
package broadcast

import (
	"context"
	"errors"
	"sync"
)

// DefaultCapacity is the per-subscriber queue size used when none is given.
const DefaultCapacity = 1000

var ErrClosed = errors.New("subscription closed")

// Broadcaster fans out published values to all registered subscriptions.
type Broadcaster[T any] struct {
	mu     sync.RWMutex
	subs   map[*Subscription[T]]struct{}
	onDrop func()
}

// New creates a Broadcaster. onDrop, if not nil, is called once for every
// event discarded from a full subscriber queue.
func New[T any](onDrop func()) *Broadcaster[T] {
	return &Broadcaster[T]{
		subs:   make(map[*Subscription[T]]struct{}),
		onDrop: onDrop,
	}
}

// Subscribe registers a new subscription with a queue of the given capacity.
// A non-positive capacity selects DefaultCapacity.
func (b *Broadcaster[T]) Subscribe(capacity int) *Subscription[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Subscription[T]{
		b:     b,
		buf:   make([]T, capacity),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Publish enqueues v on every subscription and returns how many received it.
// Publishing with no subscribers is a no-op.
func (b *Broadcaster[T]) Publish(v T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if s.push(v) && b.onDrop != nil {
			b.onDrop()
		}
	}
	return len(b.subs)
}

// Len returns the number of registered subscriptions.
func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster[T]) remove(s *Subscription[T]) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscription is a single consumer's view of a Broadcaster.
type Subscription[T any] struct {
	b *Broadcaster[T]

	mu      sync.Mutex
	buf     []T // ring buffer
	head    int // index of the oldest queued value
	size    int
	dropped uint64
	closed  bool

	// ready is signalled (coalesced, capacity 1) whenever a value is queued.
	ready chan struct{}
	done  chan struct{}
	once  sync.Once
}

// push queues v and reports whether the oldest value had to be dropped.
func (s *Subscription[T]) push(v T) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	var dropped bool
	if s.size == len(s.buf) {
		var zero T
		s.buf[s.head] = zero
		s.head = (s.head + 1) % len(s.buf)
		s.size--
		s.dropped++
		dropped = true
	}
	s.buf[(s.head+s.size)%len(s.buf)] = v
	s.size++
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return dropped
}

func (s *Subscription[T]) pop() (T, bool) {
	var zero T
	if s.size == 0 {
		return zero, false
	}
	v := s.buf[s.head]
	s.buf[s.head] = zero
	s.head = (s.head + 1) % len(s.buf)
	s.size--
	return v, true
}

// Next blocks until a value is available and returns it. It returns ctx.Err()
// when ctx is done and ErrClosed once the subscription is closed.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return zero, ErrClosed
		}
		v, ok := s.pop()
		s.mu.Unlock()
		if ok {
			return v, nil
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-s.done:
			return zero, ErrClosed
		case <-s.ready:
		}
	}
}

// Pending returns the number of queued values.
func (s *Subscription[T]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Dropped returns how many values were discarded because the queue was full.
func (s *Subscription[T]) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close unregisters the subscription and wakes any blocked Next. Idempotent.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.b.remove(s)
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}
