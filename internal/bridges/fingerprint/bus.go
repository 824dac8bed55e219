package fingerprint

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultSubscriberBuffer is the per-subscriber queue length used when
// NewBus is given a non-positive size.
const DefaultSubscriberBuffer = 64

// Snapshot texts delivered to a new subscriber in place of the last
// transition message.
const (
	msgSnapshotConnected    = "connected"
	msgSnapshotDisconnected = "disconnected"
)

// Bus fans events out to any number of subscriptions.
//
// There is no replay: a subscription sees only events published after it
// was created, preceded by a snapshot of the current ConnectionStatus.
// Delivery never blocks the publisher; when a subscriber's queue is full
// the oldest queued event is discarded.
//
// Thread Safety: All methods are safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	status ConnectionStatus
	buffer int
	closed bool

	published atomic.Uint64
}

// BusStats holds fan-out counters.
type BusStats struct {
	Subscribers int
	Published   uint64
	Dropped     uint64
}

// NewBus creates a bus whose subscriptions queue up to buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Bus{
		subs:   make(map[string]*Subscription),
		status: ConnectionStatus{Connected: false, Message: msgSnapshotDisconnected},
		buffer: buffer,
	}
}

// Subscribe registers a new subscription. The current ConnectionStatus is
// already queued on it when Subscribe returns.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		id: uuid.NewString(),
		ch: make(chan Event, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.close()
		return sub
	}

	snapshot := ConnectionStatus{Connected: b.status.Connected, Message: msgSnapshotDisconnected}
	if b.status.Connected {
		snapshot.Message = msgSnapshotConnected
	}
	sub.deliver(snapshot)
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	delete(b.subs, sub.id)
	b.mu.Unlock()
	sub.close()
}

// Publish delivers ev to every current subscription in publish order.
// A ConnectionStatus also replaces the stored status.
func (b *Bus) Publish(ev Event) {
	if status, ok := ev.(ConnectionStatus); ok {
		b.PublishStatus(status)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	b.published.Add(1)
	for _, sub := range b.subs {
		sub.deliver(ev)
	}
}

// PublishStatus records status as current and delivers it. Holding the
// write lock keeps it atomic with respect to Subscribe, so a new
// subscriber sees either the old snapshot followed by this transition or
// the new snapshot alone.
func (b *Bus) PublishStatus(status ConnectionStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
	b.published.Add(1)
	for _, sub := range b.subs {
		sub.deliver(status)
	}
}

// Status returns the last published ConnectionStatus.
func (b *Bus) Status() ConnectionStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// Stats returns fan-out counters.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stats := BusStats{
		Subscribers: len(b.subs),
		Published:   b.published.Load(),
	}
	for _, sub := range b.subs {
		stats.Dropped += sub.Dropped()
	}
	return stats
}

// Close closes every subscription. Later subscriptions are returned
// already closed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, sub := range b.subs {
		sub.close()
		delete(b.subs, id)
	}
}

// Subscription is one subscriber's bounded event queue.
type Subscription struct {
	id string
	ch chan Event

	mu     sync.Mutex
	closed bool

	dropped atomic.Uint64
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string { return s.id }

// Events returns the receive channel. It is closed on Unsubscribe or
// when the Bus is closed.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Dropped returns how many events were discarded because the queue was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// deliver enqueues ev without blocking, evicting the oldest queued
// event while the queue is full.
func (s *Subscription) deliver(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
