package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/envmonitor/internal/reading"
)

// DefaultBufferSize is the per-subscriber queue depth used when none is configured.
const DefaultBufferSize = 256

// Subscription is one registered receiver of published readings.
//
// C is closed when the subscription is removed, either by Unsubscribe or
// by Hub.Close. Receivers should range over it.
type Subscription struct {
	ID string
	C  <-chan reading.Reading

	mu     sync.Mutex // guards ch sends against close
	ch     chan reading.Reading
	closed bool

	// done is closed first so a delivery waiting on a full queue gives up
	// the subscription lock promptly.
	done     chan struct{}
	doneOnce sync.Once

	dropped atomic.Uint64
}

// close closes the channel once. It must not be called with the hub lock
// held: it may wait for an in-flight delivery to this subscriber.
func (s *Subscription) close() {
	s.doneOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Dropped returns how many readings were discarded for this subscriber
// because its queue was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Hub fans published readings out to every current subscriber.
//
// Publish never blocks on a slow subscriber for longer than the configured
// delivery timeout. A reading that cannot be queued for a subscriber is
// dropped for that subscriber only. Subscribers joining after a Publish do
// not see it.
//
// Thread Safety: All methods are safe for concurrent use.
type Hub struct {
	bufferSize      int
	deliveryTimeout time.Duration

	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub creates a hub. bufferSize <= 0 selects DefaultBufferSize.
// deliveryTimeout <= 0 makes delivery non-blocking.
func NewHub(bufferSize int, deliveryTimeout time.Duration) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if deliveryTimeout < 0 {
		deliveryTimeout = 0
	}
	return &Hub{
		bufferSize:      bufferSize,
		deliveryTimeout: deliveryTimeout,
		subs:            make(map[string]*Subscription),
	}
}

// Subscribe registers a new subscriber. After Close, the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan reading.Reading, h.bufferSize)
	sub := &Subscription{
		ID: uuid.NewString(),
		C:    ch,
		ch:   ch,
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.close()
		return sub
	}
	h.subs[sub.ID] = sub
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it more than once,
// or after Close, is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	_, ok := h.subs[sub.ID]
	delete(h.subs, sub.ID)
	h.mu.Unlock()

	if ok {
		sub.close()
	}
}

// Publish delivers r to every subscriber registered at the time of the call.
//
// Every subscriber with queue space gets r first. Subscribers whose queue is
// full then share one delivery deadline, so Publish returns within a single
// delivery timeout however many subscribers are stuck.
func (h *Hub) Publish(r reading.Reading) {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	h.published.Add(1)

	var full []*Subscription
	for _, sub := range subs {
		if !h.deliver(sub, r, time.Time{}) {
			full = append(full, sub)
		}
	}
	if len(full) == 0 {
		return
	}

	var deadline time.Time
	if h.deliveryTimeout > 0 {
		deadline = time.Now().Add(h.deliveryTimeout)
	}
	for _, sub := range full {
		if !h.deliver(sub, r, deadline) {
			sub.dropped.Add(1)
			h.dropped.Add(1)
		}
	}
}

// deliver queues r for sub, waiting for space until deadline. A zero or
// past deadline makes it a single non-blocking attempt. It returns false
// if the queue stayed full or the subscriber was removed.
func (h *Hub) deliver(sub *Subscription, r reading.Reading, deadline time.Time) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return false
	}

	select {
	case sub.ch <- r:
		return true
	default:
	}

	wait := time.Until(deadline)
	if deadline.IsZero() || wait <= 0 {
		return false
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case sub.ch <- r:
		return true
	case <-timer.C:
		return false
	case <-sub.done:
		return false
	}
}

// Count returns the number of current subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Published returns how many readings have been published.
func (h *Hub) Published() uint64 {
	return h.published.Load()
}

// Dropped returns how many per-subscriber deliveries were discarded.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close removes and closes every subscription. Later Subscribe calls
// return already-closed subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for id, sub := range h.subs {
		subs = append(subs, sub)
		delete(h.subs, id)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
