package bus

import (
	"sync"
	"sync/atomic"
)

type subscriberStats struct {
	sent    atomic.Uint64
	dropped atomic.Uint64
}

type subscriberHolder struct {
	id     string
	policy DropPolicy
	stats  *subscriberStats

	// For DropNew policy
	ch chan<- Progress

	// For DropOld policy
	holder *latestHolder
}

type bus struct {
	mu             sync.RWMutex
	subscribers    map[string]*subscriberHolder
	totalPublished atomic.Uint64
	closed         bool
}

// New creates a new progress bus
func New() Bus {
	return &bus{
		subscribers: make(map[string]*subscriberHolder),
	}
}

// Subscribe registers a channel with DropNew policy
func (b *bus) Subscribe(id string, ch chan<- Progress) error {
	if ch == nil {
		return ErrNilChannel
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return ErrSubscriberExists
	}

	b.subscribers[id] = &subscriberHolder{
		id:     id,
		policy: DropNew,
		stats:  &subscriberStats{},
		ch:     ch,
	}
	return nil
}

// SubscribeLatest registers a subscriber with DropOld policy
func (b *bus) SubscribeLatest(id string) (Receiver, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, ErrSubscriberExists
	}

	holder := &subscriberHolder{
		id:     id,
		policy: DropOld,
		stats:  &subscriberStats{},
		holder: newLatestHolder(),
	}
	b.subscribers[id] = holder
	return holder.holder, nil
}

// Publish distributes an update to all subscribers without blocking
func (b *bus) Publish(p Progress) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	b.totalPublished.Add(1)

	for _, holder := range b.subscribers {
		switch holder.policy {
		case DropNew:
			select {
			case holder.ch <- p:
				holder.stats.sent.Add(1)
			default:
				holder.stats.dropped.Add(1)
			}

		case DropOld:
			// An unread update being replaced counts as a drop
			if replaced := holder.holder.Set(p); replaced {
				holder.stats.dropped.Add(1)
			}
			holder.stats.sent.Add(1)
		}
	}
}

// Unsubscribe removes a subscriber
func (b *bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	holder, exists := b.subscribers[id]
	if !exists {
		return ErrSubscriberNotFound
	}
	if holder.policy == DropOld {
		holder.holder.Close()
	}

	delete(b.subscribers, id)
	return nil
}

// Stats returns a snapshot of global and per-subscriber counters
func (b *bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := BusStats{
		TotalPublished: b.totalPublished.Load(),
		Subscribers:    make(map[string]SubscriberStats, len(b.subscribers)),
	}
	for id, holder := range b.subscribers {
		sub := SubscriberStats{
			Sent:    holder.stats.sent.Load(),
			Dropped: holder.stats.dropped.Load(),
		}
		stats.Subscribers[id] = sub
		stats.TotalSent += sub.Sent
		stats.TotalDropped += sub.Dropped
	}
	return stats
}

// Close shuts down the bus and all latest-only receivers
func (b *bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, holder := range b.subscribers {
		if holder.policy == DropOld {
			holder.holder.Close()
		}
	}
	b.subscribers = nil
}

// latestHolder implements Receiver for DropOld policy
type latestHolder struct {
	mu     sync.Mutex
	cond   *sync.Cond
	latest *Progress
	seq    uint64 // bumped on every Set
	read   uint64 // seq of the last update handed out by Receive
	closed bool
}

func newLatestHolder() *latestHolder {
	h := &latestHolder{}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Set stores p and reports whether an unread update was overwritten.
func (h *latestHolder) Set(p Progress) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	replaced := h.latest != nil && h.seq != h.read
	h.latest = &p
	h.seq++
	h.cond.Broadcast()
	return replaced
}

func (h *latestHolder) Receive() (Progress, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for h.seq == h.read && !h.closed {
		h.cond.Wait()
	}
	if h.closed {
		return Progress{}, false
	}

	h.read = h.seq
	return *h.latest, true
}

func (h *latestHolder) TryReceive() (Progress, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.latest == nil || h.closed {
		return Progress{}, false
	}
	h.read = h.seq
	return *h.latest, true
}

func (h *latestHolder) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.cond.Broadcast()
}
