package chain

import (
	"sync"

	"currency-ledger/internal/domain"
)

// DefaultFeedBuffer is the per-subscriber notification buffer.
const DefaultFeedBuffer = 256

// Notification announces an applied action.
type Notification struct {
	Receipt   domain.Receipt `json:"receipt"`
	Action    domain.Action  `json:"action"`
	Timestamp int64          `json:"timestamp"` // Unix timestamp in milliseconds
}

// Feed fans notifications out to subscribers. A subscriber whose buffer is
// full misses the notification instead of stalling the chain.
type Feed struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Notification
	nextID uint64
	buffer int

	dropped uint64
}

// NewFeed creates a Feed with the given subscriber buffer size.
func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = DefaultFeedBuffer
	}
	return &Feed{
		subs:   make(map[uint64]chan Notification),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber. The returned cancel function closes the
// channel and must be called once the subscriber is done.
func (f *Feed) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, f.buffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			if _, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(ch)
			}
			f.mu.Unlock()
		})
	}
	return ch, cancel
}

// Len returns the number of subscribers.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Dropped returns the number of notifications missed by slow subscribers.
func (f *Feed) Dropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func (f *Feed) publish(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- n:
		default:
			f.dropped++
		}
	}
}

// closeAll closes every subscriber channel.
func (f *Feed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
}
