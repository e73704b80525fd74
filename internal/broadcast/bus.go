// Package broadcast delivers process-wide logout notifications.
//
// Any layer that learns the credentials are no longer valid (typically the
// REST client on a 401) publishes an Event; the session manager subscribes
// and clears its state.
package broadcast

import (
	"slices"
	"sync"
)

// Reason tells subscribers why a logout was requested.
type Reason string

const (
	// ReasonUnauthorized is published when the backend rejected the credentials.
	ReasonUnauthorized Reason = "unauthorized"
	// ReasonUser is published on an explicit sign-out.
	ReasonUser Reason = "user"
)

// Event is a single logout notification.
type Event struct {
	Reason Reason
	Source string // free-form origin, e.g. the request path
	// Token is the rejected bearer token, if known. Subscribers holding a
	// different token may ignore the event.
	Token string
}

// Handler receives events. It runs on the publisher's goroutine.
type Handler func(Event)

// Bus fans out logout events to subscribers.
// The zero value is ready to use.
type Bus struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]Handler
}

// New creates an empty bus.
func New() *Bus { return &Bus{} }

var defaultBus = New()

// Default returns the process-wide bus.
func Default() *Bus { return defaultBus }

// Subscribe registers h and returns a function that removes it.
// The returned function is safe to call more than once.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[uint64]Handler)
	}
	id := b.next
	b.next++
	b.subs[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every current subscriber in subscription order.
// Handlers are invoked without holding the bus lock, so they may subscribe,
// unsubscribe or publish.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	ids := make([]uint64, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	hs := make(map[uint64]Handler, len(b.subs))
	for id, h := range b.subs {
		hs[id] = h
	}
	b.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		hs[id](ev)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
