package cache

import "sync"

// EventKind distinguishes updates from evictions.
type EventKind string

const (
	EventUpdate  EventKind = "update"
	EventRemoval EventKind = "removal"
)

// Event names exactly the keys one mutation touched. Keys are host ids for
// host updates and composite keys for container updates; a host removal
// carries the host id plus every evicted composite key. There is no
// blanket "everything changed" event.
type Event struct {
	HostID string    `json:"host_id"`
	Keys   []string  `json:"keys"`
	Kind   EventKind `json:"kind"`
}

// Scope selects which events a subscriber receives. An empty HostID means
// fleet-wide.
type Scope struct {
	HostID string
}

func (s Scope) matches(hostID string) bool {
	return s.HostID == "" || s.HostID == hostID
}

type subscription struct {
	scope Scope
	fn    func(Event)
}

// Subscribe registers fn for events intersecting scope and returns its
// unsubscribe function. Each call is an independent registration: two
// subscribers on the same scope each get their own delivery, and removing
// one never affects the other. Listeners run synchronously after the store
// mutation, outside the state lock, so they may call back into the read
// API. The unsubscribe function is idempotent.
func (c *Cache) Subscribe(scope Scope, fn func(Event)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = &subscription{scope: scope, fn: fn}
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

// notify fans an event out to every subscription whose scope matches.
// Called with the state lock released.
func (c *Cache) notify(ev Event) {
	c.subMu.RLock()
	matched := make([]func(Event), 0, len(c.subs))
	for _, sub := range c.subs {
		if sub.scope.matches(ev.HostID) {
			matched = append(matched, sub.fn)
		}
	}
	c.subMu.RUnlock()

	for _, fn := range matched {
		fn(ev)
	}
}
