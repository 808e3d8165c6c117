package relays

import (
	"sort"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
)

// cache collects events fetched from several relays, keyed by ID.
type cache struct {
	events map[string]nostr.Event
	mu     *deadlock.Mutex
}

func newCache() *cache {
	return &cache{events: make(map[string]nostr.Event), mu: &deadlock.Mutex{}}
}

func (c *cache) push(e nostr.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.events[e.ID]; ok {
		return false
	}
	c.events[e.ID] = e
	return true
}

// ordered returns the events oldest first, ties broken by ID so every
// engine replays history in the same order.
func (c *cache) ordered() []nostr.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := make([]nostr.Event, 0, len(c.events))
	for _, e := range c.events {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt < list[j].CreatedAt
		}
		return list[i].ID < list[j].ID
	})
	return list
}
