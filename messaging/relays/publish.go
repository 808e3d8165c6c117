package relays

import (
	"context"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"holderguard/engine/actors"
)

// PublishToRelays sends events to every relay. It returns the number of
// relays that accepted all of them.
func PublishToRelays(ctx context.Context, events []nostr.Event, relays []string) int {
	var wg = &deadlock.WaitGroup{}
	var mu = &deadlock.Mutex{}
	var accepted int
	for _, relay := range relays {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			relay, err := nostr.RelayConnect(ctx, url)
			if err != nil {
				actors.LogCLI(fmt.Sprintf("could not connect to relay %s: %s", url, err), 2)
				return
			}
			defer relay.Close()
			for _, event := range events {
				if _, err := relay.Publish(ctx, event); err != nil {
					actors.LogCLI(fmt.Sprintf("could not publish %s to relay %s: %s", event.ID, url, err), 2)
					return
				}
			}
			mu.Lock()
			accepted++
			mu.Unlock()
		}(relay)
	}
	wg.Wait()
	return accepted
}
