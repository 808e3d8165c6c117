package relays

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"holderguard/engine/actors"
	"holderguard/engine/library"
)

// RequestFilter selects request events, optionally for one holder and only
// those created after since.
func RequestFilter(holder library.HolderID, since time.Time) nostr.Filter {
	f := nostr.Filter{Kinds: actors.RequestKinds}
	if len(holder) > 0 {
		f.Tags = nostr.TagMap{library.HolderTag: []string{holder}}
	}
	if !since.IsZero() {
		ts := nostr.Timestamp(since.Unix())
		f.Since = &ts
	}
	return f
}

// FetchRequests collects stored request events matching filter from every
// relay until each one sends EOSE or the timeout expires. Events with a bad
// signature are dropped.
func FetchRequests(ctx context.Context, urls []string, filter nostr.Filter, timeout time.Duration) []nostr.Event {
	sane := library.ValidateSaneExecutionTime()
	defer sane()
	events := newCache()
	wait := &deadlock.WaitGroup{}
	for _, url := range urls {
		wait.Add(1)
		go func(url string) {
			defer wait.Done()
			relay, err := nostr.RelayConnect(ctx, url)
			if err != nil {
				actors.LogCLI(err.Error(), 2)
				return
			}
			defer relay.Close()
			ctxsub, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			sub, err := relay.Subscribe(ctxsub, nostr.Filters{filter})
			if err != nil {
				actors.LogCLI(err.Error(), 2)
				return
			}
			defer sub.Unsub()
			for {
				select {
				case ev := <-sub.Events:
					if ev == nil {
						return
					}
					if ok, _ := ev.CheckSignature(); ok {
						events.push(*ev)
					}
				case <-sub.EndOfStoredEvents:
					return
				case <-ctxsub.Done():
					return
				}
			}
		}(url)
	}
	wait.Wait()
	return events.ordered()
}
