package eventcatcher

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"holderguard/engine/actors"
	"holderguard/engine/library"
	"holderguard/messaging/relays"
)

var seen = make(map[string]struct{})
var seenMu = &deadlock.Mutex{}

// firstSight reports whether the event has not been forwarded before.
// Relays resend stored events on every reconnect.
func firstSight(e nostr.Event) bool {
	seenMu.Lock()
	defer seenMu.Unlock()
	if _, ok := seen[e.ID]; ok {
		return false
	}
	seen[e.ID] = struct{}{}
	return true
}

// Start streams request events created after since into eChan until the
// terminate channel closes. The engine shuts down when the system goes to
// sleep, relays would drop the subscription anyway.
func Start(eChan chan nostr.Event, eose chan bool, since time.Time) {
	var sleepChan = make(chan bool)
	sleeper(sleepChan)
	go func() {
		select {
		case <-sleepChan:
			actors.LogCLI("system sleep detected, terminating application", 2)
			actors.Shutdown()
		case <-actors.GetTerminateChan():
		}
	}()
	go SubscribeToRequests(eChan, eose, since)
}

// SubscribeToRequests streams request events from the first configured relay
// into eChan, reconnecting when the relay goes quiet or drops the
// subscription. eose is signalled once stored events have been delivered.
func SubscribeToRequests(eChan chan nostr.Event, eose chan bool, since time.Time) {
	urls := actors.MakeOrGetConfig().GetStringSlice("relaysMust")
	if len(urls) == 0 {
		actors.LogCLI("no relays configured", 0)
		return
	}
	relay, err := nostr.RelayConnect(context.Background(), urls[0])
	if err != nil {
		actors.LogCLI(err.Error(), 1)
		retry(eChan, eose, since)
		return
	}

	defer relay.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	actors.LogCLI("Connecting to "+relay.URL, 4)
	sub, err := relay.Subscribe(ctx, nostr.Filters{relays.RequestFilter("", since)})
	if err != nil {
		actors.LogCLI(err.Error(), 1)
		retry(eChan, eose, since)
		return
	}

	go func() {
		select {
		case <-sub.EndOfStoredEvents:
			select {
			case eose <- true:
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	}()
	lastEventTime := time.Now()
	for {
		select {
		case ev := <-sub.Events:
			if ev == nil {
				actors.LogCLI("Terminating connection to relay", 3)
				retry(eChan, eose, lastEventTime.Add(-time.Minute))
				return
			}
			sane := library.ValidateSaneExecutionTime()
			lastEventTime = time.Now()
			if ok, _ := ev.CheckSignature(); ok && firstSight(*ev) {
				select {
				case eChan <- *ev:
				case <-actors.GetTerminateChan():
					sane()
					return
				}
			}
			sane()
		case <-time.After(5 * time.Minute):
			if time.Since(lastEventTime) > 10*time.Minute {
				actors.LogCLI("relay is quiet, restarting Eventcatcher", 4)
				retry(eChan, eose, lastEventTime.Add(-time.Minute))
				return
			}
		case <-actors.GetTerminateChan():
			return
		}
	}
}

func retry(eChan chan nostr.Event, eose chan bool, since time.Time) {
	select {
	case <-actors.GetTerminateChan():
		return
	case <-time.After(5 * time.Second):
	}
	actors.LogCLI("Restarting Eventcatcher", 4)
	go SubscribeToRequests(eChan, eose, since)
}
