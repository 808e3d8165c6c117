package actors

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"holderguard/engine/library"
)

// RequestEvent wraps request as the content of a signed event of the given
// kind. holder is tagged when known so relays can filter by holder.
func RequestEvent(kind int, holder library.HolderID, request interface{}, privateKey string) (nostr.Event, error) {
	content, err := json.Marshal(request)
	if err != nil {
		return nostr.Event{}, err
	}
	pubkey, err := nostr.GetPublicKey(privateKey)
	if err != nil {
		return nostr.Event{}, fmt.Errorf("deriving pubkey: %w", err)
	}
	e := nostr.Event{
		PubKey:    pubkey,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      kind,
		Tags:      nostr.Tags{},
		Content:   string(content),
	}
	if len(holder) > 0 {
		e.Tags = append(e.Tags, nostr.Tag{library.HolderTag, holder})
	}
	e.ID = e.GetID()
	if err = e.Sign(privateKey); err != nil {
		return nostr.Event{}, err
	}
	return e, nil
}

// SignRequest signs request with the local wallet.
func SignRequest(kind int, holder library.HolderID, request interface{}) (nostr.Event, error) {
	return RequestEvent(kind, holder, request, MyWallet().PrivateKey)
}
