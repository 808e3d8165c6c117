package library

import (
	"github.com/nbd-wtf/go-nostr"
)

// HolderTag is the tag that carries the target holder of a request event so
// relays can filter requests per holder.
const HolderTag = "h"

func GetFirstTag(e nostr.Event, startsWith string) (string, bool) {
	for _, tag := range e.Tags {
		if tag.StartsWith([]string{startsWith}) {
			return tag.Value(), true
		}
	}
	return "", false
}

// GetHolder returns the holder ID tagged on e, if it is a well formed hash.
func GetHolder(e nostr.Event) (HolderID, bool) {
	h, ok := GetFirstTag(e, HolderTag)
	if !ok || !IsSha256(h) {
		return "", false
	}
	return h, true
}
