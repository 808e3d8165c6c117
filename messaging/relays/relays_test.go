package relays

import (
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"holderguard/engine/actors"
	"holderguard/engine/library"
)

func TestCacheOrdersAndDeduplicates(t *testing.T) {
	c := newCache()
	assert.True(t, c.push(nostr.Event{ID: "b", CreatedAt: 2}))
	assert.True(t, c.push(nostr.Event{ID: "c", CreatedAt: 1}))
	assert.True(t, c.push(nostr.Event{ID: "a", CreatedAt: 2}))
	assert.False(t, c.push(nostr.Event{ID: "a", CreatedAt: 2}))

	var ids []string
	for _, e := range c.ordered() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestRequestFilter(t *testing.T) {
	f := RequestFilter("", time.Time{})
	assert.Equal(t, actors.RequestKinds, f.Kinds)
	assert.Nil(t, f.Since)
	assert.Empty(t, f.Tags)

	holder := library.Sha256Sum("holder")
	f = RequestFilter(holder, time.Unix(100, 0))
	assert.Equal(t, []string{holder}, f.Tags[library.HolderTag])
	if assert.NotNil(t, f.Since) {
		assert.Equal(t, nostr.Timestamp(100), *f.Since)
	}
}
