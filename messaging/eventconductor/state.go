package eventconductor

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"holderguard/engine/library"
	"holderguard/state/guardians"
	"holderguard/state/replay"
	"holderguard/state/verifiers"
)

// WireState is the engine state as shown by the state viewer.
type WireState struct {
	Holders    guardians.Mapped `json:"holders"`
	Verifiers  verifiers.Mapped `json:"verifiers"`
	Replay     replay.Mapped    `json:"replay"`
	ReplayHash library.Sha256   `json:"replay_hash"`
}

func (c *Conductor) State() WireState {
	return WireState{
		Holders:    c.registry.GetMap(),
		Verifiers:  c.directory.GetMap(),
		Replay:     c.replay.GetMap(),
		ReplayHash: c.replay.GetStateHash(),
	}
}

// Save writes the IDs of handled events so a restarted engine skips them.
func (c *Conductor) Save(w io.Writer) error {
	c.mu.Lock()
	ids := make([]library.Sha256, 0, len(c.handled))
	for id := range c.handled {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	sort.Strings(ids)
	return json.NewEncoder(w).Encode(ids)
}

func (c *Conductor) Restore(r io.Reader) error {
	var ids []library.Sha256
	if err := json.NewDecoder(r).Decode(&ids); err != nil && err != io.EOF {
		return fmt.Errorf("restoring handled events: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.handled[id] = struct{}{}
	}
	return nil
}
