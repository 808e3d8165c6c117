package eventconductor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"holderguard/engine/actors"
	"holderguard/engine/library"
	"holderguard/state/guardians"
	"holderguard/state/replay"
	"holderguard/state/verifiers"
)

var (
	ErrInvalidEvent = errors.New("invalid request event")
	ErrUnknownKind  = errors.New("no handler for event kind")
	ErrNotManager   = errors.New("request not signed by a manager of the holder")
)

// Conductor turns signed request events into registry operations.
type Conductor struct {
	registry  *guardians.Registry
	replay    *replay.Store
	directory *verifiers.Directory
	handled   map[library.Sha256]struct{}
	mu        *deadlock.Mutex

	// CheckOperationDetails turns operation details checking on for every
	// holder created through the conductor.
	CheckOperationDetails bool
}

func New(registry *guardians.Registry, store *replay.Store, directory *verifiers.Directory) *Conductor {
	return &Conductor{
		registry:  registry,
		replay:    store,
		directory: directory,
		handled:   make(map[library.Sha256]struct{}),
		mu:        &deadlock.Mutex{},
	}
}

// Start handles events from the event catcher until the terminate channel
// closes. Stored events are held back until eose and then handled oldest
// first.
func (c *Conductor) Start(events chan nostr.Event, eose chan bool) {
	actors.GetWaitGroup().Add(1)
	go c.run(events, eose)
}

func (c *Conductor) run(events chan nostr.Event, eose chan bool) {
	defer actors.GetWaitGroup().Done()
	queue := library.NewQueue[nostr.Event](64)
	var stored []nostr.Event
	var caughtUp bool
	prune := time.NewTicker(time.Hour)
	defer prune.Stop()
	for {
		select {
		case e := <-events:
			if !caughtUp {
				stored = append(stored, e)
				continue
			}
			queue.Push(e)
		case <-eose:
			if caughtUp {
				continue
			}
			caughtUp = true
			sort.SliceStable(stored, func(i, j int) bool { return stored[i].CreatedAt < stored[j].CreatedAt })
			for _, e := range stored {
				queue.Push(e)
			}
			library.LogCLI(fmt.Sprintf("caught up with %d stored requests", len(stored)), 4)
			stored = nil
		case <-prune.C:
			library.LogCLI(fmt.Sprintf("pruned %d consumed documents", c.registry.Prune()), 4)
		case <-actors.GetTerminateChan():
			//just keeping this here for shutdown hooks
			return
		}
		for e, ok := queue.Pop(); ok; e, ok = queue.Pop() {
			h, err := c.HandleEvent(e)
			if err != nil {
				library.LogCLI(fmt.Sprintf("%s failed: %s", e.ID, err.Error()), 2)
				continue
			}
			library.LogCLI(fmt.Sprintf("Handled request %s (kind %d) for holder %s", e.ID, e.Kind, h.ID), 4)
		}
	}
}

// HandleEvent checks the event, decodes the request it carries and applies
// it to the registry. It returns the holder after the request.
func (c *Conductor) HandleEvent(e nostr.Event) (guardians.Holder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// the signature covers the serialized event, not the ID field
	if e.ID != e.GetID() {
		return guardians.Holder{}, fmt.Errorf("%w: ID %s does not match the event", ErrInvalidEvent, e.ID)
	}
	if _, ok := c.handled[e.ID]; ok {
		return guardians.Holder{}, fmt.Errorf("event %s is already in our local state", e.ID)
	}
	if ok, err := e.CheckSignature(); !ok {
		if err == nil {
			err = fmt.Errorf("bad signature")
		}
		return guardians.Holder{}, fmt.Errorf("%w: %s", ErrInvalidEvent, err.Error())
	}
	library.LogCLI(fmt.Sprintf("Attempting to handle request %s of kind %d", e.ID, e.Kind), 4)
	h, err := c.route(e)
	if err != nil {
		return guardians.Holder{}, err
	}
	c.handled[e.ID] = struct{}{}
	return h, nil
}

func (c *Conductor) route(e nostr.Event) (guardians.Holder, error) {
	switch e.Kind {
	case actors.KindCreateHolder:
		var req guardians.CreateHolderRequest
		if err := decode(e, &req); err != nil {
			return guardians.Holder{}, err
		}
		req.Manager = e.PubKey
		req.CheckOperationDetails = req.CheckOperationDetails || c.CheckOperationDetails
		return c.registry.CreateHolder(req)
	case actors.KindAddGuardian:
		var req guardians.AddGuardianRequest
		if err := c.prepare(e, &req, &req.HolderID); err != nil {
			return guardians.Holder{}, err
		}
		return c.registry.AddGuardian(req)
	case actors.KindRemoveGuardian:
		var req guardians.RemoveGuardianRequest
		if err := c.prepare(e, &req, &req.HolderID); err != nil {
			return guardians.Holder{}, err
		}
		return c.registry.RemoveGuardian(req)
	case actors.KindUpdateGuardian:
		var req guardians.UpdateGuardianRequest
		if err := c.prepare(e, &req, &req.HolderID); err != nil {
			return guardians.Holder{}, err
		}
		return c.registry.UpdateGuardian(req)
	case actors.KindSetLoginGuardian:
		var req guardians.LoginGuardianRequest
		if err := c.prepare(e, &req, &req.HolderID); err != nil {
			return guardians.Holder{}, err
		}
		return c.registry.SetGuardianForLogin(req)
	case actors.KindUnsetLoginGuardian:
		var req guardians.LoginGuardianRequest
		if err := c.prepare(e, &req, &req.HolderID); err != nil {
			return guardians.Holder{}, err
		}
		return c.registry.UnsetGuardianForLogin(req)
	case actors.KindSocialRecovery:
		// anyone may ask for recovery, the guardians decide
		var req guardians.SocialRecoveryRequest
		if err := decode(e, &req); err != nil {
			return guardians.Holder{}, err
		}
		return c.registry.SocialRecovery(req)
	case actors.KindSetPolicy:
		var req guardians.SetPolicyRequest
		if err := c.prepare(e, &req, &req.HolderID); err != nil {
			return guardians.Holder{}, err
		}
		return c.registry.SetPolicy(req)
	}
	return guardians.Holder{}, fmt.Errorf("%w: %d", ErrUnknownKind, e.Kind)
}

// prepare decodes a request against an existing holder, reconciles its
// holder ID with the event tag and checks the signer manages the holder.
func (c *Conductor) prepare(e nostr.Event, req interface{}, holderID *library.HolderID) error {
	if err := decode(e, req); err != nil {
		return err
	}
	if tagged, ok := library.GetHolder(e); ok {
		if len(*holderID) == 0 {
			*holderID = tagged
		}
		if *holderID != tagged {
			return fmt.Errorf("%w: tagged holder %s does not match %s", ErrInvalidEvent, tagged, *holderID)
		}
	}
	h, ok := c.registry.Get(*holderID)
	if !ok {
		// the registry reports the missing holder
		return nil
	}
	if !h.IsManager(e.PubKey) {
		return fmt.Errorf("%w: %s", ErrNotManager, e.PubKey)
	}
	return nil
}

func decode(e nostr.Event, req interface{}) error {
	if err := json.Unmarshal([]byte(e.Content), req); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, err.Error())
	}
	return nil
}
