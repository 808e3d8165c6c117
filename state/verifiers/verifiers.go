package verifiers

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/sasha-s/go-deadlock"
	"golang.org/x/exp/slices"
	"holderguard/engine/library"
)

// Verifier is an off-chain service that attests control of identities. It
// may rotate keys, so more than one address can be live at a time.
type Verifier struct {
	ID        library.Sha256 `json:"id"`
	Name      string         `json:"name"`
	Addresses []string       `json:"addresses"`
}

type Mapped map[library.Sha256]Verifier

type db struct {
	data  map[library.Sha256]Verifier
	mutex *deadlock.Mutex
}

// Directory is the in-memory set of registered verifiers.
type Directory struct {
	db
}

func NewDirectory() *Directory {
	return &Directory{db{
		data:  make(map[library.Sha256]Verifier),
		mutex: &deadlock.Mutex{},
	}}
}

// Upsert registers v, replacing any previous entry with the same ID.
func (d *Directory) Upsert(v Verifier) error {
	if !library.IsSha256(v.ID) {
		return fmt.Errorf("invalid verifier id %q", v.ID)
	}
	if len(v.Addresses) == 0 {
		return fmt.Errorf("verifier %s has no addresses", v.ID)
	}
	for _, a := range v.Addresses {
		if !library.IsValidAddress(a) {
			return fmt.Errorf("verifier %s: invalid address %q", v.ID, a)
		}
	}
	v.Addresses = slices.Clone(v.Addresses)
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.data[v.ID] = v
	library.LogCLI(fmt.Sprintf("verifier %s (%s) registered with %d addresses", v.ID, v.Name, len(v.Addresses)), 4)
	return nil
}

func (d *Directory) Remove(id library.Sha256) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	_, ok := d.data[id]
	delete(d.data, id)
	return ok
}

// Addresses returns the addresses the verifier signs with.
func (d *Directory) Addresses(id library.Sha256) ([]string, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	v, ok := d.data[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(v.Addresses), true
}

func (d *Directory) GetMap() Mapped {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	m := make(Mapped, len(d.data))
	for id, v := range d.data {
		v.Addresses = slices.Clone(v.Addresses)
		m[id] = v
	}
	return m
}

// Save writes the directory as a JSON list ordered by ID.
func (d *Directory) Save(w io.Writer) error {
	d.mutex.Lock()
	var list []Verifier
	for _, v := range d.data {
		list = append(list, v)
	}
	d.mutex.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return json.NewEncoder(w).Encode(list)
}

// Restore loads verifiers written by Save, or a hand written config in the
// same form. Existing entries are kept unless overwritten.
func (d *Directory) Restore(r io.Reader) error {
	var list []Verifier
	if err := json.NewDecoder(r).Decode(&list); err != nil && err != io.EOF {
		return fmt.Errorf("restoring verifier directory: %w", err)
	}
	for _, v := range list {
		if err := d.Upsert(v); err != nil {
			return err
		}
	}
	return nil
}
