package replay

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"
	"holderguard/engine/library"
)

// Store remembers every verification document consumed by a committed
// request, so that a document can not authorize a second request.
type Store struct {
	data  map[library.Sha256]Consumption
	mutex *deadlock.Mutex
}

func NewStore() *Store {
	return &Store{
		data:  make(map[library.Sha256]Consumption),
		mutex: &deadlock.Mutex{},
	}
}

// Consumed reports whether the document with this hash has been used.
func (s *Store) Consumed(documentHash library.Sha256) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.data[documentHash]
	return ok
}

// Consume marks every document in hashes as used by one request.
func (s *Store) Consume(hashes []library.Sha256, operation string, holder library.HolderID, at time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, h := range hashes {
		s.data[h] = Consumption{Operation: operation, HolderID: holder, At: at.Unix()}
	}
}

// Prune forgets documents consumed before cutoff. Callers pick a cutoff
// older than the document validity window, after which an old document is
// rejected as expired anyway.
func (s *Store) Prune(cutoff time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var n int
	for h, c := range s.data {
		if c.At < cutoff.Unix() {
			delete(s.data, h)
			n++
		}
	}
	return n
}

func (s *Store) GetMap() Mapped {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.getMap()
}

func (s *Store) getMap() Mapped {
	m := make(Mapped, len(s.data))
	for h, c := range s.data {
		m[h] = c
	}
	return m
}

// GetStateHash is a digest of the consumed set that is independent of
// insertion order.
func (s *Store) GetStateHash() library.Sha256 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var sl []library.Sha256
	for h := range s.data {
		sl = append(sl, h)
	}
	sort.Strings(sl)
	b := bytes.Buffer{}
	for _, h := range sl {
		decoded, err := hex.DecodeString(h)
		if err != nil {
			library.LogCLI(err, 1)
			continue
		}
		b.Write(decoded)
	}
	return library.Sha256Sum(b.Bytes())
}

// Save writes the consumed set as JSON.
func (s *Store) Save(w io.Writer) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return json.NewEncoder(w).Encode(s.data)
}

// Restore replaces the consumed set with a snapshot written by Save. An
// empty snapshot leaves the store empty.
func (s *Store) Restore(r io.Reader) error {
	data := make(map[library.Sha256]Consumption)
	if err := json.NewDecoder(r).Decode(&data); err != nil && err != io.EOF {
		return fmt.Errorf("restoring replay store: %w", err)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data = data
	return nil
}
