// Package txstore implements the Transaction Store: a keyed collection of
// ledger.Transaction with two secondary indices (fireflyId, akahuIds),
// mirroring accountstore.Store's shape (spec.md §4.3).
package txstore

import (
	"fmt"
	"sync"

	"github.com/jasmoran/akahu-firefly/internal/ledger"
)

// Store is the in-memory Transaction Store.
type Store struct {
	mu sync.RWMutex

	nextID int64
	byID   map[int64]ledger.Transaction

	byFireflyID map[string]int64
	byAkahuID   map[string]int64

	insertOrder []int64
}

// New returns an empty Transaction Store.
func New() *Store {
	return &Store{
		byID:        make(map[int64]ledger.Transaction),
		byFireflyID: make(map[string]int64),
		byAkahuID:   make(map[string]int64),
	}
}

func (s *Store) checkUnique(t ledger.Transaction, excludeID int64) error {
	if t.FireflyID != "" {
		if id, ok := s.byFireflyID[t.FireflyID]; ok && id != excludeID {
			return fmt.Errorf("%w: fireflyId %q", ledger.ErrDuplicateKey, t.FireflyID)
		}
	}
	for akahuID := range t.AkahuIDs {
		if id, ok := s.byAkahuID[akahuID]; ok && id != excludeID {
			return fmt.Errorf("%w: akahuId %q", ledger.ErrDuplicateKey, akahuID)
		}
	}
	return nil
}

func (s *Store) index(id int64, t ledger.Transaction) {
	if t.FireflyID != "" {
		s.byFireflyID[t.FireflyID] = id
	}
	for akahuID := range t.AkahuIDs {
		s.byAkahuID[akahuID] = id
	}
}

func (s *Store) deindex(id int64, t ledger.Transaction) {
	if t.FireflyID != "" && s.byFireflyID[t.FireflyID] == id {
		delete(s.byFireflyID, t.FireflyID)
	}
	for akahuID := range t.AkahuIDs {
		if s.byAkahuID[akahuID] == id {
			delete(s.byAkahuID, akahuID)
		}
	}
}

// Create assigns the next id and indexes the transaction.
func (s *Store) Create(t ledger.Transaction) (ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnique(t, 0); err != nil {
		return ledger.Transaction{}, err
	}

	s.nextID++
	t.ID = s.nextID
	stored := t.Clone()
	s.byID[t.ID] = stored
	s.index(t.ID, stored)
	s.insertOrder = append(s.insertOrder, t.ID)
	return stored.Clone(), nil
}

// Save replaces the existing transaction with the same id, enforcing
// fireflyId immutability and akahuIds monotonicity (spec.md §3, §4.3).
func (s *Store) Save(t ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[t.ID]
	if !ok {
		return fmt.Errorf("%w: transaction id %d", ledger.ErrUnknownID, t.ID)
	}
	if existing.FireflyID != "" && existing.FireflyID != t.FireflyID {
		return fmt.Errorf("%w: fireflyId", ledger.ErrImmutableField)
	}
	for akahuID := range existing.AkahuIDs {
		if _, ok := t.AkahuIDs[akahuID]; !ok {
			return fmt.Errorf("%w: akahuIds is monotone, %q would be removed", ledger.ErrImmutableField, akahuID)
		}
	}

	if err := s.checkUnique(t, t.ID); err != nil {
		return err
	}

	s.deindex(t.ID, existing)
	s.index(t.ID, t)
	s.byID[t.ID] = t.Clone()
	return nil
}

// Get returns a deep-cloned snapshot of the transaction with the given id.
func (s *Store) Get(id int64) (ledger.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	if !ok {
		return ledger.Transaction{}, false
	}
	return t.Clone(), true
}

// GetByFireflyID returns a deep-cloned snapshot of the transaction imported
// from the given ledger row.
func (s *Store) GetByFireflyID(fireflyID string) (ledger.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byFireflyID[fireflyID]
	if !ok {
		return ledger.Transaction{}, false
	}
	return s.byID[id].Clone(), true
}

// GetByAkahuID returns a deep-cloned snapshot of the transaction carrying
// the given feed identifier.
func (s *Store) GetByAkahuID(akahuID string) (ledger.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAkahuID[akahuID]
	if !ok {
		return ledger.Transaction{}, false
	}
	return s.byID[id].Clone(), true
}

// Duplicate returns an independent deep clone of the store.
func (s *Store) Duplicate() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := New()
	clone.nextID = s.nextID
	for id, t := range s.byID {
		clone.byID[id] = t.Clone()
	}
	for k, v := range s.byFireflyID {
		clone.byFireflyID[k] = v
	}
	for k, v := range s.byAkahuID {
		clone.byAkahuID[k] = v
	}
	clone.insertOrder = append([]int64(nil), s.insertOrder...)
	return clone
}

// All returns deep-cloned snapshots of every transaction, in insertion order.
func (s *Store) All() []ledger.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Transaction, 0, len(s.insertOrder))
	for _, id := range s.insertOrder {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Len reports the number of transactions currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
