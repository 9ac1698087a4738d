// Package accountstore implements the Account Store: a keyed collection of
// ledger.Account with four secondary indices (akahuId, bank number,
// normalized name, role externalId), gated by cross-index uniqueness
// (spec.md §4.2).
//
// Grounded on tinoosan-ledger's internal/storage/memory.Store: a plain
// map-backed collection guarded by a mutex, with clone-on-read accessors and
// an index-then-check-then-commit discipline for mutations.
package accountstore

import (
	"fmt"
	"sync"

	"github.com/jasmoran/akahu-firefly/internal/ledger"
)

// nameEntry is one row of the name index: a normalized key pointing at an
// account, recorded in insertion order for fuzzy-match tie-breaking.
type nameEntry struct {
	key string
	id  int64
}

// Store is the in-memory Account Store.
type Store struct {
	mu sync.RWMutex

	nextID int64
	byID   map[int64]ledger.Account

	byAkahuID    map[string]int64
	byBankNumber map[string]int64
	byExternalID map[string]int64
	nameIndex    []nameEntry // insertion order, for stable fuzzy tie-break
	byName       map[string]int64

	insertOrder []int64
}

// New returns an empty Account Store.
func New() *Store {
	return &Store{
		byID:         make(map[int64]ledger.Account),
		byAkahuID:    make(map[string]int64),
		byBankNumber: make(map[string]int64),
		byExternalID: make(map[string]int64),
		byName:       make(map[string]int64),
	}
}

// indexKeys describes every secondary key an account participates in.
type indexKeys struct {
	akahuID     string
	bankNumbers []string
	names       []string
	externalIDs []string
}

func keysFor(a ledger.Account) indexKeys {
	k := indexKeys{akahuID: a.AkahuID}
	for bn := range a.BankNumbers {
		k.bankNumbers = append(k.bankNumbers, bn)
	}
	for name := range a.AlternateNames {
		k.names = append(k.names, name)
	}
	seen := make(map[string]struct{}, 2)
	if a.Source != nil && a.Source.ExternalID != "" {
		if _, ok := seen[a.Source.ExternalID]; !ok {
			k.externalIDs = append(k.externalIDs, a.Source.ExternalID)
			seen[a.Source.ExternalID] = struct{}{}
		}
	}
	if a.Destination != nil && a.Destination.ExternalID != "" {
		if _, ok := seen[a.Destination.ExternalID]; !ok {
			k.externalIDs = append(k.externalIDs, a.Destination.ExternalID)
			seen[a.Destination.ExternalID] = struct{}{}
		}
	}
	return k
}

// checkUnique verifies none of a's secondary keys collide with an existing
// account other than excludeID (excludeID is 0 for a brand-new account,
// which never equals an assigned id).
func (s *Store) checkUnique(k indexKeys, excludeID int64) error {
	if k.akahuID != "" {
		if id, ok := s.byAkahuID[k.akahuID]; ok && id != excludeID {
			return fmt.Errorf("%w: akahuId %q", ledger.ErrDuplicateKey, k.akahuID)
		}
	}
	for _, bn := range k.bankNumbers {
		if id, ok := s.byBankNumber[bn]; ok && id != excludeID {
			return fmt.Errorf("%w: bank number %q", ledger.ErrDuplicateKey, bn)
		}
	}
	for _, name := range k.names {
		if id, ok := s.byName[name]; ok && id != excludeID {
			return fmt.Errorf("%w: name %q", ledger.ErrDuplicateKey, name)
		}
	}
	for _, ext := range k.externalIDs {
		if id, ok := s.byExternalID[ext]; ok && id != excludeID {
			return fmt.Errorf("%w: externalId %q", ledger.ErrDuplicateKey, ext)
		}
	}
	return nil
}

func (s *Store) index(id int64, k indexKeys) {
	if k.akahuID != "" {
		s.byAkahuID[k.akahuID] = id
	}
	for _, bn := range k.bankNumbers {
		s.byBankNumber[bn] = id
	}
	for _, name := range k.names {
		s.byName[name] = id
		s.nameIndex = append(s.nameIndex, nameEntry{key: name, id: id})
	}
	for _, ext := range k.externalIDs {
		s.byExternalID[ext] = id
	}
}

func (s *Store) deindex(id int64, k indexKeys) {
	if k.akahuID != "" && s.byAkahuID[k.akahuID] == id {
		delete(s.byAkahuID, k.akahuID)
	}
	for _, bn := range k.bankNumbers {
		if s.byBankNumber[bn] == id {
			delete(s.byBankNumber, bn)
		}
	}
	for _, name := range k.names {
		if s.byName[name] == id {
			delete(s.byName, name)
		}
	}
	for _, ext := range k.externalIDs {
		if s.byExternalID[ext] == id {
			delete(s.byExternalID, ext)
		}
	}
	filtered := s.nameIndex[:0]
	for _, e := range s.nameIndex {
		if e.id == id {
			continue
		}
		filtered = append(filtered, e)
	}
	s.nameIndex = filtered
}

// Create assigns the next id from the store's monotonic counter and indexes
// the account. accountWithoutId's ID field is ignored.
func (s *Store) Create(a ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := a.Validate(); err != nil {
		return ledger.Account{}, err
	}
	k := keysFor(a)
	if err := s.checkUnique(k, 0); err != nil {
		return ledger.Account{}, err
	}

	s.nextID++
	a.ID = s.nextID
	stored := a.Clone()
	s.byID[a.ID] = stored
	s.index(a.ID, k)
	s.insertOrder = append(s.insertOrder, a.ID)
	return stored.Clone(), nil
}

// Save replaces the existing account with the same id. It fails with
// ErrUnknownID if absent, and with ErrImmutableField if akahuId or either
// role's externalId would change from a set value to a different value.
// The re-index is atomic: on failure the store's index state is unchanged.
func (s *Store) Save(a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[a.ID]
	if !ok {
		return fmt.Errorf("%w: account id %d", ledger.ErrUnknownID, a.ID)
	}
	if existing.AkahuID != "" && a.AkahuID != "" && existing.AkahuID != a.AkahuID {
		return fmt.Errorf("%w: akahuId", ledger.ErrImmutableField)
	}
	if err := immutableRoleCheck(existing.Source, a.Source); err != nil {
		return err
	}
	if err := immutableRoleCheck(existing.Destination, a.Destination); err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return err
	}

	newKeys := keysFor(a)
	if err := s.checkUnique(newKeys, a.ID); err != nil {
		return err
	}

	oldKeys := keysFor(existing)
	s.deindex(a.ID, oldKeys)
	s.index(a.ID, newKeys)
	s.byID[a.ID] = a.Clone()
	return nil
}

func immutableRoleCheck(existing, updated *ledger.Role) error {
	if existing == nil || existing.ExternalID == "" {
		return nil
	}
	if updated == nil || updated.ExternalID == "" {
		return nil
	}
	if existing.ExternalID != updated.ExternalID {
		return fmt.Errorf("%w: role externalId", ledger.ErrImmutableField)
	}
	return nil
}

// Get returns a deep-cloned snapshot of the account with the given id.
func (s *Store) Get(id int64) (ledger.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return ledger.Account{}, false
	}
	return a.Clone(), true
}

// GetByExternalID returns a deep-cloned snapshot of the account whose source
// or destination role carries extID.
func (s *Store) GetByExternalID(extID string) (ledger.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternalID[extID]
	if !ok {
		return ledger.Account{}, false
	}
	return s.byID[id].Clone(), true
}

// GetByAkahuID returns a deep-cloned snapshot of the account with the given
// feed identifier.
func (s *Store) GetByAkahuID(akahuID string) (ledger.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAkahuID[akahuID]
	if !ok {
		return ledger.Account{}, false
	}
	return s.byID[id].Clone(), true
}

// GetByBankNumber normalizes raw to canonical form and returns a
// deep-cloned snapshot of the owning account.
func (s *Store) GetByBankNumber(raw string) (ledger.Account, bool) {
	canonical := raw
	if ledger.IsBankNumberShape(raw) {
		if c, err := ledger.CanonicalizeBankNumber(raw); err == nil {
			canonical = c
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byBankNumber[canonical]
	if !ok {
		return ledger.Account{}, false
	}
	return s.byID[id].Clone(), true
}

// GetByName normalizes name and returns a deep-cloned snapshot of the
// matching account.
func (s *Store) GetByName(name string) (ledger.Account, bool) {
	key := ledger.NormalizeName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[key]
	if !ok {
		return ledger.Account{}, false
	}
	return s.byID[id].Clone(), true
}

// GetByNameFuzzy linearly scans the name index and returns the account with
// the highest Sørensen-Dice coefficient against the normalized query,
// together with that score. Ties keep the first-seen (insertion-order)
// entry. Fails with ErrNoAccounts if the index is empty.
func (s *Store) GetByNameFuzzy(query string) (ledger.Account, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.nameIndex) == 0 {
		return ledger.Account{}, 0, ledger.ErrNoAccounts
	}
	normalizedQuery := ledger.NormalizeName(query)
	bestScore := -1.0
	var bestID int64
	for _, entry := range s.nameIndex {
		score := ledger.DiceCoefficient(normalizedQuery, entry.key)
		if score > bestScore {
			bestScore = score
			bestID = entry.id
		}
	}
	return s.byID[bestID].Clone(), bestScore, nil
}

// Duplicate returns an independent deep clone of the store, including its
// counter and all indices.
func (s *Store) Duplicate() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := New()
	clone.nextID = s.nextID
	for id, a := range s.byID {
		clone.byID[id] = a.Clone()
	}
	for k, v := range s.byAkahuID {
		clone.byAkahuID[k] = v
	}
	for k, v := range s.byBankNumber {
		clone.byBankNumber[k] = v
	}
	for k, v := range s.byExternalID {
		clone.byExternalID[k] = v
	}
	for k, v := range s.byName {
		clone.byName[k] = v
	}
	clone.nameIndex = append([]nameEntry(nil), s.nameIndex...)
	clone.insertOrder = append([]int64(nil), s.insertOrder...)
	return clone
}

// All returns deep-cloned snapshots of every account, in insertion order.
func (s *Store) All() []ledger.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0, len(s.insertOrder))
	for _, id := range s.insertOrder {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Len reports the number of accounts currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
