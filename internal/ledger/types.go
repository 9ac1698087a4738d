package ledger

import (
	"fmt"
	"time"
)

// AccountType enumerates the four roles an Account can take in the ledger's
// double-entry model (spec.md §3).
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeExpense   AccountType = "expense"
	AccountTypeRevenue   AccountType = "revenue"
)

// Role is the source- or destination-side participation record of an
// Account. ExternalID, when non-empty, is the ledger's primary key for this
// role; Notes is free text carried through to the ledger on export.
type Role struct {
	ExternalID string
	Type       AccountType
	Notes      string
}

// Clone returns an independent copy of r, or nil if r is nil.
func (r *Role) Clone() *Role {
	if r == nil {
		return nil
	}
	cloned := *r
	return &cloned
}

// Account represents one party in the ledger (spec.md §3).
type Account struct {
	ID             int64
	Name           string
	AlternateNames map[string]string // normalized name -> original display form
	BankNumbers    map[string]struct{}
	AkahuID        string // empty means unset
	Source         *Role
	Destination    *Role
}

// NewAccount returns an Account with initialized collections, ready to have
// identity fields populated.
func NewAccount(name string) Account {
	return Account{
		Name:           name,
		AlternateNames: map[string]string{NormalizeName(name): name},
		BankNumbers:    map[string]struct{}{},
	}
}

// Clone returns a deep, independent copy of a. Every accessor that returns
// stored state uses this (spec.md §9 "Deep vs shallow clone").
func (a Account) Clone() Account {
	cloned := a
	cloned.AlternateNames = make(map[string]string, len(a.AlternateNames))
	for k, v := range a.AlternateNames {
		cloned.AlternateNames[k] = v
	}
	cloned.BankNumbers = make(map[string]struct{}, len(a.BankNumbers))
	for k := range a.BankNumbers {
		cloned.BankNumbers[k] = struct{}{}
	}
	cloned.Source = a.Source.Clone()
	cloned.Destination = a.Destination.Clone()
	return cloned
}

// Validate checks the invariants of spec.md §3 that hold independent of any
// store (cross-account uniqueness is the store's responsibility).
func (a Account) Validate() error {
	if a.Source == nil && a.Destination == nil {
		return fmt.Errorf("%w: account %q has neither source nor destination role", ErrInvalidKind, a.Name)
	}
	if a.Source != nil && a.Destination != nil && a.Source.ExternalID != a.Destination.ExternalID {
		return fmt.Errorf("%w: account %q source/destination externalId mismatch", ErrInvalidKind, a.Name)
	}
	return nil
}

// AddAlternateName registers name as an alternate display form, keyed by its
// normalized form. It is a no-op if the normalized key is already present.
func (a Account) AddAlternateName(name string) {
	key := NormalizeName(name)
	if _, ok := a.AlternateNames[key]; ok {
		return
	}
	a.AlternateNames[key] = name
}

// AddBankNumber records a canonical bank number on the account.
func (a Account) AddBankNumber(canonical string) {
	a.BankNumbers[canonical] = struct{}{}
}

// HasRole reports whether a can appear on the given side of a transaction.
func (a Account) HasRole(t TransactionSide) bool {
	switch t {
	case Source:
		return a.Source != nil
	case Destination:
		return a.Destination != nil
	}
	return false
}

// TransactionSide distinguishes the two legs of a Transaction.
type TransactionSide int

const (
	Source TransactionSide = iota
	Destination
)

// Transaction represents one signed movement of value between two accounts
// in the same Account Store (spec.md §3).
type Transaction struct {
	ID                  int64
	FireflyID           string // empty means unset
	AkahuIDs            map[string]struct{}
	Description         string
	Date                time.Time
	Amount              Money
	SourceID            int64
	DestinationID       int64
	ForeignAmount       *Money
	ForeignCurrencyCode string
	CategoryName        string
}

// NewTransaction returns a Transaction with initialized collections.
func NewTransaction() Transaction {
	return Transaction{AkahuIDs: map[string]struct{}{}}
}

// Clone returns a deep, independent copy of t.
func (t Transaction) Clone() Transaction {
	cloned := t
	cloned.AkahuIDs = make(map[string]struct{}, len(t.AkahuIDs))
	for id := range t.AkahuIDs {
		cloned.AkahuIDs[id] = struct{}{}
	}
	if t.ForeignAmount != nil {
		fa := *t.ForeignAmount
		cloned.ForeignAmount = &fa
	}
	return cloned
}

// Kind is the ledger's classification of a transaction, derived from the
// (sourceType, destinationType) pair via the fixed table in spec.md §4.7.
type Kind string

const (
	KindTransfer   Kind = "transfer"
	KindWithdrawal Kind = "withdrawal"
	KindDeposit    Kind = "deposit"
)

// KindFor looks up the transaction kind for a (source, destination) account
// type pair. It returns ErrInvalidKind for pairs the table marks invalid.
func KindFor(source, destination AccountType) (Kind, error) {
	switch source {
	case AccountTypeAsset:
		switch destination {
		case AccountTypeAsset:
			return KindTransfer, nil
		case AccountTypeLiability, AccountTypeExpense:
			return KindWithdrawal, nil
		}
	case AccountTypeLiability:
		switch destination {
		case AccountTypeAsset:
			return KindDeposit, nil
		case AccountTypeLiability:
			return KindTransfer, nil
		case AccountTypeExpense:
			return KindWithdrawal, nil
		}
	case AccountTypeRevenue:
		switch destination {
		case AccountTypeAsset, AccountTypeLiability:
			return KindDeposit, nil
		}
	}
	return "", fmt.Errorf("%w: source=%s destination=%s", ErrInvalidKind, source, destination)
}
