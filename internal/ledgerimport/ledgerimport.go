// Package ledgerimport transforms rows read from the ledger-of-record into
// ledger.Account and ledger.Transaction values and loads them into an
// Account Store and Transaction Store (spec.md §4.4).
//
// Grounded on tinoosan-ledger's internal/service/account.Service: a
// validate-then-create flow keyed off a fixed per-type rule table
// (normalizedPathString), generalized here to the Asset/Liability/
// Expense/Revenue role table and to notes-embedded identity hints.
package ledgerimport

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jasmoran/akahu-firefly/internal/accountstore"
	"github.com/jasmoran/akahu-firefly/internal/ledger"
	"github.com/jasmoran/akahu-firefly/internal/txstore"
)

// AccountRow is one row produced by the ledger's account reader (spec.md §6).
type AccountRow struct {
	ID            int
	Type          string
	Name          string
	IBAN          string
	AccountNumber string
	ExternalID    string
	Notes         string
}

// TransactionRow is one row produced by the ledger's transaction reader
// (spec.md §6).
type TransactionRow struct {
	ID                  int
	Type                string
	Description         string
	Date                time.Time
	Amount              ledger.Money
	SourceID            int
	DestinationID       int
	ForeignAmount       *ledger.Money
	ForeignCurrencyCode string
	ExternalID          string
	CategoryName        string
}

// accountTypes maps the ledger's account-type string to the core's
// AccountType enum. Rows whose type is outside this table are dropped.
var accountTypes = map[string]ledger.AccountType{
	"asset":     ledger.AccountTypeAsset,
	"liability": ledger.AccountTypeLiability,
	"expense":   ledger.AccountTypeExpense,
	"revenue":   ledger.AccountTypeRevenue,
}

var (
	akahuIDPattern  = regexp.MustCompile("\\*\\*Akahu ID\\*\\* `([^`]+)`")
	altNamesHeader  = regexp.MustCompile(`(?s)\*\*Alternate names\*\*((?:\n-\s*` + "`" + `[^` + "`" + `]+` + "`" + `)+)`)
	altNameLine     = regexp.MustCompile("-\\s*`([^`]+)`")
)

// ParseNotes extracts the Akahu ID and alternate names embedded in a ledger
// account's free-text notes field, per the blocks the exporter writes
// (spec.md §4.7).
func ParseNotes(notes string) (akahuID string, alternateNames []string) {
	if m := akahuIDPattern.FindStringSubmatch(notes); m != nil {
		akahuID = m[1]
	}
	if m := altNamesHeader.FindStringSubmatch(notes); m != nil {
		for _, line := range altNameLine.FindAllStringSubmatch(m[1], -1) {
			alternateNames = append(alternateNames, line[1])
		}
	}
	return akahuID, alternateNames
}

// parseBankNumbers splits a comma-separated bank-number field, keeps only
// entries matching the strict four-group shape, and canonicalizes them.
func parseBankNumbers(field string) []string {
	var out []string
	for _, raw := range strings.Split(field, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" || !ledger.IsBankNumberShape(raw) {
			continue
		}
		canonical, err := ledger.CanonicalizeBankNumber(raw)
		if err != nil {
			continue
		}
		out = append(out, canonical)
	}
	return out
}

// roleFor builds the source/destination roles a candidate account of typ
// carries, per the Asset/Liability/Expense/Revenue role table (spec.md §3).
func roleFor(typ ledger.AccountType, externalID, notes string) (source, destination *ledger.Role) {
	role := &ledger.Role{ExternalID: externalID, Type: typ, Notes: notes}
	switch typ {
	case ledger.AccountTypeAsset, ledger.AccountTypeLiability:
		srcCopy := *role
		dstCopy := *role
		return &srcCopy, &dstCopy
	case ledger.AccountTypeExpense:
		return nil, role
	case ledger.AccountTypeRevenue:
		return role, nil
	}
	return nil, nil
}

// ImportAccount ingests one ledger account row into store, following the
// create-or-merge resolution of spec.md §4.4. It is a no-op (returning the
// zero Account and nil) for rows whose type is outside the fixed mapping.
func ImportAccount(store *accountstore.Store, row AccountRow) (ledger.Account, error) {
	typ, ok := accountTypes[strings.ToLower(row.Type)]
	if !ok {
		return ledger.Account{}, nil
	}

	akahuID, altNames := ParseNotes(row.Notes)
	bankNumbers := parseBankNumbers(row.AccountNumber)
	if row.IBAN != "" && ledger.IsBankNumberShape(row.IBAN) {
		if canonical, err := ledger.CanonicalizeBankNumber(row.IBAN); err == nil {
			bankNumbers = append(bankNumbers, canonical)
		}
	}

	candidate := ledger.NewAccount(strings.TrimSpace(row.Name))
	candidate.AkahuID = akahuID
	for _, bn := range bankNumbers {
		candidate.AddBankNumber(bn)
	}
	for _, name := range altNames {
		candidate.AddAlternateName(name)
	}
	candidate.Source, candidate.Destination = roleFor(typ, strconv.Itoa(row.ID), row.Notes)

	matches := collectMatches(store, candidate)
	switch len(matches) {
	case 0:
		return store.Create(candidate)
	case 1:
		if typ == ledger.AccountTypeExpense || typ == ledger.AccountTypeRevenue {
			merged, err := mergeAccounts(matches[0], candidate)
			if err != nil {
				return ledger.Account{}, err
			}
			if err := store.Save(merged); err != nil {
				return ledger.Account{}, err
			}
			return merged, nil
		}
		return ledger.Account{}, fmt.Errorf("%w: candidate %q matches existing account %q", ledger.ErrAccountConflict, candidate.Name, matches[0].Name)
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return ledger.Account{}, fmt.Errorf("%w: candidate %q matches %d existing accounts: %s", ledger.ErrAccountConflict, candidate.Name, len(matches), strings.Join(names, ", "))
	}
}

// collectMatches looks up every identifier the candidate carries and
// returns the unique set of accounts found, in first-found order.
func collectMatches(store *accountstore.Store, candidate ledger.Account) []ledger.Account {
	seen := make(map[int64]struct{})
	var matches []ledger.Account
	add := func(a ledger.Account, ok bool) {
		if !ok {
			return
		}
		if _, dup := seen[a.ID]; dup {
			return
		}
		seen[a.ID] = struct{}{}
		matches = append(matches, a)
	}

	for _, name := range candidate.AlternateNames {
		add(store.GetByName(name))
	}
	for bn := range candidate.BankNumbers {
		add(store.GetByBankNumber(bn))
	}
	if candidate.AkahuID != "" {
		add(store.GetByAkahuID(candidate.AkahuID))
	}
	if candidate.Source != nil && candidate.Source.ExternalID != "" {
		add(store.GetByExternalID(candidate.Source.ExternalID))
	}
	if candidate.Destination != nil && candidate.Destination.ExternalID != "" {
		add(store.GetByExternalID(candidate.Destination.ExternalID))
	}
	return matches
}

// mergeAccounts implements the Expense/Revenue merge rule of spec.md §4.4.1:
// the existing account's id is kept; bankNumbers and alternateNames union;
// exactly one side keeps its role, the candidate's role is attached if the
// existing account lacks it.
func mergeAccounts(existing, candidate ledger.Account) (ledger.Account, error) {
	existingKey := ledger.NormalizeName(existing.Name)
	candidateKey := ledger.NormalizeName(candidate.Name)
	if existingKey != candidateKey {
		return ledger.Account{}, fmt.Errorf("%w: merge candidate %q does not share a normalized name with %q", ledger.ErrAccountConflict, candidate.Name, existing.Name)
	}

	merged := existing.Clone()
	for key, name := range candidate.AlternateNames {
		if _, ok := merged.AlternateNames[key]; !ok {
			merged.AlternateNames[key] = name
		}
	}
	for bn := range candidate.BankNumbers {
		merged.BankNumbers[bn] = struct{}{}
	}
	if merged.AkahuID == "" {
		merged.AkahuID = candidate.AkahuID
	}

	if candidate.Source != nil {
		if merged.Source != nil && merged.Source.ExternalID != "" && candidate.Source.ExternalID != "" && merged.Source.ExternalID != candidate.Source.ExternalID {
			return ledger.Account{}, fmt.Errorf("%w: merge candidate %q has conflicting source externalId", ledger.ErrAccountConflict, candidate.Name)
		}
		if merged.Source == nil {
			merged.Source = candidate.Source.Clone()
		}
	}
	if candidate.Destination != nil {
		if merged.Destination != nil && merged.Destination.ExternalID != "" && candidate.Destination.ExternalID != "" && merged.Destination.ExternalID != candidate.Destination.ExternalID {
			return ledger.Account{}, fmt.Errorf("%w: merge candidate %q has conflicting destination externalId", ledger.ErrAccountConflict, candidate.Name)
		}
		if merged.Destination == nil {
			merged.Destination = candidate.Destination.Clone()
		}
	}
	return merged, nil
}

// transactionAkahuIDPrefix marks the feed-transaction-id entries in a
// ledger transaction's comma-separated externalId field; anything else is
// discarded (spec.md §4.4).
const transactionAkahuIDPrefix = "trans_"

// ImportTransaction ingests one ledger transaction row into store, resolving
// its source and destination accounts via their ledger externalId in
// accounts.
func ImportTransaction(accounts *accountstore.Store, store *txstore.Store, row TransactionRow) (ledger.Transaction, error) {
	source, ok := accounts.GetByExternalID(strconv.Itoa(row.SourceID))
	if !ok {
		return ledger.Transaction{}, fmt.Errorf("%w: ledger transaction %d references unknown source account %d", ledger.ErrMissingAccount, row.ID, row.SourceID)
	}
	destination, ok := accounts.GetByExternalID(strconv.Itoa(row.DestinationID))
	if !ok {
		return ledger.Transaction{}, fmt.Errorf("%w: ledger transaction %d references unknown destination account %d", ledger.ErrMissingAccount, row.ID, row.DestinationID)
	}

	txn := ledger.NewTransaction()
	txn.FireflyID = strconv.Itoa(row.ID)
	for _, id := range strings.Split(row.ExternalID, ",") {
		id = strings.TrimSpace(id)
		if strings.HasPrefix(id, transactionAkahuIDPrefix) {
			txn.AkahuIDs[id] = struct{}{}
		}
	}
	txn.Description = row.Description
	txn.Date = row.Date
	txn.Amount = row.Amount.Abs()
	txn.SourceID = source.ID
	txn.DestinationID = destination.ID
	txn.ForeignAmount = row.ForeignAmount
	txn.ForeignCurrencyCode = row.ForeignCurrencyCode
	txn.CategoryName = row.CategoryName

	return store.Create(txn)
}
