// Package feedimport transforms decoded feed-transaction records into
// ledger.Transaction values, resolving each record's counterparty account
// and detecting/fusing same-user internal transfers (spec.md §4.5).
//
// Grounded on tinoosan-ledger's internal/service/journal.Service: a
// parse -> resolve accounts -> build pipeline (EntryInput validation), with
// the transfer-pairing idea grounded on the matched debit/credit recognition
// in other_examples' multicurrency payment transfer service.
package feedimport

import (
	"fmt"
	"strings"
	"time"

	"github.com/jasmoran/akahu-firefly/internal/accountstore"
	"github.com/jasmoran/akahu-firefly/internal/ledger"
	"github.com/jasmoran/akahu-firefly/internal/merge"
	"github.com/jasmoran/akahu-firefly/internal/txstore"
)

// ownedAccountPrefix marks an akahuId as belonging to the feed user's own
// accounts, as opposed to a merchant or counterparty (spec.md GLOSSARY).
const ownedAccountPrefix = "acc_"

// Conversion is a feed record's optional currency-conversion attachment.
// Fee and Rate are carried on the record but neither read nor persisted
// onto the resulting Transaction (spec.md §9).
type Conversion struct {
	CurrencyCode string
	Amount       ledger.Money
	Rate         string
	Fee          string
}

// Record is one decoded feed-transaction record (spec.md §6).
type Record struct {
	ID                 string
	AccountID          string
	Amount             ledger.Money // signed: negative is a debit from the owner's perspective
	Date               time.Time
	Description        string
	MerchantID         string
	Reference          string
	Particulars        string
	Code               string
	OtherAccountNumber string
	Conversion         *Conversion
	CategoryName       string
}

// primaryType returns the AccountType of whichever role a carries, for
// accounts where both roles (if present) always agree (spec.md §3).
func primaryType(a ledger.Account) ledger.AccountType {
	if a.Source != nil {
		return a.Source.Type
	}
	if a.Destination != nil {
		return a.Destination.Type
	}
	return ""
}

func isOwned(a ledger.Account) bool {
	return strings.HasPrefix(a.AkahuID, ownedAccountPrefix)
}

// resolveCounterparty runs the ordered counterparty-resolution strategies
// of spec.md §4.5, returning the first hit.
func resolveCounterparty(accounts *accountstore.Store, record Record) (ledger.Account, error) {
	if strings.Contains(strings.ToLower(record.Description), "interest") {
		if a, ok := accounts.GetByName("Interest"); ok {
			return a, nil
		}
	}
	if record.MerchantID != "" {
		if a, ok := accounts.GetByAkahuID(record.MerchantID); ok {
			return a, nil
		}
	}
	if record.OtherAccountNumber != "" {
		if a, ok := accounts.GetByBankNumber(record.OtherAccountNumber); ok {
			return a, nil
		}
	}

	best, bestScore, err := accounts.GetByNameFuzzy(record.Description)
	if err != nil {
		return ledger.Account{}, err
	}
	if record.Reference != "" {
		stripped := strings.TrimSpace(strings.ReplaceAll(record.Description, record.Reference, ""))
		if alt, altScore, err := accounts.GetByNameFuzzy(stripped); err == nil && altScore > bestScore {
			best, bestScore = alt, altScore
		}
	}
	return best, nil
}

// ensureRole attaches the given role to acc if it doesn't already carry one
// on that side, and persists the change. Per spec.md §9 Design Note, a
// missing role is attached to the *same* account rather than cloned into a
// second one, to preserve name uniqueness.
func ensureRole(accounts *accountstore.Store, acc ledger.Account, side ledger.TransactionSide, typ ledger.AccountType) (ledger.Account, error) {
	switch side {
	case ledger.Source:
		if acc.Source != nil {
			return acc, nil
		}
		acc.Source = &ledger.Role{Type: typ}
	case ledger.Destination:
		if acc.Destination != nil {
			return acc, nil
		}
		acc.Destination = &ledger.Role{Type: typ}
	}
	if err := accounts.Save(acc); err != nil {
		return ledger.Account{}, err
	}
	return acc, nil
}

// cleanDescription strips any occurrences of reference, code, and
// particulars from the record's description, then trims it.
func cleanDescription(record Record) string {
	desc := record.Description
	for _, tag := range []string{record.Reference, record.Code, record.Particulars} {
		if tag != "" {
			desc = strings.ReplaceAll(desc, tag, "")
		}
	}
	return strings.TrimSpace(desc)
}

// BuildTransaction resolves one feed record into a Transaction, promoting a
// missing Expense/Revenue role onto the counterparty account where needed.
// internalTransfer reports whether both the owner and the counterparty are
// owned accounts of the same user, a candidate for transfer fusion.
func BuildTransaction(accounts *accountstore.Store, record Record) (txn ledger.Transaction, internalTransfer bool, err error) {
	owner, ok := accounts.GetByAkahuID(record.AccountID)
	if !ok {
		return ledger.Transaction{}, false, fmt.Errorf("%w: feed account %q", ledger.ErrUnconfiguredAccount, record.AccountID)
	}
	switch primaryType(owner) {
	case ledger.AccountTypeAsset, ledger.AccountTypeLiability:
	default:
		return ledger.Transaction{}, false, fmt.Errorf("%w: feed account %q is not asset or liability", ledger.ErrUnconfiguredAccount, record.AccountID)
	}

	counterparty, err := resolveCounterparty(accounts, record)
	if err != nil {
		return ledger.Transaction{}, false, fmt.Errorf("resolve counterparty for feed transaction %s: %w", record.ID, err)
	}
	internalTransfer = isOwned(owner) && isOwned(counterparty)

	var sourceAccount, destAccount ledger.Account
	if record.Amount.IsNegative() {
		sourceAccount = owner
		counterparty, err = ensureRole(accounts, counterparty, ledger.Destination, ledger.AccountTypeExpense)
		if err != nil {
			return ledger.Transaction{}, false, err
		}
		destAccount = counterparty
	} else {
		destAccount = owner
		counterparty, err = ensureRole(accounts, counterparty, ledger.Source, ledger.AccountTypeRevenue)
		if err != nil {
			return ledger.Transaction{}, false, err
		}
		sourceAccount = counterparty
	}

	txn = ledger.NewTransaction()
	txn.AkahuIDs[record.ID] = struct{}{}
	txn.Amount = record.Amount.Abs()
	txn.Date = record.Date
	txn.Description = cleanDescription(record)
	txn.SourceID = sourceAccount.ID
	txn.DestinationID = destAccount.ID
	txn.CategoryName = record.CategoryName
	if record.Conversion != nil {
		foreignAmount := record.Conversion.Amount
		txn.ForeignAmount = &foreignAmount
		txn.ForeignCurrencyCode = record.Conversion.CurrencyCode
	}
	return txn, internalTransfer, nil
}

// combineTransferDescriptions is the Merger combiner used for internal
// transfer fusion: the matched debit and credit legs' descriptions are
// concatenated (spec.md §4.5).
func combineTransferDescriptions(a *ledger.Transaction, b ledger.Transaction) {
	a.Description = a.Description + " - " + b.Description
}

// ImportFeed builds a Transaction for every record, fuses internal-transfer
// pairs via the Merger, and returns the resulting Feed Transaction Store.
// Any unpaired internal-transfer leg is reported as ErrUnmatchedTransfer.
// Non-internal transactions go straight into the result store, which is
// separate from the transfer pools, so they never compete with unpaired
// transfer legs; fused transfers are appended to the result after them.
func ImportFeed(accounts *accountstore.Store, records []Record) (*txstore.Store, error) {
	result := txstore.New()
	positive := txstore.New()
	negative := txstore.New()

	for _, record := range records {
		txn, transfer, err := BuildTransaction(accounts, record)
		if err != nil {
			return nil, err
		}
		if !transfer {
			if _, err := result.Create(txn); err != nil {
				return nil, fmt.Errorf("import feed transaction %s: %w", record.ID, err)
			}
			continue
		}
		pool := positive
		if record.Amount.IsNegative() {
			pool = negative
		}
		if _, err := pool.Create(txn); err != nil {
			return nil, fmt.Errorf("import feed transaction %s: %w", record.ID, err)
		}
	}

	left, right, err := merge.Merge(positive, negative, nil, combineTransferDescriptions)
	if err != nil {
		return nil, err
	}
	if len(left) > 0 || len(right) > 0 {
		return nil, fmt.Errorf("%w: %d unpaired credit-side, %d unpaired debit-side", ledger.ErrUnmatchedTransfer, len(left), len(right))
	}

	for _, txn := range positive.All() {
		if _, err := result.Create(txn); err != nil {
			return nil, fmt.Errorf("import fused internal transfer: %w", err)
		}
	}

	return result, nil
}
