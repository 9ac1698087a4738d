// Package export compares the original (pre-reconciliation) snapshot of
// accounts and transactions against the modified (working) state and emits
// the minimal set of create/update calls to the ledger's write API
// (spec.md §4.7).
//
// Grounded on tinoosan-ledger's internal/storage/postgres.Store: its
// UpdateAccount/UpdateJournalEntry return ErrNotFound when nothing matched,
// the same update-only-on-change discipline generalized here into an
// explicit byte-equal payload comparison, and on
// internal/service/account.Service's immutable-field checks feeding a
// create-vs-update branch.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jasmoran/akahu-firefly/internal/accountstore"
	"github.com/jasmoran/akahu-firefly/internal/ledger"
	"github.com/jasmoran/akahu-firefly/internal/txstore"
)

// AccountPayload is the wire shape of a ledger account create/update call
// (spec.md §6).
type AccountPayload struct {
	Name          string
	AccountNumber string
	Notes         string
	Type          string // only meaningful for create
}

// TransactionPayload is the wire shape of a ledger transaction
// create/update call (spec.md §6, §4.7).
type TransactionPayload struct {
	Kind                  string
	AkahuIDs              string
	Description           string
	Date                  string
	Amount                string
	SourceExternalID      string
	DestinationExternalID string
	ForeignAmount         string
	ForeignCurrencyCode   string
	CategoryName          string
}

// Writer is the ledger's write API (spec.md §6). Implementations carry
// their own bearer-token authentication.
type Writer interface {
	CreateAccount(ctx context.Context, payload AccountPayload) (externalID string, err error)
	UpdateAccount(ctx context.Context, externalID string, payload AccountPayload) error
	CreateTransaction(ctx context.Context, payload TransactionPayload) (externalID string, err error)
	UpdateTransaction(ctx context.Context, externalID string, payload TransactionPayload) error
}

// Exporter diffs and writes. DryRun suppresses the remote call but retains
// comparison and logging (spec.md §4.7).
type Exporter struct {
	Writer Writer
	DryRun bool
	Logger *slog.Logger
}

// Run executes the full pre-pass, account diff, and transaction diff in
// that order. Individual write failures are logged and do not abort the
// run (spec.md §7 best-effort export); a returned error here means the
// reconciliation state itself is inconsistent (a missing account, an
// invalid kind pairing), not a remote failure.
func (e *Exporter) Run(ctx context.Context, originalAccounts, modifiedAccounts *accountstore.Store, originalTransactions, modifiedTransactions *txstore.Store) error {
	if err := synthesizeRoles(modifiedAccounts, modifiedTransactions); err != nil {
		return err
	}
	e.exportAccounts(ctx, originalAccounts, modifiedAccounts)
	return e.exportTransactions(ctx, originalTransactions, modifiedTransactions, modifiedAccounts)
}

// synthesizeRoles implements the exporter pre-pass: a transaction's source
// account with no source role gets one (Revenue); its destination account
// with no destination role gets one (Expense). This guarantees the kind
// table always resolves (spec.md §4.7).
func synthesizeRoles(accounts *accountstore.Store, transactions *txstore.Store) error {
	for _, txn := range transactions.All() {
		src, ok := accounts.Get(txn.SourceID)
		if !ok {
			return fmt.Errorf("%w: transaction %d source account %d", ledger.ErrMissingAccount, txn.ID, txn.SourceID)
		}
		if src.Source == nil {
			src.Source = &ledger.Role{Type: ledger.AccountTypeRevenue}
			if err := accounts.Save(src); err != nil {
				return err
			}
		}

		dst, ok := accounts.Get(txn.DestinationID)
		if !ok {
			return fmt.Errorf("%w: transaction %d destination account %d", ledger.ErrMissingAccount, txn.ID, txn.DestinationID)
		}
		if dst.Destination == nil {
			dst.Destination = &ledger.Role{Type: ledger.AccountTypeExpense}
			if err := accounts.Save(dst); err != nil {
				return err
			}
		}
	}
	return nil
}

// accountContent is the comparable part of an account's update payload:
// name, sorted bank numbers, and rebuilt notes (spec.md §4.7).
type accountContent struct {
	name          string
	accountNumber string
	notes         string
}

var (
	akahuIDBlock        = regexp.MustCompile("\n*\\*\\*Akahu ID\\*\\*\\s*`[^`]+`")
	alternateNamesBlock = regexp.MustCompile("(?s)\n*\\*\\*Alternate names\\*\\*(\n-\\s*`[^`]+`)+")
)

// rebuildNotes strips any prior identity blocks from existing, then appends
// fresh ones derived from the account's current state (spec.md §4.7).
func rebuildNotes(existing, akahuID string, alternateNames map[string]string, primaryKey string) string {
	stripped := akahuIDBlock.ReplaceAllString(existing, "")
	stripped = alternateNamesBlock.ReplaceAllString(stripped, "")
	stripped = strings.TrimRight(stripped, "\n")

	if akahuID != "" {
		stripped += fmt.Sprintf("\n\n**Akahu ID** `%s`", akahuID)
	}

	var names []string
	for key, name := range alternateNames {
		if key == primaryKey {
			continue
		}
		names = append(names, strings.ReplaceAll(name, "`", "'"))
	}
	sort.Strings(names)
	if len(names) > 0 {
		stripped += "\n\n**Alternate names**"
		for _, name := range names {
			stripped += fmt.Sprintf("\n- `%s`", name)
		}
	}
	return stripped
}

func sortedBankNumbers(a ledger.Account) string {
	numbers := make([]string, 0, len(a.BankNumbers))
	for bn := range a.BankNumbers {
		numbers = append(numbers, bn)
	}
	sort.Strings(numbers)
	return strings.Join(numbers, ",")
}

func buildAccountContent(a ledger.Account, role *ledger.Role) accountContent {
	return accountContent{
		name:          a.Name,
		accountNumber: sortedBankNumbers(a),
		notes:         rebuildNotes(role.Notes, a.AkahuID, a.AlternateNames, ledger.NormalizeName(a.Name)),
	}
}

func (c accountContent) payload(typ ledger.AccountType) AccountPayload {
	return AccountPayload{Name: c.name, AccountNumber: c.accountNumber, Notes: c.notes, Type: string(typ)}
}

// exportAccounts walks modifiedAccounts in insertion order and emits a
// create or update for each side whose payload changed (spec.md §4.7).
func (e *Exporter) exportAccounts(ctx context.Context, originalAccounts, modifiedAccounts *accountstore.Store) {
	for _, account := range modifiedAccounts.All() {
		original, hasOriginal := originalAccounts.Get(account.ID)

		if account.Source != nil {
			content := buildAccountContent(account, account.Source)
			changed := true
			if hasOriginal && original.Source != nil {
				changed = buildAccountContent(original, original.Source) != content
			}
			if changed {
				e.writeAccount(ctx, account.Source.ExternalID, content.payload(account.Source.Type))
			}
		}

		if account.Destination != nil && account.Destination.Type == ledger.AccountTypeExpense {
			content := buildAccountContent(account, account.Destination)
			changed := true
			if hasOriginal && original.Destination != nil {
				changed = buildAccountContent(original, original.Destination) != content
			}
			if changed {
				e.writeAccount(ctx, account.Destination.ExternalID, content.payload(account.Destination.Type))
			}
		}
	}
}

func (e *Exporter) writeAccount(ctx context.Context, externalID string, payload AccountPayload) {
	create := externalID == ""
	if e.DryRun {
		e.Logger.Info("dry-run account write", "create", create, "externalId", externalID, "name", payload.Name)
		return
	}
	if create {
		newID, err := e.Writer.CreateAccount(ctx, payload)
		if err != nil {
			e.Logger.Error("create account failed", "name", payload.Name, "error", err)
			return
		}
		e.Logger.Info("created account", "externalId", newID, "name", payload.Name)
		return
	}
	if err := e.Writer.UpdateAccount(ctx, externalID, payload); err != nil {
		e.Logger.Error("update account failed", "externalId", externalID, "name", payload.Name, "error", err)
		return
	}
	e.Logger.Info("updated account", "externalId", externalID, "name", payload.Name)
}

func moneyString(m *ledger.Money) string {
	if m == nil {
		return ""
	}
	return m.String()
}

// buildTransactionPayload resolves txn's source/destination accounts
// against accounts and derives its kind, failing with ErrMissingAccount or
// ErrInvalidKind as appropriate.
func buildTransactionPayload(txn ledger.Transaction, accounts *accountstore.Store) (TransactionPayload, error) {
	source, ok := accounts.Get(txn.SourceID)
	if !ok {
		return TransactionPayload{}, fmt.Errorf("%w: transaction %d source account %d", ledger.ErrMissingAccount, txn.ID, txn.SourceID)
	}
	destination, ok := accounts.Get(txn.DestinationID)
	if !ok {
		return TransactionPayload{}, fmt.Errorf("%w: transaction %d destination account %d", ledger.ErrMissingAccount, txn.ID, txn.DestinationID)
	}
	if source.Source == nil || destination.Destination == nil {
		return TransactionPayload{}, fmt.Errorf("%w: transaction %d missing synthesized role", ledger.ErrInvalidKind, txn.ID)
	}
	kind, err := ledger.KindFor(source.Source.Type, destination.Destination.Type)
	if err != nil {
		return TransactionPayload{}, fmt.Errorf("transaction %d: %w", txn.ID, err)
	}

	akahuIDs := make([]string, 0, len(txn.AkahuIDs))
	for id := range txn.AkahuIDs {
		akahuIDs = append(akahuIDs, id)
	}
	sort.Strings(akahuIDs)

	return TransactionPayload{
		Kind:                  string(kind),
		AkahuIDs:              strings.Join(akahuIDs, ","),
		Description:           txn.Description,
		Date:                  txn.Date.Format(time.RFC3339),
		Amount:                txn.Amount.String(),
		SourceExternalID:      source.Source.ExternalID,
		DestinationExternalID: destination.Destination.ExternalID,
		ForeignAmount:         moneyString(txn.ForeignAmount),
		ForeignCurrencyCode:   txn.ForeignCurrencyCode,
		CategoryName:          txn.CategoryName,
	}, nil
}

// exportTransactions walks modifiedTransactions in insertion order and
// emits a create or update for each one whose payload changed, where the
// original-side payload is computed against the *modified* account store
// (spec.md §4.7) so an account-only change (e.g. a freshly assigned
// externalId) is also detected.
func (e *Exporter) exportTransactions(ctx context.Context, originalTransactions, modifiedTransactions *txstore.Store, modifiedAccounts *accountstore.Store) error {
	for _, txn := range modifiedTransactions.All() {
		newPayload, err := buildTransactionPayload(txn, modifiedAccounts)
		if err != nil {
			return err
		}

		changed := true
		if original, ok := originalTransactions.Get(txn.ID); ok {
			if oldPayload, err := buildTransactionPayload(original, modifiedAccounts); err == nil {
				changed = oldPayload != newPayload
			}
		}
		if !changed {
			continue
		}
		e.writeTransaction(ctx, txn.FireflyID, newPayload)
	}
	return nil
}

func (e *Exporter) writeTransaction(ctx context.Context, externalID string, payload TransactionPayload) {
	create := externalID == ""
	if e.DryRun {
		e.Logger.Info("dry-run transaction write", "create", create, "externalId", externalID, "description", payload.Description)
		return
	}
	if create {
		newID, err := e.Writer.CreateTransaction(ctx, payload)
		if err != nil {
			e.Logger.Error("create transaction failed", "description", payload.Description, "error", err)
			return
		}
		e.Logger.Info("created transaction", "externalId", newID, "description", payload.Description)
		return
	}
	if err := e.Writer.UpdateTransaction(ctx, externalID, payload); err != nil {
		e.Logger.Error("update transaction failed", "externalId", externalID, "description", payload.Description, "error", err)
		return
	}
	e.Logger.Info("updated transaction", "externalId", externalID, "description", payload.Description)
}
