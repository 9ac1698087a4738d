package export

import (
	"context"
	"log/slog"
	"io"
	"testing"
	"time"

	"github.com/jasmoran/akahu-firefly/internal/accountstore"
	"github.com/jasmoran/akahu-firefly/internal/ledger"
	"github.com/jasmoran/akahu-firefly/internal/txstore"
)

type fakeWriter struct {
	createdAccounts     []AccountPayload
	updatedAccounts     map[string]AccountPayload
	createdTransactions []TransactionPayload
	updatedTransactions map[string]TransactionPayload
	nextExternalID      int
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		updatedAccounts:     map[string]AccountPayload{},
		updatedTransactions: map[string]TransactionPayload{},
	}
}

func (f *fakeWriter) CreateAccount(ctx context.Context, payload AccountPayload) (string, error) {
	f.createdAccounts = append(f.createdAccounts, payload)
	f.nextExternalID++
	return "acct-ext-id", nil
}

func (f *fakeWriter) UpdateAccount(ctx context.Context, externalID string, payload AccountPayload) error {
	f.updatedAccounts[externalID] = payload
	return nil
}

func (f *fakeWriter) CreateTransaction(ctx context.Context, payload TransactionPayload) (string, error) {
	f.createdTransactions = append(f.createdTransactions, payload)
	return "txn-ext-id", nil
}

func (f *fakeWriter) UpdateTransaction(ctx context.Context, externalID string, payload TransactionPayload) error {
	f.updatedTransactions[externalID] = payload
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExportAccountsSkipsUnchanged(t *testing.T) {
	original := accountstore.New()
	a := ledger.NewAccount("Everyday")
	a.Source = &ledger.Role{Type: ledger.AccountTypeAsset, ExternalID: "1"}
	a.Destination = &ledger.Role{Type: ledger.AccountTypeAsset, ExternalID: "1"}
	created, err := original.Create(a)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	modified := original.Duplicate()

	writer := newFakeWriter()
	exporter := &Exporter{Writer: writer, Logger: testLogger()}
	exporter.exportAccounts(context.Background(), original, modified)

	if len(writer.createdAccounts) != 0 || len(writer.updatedAccounts) != 0 {
		t.Fatalf("expected no writes for unchanged account, got created=%d updated=%d", len(writer.createdAccounts), len(writer.updatedAccounts))
	}
	_ = created
}

func TestExportAccountsUpdatesOnBankNumberChange(t *testing.T) {
	original := accountstore.New()
	a := ledger.NewAccount("Everyday")
	a.Source = &ledger.Role{Type: ledger.AccountTypeAsset, ExternalID: "1"}
	a.Destination = &ledger.Role{Type: ledger.AccountTypeAsset, ExternalID: "1"}
	if _, err := original.Create(a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	modified := original.Duplicate()
	acc, _ := modified.Get(1)
	acc.AddBankNumber("12-3456-7890123-00")
	if err := modified.Save(acc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	writer := newFakeWriter()
	exporter := &Exporter{Writer: writer, Logger: testLogger()}
	exporter.exportAccounts(context.Background(), original, modified)

	if len(writer.updatedAccounts) != 1 {
		t.Fatalf("expected one account update, got %d", len(writer.updatedAccounts))
	}
	payload := writer.updatedAccounts["1"]
	if payload.AccountNumber != "12-3456-7890123-00" {
		t.Fatalf("unexpected account number in payload: %q", payload.AccountNumber)
	}
}

func TestExportAccountsCreatesWhenNoExternalID(t *testing.T) {
	original := accountstore.New()
	modified := accountstore.New()
	coffee := ledger.NewAccount("Coffee")
	coffee.Destination = &ledger.Role{Type: ledger.AccountTypeExpense}
	if _, err := modified.Create(coffee); err != nil {
		t.Fatalf("Create: %v", err)
	}

	writer := newFakeWriter()
	exporter := &Exporter{Writer: writer, Logger: testLogger()}
	exporter.exportAccounts(context.Background(), original, modified)

	if len(writer.createdAccounts) != 1 {
		t.Fatalf("expected one account create, got %d", len(writer.createdAccounts))
	}
	if writer.createdAccounts[0].Type != string(ledger.AccountTypeExpense) {
		t.Fatalf("expected Expense type, got %q", writer.createdAccounts[0].Type)
	}
}

func TestRebuildNotesStripsAndAppendsBlocks(t *testing.T) {
	existing := "Free text.\n\n**Akahu ID** `acc_old`\n\n**Alternate names**\n- `Old Name`"
	got := rebuildNotes(existing, "acc_new", map[string]string{"power co": "Power Co", "powerco": "PowerCo"}, "power co")
	want := "Free text.\n\n**Akahu ID** `acc_new`\n\n**Alternate names**\n- `PowerCo`"
	if got != want {
		t.Fatalf("rebuildNotes mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestExportTransactionsSkipsUnchanged(t *testing.T) {
	accounts := accountstore.New()
	src := ledger.NewAccount("Everyday")
	src.Source = &ledger.Role{Type: ledger.AccountTypeAsset, ExternalID: "1"}
	src.Destination = &ledger.Role{Type: ledger.AccountTypeAsset, ExternalID: "1"}
	if _, err := accounts.Create(src); err != nil {
		t.Fatalf("Create src: %v", err)
	}
	dst := ledger.NewAccount("Coffee")
	dst.Destination = &ledger.Role{Type: ledger.AccountTypeExpense, ExternalID: "2"}
	if _, err := accounts.Create(dst); err != nil {
		t.Fatalf("Create dst: %v", err)
	}

	original := txstore.New()
	txn := ledger.NewTransaction()
	txn.FireflyID = "10"
	txn.Amount = ledger.MustMoney("5.00")
	txn.Date = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	txn.SourceID = 1
	txn.DestinationID = 2
	if _, err := original.Create(txn); err != nil {
		t.Fatalf("Create txn: %v", err)
	}
	modified := original.Duplicate()

	writer := newFakeWriter()
	exporter := &Exporter{Writer: writer, Logger: testLogger()}
	if err := exporter.exportTransactions(context.Background(), original, modified, accounts); err != nil {
		t.Fatalf("exportTransactions: %v", err)
	}
	if len(writer.createdTransactions) != 0 || len(writer.updatedTransactions) != 0 {
		t.Fatalf("expected no writes for unchanged transaction")
	}
}

func TestExportTransactionsCreatesWhenNoFireflyID(t *testing.T) {
	accounts := accountstore.New()
	src := ledger.NewAccount("Everyday")
	src.Source = &ledger.Role{Type: ledger.AccountTypeAsset, ExternalID: "1"}
	src.Destination = &ledger.Role{Type: ledger.AccountTypeAsset, ExternalID: "1"}
	if _, err := accounts.Create(src); err != nil {
		t.Fatalf("Create src: %v", err)
	}
	dst := ledger.NewAccount("Coffee")
	dst.Destination = &ledger.Role{Type: ledger.AccountTypeExpense, ExternalID: "2"}
	if _, err := accounts.Create(dst); err != nil {
		t.Fatalf("Create dst: %v", err)
	}

	original := txstore.New()
	modified := txstore.New()
	txn := ledger.NewTransaction()
	txn.Amount = ledger.MustMoney("5.00")
	txn.Date = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	txn.SourceID = 1
	txn.DestinationID = 2
	if _, err := modified.Create(txn); err != nil {
		t.Fatalf("Create txn: %v", err)
	}

	writer := newFakeWriter()
	exporter := &Exporter{Writer: writer, Logger: testLogger()}
	if err := exporter.exportTransactions(context.Background(), original, modified, accounts); err != nil {
		t.Fatalf("exportTransactions: %v", err)
	}
	if len(writer.createdTransactions) != 1 {
		t.Fatalf("expected one transaction create, got %d", len(writer.createdTransactions))
	}
	if writer.createdTransactions[0].Kind != string(ledger.KindWithdrawal) {
		t.Fatalf("expected Withdrawal kind, got %q", writer.createdTransactions[0].Kind)
	}
}

func TestDryRunSuppressesWrites(t *testing.T) {
	original := accountstore.New()
	modified := accountstore.New()
	coffee := ledger.NewAccount("Coffee")
	coffee.Destination = &ledger.Role{Type: ledger.AccountTypeExpense}
	if _, err := modified.Create(coffee); err != nil {
		t.Fatalf("Create: %v", err)
	}

	writer := newFakeWriter()
	exporter := &Exporter{Writer: writer, DryRun: true, Logger: testLogger()}
	exporter.exportAccounts(context.Background(), original, modified)

	if len(writer.createdAccounts) != 0 {
		t.Fatalf("expected dry-run to suppress the write, got %d creates", len(writer.createdAccounts))
	}
}

func TestSynthesizeRolesAddsMissingRoles(t *testing.T) {
	accounts := accountstore.New()
	salary := ledger.NewAccount("Salary")
	salary.Source = &ledger.Role{Type: ledger.AccountTypeRevenue}
	salaryAcc, err := accounts.Create(salary)
	if err != nil {
		t.Fatalf("Create salary: %v", err)
	}
	everyday := ledger.NewAccount("Everyday")
	everyday.Source = &ledger.Role{Type: ledger.AccountTypeAsset, ExternalID: "1"}
	everyday.Destination = &ledger.Role{Type: ledger.AccountTypeAsset, ExternalID: "1"}
	everydayAcc, err := accounts.Create(everyday)
	if err != nil {
		t.Fatalf("Create everyday: %v", err)
	}

	transactions := txstore.New()
	txn := ledger.NewTransaction()
	txn.Amount = ledger.MustMoney("100.00")
	txn.SourceID = everydayAcc.ID
	txn.DestinationID = salaryAcc.ID
	if _, err := transactions.Create(txn); err != nil {
		t.Fatalf("Create txn: %v", err)
	}

	if err := synthesizeRoles(accounts, transactions); err != nil {
		t.Fatalf("synthesizeRoles: %v", err)
	}

	updated, ok := accounts.Get(salaryAcc.ID)
	if !ok {
		t.Fatalf("expected salary account to still exist")
	}
	if updated.Destination == nil || updated.Destination.Type != ledger.AccountTypeExpense {
		t.Fatalf("expected a synthesized Expense destination role, got %+v", updated.Destination)
	}
}
