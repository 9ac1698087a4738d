package ledgerdb

import (
	"context"
	"os"
	"testing"
	"time"
)

func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_FIREFLY_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_FIREFLY_DATABASE_URL not set; skipping ledgerdb integration tests")
	}
	return dsn
}

func TestStoreOpenReadyClose(t *testing.T) {
	dsn := getTestDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.Ready(ctx); err != nil {
		t.Fatalf("ready: %v", err)
	}
}

func TestFetchAccountsAndTransactions(t *testing.T) {
	dsn := getTestDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	accounts, err := s.FetchAccounts(ctx)
	if err != nil {
		t.Fatalf("fetch accounts: %v", err)
	}
	if accounts == nil {
		t.Fatalf("expected a non-nil slice even when empty")
	}

	transactions, err := s.FetchTransactions(ctx)
	if err != nil {
		t.Fatalf("fetch transactions: %v", err)
	}
	if transactions == nil {
		t.Fatalf("expected a non-nil slice even when empty")
	}
}
