package merge

import (
	"testing"
	"time"

	"github.com/jasmoran/akahu-firefly/internal/ledger"
	"github.com/jasmoran/akahu-firefly/internal/txstore"
)

func mustMoney(t *testing.T, s string) ledger.Money {
	t.Helper()
	m, err := ledger.ParseMoney(s)
	if err != nil {
		t.Fatalf("ParseMoney(%q): %v", s, err)
	}
	return m
}

func TestMergeFusesMatchingCounterpart(t *testing.T) {
	self := txstore.New()
	other := txstore.New()

	a := ledger.NewTransaction()
	a.Description = "AKAHU GROCERIES"
	a.Date = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	a.Amount = mustMoney(t, "42.50")
	a.SourceID = 1
	a.DestinationID = 2
	if _, err := self.Create(a); err != nil {
		t.Fatalf("Create self: %v", err)
	}

	b := ledger.NewTransaction()
	b.FireflyID = "txn-1"
	b.Description = "Groceries"
	b.Date = time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	b.Amount = mustMoney(t, "42.50")
	b.SourceID = 1
	b.DestinationID = 2
	b.CategoryName = "Groceries"
	if _, err := other.Create(b); err != nil {
		t.Fatalf("Create other: %v", err)
	}

	left, right, err := Merge(self, other, nil, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(left) != 0 || len(right) != 0 {
		t.Fatalf("expected no remainder, got left=%v right=%v", left, right)
	}

	all := self.All()
	if len(all) != 1 {
		t.Fatalf("expected one fused transaction in self, got %d", len(all))
	}
	fused := all[0]
	if fused.FireflyID != "txn-1" {
		t.Fatalf("expected fireflyId fused in, got %q", fused.FireflyID)
	}
	if fused.CategoryName != "Groceries" {
		t.Fatalf("expected categoryName fused in, got %q", fused.CategoryName)
	}
	if !hasClock(fused.Date) {
		t.Fatalf("expected timestamped date to win over date-only")
	}
}

func TestMergeCreatesUnmatchedOtherEntries(t *testing.T) {
	self := txstore.New()
	other := txstore.New()

	b := ledger.NewTransaction()
	b.Description = "New transaction"
	b.Date = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	b.Amount = mustMoney(t, "10.00")
	b.SourceID = 5
	b.DestinationID = 6
	if _, err := other.Create(b); err != nil {
		t.Fatalf("Create other: %v", err)
	}

	left, right, err := Merge(self, other, nil, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected no self-side remainder, got %v", left)
	}
	if len(right) != 1 {
		t.Fatalf("expected one created entry, got %d", len(right))
	}
	if self.Len() != 1 {
		t.Fatalf("expected other's entry to be created in self, got %d entries", self.Len())
	}
}

func TestMergeLeavesUnmatchedSelfEntries(t *testing.T) {
	self := txstore.New()
	other := txstore.New()

	a := ledger.NewTransaction()
	a.Description = "Standalone"
	a.Date = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a.Amount = mustMoney(t, "5.00")
	a.SourceID = 1
	a.DestinationID = 2
	if _, err := self.Create(a); err != nil {
		t.Fatalf("Create self: %v", err)
	}

	left, right, err := Merge(self, other, nil, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(right) != 0 {
		t.Fatalf("expected no other-side remainder, got %v", right)
	}
	if len(left) != 1 {
		t.Fatalf("expected one self-side remainder, got %d", len(left))
	}
}

func TestMergePrefersClosestDateOverDescriptionSimilarity(t *testing.T) {
	self := txstore.New()
	other := txstore.New()

	a := ledger.NewTransaction()
	a.Description = "COFFEE SHOP"
	a.Date = time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC)
	a.Amount = mustMoney(t, "6.00")
	a.SourceID = 1
	a.DestinationID = 2
	if _, err := self.Create(a); err != nil {
		t.Fatalf("Create self: %v", err)
	}

	near := ledger.NewTransaction()
	near.FireflyID = "near"
	near.Description = "Zzz totally different"
	near.Date = time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC)
	near.Amount = mustMoney(t, "6.00")
	near.SourceID = 1
	near.DestinationID = 2
	if _, err := other.Create(near); err != nil {
		t.Fatalf("Create near: %v", err)
	}

	far := ledger.NewTransaction()
	far.FireflyID = "far"
	far.Description = "Coffee Shop"
	far.Date = time.Date(2026, 4, 7, 0, 0, 0, 0, time.UTC)
	far.Amount = mustMoney(t, "6.00")
	far.SourceID = 1
	far.DestinationID = 2
	if _, err := other.Create(far); err != nil {
		t.Fatalf("Create far: %v", err)
	}

	left, right, err := Merge(self, other, nil, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected no self-side remainder, got %v", left)
	}
	if len(right) != 1 {
		t.Fatalf("expected one created leftover, got %d", len(right))
	}

	fused, ok := self.GetByFireflyID("near")
	if !ok {
		t.Fatalf("expected closest-date candidate %q to win the fuse", "near")
	}
	_ = fused
}

func TestMergeUsesPredicateAndCombiner(t *testing.T) {
	self := txstore.New()
	other := txstore.New()

	a := ledger.NewTransaction()
	a.Description = "Transfer out"
	a.Date = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	a.Amount = mustMoney(t, "100.00")
	a.SourceID = 1
	a.DestinationID = 2
	if _, err := self.Create(a); err != nil {
		t.Fatalf("Create self: %v", err)
	}

	b := ledger.NewTransaction()
	b.Description = "Transfer in"
	b.Date = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	b.Amount = mustMoney(t, "100.00")
	b.SourceID = 1
	b.DestinationID = 2
	if _, err := other.Create(b); err != nil {
		t.Fatalf("Create other: %v", err)
	}

	calledPredicate := false
	predicate := func(x, y ledger.Transaction) bool {
		calledPredicate = true
		return true
	}
	calledCombine := false
	combine := func(x *ledger.Transaction, y ledger.Transaction) {
		calledCombine = true
		x.Description = x.Description + " / " + y.Description
	}

	left, right, err := Merge(self, other, predicate, combine)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(left) != 0 || len(right) != 0 {
		t.Fatalf("expected full pairing, got left=%v right=%v", left, right)
	}
	if !calledPredicate {
		t.Fatalf("expected predicate to be consulted")
	}
	if !calledCombine {
		t.Fatalf("expected combiner to run on the fused pair")
	}

	fused := self.All()[0]
	if fused.Description != "Transfer out / Transfer in" {
		t.Fatalf("expected combiner to concatenate descriptions, got %q", fused.Description)
	}
}

func TestMergeReturnsStoreErrors(t *testing.T) {
	self := txstore.New()
	other := txstore.New()

	a := ledger.NewTransaction()
	a.FireflyID = "dup"
	a.Description = "A"
	a.Date = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	a.Amount = mustMoney(t, "1.00")
	a.SourceID = 9
	a.DestinationID = 10
	if _, err := self.Create(a); err != nil {
		t.Fatalf("Create self: %v", err)
	}

	b := ledger.NewTransaction()
	b.FireflyID = "dup"
	b.Description = "unrelated, far away in time and shape"
	b.Date = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	b.Amount = mustMoney(t, "999.00")
	b.SourceID = 1
	b.DestinationID = 2
	if _, err := other.Create(b); err != nil {
		t.Fatalf("Create other: %v", err)
	}

	if _, _, err := Merge(self, other, nil, nil); err == nil {
		t.Fatalf("expected duplicate fireflyId create to fail")
	}
}
