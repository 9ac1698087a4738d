package ledger

import (
	"fmt"

	"github.com/govalues/decimal"
)

// Money is an exact-precision signed decimal used for transaction amounts
// and feed records. It wraps govalues/decimal so arithmetic never drifts
// through a binary float representation. Transaction.Amount is always
// stored non-negative (spec.md §3); feed amounts carry sign until the feed
// importer takes their absolute value.
type Money struct {
	d decimal.Decimal
}

// ZeroMoney is the additive identity.
var ZeroMoney = Money{}

// ParseMoney parses a decimal string (e.g. "12.50", rounded 2dp per the
// ledger reader's contract) into a Money value.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return Money{d: d}, nil
}

// MustMoney parses s or panics; only used for compile-time-known literals.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Abs returns the absolute value of m.
func (m Money) Abs() Money {
	return Money{d: m.d.Abs()}
}

// Add returns m+other. Per spec.md §4.1 this never loses precision.
func (m Money) Add(other Money) (Money, error) {
	sum, err := m.d.Add(other.d)
	if err != nil {
		return Money{}, fmt.Errorf("add money: %w", err)
	}
	return Money{d: sum}, nil
}

// Equal compares two Money values by value, ignoring trailing-zero scale
// differences (so "5.00" == "5"), per spec.md §4.1.
func (m Money) Equal(other Money) bool {
	return m.d.Equal(other.d)
}

// IsZero reports whether m is exactly zero.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// IsNegative reports whether m is strictly less than zero.
func (m Money) IsNegative() bool {
	return m.d.Sign() < 0
}

// String renders m preserving its original scale, so "5.00" still prints
// as "5.00" rather than "5".
func (m Money) String() string {
	return m.d.String()
}
