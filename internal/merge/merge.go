// Package merge implements the Merger: a generic structural-key fold of one
// Transaction collection into another (spec.md §4.6). It is used both to
// combine a feed's internal-transfer pools into a single leg and to combine
// a Feed Transaction Store into the working Transaction Store.
//
// Grounded on the matching-then-combine two-pass shape used for duplicate
// detection in other_examples' import-duplicate-strategy file, and on
// tinoosan-ledger's journal service (validate candidates before committing
// any mutation, then apply).
package merge

import (
	"sort"
	"strings"
	"time"

	"github.com/jasmoran/akahu-firefly/internal/ledger"
	"github.com/jasmoran/akahu-firefly/internal/txstore"
)

// candidateWindow bounds how far apart two transactions' dates may be and
// still be considered for fusion.
const candidateWindow = 3 * 24 * time.Hour

// Predicate is an additional, caller-supplied match condition evaluated on
// top of the fixed structural key (sourceId, destinationId, amount, and any
// set fireflyId/foreignAmount/foreignCurrencyCode). A nil Predicate always
// matches.
type Predicate func(a, b ledger.Transaction) bool

// Combiner lets a caller fold extra fields together after the standard
// fusion rule has applied (e.g. concatenating descriptions for a fused
// internal transfer). a holds the already-fused result; b is the other-side
// transaction being merged in. A nil Combiner is a no-op.
type Combiner func(a *ledger.Transaction, b ledger.Transaction)

// Merge folds other into self in place: for every transaction in each
// collection it looks for a structurally matching (and predicate-satisfying)
// counterpart in the other collection within a three-day window, preferring
// the closest date match and breaking ties by ascending description
// similarity (spec.md §9 Design Note: the least, not most, similar
// candidate wins a tie). Matches are fused onto the self-side entry and
// saved. Anything left over in other after both passes is created in self.
//
// leftRemainder holds self-side entries that never found a counterpart;
// rightRemainder holds other-side entries that never found a counterpart and
// were instead created fresh in self. Both are returned so callers that
// require every entry to pair off (internal-transfer fusion) can treat a
// non-empty remainder as an error.
func Merge(self, other *txstore.Store, equivalent Predicate, combine Combiner) (leftRemainder []ledger.Transaction, rightRemainder []ledger.Transaction, err error) {
	if equivalent == nil {
		equivalent = func(ledger.Transaction, ledger.Transaction) bool { return true }
	}
	if combine == nil {
		combine = func(*ledger.Transaction, ledger.Transaction) {}
	}

	selfAll := self.All()
	otherAll := other.All()
	selfUsed := make([]bool, len(selfAll))
	otherUsed := make([]bool, len(otherAll))

	// First pass: every self entry looks for its best match among other.
	for i, a := range selfAll {
		j, ok := selectBest(a, otherAll, otherUsed, equivalent)
		if !ok {
			continue
		}
		fused := a
		fuse(&fused, otherAll[j], combine)
		if err := self.Save(fused); err != nil {
			return nil, nil, err
		}
		selfAll[i] = fused
		selfUsed[i] = true
		otherUsed[j] = true
	}

	// Second pass: leftover other entries try to pair with leftover self
	// entries; anything still unmatched is created fresh in self.
	for j, b := range otherAll {
		if otherUsed[j] {
			continue
		}
		i, ok := selectBest(b, selfAll, selfUsed, equivalent)
		if ok {
			fused := selfAll[i]
			fuse(&fused, b, combine)
			if err := self.Save(fused); err != nil {
				return nil, nil, err
			}
			selfAll[i] = fused
			selfUsed[i] = true
			otherUsed[j] = true
			continue
		}
		created, err := self.Create(b)
		if err != nil {
			return nil, nil, err
		}
		rightRemainder = append(rightRemainder, created)
	}

	for i, used := range selfUsed {
		if !used {
			leftRemainder = append(leftRemainder, selfAll[i])
		}
	}
	return leftRemainder, rightRemainder, nil
}

// structurallyEqual is the fixed part of the match key: source/destination
// account and amount must agree, and any identity field set on both sides
// must agree.
func structurallyEqual(a, b ledger.Transaction) bool {
	if a.SourceID != b.SourceID || a.DestinationID != b.DestinationID {
		return false
	}
	if !a.Amount.Equal(b.Amount) {
		return false
	}
	if a.FireflyID != "" && b.FireflyID != "" && a.FireflyID != b.FireflyID {
		return false
	}
	if a.ForeignAmount != nil && b.ForeignAmount != nil && !a.ForeignAmount.Equal(*b.ForeignAmount) {
		return false
	}
	if a.ForeignCurrencyCode != "" && b.ForeignCurrencyCode != "" && a.ForeignCurrencyCode != b.ForeignCurrencyCode {
		return false
	}
	return true
}

type candidate struct {
	idx      int
	distance time.Duration
	dice     float64
}

// selectBest finds the index in pool (skipping used entries) that best
// matches base: structurally equal, predicate-satisfying, within
// candidateWindow of base's date, closest date first, ascending description
// similarity as a tie-break.
func selectBest(base ledger.Transaction, pool []ledger.Transaction, used []bool, equivalent Predicate) (int, bool) {
	var candidates []candidate
	for idx, cand := range pool {
		if used[idx] {
			continue
		}
		if !structurallyEqual(base, cand) {
			continue
		}
		if !equivalent(base, cand) {
			continue
		}
		distance := base.Date.Sub(cand.Date)
		if distance < 0 {
			distance = -distance
		}
		if distance > candidateWindow {
			continue
		}
		candidates = append(candidates, candidate{
			idx:      idx,
			distance: distance,
			dice:     ledger.DiceCoefficient(strings.ToLower(base.Description), strings.ToLower(cand.Description)),
		})
	}
	if len(candidates) == 0 {
		return 0, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].dice < candidates[j].dice
	})
	return candidates[0].idx, true
}

// fuse applies the standard field-fusion rule, then calls combine for any
// caller-specific extra behaviour.
func fuse(a *ledger.Transaction, b ledger.Transaction, combine Combiner) {
	if a.FireflyID == "" {
		a.FireflyID = b.FireflyID
	}
	for akahuID := range b.AkahuIDs {
		a.AkahuIDs[akahuID] = struct{}{}
	}
	if a.ForeignAmount == nil && b.ForeignAmount != nil {
		fa := *b.ForeignAmount
		a.ForeignAmount = &fa
	}
	if a.ForeignCurrencyCode == "" {
		a.ForeignCurrencyCode = b.ForeignCurrencyCode
	}
	if a.CategoryName == "" {
		a.CategoryName = b.CategoryName
	}
	if hasClock(b.Date) && !hasClock(a.Date) {
		a.Date = b.Date
	}
	combine(a, b)
}

// hasClock reports whether t carries a non-midnight time-of-day component,
// used to prefer a timestamped date over a date-only one when fusing.
func hasClock(t time.Time) bool {
	h, m, s := t.Clock()
	return h != 0 || m != 0 || s != 0
}
