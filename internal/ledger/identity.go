package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// bankNumberPattern matches the loose four-group bank-account-number shape
// accepted by canonicalization. Callers are expected to reject anything that
// doesn't match before calling CanonicalizeBankNumber (spec.md §4.1).
var bankNumberPattern = regexp.MustCompile(`^\d+-\d+-\d+-\d+$`)

// bankNumberWidths are the zero-padded widths of the four dash-separated
// groups in canonical form.
var bankNumberWidths = [4]int{2, 4, 7, 3}

// IsBankNumberShape reports whether s matches the loose four-group pattern
// required before canonicalization.
func IsBankNumberShape(s string) bool {
	return bankNumberPattern.MatchString(s)
}

// CanonicalizeBankNumber reformats a bank-account-number string into four
// dash-separated groups zero-padded to widths {2,4,7,3}. It is idempotent:
// canonicalizing an already-canonical number returns it unchanged. The
// caller must have already validated the input against IsBankNumberShape.
func CanonicalizeBankNumber(s string) (string, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 {
		return "", fmt.Errorf("canonicalize bank number %q: expected 4 groups, got %d", s, len(parts))
	}
	out := make([]string, 4)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return "", fmt.Errorf("canonicalize bank number %q: group %d: %w", s, i, err)
		}
		out[i] = fmt.Sprintf("%0*d", bankNumberWidths[i], n)
	}
	return strings.Join(out, "-"), nil
}

// NormalizeName reduces a display name to a comparison key: Unicode NFD
// decomposition, combining marks (category Mn) dropped, lowercased, and
// ASCII-whitespace trimmed. It is idempotent.
func NormalizeName(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Trim(strings.ToLower(b.String()), " \t\n\v\f\r")
}

// bigrams returns the ordered multiset of 2-character substrings of s.
func bigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}

// DiceCoefficient computes the Sørensen-Dice coefficient over character
// bigrams of a and b. Both inputs are compared as given; callers normalize
// first when comparing identity keys.
func DiceCoefficient(a, b string) float64 {
	ab := bigrams(a)
	bb := bigrams(b)
	if len(ab) == 0 || len(bb) == 0 {
		if a == b {
			return 1
		}
		return 0
	}
	counts := make(map[string]int, len(bb))
	for _, g := range bb {
		counts[g]++
	}
	matches := 0
	for _, g := range ab {
		if counts[g] > 0 {
			counts[g]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(len(ab)+len(bb))
}
