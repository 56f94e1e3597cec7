package ledger

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// ParseAmount reads a base-10 amount in the ledger's smallest unit.
func ParseAmount(s string) (uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uint256.Int{}, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("amount %q: %w", s, err)
	}
	return *v, nil
}

// ParseUnits converts a human decimal like "1.5" into smallest units with the
// given number of decimals.
func ParseUnits(s string, decimals int) (uint256.Int, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return uint256.Int{}, fmt.Errorf("amount %q: more than %d decimals", s, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))
	digits := strings.TrimLeft(whole+frac, "0")
	if digits == "" {
		return uint256.Int{}, nil
	}
	return ParseAmount(digits)
}

// FormatUnits renders v with decimals implied digits, truncated to places.
func FormatUnits(v uint256.Int, decimals, places int) string {
	s := v.Dec()
	if decimals <= 0 {
		return s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	whole, frac := s[:len(s)-decimals], s[len(s)-decimals:]
	if places <= 0 {
		return whole
	}
	if places < len(frac) {
		frac = frac[:places]
	}
	return whole + "." + frac
}
