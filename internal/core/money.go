// Package core holds the domain types shared by every other package.
//
// Monetary amounts are decimal.Decimal throughout: intermediate sums keep
// full precision and rounding to two decimal places happens only at the
// output boundary.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-supplied decimal string into a Decimal.
//
// It accepts both dot (12.34) and comma (12,34) separators and rejects
// signs: stored amounts are strictly positive, zero and negative values
// are refused at write time.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Round2 rounds half-up to two decimal places. Only output constructors
// call it; everything upstream stays at full precision.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Round2Float is Round2 for JSON boundaries that serialize numbers.
func Round2Float(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
