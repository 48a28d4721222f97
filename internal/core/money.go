// Package core provides money parsing and handling utilities.
//
// This file contains the Money type, stored as integer cents and converted
// to and from decimal text through shopspring/decimal.
package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

// MaxAmount is the largest absolute amount accepted, in currency units.
// Totals of millions of records stay within int64 cents.
var MaxAmount = decimal.New(1, 11)

// MaxCents is MaxAmount in cents.
const MaxCents int64 = 1e13

// CheckAmount rejects amounts whose absolute value exceeds MaxAmount.
func CheckAmount(d decimal.Decimal) error {
	if d.Abs().GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: %s exceeds %s", ErrInvalidAmount, d.String(), MaxAmount.String())
	}
	return nil
}

// MoneyFromDecimal rounds d half away from zero to two places and keeps the
// absolute value. The sign of a transaction is carried by its type. Callers
// bound d with CheckAmount first; larger values do not fit in Cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Abs().Round(2).Shift(2).IntPart()}
}

// ParseMoney converts a plain decimal string to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// the third decimal place half-up. Negative input is rejected; use
// ParseSignedDecimal when the sign matters.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234
//	ParseMoney("12,34")  -> 1234
//	ParseMoney("12.345") -> 1235
func ParseMoney(s string) (Money, error) {
	d, err := ParseSignedDecimal(s)
	if err != nil {
		return Money{}, err
	}
	if d.IsNegative() {
		return Money{}, fmt.Errorf("%w: negative value %q", ErrInvalidAmount, s)
	}
	if err := CheckAmount(d); err != nil {
		return Money{}, err
	}
	return MoneyFromDecimal(d), nil
}

// ParseSignedDecimal parses a plain decimal with an optional sign. A single
// comma is treated as the decimal separator.
func ParseSignedDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// Decimal returns the amount as a decimal with two places.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two decimals, e.g. "1234.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float returns the value as a float64 for display and spreadsheet cells.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Float() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// MarshalJSON writes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*m = Money{}
		return nil
	}
	parsed, err := ParseMoney(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
