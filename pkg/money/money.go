// Package money holds the fixed-point rules for wallet amounts.
//
// Amounts carry two fractional digits. Inputs are rounded half away from zero
// at the boundary and every later step works on exact decimals.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for every amount.
const Scale = 2

// Max is the largest value a NUMERIC(12,2) column holds. Amounts and
// balances above it are rejected before they reach storage.
var Max = decimal.RequireFromString("9999999999.99")

var (
	// ErrNotPositive is returned when an amount rounds to zero or below.
	ErrNotPositive = errors.New("amount must be greater than 0")
	// ErrMalformed is returned when the input is not a decimal number.
	ErrMalformed = errors.New("amount is not a valid decimal")
	// ErrTooLarge is returned when an amount is above Max.
	ErrTooLarge = errors.New("amount exceeds 9999999999.99")
)

// Zero is 0.00.
var Zero = decimal.Zero

// Parse reads a decimal string, rounds it to two places and rejects
// non-positive results.
func Parse(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrMalformed
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrMalformed
	}
	return Normalize(d)
}

// Normalize rounds d to two places and rejects results outside (0, Max].
func Normalize(d decimal.Decimal) (decimal.Decimal, error) {
	r := Round(d)
	if !r.IsPositive() {
		return decimal.Zero, ErrNotPositive
	}
	if !Fits(r) {
		return decimal.Zero, ErrTooLarge
	}
	return r, nil
}

// Fits reports whether d can be stored as an amount or a balance.
func Fits(d decimal.Decimal) bool {
	return d.LessThanOrEqual(Max)
}

// Round rounds half away from zero to two places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Format renders d with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// Valid reports whether raw parses to a positive two-place amount.
func Valid(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}
