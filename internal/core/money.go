// Package core provides the balance-tracking domain: monetary amounts,
// calendar dates and the chart series builders.
//
// This file contains locale-tolerant amount parsing. Manual entry and
// CSV exports mix EU and US separator conventions, so parsing cannot
// assume either one up front.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point monetary amount with two fractional digits,
// stored as cents. Balances may be negative (debt accounts).
type Money struct {
	Cents int64
}

// ParseAmount normalizes a human-entered numeric string into a Money value.
//
// When both "," and "." appear, whichever occurs last is the decimal
// separator and the other is stripped as a thousands separator:
//
//	ParseAmount("1.234,56") -> 1234.56
//	ParseAmount("1,234.56") -> 1234.56
//
// A lone comma is treated as the decimal separator ("1234,56" -> 1234.56).
// The result is quantized to exactly two fractional digits.
func ParseAmount(raw string) (Money, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Money{}, fmt.Errorf("%w: amount", ErrMissingValue)
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	return FromDecimal(d), nil
}

// FromDecimal quantizes d to two fractional digits (banker's rounding,
// matching decimal quantize semantics) and converts it to cents.
func FromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.RoundBank(2).Shift(2).IntPart()}
}

// Decimal returns the amount as an exact two-digit decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the canonical form with a dot decimal separator and
// exactly two fractional digits, e.g. "1234.56". ParseAmount is
// idempotent on this form.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float64 returns the amount as a float for chart payloads.
// Use Cents for arithmetic to avoid floating-point precision issues.
func (m Money) Float64() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

func (m Money) IsNegative() bool {
	return m.Cents < 0
}
