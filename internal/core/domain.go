package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultAccountType is used when an account is created without an
// explicit category (manual form default; CSV import uses "other").
const DefaultAccountType = "bank"

const (
	isoDateLayout    = "2006-01-02"
	importDateLayout = "02.01.2006"
)

type (
	// Date is a calendar day with no intra-day granularity.
	Date struct {
		time.Time
	}

	// Account groups balance observations under a unique name.
	Account struct {
		ID                    int64
		Name                  string
		Type                  string // bank, depot, broker, ...
		MonthlyPaymentEnabled bool
		MonthlyPayment        Money
		CreatedAt             time.Time
	}

	// BalancePoint is one (account, date, balance) observation.
	// At most one point exists per account and date; a second write
	// for the same date overwrites the first.
	BalancePoint struct {
		ID        int64
		AccountID int64
		Date      Date
		Balance   Money
		CreatedAt time.Time
	}
)

var (
	ErrMissingValue  = errors.New("missing value")
	ErrInvalidNumber = errors.New("invalid number")
	ErrInvalidDate   = errors.New("invalid date")
	ErrDuplicateName = errors.New("account name already in use")
	ErrNotFound      = errors.New("not found")
)

// NewDate creates a Date from year, month, day (UTC midnight).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar day.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseFormDate parses an ISO YYYY-MM-DD date from UI form input.
// Empty input defaults to today.
func ParseFormDate(raw string) (Date, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Today(), nil
	}
	t, err := time.Parse(isoDateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q (want YYYY-MM-DD)", ErrInvalidDate, raw)
	}
	return Date{Time: t}, nil
}

// ParseImportDate parses a day-first DD.MM.YYYY date from CSV input.
// Unlike form input, an empty value is an error here, not a default.
func ParseImportDate(raw string) (Date, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Date{}, fmt.Errorf("%w: date", ErrMissingValue)
	}
	t, err := time.Parse(importDateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q (want DD.MM.YYYY)", ErrInvalidDate, raw)
	}
	return Date{Time: t}, nil
}

// ISO renders the date in its canonical YYYY-MM-DD form. ISO strings
// sort lexicographically in date order, which both the series builder
// and the storage layer rely on.
func (d Date) ISO() string {
	return d.Format(isoDateLayout)
}

// MonthlyContribution returns the recurring monthly payment, or zero
// when the flag is disabled.
func (a Account) MonthlyContribution() Money {
	if !a.MonthlyPaymentEnabled {
		return Money{}
	}
	return a.MonthlyPayment
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: account name", ErrMissingValue)
	}
	if len(a.Name) > 120 {
		return errors.New("account name too long (max 120 characters)")
	}
	return nil
}
