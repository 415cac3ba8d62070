package utils

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"library-lending/internal/domain"
)

const (
	// GraceDays is the number of days charged at the base rate.
	GraceDays = 10
)

var (
	baseDailyRate    = decimal.NewFromInt(1)
	overdueDailyRate = decimal.NewFromInt(5)
)

// AmountOwed converts whole days held into the amount owed.
// Up to GraceDays each day costs 1; every later day costs 5.
func AmountOwed(daysHeld int) (decimal.Decimal, error) {
	if daysHeld < 0 {
		return decimal.Zero, fmt.Errorf("%w: negative holding period of %d days", domain.ErrInvalidTemporalState, daysHeld)
	}
	if daysHeld <= GraceDays {
		return baseDailyRate.Mul(decimal.NewFromInt(int64(daysHeld))), nil
	}
	grace := baseDailyRate.Mul(decimal.NewFromInt(GraceDays))
	extra := overdueDailyRate.Mul(decimal.NewFromInt(int64(daysHeld - GraceDays)))
	return grace.Add(extra), nil
}

// DaysHeld returns the number of whole days between since and now.
func DaysHeld(since, now time.Time) (int, error) {
	if since.After(now) {
		return 0, fmt.Errorf("%w: held since %s is after %s", domain.ErrInvalidTemporalState,
			since.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	return int(now.Sub(since) / (24 * time.Hour)), nil
}

// CurrentDebt is the debt an item carries at now. Settled and unheld items owe nothing.
func CurrentDebt(item *domain.Item, now time.Time) (decimal.Decimal, error) {
	if item.IsSettled() || item.HeldSince == nil {
		return decimal.Zero, nil
	}
	days, err := DaysHeld(*item.HeldSince, now)
	if err != nil {
		return decimal.Zero, err
	}
	return AmountOwed(days)
}

// ToMinorUnits converts an amount to cents for the payment gateway.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts gateway cents back to an amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
