package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OverdueThreshold is how long an item may be held before it counts as overdue.
const OverdueThreshold = 10 * 24 * time.Hour

type DebtStatus string

const (
	DebtStatusUnknown DebtStatus = ""
	DebtStatusOwed    DebtStatus = "OWED"
	DebtStatusSettled DebtStatus = "SETTLED"
)

type Item struct {
	ID           int32           `json:"id"`
	Title        string          `json:"title"`
	Author       string          `json:"author"`
	Year         int32           `json:"year"`
	HolderID     *int32          `json:"holder_id,omitempty"`
	ReservedByID *int32          `json:"reserved_by_id,omitempty"`
	HeldSince    *time.Time      `json:"held_since,omitempty"`
	Overdue      bool            `json:"overdue"`
	DebtAmount   decimal.Decimal `json:"debt_amount"`
	DebtStatus   DebtStatus      `json:"debt_status,omitempty"`
	PaymentDate  *time.Time      `json:"payment_date,omitempty"`
	Version      int32           `json:"version"`
	CreatedOn    time.Time       `json:"created_on"`
	UpdatedOn    time.Time       `json:"updated_on"`
}

func (i *Item) IsHeld() bool {
	return i.HolderID != nil
}

func (i *Item) IsReserved() bool {
	return i.ReservedByID != nil
}

func (i *Item) IsSettled() bool {
	return i.DebtStatus == DebtStatusSettled
}

// IsOverdue reports whether the item has been held longer than OverdueThreshold at now.
func (i *Item) IsOverdue(now time.Time) bool {
	return i.HeldSince != nil && now.Sub(*i.HeldSince) > OverdueThreshold
}

// Assign hands the item to personID starting at now.
func (i *Item) Assign(personID int32, now time.Time) error {
	if i.IsHeld() {
		return ErrAlreadyHeld
	}
	since := now
	i.HolderID = &personID
	i.HeldSince = &since
	i.Overdue = false
	i.DebtAmount = decimal.Zero
	i.DebtStatus = DebtStatusOwed
	i.PaymentDate = nil
	return nil
}

// Release clears the holder and returns the record of the finished holding period.
// The record must be persisted before the cleared item.
func (i *Item) Release(now time.Time) (*BorrowRecord, error) {
	if !i.IsHeld() {
		return nil, ErrNotHeld
	}
	record := &BorrowRecord{
		PersonID:   *i.HolderID,
		ItemID:     i.ID,
		ReleasedOn: now,
	}
	if i.HeldSince != nil {
		record.HeldSince = *i.HeldSince
	}

	i.HolderID = nil
	i.HeldSince = nil
	i.Overdue = false
	i.DebtAmount = decimal.Zero
	i.DebtStatus = DebtStatusOwed
	i.PaymentDate = nil
	return record, nil
}

func (i *Item) Reserve(personID int32) error {
	if i.IsReserved() {
		return ErrAlreadyReserved
	}
	i.ReservedByID = &personID
	return nil
}

func (i *Item) CancelReservation() {
	i.ReservedByID = nil
}

// MarkSettled records a successful payment at now. Paying renews the loan: the
// holding period restarts at the payment time so debt accrues from zero again.
func (i *Item) MarkSettled(now time.Time) {
	paid := now
	since := now
	i.DebtAmount = decimal.Zero
	i.DebtStatus = DebtStatusSettled
	i.PaymentDate = &paid
	i.HeldSince = &since
	i.Overdue = false
}

// SettlementExpired reports whether a settled item is still held more than grace after payment.
func (i *Item) SettlementExpired(now time.Time, grace time.Duration) bool {
	return i.IsHeld() && i.IsSettled() && i.PaymentDate != nil && now.Sub(*i.PaymentDate) > grace
}

// ItemDetails is an item enriched with values derived at read time.
type ItemDetails struct {
	Item           Item            `json:"item"`
	Overdue        bool            `json:"overdue"`
	CurrentDebt    decimal.Decimal `json:"current_debt"`
	HolderName     string          `json:"holder_name,omitempty"`
	ReservedByName string          `json:"reserved_by_name,omitempty"`
}
