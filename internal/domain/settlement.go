package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementEntry is an append-only record of money collected for item debt.
type SettlementEntry struct {
	ID          uuid.UUID       `json:"id"`
	PersonID    int32           `json:"person_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	IntentRef   string          `json:"intent_ref"`
	PaidOn      time.Time       `json:"paid_on"`
}

func NewSettlementEntry(personID int32, items []Item, amount decimal.Decimal, currency, intentRef string, now time.Time) *SettlementEntry {
	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	return &SettlementEntry{
		ID:          uuid.New(),
		PersonID:    personID,
		Description: strings.Join(titles, ","),
		Amount:      amount,
		Currency:    currency,
		IntentRef:   intentRef,
		PaidOn:      now,
	}
}
