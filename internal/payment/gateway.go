package payment

import (
	"context"
	"slices"
	"strconv"
	"strings"
)

// IntentStatus is the gateway-reported state of a payment intent, collapsed
// to what settlement cares about.
type IntentStatus string

const (
	StatusSucceeded IntentStatus = "succeeded"
	StatusPending   IntentStatus = "pending"
	StatusFailed    IntentStatus = "failed"
)

// Metadata keys binding an intent to the debt it pays.
const (
	MetaPersonID = "person_id"
	MetaItemIDs  = "item_ids"
)

// Intent is a gateway-side authorization to collect AmountMinor.
type Intent struct {
	Ref          string            `json:"ref"`
	ClientSecret string            `json:"client_secret,omitempty"`
	AmountMinor  int64             `json:"amount_minor"`
	Currency     string            `json:"currency"`
	Status       IntentStatus      `json:"-"`
	Metadata     map[string]string `json:"-"`
}

type Gateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency, description string, metadata map[string]string) (*Intent, error)
	// Verify returns the intent as the gateway currently sees it.
	Verify(ctx context.Context, ref string) (*Intent, error)
}

// Binding is the metadata an intent for personID's debt on itemIDs carries.
func Binding(personID int32, itemIDs []int32) map[string]string {
	ids := slices.Sorted(slices.Values(itemIDs))
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	return map[string]string{
		MetaPersonID: strconv.FormatInt(int64(personID), 10),
		MetaItemIDs:  strings.Join(parts, ","),
	}
}

// BoundTo reports whether the intent was created for exactly this binding.
func (i *Intent) BoundTo(binding map[string]string) bool {
	for k, v := range binding {
		if i.Metadata[k] != v {
			return false
		}
	}
	return len(binding) > 0
}
