package service

import (
	"context"
	"testing"
	"time"

	"library-lending/internal/domain"
	"library-lending/internal/payment"
	"library-lending/internal/repository/memory"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateIntent(ctx context.Context, amountMinor int64, currency, description string, metadata map[string]string) (*payment.Intent, error) {
	args := m.Called(ctx, amountMinor, currency, description, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *MockGateway) Verify(ctx context.Context, ref string) (*payment.Intent, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

// paidIntent is a verified intent for personID's debt on itemIDs.
func paidIntent(ref string, amountMinor int64, personID int32, itemIDs ...int32) *payment.Intent {
	return &payment.Intent{
		Ref:         ref,
		AmountMinor: amountMinor,
		Currency:    "usd",
		Status:      payment.StatusSucceeded,
		Metadata:    payment.Binding(personID, itemIDs),
	}
}

// MockSink
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Send(ctx context.Context, msg domain.Notification) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

var testNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func seedPerson(t *testing.T, store *memory.Store, name, email string) *domain.Person {
	t.Helper()
	p := &domain.Person{FullName: name, Email: email}
	require.NoError(t, store.People().Create(context.Background(), p))
	return p
}

func seedItem(t *testing.T, store *memory.Store, title string) *domain.Item {
	t.Helper()
	it := &domain.Item{Title: title}
	require.NoError(t, store.Items().Create(context.Background(), it))
	return it
}

// seedHeld creates an item held by personID since testNow minus heldFor.
func seedHeld(t *testing.T, store *memory.Store, title string, personID int32, heldFor time.Duration) *domain.Item {
	t.Helper()
	it := seedItem(t, store, title)
	require.NoError(t, it.Assign(personID, testNow.Add(-heldFor)))
	require.NoError(t, store.Items().Update(context.Background(), it))
	return it
}
