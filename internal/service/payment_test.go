package service

import (
	"context"
	"errors"
	"testing"

	"library-lending/internal/cache"
	"library-lending/internal/domain"
	"library-lending/internal/payment"
	"library-lending/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newPaymentFixture(t *testing.T) (PaymentService, *memory.Store, *MockGateway) {
	store := memory.NewStore()
	gateway := new(MockGateway)
	svc := NewPaymentService(store, gateway, cache.NewInMemoryIntentGuard(), "usd", fixedClock)
	return svc, store, gateway
}

func TestPaymentService_CreateIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("Twelve days held", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		it := seedHeld(t, store, "Dune", p.ID, days(12))

		gateway.On("CreateIntent", mock.Anything, int64(2000), "usd", "Payment for book: Dune", payment.Binding(p.ID, []int32{it.ID})).
			Return(&payment.Intent{Ref: "pi_1", ClientSecret: "secret", AmountMinor: 2000, Currency: "usd"}, nil).Once()

		intent, err := svc.CreateIntent(ctx, it.ID)
		require.NoError(t, err)
		assert.Equal(t, "pi_1", intent.Ref)
		gateway.AssertExpectations(t)

		// No ledger writes.
		stored, _ := store.Items().GetByID(ctx, it.ID)
		assert.Equal(t, it.Version, stored.Version)
	})

	t.Run("Not held", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		it := seedItem(t, store, "Dune")

		_, err := svc.CreateIntent(ctx, it.ID)
		assert.ErrorIs(t, err, domain.ErrNoBorrowDate)
		assert.ErrorIs(t, err, domain.ErrInvalidTemporalState)
		gateway.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Already settled", func(t *testing.T) {
		svc, store, _ := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		it := seedHeld(t, store, "Dune", p.ID, days(12))
		it.MarkSettled(testNow)
		require.NoError(t, store.Items().Update(ctx, it))

		_, err := svc.CreateIntent(ctx, it.ID)
		assert.ErrorIs(t, err, domain.ErrAlreadySettled)
	})

	t.Run("Nothing accrued yet", func(t *testing.T) {
		svc, store, _ := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		it := seedHeld(t, store, "Dune", p.ID, 0)

		_, err := svc.CreateIntent(ctx, it.ID)
		assert.ErrorIs(t, err, domain.ErrNothingToPay)
	})

	t.Run("Unknown item", func(t *testing.T) {
		svc, _, _ := newPaymentFixture(t)
		_, err := svc.CreateIntent(ctx, 404)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Gateway failure", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		it := seedHeld(t, store, "Dune", p.ID, days(2))

		gateway.On("CreateIntent", mock.Anything, int64(200), "usd", mock.Anything, mock.Anything).
			Return(nil, errors.New("connection reset")).Once()

		_, err := svc.CreateIntent(ctx, it.ID)
		assert.ErrorIs(t, err, domain.ErrGatewayError)
	})
}

func TestPaymentService_Confirm(t *testing.T) {
	ctx := context.Background()

	t.Run("Success renews loan", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		it := seedHeld(t, store, "Dune", p.ID, days(12))
		gateway.On("Verify", mock.Anything, "pi_1").Return(paidIntent("pi_1", 2000, p.ID, it.ID), nil).Once()

		entry, err := svc.Confirm(ctx, "pi_1", p.ID, it.ID)
		require.NoError(t, err)
		assert.True(t, entry.Amount.Equal(decimal.NewFromInt(20)))
		assert.Equal(t, "Dune", entry.Description)
		assert.Equal(t, "pi_1", entry.IntentRef)
		assert.Equal(t, p.ID, entry.PersonID)

		stored, _ := store.Items().GetByID(ctx, it.ID)
		assert.Equal(t, domain.DebtStatusSettled, stored.DebtStatus)
		assert.True(t, stored.DebtAmount.IsZero())
		assert.Equal(t, testNow, *stored.PaymentDate)
		assert.Equal(t, testNow, *stored.HeldSince)

		entries, _ := store.Settlements().ListByPerson(ctx, p.ID)
		assert.Len(t, entries, 1)
	})

	t.Run("Already settled writes nothing", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		it := seedHeld(t, store, "Dune", p.ID, days(12))
		it.MarkSettled(testNow)
		require.NoError(t, store.Items().Update(ctx, it))

		_, err := svc.Confirm(ctx, "pi_1", p.ID, it.ID)
		assert.ErrorIs(t, err, domain.ErrAlreadySettled)
		gateway.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)

		entries, _ := store.Settlements().ListByPerson(ctx, p.ID)
		assert.Empty(t, entries)
	})

	t.Run("Pending payment fails closed", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		it := seedHeld(t, store, "Dune", p.ID, days(12))
		gateway.On("Verify", mock.Anything, "pi_1").Return(&payment.Intent{Ref: "pi_1", Status: payment.StatusPending}, nil).Once()

		_, err := svc.Confirm(ctx, "pi_1", p.ID, it.ID)
		assert.ErrorIs(t, err, domain.ErrPaymentNotSucceeded)

		stored, _ := store.Items().GetByID(ctx, it.ID)
		assert.Equal(t, domain.DebtStatusOwed, stored.DebtStatus)
		entries, _ := store.Settlements().ListByPerson(ctx, p.ID)
		assert.Empty(t, entries)
	})

	t.Run("Gateway error", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		it := seedHeld(t, store, "Dune", p.ID, days(12))
		gateway.On("Verify", mock.Anything, "pi_1").Return(nil, context.DeadlineExceeded).Once()

		_, err := svc.Confirm(ctx, "pi_1", p.ID, it.ID)
		assert.ErrorIs(t, err, domain.ErrGatewayError)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Item held by someone else", func(t *testing.T) {
		svc, store, _ := newPaymentFixture(t)
		a := seedPerson(t, store, "Ada", "")
		b := seedPerson(t, store, "Bob", "")
		it := seedHeld(t, store, "Dune", a.ID, days(12))

		_, err := svc.Confirm(ctx, "pi_1", b.ID, it.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("Intent cannot settle twice", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		first := seedHeld(t, store, "Dune", p.ID, days(12))
		second := seedHeld(t, store, "Emma", p.ID, days(3))
		gateway.On("Verify", mock.Anything, "pi_1").Return(paidIntent("pi_1", 2000, p.ID, first.ID), nil)

		_, err := svc.Confirm(ctx, "pi_1", p.ID, first.ID)
		require.NoError(t, err)
		_, err = svc.Confirm(ctx, "pi_1", p.ID, second.ID)
		assert.ErrorIs(t, err, domain.ErrIntentUsed)

		stored, _ := store.Items().GetByID(ctx, second.ID)
		assert.Equal(t, domain.DebtStatusOwed, stored.DebtStatus)
	})
}

func TestPaymentService_ConfirmChecksIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("Cheap intent cannot settle a pricier item", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		cheap := seedHeld(t, store, "Cheap", p.ID, days(1))
		pricey := seedHeld(t, store, "Pricey", p.ID, days(30))
		gateway.On("Verify", mock.Anything, "pi_cheap").Return(paidIntent("pi_cheap", 100, p.ID, cheap.ID), nil)

		_, err := svc.Confirm(ctx, "pi_cheap", p.ID, pricey.ID)
		assert.ErrorIs(t, err, domain.ErrIntentMismatch)
		assert.ErrorIs(t, err, domain.ErrPaymentNotSucceeded)

		stored, _ := store.Items().GetByID(ctx, pricey.ID)
		assert.Equal(t, domain.DebtStatusOwed, stored.DebtStatus)
		entries, _ := store.Settlements().ListByPerson(ctx, p.ID)
		assert.Empty(t, entries)

		// The claim is released, so the intent still pays for its own item.
		entry, err := svc.Confirm(ctx, "pi_cheap", p.ID, cheap.ID)
		require.NoError(t, err)
		assert.True(t, entry.Amount.Equal(decimal.NewFromInt(1)))
	})

	tests := []struct {
		name   string
		intent func(personID, itemID int32) *payment.Intent
	}{
		{"Amount below debt", func(personID, itemID int32) *payment.Intent {
			return paidIntent("pi_1", 100, personID, itemID)
		}},
		{"Amount above debt", func(personID, itemID int32) *payment.Intent {
			return paidIntent("pi_1", 5000, personID, itemID)
		}},
		{"Other currency", func(personID, itemID int32) *payment.Intent {
			i := paidIntent("pi_1", 2000, personID, itemID)
			i.Currency = "eur"
			return i
		}},
		{"Other person", func(personID, itemID int32) *payment.Intent {
			return paidIntent("pi_1", 2000, personID+1, itemID)
		}},
		{"No binding", func(personID, itemID int32) *payment.Intent {
			return &payment.Intent{Ref: "pi_1", AmountMinor: 2000, Currency: "usd", Status: payment.StatusSucceeded}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, gateway := newPaymentFixture(t)
			p := seedPerson(t, store, "Ada", "")
			it := seedHeld(t, store, "Dune", p.ID, days(12))
			gateway.On("Verify", mock.Anything, "pi_1").Return(tt.intent(p.ID, it.ID), nil).Once()

			_, err := svc.Confirm(ctx, "pi_1", p.ID, it.ID)
			assert.ErrorIs(t, err, domain.ErrIntentMismatch)

			stored, _ := store.Items().GetByID(ctx, it.ID)
			assert.Equal(t, domain.DebtStatusOwed, stored.DebtStatus)
			entries, _ := store.Settlements().ListByPerson(ctx, p.ID)
			assert.Empty(t, entries)
		})
	}

	t.Run("Upper case currency", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		it := seedHeld(t, store, "Dune", p.ID, days(12))
		intent := paidIntent("pi_1", 2000, p.ID, it.ID)
		intent.Currency = "USD"
		gateway.On("Verify", mock.Anything, "pi_1").Return(intent, nil).Once()

		entry, err := svc.Confirm(ctx, "pi_1", p.ID, it.ID)
		require.NoError(t, err)
		assert.Equal(t, "usd", entry.Currency)
	})
}

func TestPaymentService_Batch(t *testing.T) {
	ctx := context.Background()

	t.Run("Five plus twenty", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		a := seedHeld(t, store, "Dubliners", p.ID, days(5))
		b := seedHeld(t, store, "Dune", p.ID, days(12))
		binding := payment.Binding(p.ID, []int32{a.ID, b.ID})

		gateway.On("CreateIntent", mock.Anything, int64(2500), "usd", "Payment for multiple books", binding).
			Return(&payment.Intent{Ref: "pi_b", AmountMinor: 2500, Currency: "usd"}, nil).Once()
		gateway.On("Verify", mock.Anything, "pi_b").Return(paidIntent("pi_b", 2500, p.ID, a.ID, b.ID), nil).Once()

		intent, err := svc.CreateIntentForBatch(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2500), intent.AmountMinor)

		entry, err := svc.ConfirmBatch(ctx, intent.Ref, p.ID)
		require.NoError(t, err)
		assert.True(t, entry.Amount.Equal(decimal.NewFromInt(25)))
		assert.Equal(t, "Dubliners,Dune", entry.Description)

		held, _ := store.Items().ListByHolder(ctx, p.ID)
		for _, it := range held {
			assert.True(t, it.IsSettled())
			assert.True(t, it.DebtAmount.IsZero())
		}

		entries, err := svc.ListSettlements(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		gateway.AssertExpectations(t)
	})

	t.Run("Settled items are skipped", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		paid := seedHeld(t, store, "Dune", p.ID, days(12))
		paid.MarkSettled(testNow)
		require.NoError(t, store.Items().Update(ctx, paid))
		emma := seedHeld(t, store, "Emma", p.ID, days(4))

		gateway.On("CreateIntent", mock.Anything, int64(400), "usd", "Payment for multiple books", payment.Binding(p.ID, []int32{emma.ID})).
			Return(&payment.Intent{Ref: "pi_c"}, nil).Once()

		_, err := svc.CreateIntentForBatch(ctx, p.ID)
		require.NoError(t, err)
		gateway.AssertExpectations(t)
	})

	t.Run("Nothing to pay", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")

		_, err := svc.CreateIntentForBatch(ctx, p.ID)
		assert.ErrorIs(t, err, domain.ErrNothingToPay)
		_, err = svc.ConfirmBatch(ctx, "pi_x", p.ID)
		assert.ErrorIs(t, err, domain.ErrNothingToPay)
		gateway.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("Unknown person", func(t *testing.T) {
		svc, _, _ := newPaymentFixture(t)
		_, err := svc.CreateIntentForBatch(ctx, 404)
		assert.ErrorIs(t, err, domain.ErrPersonNotFound)
	})

	t.Run("Cheap intent cannot settle all holdings", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		cheap := seedHeld(t, store, "Cheap", p.ID, days(1))
		pricey := seedHeld(t, store, "Pricey", p.ID, days(30))
		gateway.On("Verify", mock.Anything, "pi_cheap").Return(paidIntent("pi_cheap", 100, p.ID, cheap.ID), nil).Once()

		_, err := svc.ConfirmBatch(ctx, "pi_cheap", p.ID)
		assert.ErrorIs(t, err, domain.ErrIntentMismatch)

		for _, id := range []int32{cheap.ID, pricey.ID} {
			stored, _ := store.Items().GetByID(ctx, id)
			assert.False(t, stored.IsSettled())
		}
		entries, _ := store.Settlements().ListByPerson(ctx, p.ID)
		assert.Empty(t, entries)
	})

	t.Run("Holdings changed since intent", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		a := seedHeld(t, store, "Dune", p.ID, days(12))
		seedHeld(t, store, "Emma", p.ID, 0)
		// Same total as the current holdings, but issued before Emma was borrowed.
		gateway.On("Verify", mock.Anything, "pi_old").Return(paidIntent("pi_old", 2000, p.ID, a.ID), nil).Once()

		_, err := svc.ConfirmBatch(ctx, "pi_old", p.ID)
		assert.ErrorIs(t, err, domain.ErrIntentMismatch)
	})

	t.Run("Failed verification writes nothing", func(t *testing.T) {
		svc, store, gateway := newPaymentFixture(t)
		p := seedPerson(t, store, "Ada", "")
		it := seedHeld(t, store, "Dune", p.ID, days(12))
		gateway.On("Verify", mock.Anything, "pi_f").Return(&payment.Intent{Ref: "pi_f", Status: payment.StatusFailed}, nil).Once()

		_, err := svc.ConfirmBatch(ctx, "pi_f", p.ID)
		assert.ErrorIs(t, err, domain.ErrPaymentNotSucceeded)

		stored, _ := store.Items().GetByID(ctx, it.ID)
		assert.False(t, stored.IsSettled())
	})
}
