package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"library-lending/internal/config"
	"library-lending/internal/domain"
	"library-lending/internal/repository"
	"library-lending/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Send(ctx context.Context, msg domain.Notification) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// failingLedger rejects updates to one item.
type failingLedger struct {
	repository.Ledger
	failID int32
}

func (l *failingLedger) Items() repository.ItemRepository {
	return &failingItems{ItemRepository: l.Ledger.Items(), failID: l.failID}
}

type failingItems struct {
	repository.ItemRepository
	failID int32
}

func (r *failingItems) Update(ctx context.Context, it *domain.Item) error {
	if it.ID == r.failID {
		return errors.New("connection reset")
	}
	return r.ItemRepository.Update(ctx, it)
}

var testNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func testConfig() *config.Config {
	return &config.Config{
		Lending:   config.LendingConfig{SettlementGraceHours: 24},
		Scheduler: config.SchedulerConfig{PageSize: 2},
	}
}

func newRunner(ledger repository.Ledger, sink *MockSink) *JobRunner {
	return NewJobRunner(ledger, sink, testConfig(), func() time.Time { return testNow })
}

func seedPerson(t *testing.T, store *memory.Store, name, email string) *domain.Person {
	t.Helper()
	p := &domain.Person{FullName: name, Email: email}
	require.NoError(t, store.People().Create(context.Background(), p))
	return p
}

func seedHeld(t *testing.T, store *memory.Store, title string, personID int32, heldFor time.Duration) *domain.Item {
	t.Helper()
	it := &domain.Item{Title: title}
	require.NoError(t, store.Items().Create(context.Background(), it))
	require.NoError(t, it.Assign(personID, testNow.Add(-heldFor)))
	require.NoError(t, store.Items().Update(context.Background(), it))
	return it
}

func seedSettled(t *testing.T, store *memory.Store, title string, personID int32, paidAgo time.Duration) *domain.Item {
	t.Helper()
	it := seedHeld(t, store, title, personID, paidAgo)
	it.MarkSettled(testNow.Add(-paidAgo))
	require.NoError(t, store.Items().Update(context.Background(), it))
	return it
}

func getItem(t *testing.T, store *memory.Store, id int32) *domain.Item {
	t.Helper()
	it, err := store.Items().GetByID(context.Background(), id)
	require.NoError(t, err)
	return it
}

func TestMarkOverdueItems(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		store := memory.NewStore()
		p := seedPerson(t, store, "Ann", "ann@example.com")
		fresh := seedHeld(t, store, "Fresh", p.ID, days(3))
		late := seedHeld(t, store, "Late", p.ID, days(12))
		jr := newRunner(store, &MockSink{})

		res := jr.markOverdueItems(context.Background())

		assert.Equal(t, 2, res.Scanned)
		assert.Equal(t, 2, res.Changed)
		assert.Equal(t, 0, res.Failed)

		got := getItem(t, store, fresh.ID)
		assert.False(t, got.Overdue)
		assert.True(t, got.DebtAmount.Equal(decimal.NewFromInt(3)))

		got = getItem(t, store, late.ID)
		assert.True(t, got.Overdue)
		assert.True(t, got.DebtAmount.Equal(decimal.NewFromInt(20)))
	})

	t.Run("SecondRunChangesNothing", func(t *testing.T) {
		store := memory.NewStore()
		p := seedPerson(t, store, "Ann", "")
		it := seedHeld(t, store, "Late", p.ID, days(15))
		jr := newRunner(store, &MockSink{})

		jr.markOverdueItems(context.Background())
		version := getItem(t, store, it.ID).Version

		res := jr.markOverdueItems(context.Background())
		assert.Equal(t, 0, res.Changed)
		assert.Equal(t, version, getItem(t, store, it.ID).Version)
	})

	t.Run("FailureDoesNotStopOtherItems", func(t *testing.T) {
		store := memory.NewStore()
		p := seedPerson(t, store, "Ann", "")
		var ids []int32
		for _, title := range []string{"A", "B", "C", "D", "E"} {
			ids = append(ids, seedHeld(t, store, title, p.ID, days(11)).ID)
		}
		jr := newRunner(&failingLedger{Ledger: store, failID: ids[2]}, &MockSink{})

		res := jr.markOverdueItems(context.Background())

		assert.Equal(t, 5, res.Scanned)
		assert.Equal(t, 4, res.Changed)
		assert.Equal(t, 1, res.Failed)
		assert.False(t, getItem(t, store, ids[2]).Overdue)
		assert.True(t, getItem(t, store, ids[4]).Overdue)
	})

	t.Run("SettledItemOwesNothing", func(t *testing.T) {
		store := memory.NewStore()
		p := seedPerson(t, store, "Ann", "")
		it := seedSettled(t, store, "Paid", p.ID, 2*time.Hour)
		jr := newRunner(store, &MockSink{})

		res := jr.markOverdueItems(context.Background())

		assert.Equal(t, 0, res.Changed)
		assert.True(t, getItem(t, store, it.ID).DebtAmount.IsZero())
	})
}

func TestRollbackStaleSettlements(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		store := memory.NewStore()
		p := seedPerson(t, store, "Ann", "")
		stale := seedSettled(t, store, "Stale", p.ID, 25*time.Hour)
		recent := seedSettled(t, store, "Recent", p.ID, 10*time.Hour)
		jr := newRunner(store, &MockSink{})

		res := jr.rollbackStaleSettlements(context.Background())

		assert.Equal(t, 1, res.Changed)
		assert.Equal(t, domain.DebtStatusOwed, getItem(t, store, stale.ID).DebtStatus)
		assert.Equal(t, domain.DebtStatusSettled, getItem(t, store, recent.ID).DebtStatus)
	})

	t.Run("Idempotent", func(t *testing.T) {
		store := memory.NewStore()
		p := seedPerson(t, store, "Ann", "")
		seedSettled(t, store, "Stale", p.ID, 30*time.Hour)
		jr := newRunner(store, &MockSink{})

		assert.Equal(t, 1, jr.rollbackStaleSettlements(context.Background()).Changed)
		assert.Equal(t, 0, jr.rollbackStaleSettlements(context.Background()).Changed)
	})

	t.Run("RolledBackItemAccruesAgain", func(t *testing.T) {
		store := memory.NewStore()
		p := seedPerson(t, store, "Ann", "")
		it := seedSettled(t, store, "Stale", p.ID, days(3))
		jr := newRunner(store, &MockSink{})

		jr.rollbackStaleSettlements(context.Background())
		jr.markOverdueItems(context.Background())

		got := getItem(t, store, it.ID)
		assert.True(t, got.DebtAmount.Equal(decimal.NewFromInt(3)))
	})
}

func TestSendOverdueNotifications(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		store := memory.NewStore()
		ann := seedPerson(t, store, "Ann", "ann@example.com")
		bob := seedPerson(t, store, "Bob", "")
		seedHeld(t, store, "Late", ann.ID, days(11))
		seedHeld(t, store, "Also Late", ann.ID, days(14))
		seedHeld(t, store, "Fresh", ann.ID, days(2))
		seedHeld(t, store, "No Contact", bob.ID, days(20))

		sink := &MockSink{}
		sink.On("Send", mock.Anything, mock.MatchedBy(func(n domain.Notification) bool {
			return n.To == "ann@example.com" && n.Subject == "Overdue Book Notification"
		})).Return(nil).Twice()
		jr := newRunner(store, sink)

		res := jr.sendOverdueNotifications(context.Background())

		assert.Equal(t, 3, res.Scanned)
		assert.Equal(t, 2, res.Changed)
		sink.AssertExpectations(t)
	})

	t.Run("SinkFailureIsCounted", func(t *testing.T) {
		store := memory.NewStore()
		ann := seedPerson(t, store, "Ann", "ann@example.com")
		seedHeld(t, store, "Late", ann.ID, days(11))

		sink := &MockSink{}
		sink.On("Send", mock.Anything, mock.Anything).Return(errors.New("queue full"))
		jr := newRunner(store, sink)

		res := jr.sendOverdueNotifications(context.Background())

		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, 0, res.Changed)
	})
}

func TestRunWithRecovery(t *testing.T) {
	jr := newRunner(memory.NewStore(), &MockSink{})
	assert.NotPanics(t, func() {
		jr.runWithRecovery("Boom", func(ctx context.Context) Result {
			panic("boom")
		})
	})
}
