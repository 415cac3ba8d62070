package service

import (
	"context"
	"testing"

	"library-lending/internal/domain"
	"library-lending/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeopleService_Register(t *testing.T) {
	ctx := context.Background()
	svc := NewPeopleService(memory.NewStore())

	t.Run("Success", func(t *testing.T) {
		p, err := svc.Register(ctx, " Ada Lovelace ", "ada@example.com")
		require.NoError(t, err)
		assert.NotZero(t, p.ID)
		assert.Equal(t, "Ada Lovelace", p.FullName)

		got, err := svc.GetPerson(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", got.Email)
	})

	t.Run("Without email", func(t *testing.T) {
		p, err := svc.Register(ctx, "Bob", "")
		require.NoError(t, err)
		assert.False(t, p.HasContact())
	})

	t.Run("Invalid input", func(t *testing.T) {
		_, err := svc.Register(ctx, "", "ada@example.com")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = svc.Register(ctx, "Ada", "not-an-email")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("Email already registered", func(t *testing.T) {
		_, err := svc.Register(ctx, "Another Ada", " ADA@example.com ")
		assert.ErrorIs(t, err, domain.ErrEmailTaken)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestPeopleService_UpdatePerson(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewPeopleService(store)
		p := seedPerson(t, store, "Ada", "ada@example.com")

		updated, err := svc.UpdatePerson(ctx, p.ID, " Ada King ", "ada.king@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Ada King", updated.FullName)
		assert.Equal(t, p.CreatedOn, updated.CreatedOn)

		got, _ := svc.GetPerson(ctx, p.ID)
		assert.Equal(t, "ada.king@example.com", got.Email)
	})

	t.Run("Keeping own email", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewPeopleService(store)
		p := seedPerson(t, store, "Ada", "ada@example.com")

		_, err := svc.UpdatePerson(ctx, p.ID, "Ada Lovelace", "Ada@Example.com")
		assert.NoError(t, err)
	})

	t.Run("Email of someone else", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewPeopleService(store)
		seedPerson(t, store, "Ada", "ada@example.com")
		bob := seedPerson(t, store, "Bob", "bob@example.com")

		_, err := svc.UpdatePerson(ctx, bob.ID, "Bob", "ada@example.com")
		assert.ErrorIs(t, err, domain.ErrEmailTaken)

		got, _ := svc.GetPerson(ctx, bob.ID)
		assert.Equal(t, "bob@example.com", got.Email)
	})

	t.Run("Invalid input", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewPeopleService(store)
		p := seedPerson(t, store, "Ada", "")

		_, err := svc.UpdatePerson(ctx, p.ID, "", "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = svc.UpdatePerson(ctx, p.ID, "Ada", "nope")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("Unknown person", func(t *testing.T) {
		svc := NewPeopleService(memory.NewStore())
		_, err := svc.UpdatePerson(ctx, 404, "Ada", "")
		assert.ErrorIs(t, err, domain.ErrPersonNotFound)
	})
}

func TestPeopleService_DeletePerson(t *testing.T) {
	ctx := context.Background()

	t.Run("Holder cannot be deleted", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewPeopleService(store)
		p := seedPerson(t, store, "Ada", "")
		seedHeld(t, store, "Dune", p.ID, days(1))

		err := svc.DeletePerson(ctx, p.ID)
		assert.ErrorIs(t, err, domain.ErrPersonHoldsItems)
		_, err = svc.GetPerson(ctx, p.ID)
		assert.NoError(t, err)
	})

	t.Run("Reservations are cleared", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewPeopleService(store)
		p := seedPerson(t, store, "Ada", "")
		it := seedItem(t, store, "Dune")
		require.NoError(t, it.Reserve(p.ID))
		require.NoError(t, store.Items().Update(ctx, it))

		require.NoError(t, svc.DeletePerson(ctx, p.ID))

		stored, _ := store.Items().GetByID(ctx, it.ID)
		assert.Nil(t, stored.ReservedByID)
		_, err := svc.GetPerson(ctx, p.ID)
		assert.ErrorIs(t, err, domain.ErrPersonNotFound)
	})

	t.Run("Unknown person", func(t *testing.T) {
		svc := NewPeopleService(memory.NewStore())
		assert.ErrorIs(t, svc.DeletePerson(ctx, 404), domain.ErrNotFound)
	})
}

func TestPeopleService_HoldingsAndHistory(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewPeopleService(store)
	lending := NewLendingService(store, new(MockSink), fixedClock)

	p := seedPerson(t, store, "Ada", "")
	held := seedHeld(t, store, "Dune", p.ID, days(2))
	reserved := seedItem(t, store, "Emma")
	_, err := lending.Reserve(ctx, reserved.ID, p.ID)
	require.NoError(t, err)

	holdings, err := svc.Holdings(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, holdings.Held, 1)
	assert.Equal(t, held.ID, holdings.Held[0].ID)
	require.Len(t, holdings.Reserved, 1)
	assert.Equal(t, reserved.ID, holdings.Reserved[0].ID)

	_, err = lending.Release(ctx, held.ID)
	require.NoError(t, err)
	history, err := svc.History(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = svc.Holdings(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
