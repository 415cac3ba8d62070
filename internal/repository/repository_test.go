package repository

import (
	"context"
	"errors"
	"testing"

	"library-lending/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemsWithIDs(ids ...int32) []domain.Item {
	items := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, domain.Item{ID: id})
	}
	return items
}

func TestPages(t *testing.T) {
	ctx := context.Background()

	t.Run("Walks every page", func(t *testing.T) {
		pages := map[int32][]domain.Item{
			0: itemsWithIDs(1, 2),
			2: itemsWithIDs(5, 7),
			7: nil,
		}
		var calls []int32
		fetch := func(ctx context.Context, afterID int32, limit int) ([]domain.Item, error) {
			calls = append(calls, afterID)
			return pages[afterID], nil
		}

		var seen []int32
		for page, err := range Pages(ctx, 2, fetch) {
			require.NoError(t, err)
			for _, it := range page {
				seen = append(seen, it.ID)
			}
		}
		assert.Equal(t, []int32{1, 2, 5, 7}, seen)
		assert.Equal(t, []int32{0, 2, 7}, calls)
	})

	t.Run("Short page ends stream", func(t *testing.T) {
		calls := 0
		fetch := func(ctx context.Context, afterID int32, limit int) ([]domain.Item, error) {
			calls++
			return itemsWithIDs(3), nil
		}
		count := 0
		for _, err := range Pages(ctx, 50, fetch) {
			require.NoError(t, err)
			count++
		}
		assert.Equal(t, 1, count)
		assert.Equal(t, 1, calls)
	})

	t.Run("Error is yielded once", func(t *testing.T) {
		boom := errors.New("boom")
		fetch := func(ctx context.Context, afterID int32, limit int) ([]domain.Item, error) {
			return nil, boom
		}
		var errs []error
		for page, err := range Pages(ctx, 10, fetch) {
			assert.Nil(t, page)
			errs = append(errs, err)
		}
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], boom)
	})

	t.Run("Early break stops fetching", func(t *testing.T) {
		calls := 0
		fetch := func(ctx context.Context, afterID int32, limit int) ([]domain.Item, error) {
			calls++
			return itemsWithIDs(afterID+1, afterID+2), nil
		}
		for range Pages(ctx, 2, fetch) {
			break
		}
		assert.Equal(t, 1, calls)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		fetch := func(ctx context.Context, afterID int32, limit int) ([]domain.Item, error) {
			t.Fatal("fetch must not run")
			return nil, nil
		}
		for _, err := range Pages(cctx, 2, fetch) {
			assert.ErrorIs(t, err, context.Canceled)
		}
	})
}
