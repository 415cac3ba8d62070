package repository

import (
	"context"
	"iter"
	"time"

	"library-lending/internal/domain"
)

type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id int32) (*domain.Item, error)
	// Update persists item only if its stored version still equals item.Version.
	// On success item.Version is advanced; on mismatch domain.ErrStaleItem is returned.
	Update(ctx context.Context, item *domain.Item) error
	// Delete removes the item only if its stored version still equals version.
	Delete(ctx context.Context, id, version int32) error

	// Keyset pages ordered by id, starting strictly after afterID.
	PageAll(ctx context.Context, afterID int32, limit int) ([]domain.Item, error)
	PageHeld(ctx context.Context, afterID int32, limit int) ([]domain.Item, error)
	PageOverdue(ctx context.Context, cutoff time.Time, afterID int32, limit int) ([]domain.Item, error)

	ListByHolder(ctx context.Context, personID int32) ([]domain.Item, error)
	ListByReserver(ctx context.Context, personID int32) ([]domain.Item, error)
	ListAvailable(ctx context.Context, page, pageSize int32) ([]domain.Item, int32, error)
	SearchByTitle(ctx context.Context, prefix string) ([]domain.Item, error)
	ClearReservationsBy(ctx context.Context, personID int32) (int64, error)
}

type PersonRepository interface {
	Create(ctx context.Context, person *domain.Person) error
	GetByID(ctx context.Context, id int32) (*domain.Person, error)
	GetByEmail(ctx context.Context, email string) (*domain.Person, error)
	// Create and Update fail with domain.ErrEmailTaken when another person has the email.
	Update(ctx context.Context, person *domain.Person) error
	Delete(ctx context.Context, id int32) error
}

type BorrowRecordRepository interface {
	Append(ctx context.Context, record *domain.BorrowRecord) error
	ListByPerson(ctx context.Context, personID int32) ([]domain.BorrowRecord, error)
	ListByItem(ctx context.Context, itemID int32) ([]domain.BorrowRecord, error)
}

type SettlementRepository interface {
	// Append fails with domain.ErrIntentUsed when the intent ref was already recorded.
	Append(ctx context.Context, entry *domain.SettlementEntry) error
	ListByPerson(ctx context.Context, personID int32) ([]domain.SettlementEntry, error)
}

// Ledger is the single source of truth for lending state.
type Ledger interface {
	Items() ItemRepository
	People() PersonRepository
	BorrowRecords() BorrowRecordRepository
	Settlements() SettlementRepository

	// WithinTx runs fn against a ledger whose writes commit together or not at all.
	// Nested calls join the outer transaction.
	WithinTx(ctx context.Context, fn func(tx Ledger) error) error
}

// PageFunc fetches the page of items with id greater than afterID.
type PageFunc func(ctx context.Context, afterID int32, limit int) ([]domain.Item, error)

// Pages streams fetch page by page until an empty or short page is returned.
// A fetch error is yielded once and ends the stream.
func Pages(ctx context.Context, limit int, fetch PageFunc) iter.Seq2[[]domain.Item, error] {
	return func(yield func([]domain.Item, error) bool) {
		var afterID int32
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			page, err := fetch(ctx, afterID, limit)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(page) == 0 {
				return
			}
			if !yield(page, nil) {
				return
			}
			if len(page) < limit {
				return
			}
			afterID = page[len(page)-1].ID
		}
	}
}
