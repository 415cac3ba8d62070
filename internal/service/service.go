package service

import (
	"context"
	"time"

	"library-lending/internal/domain"
	"library-lending/internal/payment"

	"github.com/shopspring/decimal"
)

type LendingService interface {
	CreateItem(ctx context.Context, title, author string, year int32) (*domain.Item, error)
	UpdateItem(ctx context.Context, itemID int32, title, author string, year int32) (*domain.Item, error)
	DeleteItem(ctx context.Context, itemID int32) error
	Assign(ctx context.Context, itemID, personID int32) (*domain.Item, error)
	Release(ctx context.Context, itemID int32) (*domain.BorrowRecord, error)
	Reserve(ctx context.Context, itemID, personID int32) (*domain.Item, error)
	CancelReservation(ctx context.Context, itemID int32, reserverID *int32) (*domain.Item, error)
	GetItemDetails(ctx context.Context, itemID int32) (*domain.ItemDetails, error)
	ListAvailable(ctx context.Context, page, pageSize int32) ([]domain.Item, int32, error)
	SearchByTitle(ctx context.Context, prefix string) ([]domain.Item, error)
	ItemHistory(ctx context.Context, itemID int32) ([]domain.BorrowRecord, error)
	CurrentDebt(ctx context.Context, itemID int32) (decimal.Decimal, error)
	TotalDebt(ctx context.Context, personID int32) (decimal.Decimal, error)
}

type PaymentService interface {
	CreateIntent(ctx context.Context, itemID int32) (*payment.Intent, error)
	CreateIntentForBatch(ctx context.Context, personID int32) (*payment.Intent, error)
	Confirm(ctx context.Context, intentRef string, personID, itemID int32) (*domain.SettlementEntry, error)
	ConfirmBatch(ctx context.Context, intentRef string, personID int32) (*domain.SettlementEntry, error)
	ListSettlements(ctx context.Context, personID int32) ([]domain.SettlementEntry, error)
}

type PeopleService interface {
	Register(ctx context.Context, fullName, email string) (*domain.Person, error)
	GetPerson(ctx context.Context, personID int32) (*domain.Person, error)
	UpdatePerson(ctx context.Context, personID int32, fullName, email string) (*domain.Person, error)
	DeletePerson(ctx context.Context, personID int32) error
	Holdings(ctx context.Context, personID int32) (*domain.Holdings, error)
	History(ctx context.Context, personID int32) ([]domain.BorrowRecord, error)
}

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
