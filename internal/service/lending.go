package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"library-lending/internal/domain"
	"library-lending/internal/logger"
	"library-lending/internal/notification"
	"library-lending/internal/repository"
	"library-lending/internal/utils"

	"github.com/shopspring/decimal"
)

const maxPageSize = 100

type lendingService struct {
	ledger repository.Ledger
	sink   notification.Sink
	now    Clock
}

func NewLendingService(ledger repository.Ledger, sink notification.Sink, clock Clock) LendingService {
	if clock == nil {
		clock = systemClock
	}
	return &lendingService{
		ledger: ledger,
		sink:   sink,
		now:    clock,
	}
}

func (s *lendingService) CreateItem(ctx context.Context, title, author string, year int32) (*domain.Item, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	item := &domain.Item{
		Title:  title,
		Author: strings.TrimSpace(author),
		Year:   year,
	}
	if err := s.ledger.Items().Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	logger.Info("Item created", "item_id", item.ID, "title", item.Title)
	return item, nil
}

// UpdateItem replaces the catalogue fields of an item. Lending state is untouched.
func (s *lendingService) UpdateItem(ctx context.Context, itemID int32, title, author string, year int32) (*domain.Item, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	item, err := s.ledger.Items().GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	item.Title = title
	item.Author = strings.TrimSpace(author)
	item.Year = year
	if err := s.ledger.Items().Update(ctx, item); err != nil {
		return nil, err
	}
	logger.Info("Item updated", "item_id", itemID, "title", item.Title)
	return item, nil
}

// DeleteItem removes an item nobody holds, reserves or owes on.
// Its borrow history is kept.
func (s *lendingService) DeleteItem(ctx context.Context, itemID int32) error {
	logger.EnterMethod("lendingService.DeleteItem", "item_id", itemID)

	err := s.ledger.WithinTx(ctx, func(tx repository.Ledger) error {
		item, err := tx.Items().GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		if item.IsHeld() || item.IsReserved() || item.DebtAmount.IsPositive() {
			return fmt.Errorf("item %d: %w", itemID, domain.ErrItemInUse)
		}
		return tx.Items().Delete(ctx, item.ID, item.Version)
	})
	if err != nil {
		logger.ExitMethodWithError("lendingService.DeleteItem", err)
		return err
	}

	logger.Info("Item deleted", "item_id", itemID)
	logger.ExitMethod("lendingService.DeleteItem")
	return nil
}

func (s *lendingService) Assign(ctx context.Context, itemID, personID int32) (*domain.Item, error) {
	logger.EnterMethod("lendingService.Assign", "item_id", itemID, "person_id", personID)

	item, err := s.ledger.Items().GetByID(ctx, itemID)
	if err != nil {
		logger.ExitMethodWithError("lendingService.Assign", err)
		return nil, err
	}
	if _, err := s.ledger.People().GetByID(ctx, personID); err != nil {
		logger.ExitMethodWithError("lendingService.Assign", err)
		return nil, err
	}

	if err := item.Assign(personID, s.now()); err != nil {
		logger.ExitMethodWithError("lendingService.Assign", err)
		return nil, err
	}
	// The reservation is fulfilled once its owner picks the item up.
	if item.ReservedByID != nil && *item.ReservedByID == personID {
		item.CancelReservation()
	}

	if err := s.ledger.Items().Update(ctx, item); err != nil {
		logger.ExitMethodWithError("lendingService.Assign", err)
		return nil, err
	}

	logger.Info("Item assigned", "item_id", itemID, "person_id", personID)
	logger.ExitMethod("lendingService.Assign")
	return item, nil
}

func (s *lendingService) Release(ctx context.Context, itemID int32) (*domain.BorrowRecord, error) {
	logger.EnterMethod("lendingService.Release", "item_id", itemID)

	var (
		record   *domain.BorrowRecord
		released domain.Item
	)
	err := s.ledger.WithinTx(ctx, func(tx repository.Ledger) error {
		item, err := tx.Items().GetByID(ctx, itemID)
		if err != nil {
			return err
		}

		record, err = item.Release(s.now())
		if err != nil {
			return err
		}
		if err := tx.BorrowRecords().Append(ctx, record); err != nil {
			return fmt.Errorf("failed to append borrow record: %w", err)
		}
		if err := tx.Items().Update(ctx, item); err != nil {
			return err
		}
		released = *item
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("lendingService.Release", err)
		return nil, err
	}

	logger.Info("Item released", "item_id", itemID, "person_id", record.PersonID)
	if released.ReservedByID != nil {
		s.notifyReserver(ctx, &released)
	}

	logger.ExitMethod("lendingService.Release")
	return record, nil
}

// notifyReserver tells the reserver the item is free. Failures are logged only.
func (s *lendingService) notifyReserver(ctx context.Context, item *domain.Item) {
	reserver, err := s.ledger.People().GetByID(ctx, *item.ReservedByID)
	if err != nil {
		logger.Warn("Failed to load reserver for notification", "item_id", item.ID, "person_id", *item.ReservedByID, "error", err)
		return
	}
	if !reserver.HasContact() {
		logger.Debug("Reserver has no contact channel", "person_id", reserver.ID)
		return
	}
	if err := s.sink.Send(ctx, notification.ItemFreeNotice(reserver, item)); err != nil {
		logger.Warn("Failed to enqueue item free notification", "item_id", item.ID, "person_id", reserver.ID, "error", err)
	}
}

func (s *lendingService) Reserve(ctx context.Context, itemID, personID int32) (*domain.Item, error) {
	item, err := s.ledger.Items().GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.People().GetByID(ctx, personID); err != nil {
		return nil, err
	}

	if err := item.Reserve(personID); err != nil {
		return nil, err
	}
	if err := s.ledger.Items().Update(ctx, item); err != nil {
		return nil, err
	}

	logger.Info("Item reserved", "item_id", itemID, "person_id", personID)
	return item, nil
}

// CancelReservation clears the item's reservation. A non-nil reserverID
// restricts the cancel to that person's own reservation.
func (s *lendingService) CancelReservation(ctx context.Context, itemID int32, reserverID *int32) (*domain.Item, error) {
	item, err := s.ledger.Items().GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.IsReserved() {
		return item, nil
	}
	if reserverID != nil && *item.ReservedByID != *reserverID {
		return nil, fmt.Errorf("item %d: %w", itemID, domain.ErrNotReserver)
	}

	item.CancelReservation()
	if err := s.ledger.Items().Update(ctx, item); err != nil {
		return nil, err
	}

	logger.Info("Reservation cancelled", "item_id", itemID)
	return item, nil
}

func (s *lendingService) GetItemDetails(ctx context.Context, itemID int32) (*domain.ItemDetails, error) {
	item, err := s.ledger.Items().GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	debt, err := utils.CurrentDebt(item, now)
	if err != nil {
		return nil, err
	}

	details := &domain.ItemDetails{
		Item:        *item,
		Overdue:     item.IsOverdue(now),
		CurrentDebt: debt,
	}
	if item.HolderID != nil {
		if p, err := s.ledger.People().GetByID(ctx, *item.HolderID); err == nil {
			details.HolderName = p.FullName
		}
	}
	if item.ReservedByID != nil {
		if p, err := s.ledger.People().GetByID(ctx, *item.ReservedByID); err == nil {
			details.ReservedByName = p.FullName
		}
	}
	return details, nil
}

func (s *lendingService) ListAvailable(ctx context.Context, page, pageSize int32) ([]domain.Item, int32, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.ledger.Items().ListAvailable(ctx, page, pageSize)
}

func (s *lendingService) SearchByTitle(ctx context.Context, prefix string) ([]domain.Item, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("%w: search prefix is required", domain.ErrInvalidInput)
	}
	return s.ledger.Items().SearchByTitle(ctx, prefix)
}

func (s *lendingService) ItemHistory(ctx context.Context, itemID int32) ([]domain.BorrowRecord, error) {
	if _, err := s.ledger.Items().GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	return s.ledger.BorrowRecords().ListByItem(ctx, itemID)
}

func (s *lendingService) CurrentDebt(ctx context.Context, itemID int32) (decimal.Decimal, error) {
	item, err := s.ledger.Items().GetByID(ctx, itemID)
	if err != nil {
		return decimal.Zero, err
	}
	return utils.CurrentDebt(item, s.now())
}

func (s *lendingService) TotalDebt(ctx context.Context, personID int32) (decimal.Decimal, error) {
	if _, err := s.ledger.People().GetByID(ctx, personID); err != nil {
		return decimal.Zero, err
	}
	items, err := s.ledger.Items().ListByHolder(ctx, personID)
	if err != nil {
		return decimal.Zero, err
	}
	return sumDebt(items, s.now())
}

func sumDebt(items []domain.Item, now time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for i := range items {
		debt, err := utils.CurrentDebt(&items[i], now)
		if err != nil {
			return decimal.Zero, fmt.Errorf("item %d: %w", items[i].ID, err)
		}
		total = total.Add(debt)
	}
	return total, nil
}
