package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"library-lending/internal/cache"
	"library-lending/internal/domain"
	"library-lending/internal/logger"
	"library-lending/internal/payment"
	"library-lending/internal/repository"
	"library-lending/internal/utils"

	"github.com/shopspring/decimal"
)

// intentClaimTTL bounds how long a claimed intent blocks other confirmations.
const intentClaimTTL = 24 * time.Hour

const batchDescription = "Payment for multiple books"

type paymentService struct {
	ledger   repository.Ledger
	gateway  payment.Gateway
	guard    cache.IntentGuard
	currency string
	now      Clock
}

func NewPaymentService(ledger repository.Ledger, gateway payment.Gateway, guard cache.IntentGuard, currency string, clock Clock) PaymentService {
	if clock == nil {
		clock = systemClock
	}
	return &paymentService{
		ledger:   ledger,
		gateway:  gateway,
		guard:    guard,
		currency: currency,
		now:      clock,
	}
}

// payable checks an item can be paid for and returns its current debt.
func payable(item *domain.Item, now time.Time) (decimal.Decimal, error) {
	if !item.IsHeld() || item.HeldSince == nil {
		return decimal.Zero, fmt.Errorf("item %d: %w", item.ID, domain.ErrNoBorrowDate)
	}
	if item.IsSettled() {
		return decimal.Zero, fmt.Errorf("item %d: %w", item.ID, domain.ErrAlreadySettled)
	}
	return utils.CurrentDebt(item, now)
}

func gatewayError(err error) error {
	if errors.Is(err, domain.ErrGatewayError) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrGatewayError, err)
}

func (s *paymentService) CreateIntent(ctx context.Context, itemID int32) (*payment.Intent, error) {
	logger.EnterMethod("paymentService.CreateIntent", "item_id", itemID)

	item, err := s.ledger.Items().GetByID(ctx, itemID)
	if err != nil {
		logger.ExitMethodWithError("paymentService.CreateIntent", err)
		return nil, err
	}
	amount, err := payable(item, s.now())
	if err != nil {
		logger.ExitMethodWithError("paymentService.CreateIntent", err)
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("item %d: %w", itemID, domain.ErrNothingToPay)
	}

	binding := payment.Binding(*item.HolderID, []int32{item.ID})
	intent, err := s.gateway.CreateIntent(ctx, utils.ToMinorUnits(amount), s.currency, "Payment for book: "+item.Title, binding)
	if err != nil {
		err = gatewayError(err)
		logger.ExitMethodWithError("paymentService.CreateIntent", err)
		return nil, err
	}

	logger.Info("Payment intent created", "item_id", itemID, "intent_ref", intent.Ref, "amount", amount.String())
	logger.ExitMethod("paymentService.CreateIntent")
	return intent, nil
}

// unsettledHoldings returns the items personID holds that still carry debt, with their total.
func unsettledHoldings(ctx context.Context, ledger repository.Ledger, personID int32, now time.Time) ([]domain.Item, decimal.Decimal, error) {
	held, err := ledger.Items().ListByHolder(ctx, personID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	var items []domain.Item
	for _, it := range held {
		if !it.IsSettled() {
			items = append(items, it)
		}
	}
	total, err := sumDebt(items, now)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return items, total, nil
}

func (s *paymentService) CreateIntentForBatch(ctx context.Context, personID int32) (*payment.Intent, error) {
	logger.EnterMethod("paymentService.CreateIntentForBatch", "person_id", personID)

	if _, err := s.ledger.People().GetByID(ctx, personID); err != nil {
		logger.ExitMethodWithError("paymentService.CreateIntentForBatch", err)
		return nil, err
	}
	items, total, err := unsettledHoldings(ctx, s.ledger, personID, s.now())
	if err != nil {
		logger.ExitMethodWithError("paymentService.CreateIntentForBatch", err)
		return nil, err
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("person %d: %w", personID, domain.ErrNothingToPay)
	}

	binding := payment.Binding(personID, itemIDs(items))
	intent, err := s.gateway.CreateIntent(ctx, utils.ToMinorUnits(total), s.currency, batchDescription, binding)
	if err != nil {
		err = gatewayError(err)
		logger.ExitMethodWithError("paymentService.CreateIntentForBatch", err)
		return nil, err
	}

	logger.Info("Batch payment intent created", "person_id", personID, "intent_ref", intent.Ref, "amount", total.String())
	logger.ExitMethod("paymentService.CreateIntentForBatch")
	return intent, nil
}

func itemIDs(items []domain.Item) []int32 {
	ids := make([]int32, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// verify asks the gateway for the intent outcome. Anything but success is a failure.
func (s *paymentService) verify(ctx context.Context, intentRef string) (*payment.Intent, error) {
	intent, err := s.gateway.Verify(ctx, intentRef)
	if err != nil {
		return nil, gatewayError(err)
	}
	if intent.Status != payment.StatusSucceeded {
		return nil, fmt.Errorf("intent %s is %s: %w", intentRef, intent.Status, domain.ErrPaymentNotSucceeded)
	}
	return intent, nil
}

// collected checks a verified intent paid exactly amount for personID's
// items and returns what the gateway collected.
func (s *paymentService) collected(intent *payment.Intent, personID int32, items []domain.Item, amount decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case !intent.BoundTo(payment.Binding(personID, itemIDs(items))):
		return decimal.Zero, fmt.Errorf("intent %s was created for another debt: %w", intent.Ref, domain.ErrIntentMismatch)
	case !strings.EqualFold(intent.Currency, s.currency):
		return decimal.Zero, fmt.Errorf("intent %s is in %q, want %q: %w", intent.Ref, intent.Currency, s.currency, domain.ErrIntentMismatch)
	case intent.AmountMinor != utils.ToMinorUnits(amount):
		return decimal.Zero, fmt.Errorf("intent %s collected %d, owed %d: %w",
			intent.Ref, intent.AmountMinor, utils.ToMinorUnits(amount), domain.ErrIntentMismatch)
	}
	return utils.FromMinorUnits(intent.AmountMinor), nil
}

// settle claims intentRef and runs write inside one transaction. The claim is
// released when the write fails so the intent can be confirmed again.
func (s *paymentService) settle(ctx context.Context, intentRef string, write func(tx repository.Ledger) error) error {
	claimed, err := s.guard.Claim(ctx, intentRef, intentClaimTTL)
	if err != nil {
		return err
	}
	if !claimed {
		return fmt.Errorf("intent %s: %w", intentRef, domain.ErrIntentUsed)
	}

	if err := s.ledger.WithinTx(ctx, write); err != nil {
		if relErr := s.guard.Release(context.WithoutCancel(ctx), intentRef); relErr != nil {
			logger.Error("Failed to release intent claim", "intent_ref", intentRef, "error", relErr)
		}
		return err
	}
	return nil
}

func (s *paymentService) Confirm(ctx context.Context, intentRef string, personID, itemID int32) (*domain.SettlementEntry, error) {
	logger.EnterMethod("paymentService.Confirm", "intent_ref", intentRef, "person_id", personID, "item_id", itemID)

	item, err := s.ledger.Items().GetByID(ctx, itemID)
	if err != nil {
		logger.ExitMethodWithError("paymentService.Confirm", err)
		return nil, err
	}
	if _, err := payable(item, s.now()); err != nil {
		logger.ExitMethodWithError("paymentService.Confirm", err)
		return nil, err
	}
	if *item.HolderID != personID {
		err := fmt.Errorf("%w: item %d is not held by person %d", domain.ErrConflict, itemID, personID)
		logger.ExitMethodWithError("paymentService.Confirm", err)
		return nil, err
	}

	verified, err := s.verify(ctx, intentRef)
	if err != nil {
		logger.ExitMethodWithError("paymentService.Confirm", err)
		return nil, err
	}

	var entry *domain.SettlementEntry
	err = s.settle(ctx, intentRef, func(tx repository.Ledger) error {
		current, err := tx.Items().GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		now := s.now()
		amount, err := payable(current, now)
		if err != nil {
			return err
		}
		if *current.HolderID != personID {
			return fmt.Errorf("item %d: %w", itemID, domain.ErrStaleItem)
		}
		paid, err := s.collected(verified, personID, []domain.Item{*current}, amount)
		if err != nil {
			return err
		}

		current.MarkSettled(now)
		if err := tx.Items().Update(ctx, current); err != nil {
			return err
		}
		entry = domain.NewSettlementEntry(personID, []domain.Item{*current}, paid, s.currency, intentRef, now)
		return tx.Settlements().Append(ctx, entry)
	})
	if err != nil {
		logger.ExitMethodWithError("paymentService.Confirm", err)
		return nil, err
	}

	logger.Info("Payment settled", "intent_ref", intentRef, "person_id", personID, "item_id", itemID, "amount", entry.Amount.String())
	logger.ExitMethod("paymentService.Confirm")
	return entry, nil
}

func (s *paymentService) ConfirmBatch(ctx context.Context, intentRef string, personID int32) (*domain.SettlementEntry, error) {
	logger.EnterMethod("paymentService.ConfirmBatch", "intent_ref", intentRef, "person_id", personID)

	if _, err := s.ledger.People().GetByID(ctx, personID); err != nil {
		logger.ExitMethodWithError("paymentService.ConfirmBatch", err)
		return nil, err
	}
	items, _, err := unsettledHoldings(ctx, s.ledger, personID, s.now())
	if err != nil {
		logger.ExitMethodWithError("paymentService.ConfirmBatch", err)
		return nil, err
	}
	if len(items) == 0 {
		err := fmt.Errorf("person %d: %w", personID, domain.ErrNothingToPay)
		logger.ExitMethodWithError("paymentService.ConfirmBatch", err)
		return nil, err
	}

	verified, err := s.verify(ctx, intentRef)
	if err != nil {
		logger.ExitMethodWithError("paymentService.ConfirmBatch", err)
		return nil, err
	}

	var entry *domain.SettlementEntry
	err = s.settle(ctx, intentRef, func(tx repository.Ledger) error {
		now := s.now()
		current, total, err := unsettledHoldings(ctx, tx, personID, now)
		if err != nil {
			return err
		}
		if len(current) == 0 {
			return fmt.Errorf("person %d: %w", personID, domain.ErrNothingToPay)
		}
		paid, err := s.collected(verified, personID, current, total)
		if err != nil {
			return err
		}

		for i := range current {
			current[i].MarkSettled(now)
			if err := tx.Items().Update(ctx, &current[i]); err != nil {
				return err
			}
		}
		entry = domain.NewSettlementEntry(personID, current, paid, s.currency, intentRef, now)
		return tx.Settlements().Append(ctx, entry)
	})
	if err != nil {
		logger.ExitMethodWithError("paymentService.ConfirmBatch", err)
		return nil, err
	}

	logger.Info("Batch payment settled", "intent_ref", intentRef, "person_id", personID, "description", entry.Description, "amount", entry.Amount.String())
	logger.ExitMethod("paymentService.ConfirmBatch")
	return entry, nil
}

func (s *paymentService) ListSettlements(ctx context.Context, personID int32) ([]domain.SettlementEntry, error) {
	if _, err := s.ledger.People().GetByID(ctx, personID); err != nil {
		return nil, err
	}
	return s.ledger.Settlements().ListByPerson(ctx, personID)
}
