package jobs

import (
	"context"
	"errors"

	"library-lending/internal/domain"
	"library-lending/internal/logger"
	"library-lending/internal/repository"
	"library-lending/internal/utils"
)

// MarkOverdueItems recomputes debt and the overdue flag of every held item
func (jr *JobRunner) MarkOverdueItems() {
	jr.runWithRecovery("MarkOverdueItems", jr.markOverdueItems)
}

func (jr *JobRunner) markOverdueItems(ctx context.Context) Result {
	var res Result
	now := jr.now()
	items := jr.ledger.Items()

	for page, err := range repository.Pages(ctx, jr.pageSize(), items.PageHeld) {
		if err != nil {
			logger.Error("Failed to load held items", "job", "MarkOverdueItems", "error", err)
			res.Failed++
			break
		}
		for i := range page {
			res.Scanned++
			it := &page[i]

			debt, err := utils.CurrentDebt(it, now)
			if err != nil {
				logger.Error("Failed to compute debt", "item_id", it.ID, "error", err)
				res.Failed++
				continue
			}
			overdue := it.IsOverdue(now)
			if debt.Equal(it.DebtAmount) && overdue == it.Overdue {
				continue
			}

			it.DebtAmount = debt
			it.Overdue = overdue
			if err := items.Update(ctx, it); err != nil {
				logItemFailure("MarkOverdueItems", it.ID, err)
				res.Failed++
				continue
			}
			res.Changed++
		}
	}
	return res
}

// RollbackStaleSettlements returns settled items to OWED once the grace window after payment has passed
func (jr *JobRunner) RollbackStaleSettlements() {
	jr.runWithRecovery("RollbackStaleSettlements", jr.rollbackStaleSettlements)
}

func (jr *JobRunner) rollbackStaleSettlements(ctx context.Context) Result {
	var res Result
	now := jr.now()
	grace := jr.config.SettlementGrace()
	items := jr.ledger.Items()

	for page, err := range repository.Pages(ctx, jr.pageSize(), items.PageHeld) {
		if err != nil {
			logger.Error("Failed to load held items", "job", "RollbackStaleSettlements", "error", err)
			res.Failed++
			break
		}
		for i := range page {
			res.Scanned++
			it := &page[i]
			if !it.SettlementExpired(now, grace) {
				continue
			}

			it.DebtStatus = domain.DebtStatusOwed
			if err := items.Update(ctx, it); err != nil {
				logItemFailure("RollbackStaleSettlements", it.ID, err)
				res.Failed++
				continue
			}
			logger.Debug("Settlement rolled back", "item_id", it.ID, "payment_date", it.PaymentDate)
			res.Changed++
		}
	}
	return res
}

// logItemFailure logs a per-item failure. A version conflict means a user
// operation won the race and the item is picked up on the next firing.
func logItemFailure(job string, itemID int32, err error) {
	if errors.Is(err, domain.ErrConflict) {
		logger.Warn("Item changed concurrently, skipping", "job", job, "item_id", itemID)
		return
	}
	logger.Error("Failed to update item", "job", job, "item_id", itemID, "error", err)
}
