package jobs

import (
	"context"

	"library-lending/internal/domain"
	"library-lending/internal/logger"
	"library-lending/internal/notification"
	"library-lending/internal/repository"
)

// SendOverdueNotifications enqueues one reminder per overdue item to its holder
func (jr *JobRunner) SendOverdueNotifications() {
	jr.runWithRecovery("SendOverdueNotifications", jr.sendOverdueNotifications)
}

func (jr *JobRunner) sendOverdueNotifications(ctx context.Context) Result {
	var res Result
	cutoff := jr.now().Add(-domain.OverdueThreshold)
	fetch := func(ctx context.Context, afterID int32, limit int) ([]domain.Item, error) {
		return jr.ledger.Items().PageOverdue(ctx, cutoff, afterID, limit)
	}

	for page, err := range repository.Pages(ctx, jr.pageSize(), fetch) {
		if err != nil {
			logger.Error("Failed to load overdue items", "error", err)
			res.Failed++
			break
		}
		for i := range page {
			res.Scanned++
			it := &page[i]
			if it.HolderID == nil {
				continue
			}

			holder, err := jr.ledger.People().GetByID(ctx, *it.HolderID)
			if err != nil {
				logger.Error("Failed to load holder", "item_id", it.ID, "person_id", *it.HolderID, "error", err)
				res.Failed++
				continue
			}
			if !holder.HasContact() {
				continue
			}

			if err := jr.sink.Send(ctx, notification.OverdueNotice(holder, it)); err != nil {
				logger.Error("Failed to enqueue overdue notification",
					"item_id", it.ID,
					"person_id", holder.ID,
					"error", err)
				res.Failed++
				continue
			}
			res.Changed++
			logger.Debug("Overdue notification enqueued", "item_id", it.ID, "person_id", holder.ID)
		}
	}
	return res
}
