package postgres

import (
	"context"
	"fmt"

	"library-lending/internal/domain"
	"library-lending/internal/logger"
)

type settlementRepository struct {
	db dbtx
}

func (r *settlementRepository) Append(ctx context.Context, e *domain.SettlementEntry) error {
	logger.DatabaseCall("INSERT", "settlements", "person_id", e.PersonID, "intent_ref", e.IntentRef)
	query := `INSERT INTO settlements (id, person_id, description, amount, currency, intent_ref, paid_on) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.PersonID, e.Description, e.Amount, e.Currency, e.IntentRef, e.PaidOn)
	logger.DatabaseResult("INSERT", 1, err, "settlement_id", e.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("intent %s: %w", e.IntentRef, domain.ErrIntentUsed)
	}
	return err
}

func (r *settlementRepository) ListByPerson(ctx context.Context, personID int32) ([]domain.SettlementEntry, error) {
	query := `SELECT id, person_id, description, amount, currency, intent_ref, paid_on FROM settlements WHERE person_id = $1 ORDER BY paid_on DESC`
	rows, err := r.db.QueryContext(ctx, query, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.SettlementEntry
	for rows.Next() {
		var e domain.SettlementEntry
		if err := rows.Scan(&e.ID, &e.PersonID, &e.Description, &e.Amount, &e.Currency, &e.IntentRef, &e.PaidOn); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
