package postgres

import (
	"context"

	"library-lending/internal/domain"
	"library-lending/internal/logger"
)

type borrowRecordRepository struct {
	db dbtx
}

func (r *borrowRecordRepository) Append(ctx context.Context, rec *domain.BorrowRecord) error {
	logger.DatabaseCall("INSERT", "borrow_records", "item_id", rec.ItemID, "person_id", rec.PersonID)
	query := `INSERT INTO borrow_records (person_id, item_id, held_since, released_on) VALUES ($1, $2, $3, $4) RETURNING id`
	err := r.db.QueryRowContext(ctx, query, rec.PersonID, rec.ItemID, rec.HeldSince, rec.ReleasedOn).Scan(&rec.ID)
	logger.DatabaseResult("INSERT", 1, err, "record_id", rec.ID)
	return err
}

func (r *borrowRecordRepository) ListByPerson(ctx context.Context, personID int32) ([]domain.BorrowRecord, error) {
	query := `SELECT id, person_id, item_id, held_since, released_on FROM borrow_records WHERE person_id = $1 ORDER BY released_on DESC, id DESC`
	return r.list(ctx, query, personID)
}

func (r *borrowRecordRepository) ListByItem(ctx context.Context, itemID int32) ([]domain.BorrowRecord, error) {
	query := `SELECT id, person_id, item_id, held_since, released_on FROM borrow_records WHERE item_id = $1 ORDER BY released_on DESC, id DESC`
	return r.list(ctx, query, itemID)
}

func (r *borrowRecordRepository) list(ctx context.Context, query string, arg int32) ([]domain.BorrowRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.BorrowRecord
	for rows.Next() {
		var rec domain.BorrowRecord
		if err := rows.Scan(&rec.ID, &rec.PersonID, &rec.ItemID, &rec.HeldSince, &rec.ReleasedOn); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
