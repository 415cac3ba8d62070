package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"library-lending/internal/domain"
	"library-lending/internal/logger"
)

type itemRepository struct {
	db dbtx
}

const itemColumns = `id, title, author, year, holder_id, reserved_by_id, held_since, overdue, debt_amount, debt_status, payment_date, version, created_on, updated_on`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	it := &domain.Item{}
	var status string
	err := row.Scan(&it.ID, &it.Title, &it.Author, &it.Year, &it.HolderID, &it.ReservedByID, &it.HeldSince,
		&it.Overdue, &it.DebtAmount, &status, &it.PaymentDate, &it.Version, &it.CreatedOn, &it.UpdatedOn)
	if err != nil {
		return nil, err
	}
	it.DebtStatus = domain.DebtStatus(status)
	return it, nil
}

func (r *itemRepository) queryItems(ctx context.Context, query string, args ...any) ([]domain.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (r *itemRepository) Create(ctx context.Context, it *domain.Item) error {
	logger.DatabaseCall("INSERT", "items", "title", it.Title)
	now := time.Now()
	query := `INSERT INTO items (title, author, year, debt_amount, debt_status, version, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, 1, $6, $6) RETURNING id, version`
	err := r.db.QueryRowContext(ctx, query, it.Title, it.Author, it.Year, it.DebtAmount, string(it.DebtStatus), now).Scan(&it.ID, &it.Version)
	if err == nil {
		it.CreatedOn = now
		it.UpdatedOn = now
	}
	logger.DatabaseResult("INSERT", 1, err, "item_id", it.ID)
	return err
}

func (r *itemRepository) GetByID(ctx context.Context, id int32) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	it, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, domain.ErrItemNotFound)
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (r *itemRepository) Update(ctx context.Context, it *domain.Item) error {
	logger.DatabaseCall("UPDATE", "items", "item_id", it.ID, "version", it.Version)
	now := time.Now()
	query := `UPDATE items SET title=$1, author=$2, year=$3, holder_id=$4, reserved_by_id=$5, held_since=$6, overdue=$7, debt_amount=$8, debt_status=$9, payment_date=$10,
	          version=version+1, updated_on=$11
	          WHERE id=$12 AND version=$13`
	res, err := r.db.ExecContext(ctx, query, it.Title, it.Author, it.Year, it.HolderID, it.ReservedByID, it.HeldSince, it.Overdue,
		it.DebtAmount, string(it.DebtStatus), it.PaymentDate, now, it.ID, it.Version)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "item_id", it.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item %d at version %d: %w", it.ID, it.Version, domain.ErrStaleItem)
	}
	it.Version++
	it.UpdatedOn = now
	return nil
}

func (r *itemRepository) Delete(ctx context.Context, id, version int32) error {
	logger.DatabaseCall("DELETE", "items", "item_id", id, "version", version)
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		logger.DatabaseResult("DELETE", 0, err)
		return err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("DELETE", n, err, "item_id", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item %d at version %d: %w", id, version, domain.ErrStaleItem)
	}
	return nil
}

func (r *itemRepository) PageAll(ctx context.Context, afterID int32, limit int) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id > $1 ORDER BY id LIMIT $2`
	return r.queryItems(ctx, query, afterID, limit)
}

func (r *itemRepository) PageHeld(ctx context.Context, afterID int32, limit int) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE holder_id IS NOT NULL AND id > $1 ORDER BY id LIMIT $2`
	return r.queryItems(ctx, query, afterID, limit)
}

func (r *itemRepository) PageOverdue(ctx context.Context, cutoff time.Time, afterID int32, limit int) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE holder_id IS NOT NULL AND held_since < $1 AND id > $2 ORDER BY id LIMIT $3`
	return r.queryItems(ctx, query, cutoff, afterID, limit)
}

func (r *itemRepository) ListByHolder(ctx context.Context, personID int32) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE holder_id = $1 ORDER BY id`
	return r.queryItems(ctx, query, personID)
}

func (r *itemRepository) ListByReserver(ctx context.Context, personID int32) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE reserved_by_id = $1 ORDER BY id`
	return r.queryItems(ctx, query, personID)
}

func (r *itemRepository) ListAvailable(ctx context.Context, page, pageSize int32) ([]domain.Item, int32, error) {
	offset := (page - 1) * pageSize
	query := `SELECT ` + itemColumns + ` FROM items WHERE holder_id IS NULL AND reserved_by_id IS NULL ORDER BY id LIMIT $1 OFFSET $2`
	items, err := r.queryItems(ctx, query, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}

	var count int32
	countQuery := `SELECT count(*) FROM items WHERE holder_id IS NULL AND reserved_by_id IS NULL`
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&count); err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

func (r *itemRepository) SearchByTitle(ctx context.Context, prefix string) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE title ILIKE $1 ESCAPE '\' ORDER BY id`
	return r.queryItems(ctx, query, likeEscaper.Replace(prefix)+"%")
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *itemRepository) ClearReservationsBy(ctx context.Context, personID int32) (int64, error) {
	logger.DatabaseCall("UPDATE", "items", "reserved_by_id", personID)
	query := `UPDATE items SET reserved_by_id = NULL, version = version + 1, updated_on = $1 WHERE reserved_by_id = $2`
	res, err := r.db.ExecContext(ctx, query, time.Now(), personID)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return 0, err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err)
	return n, err
}
