package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"library-lending/internal/logger"
	"library-lending/internal/repository"

	"github.com/lib/pq"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db   *sql.DB
	q    dbtx
	inTx bool

	items       *itemRepository
	people      *personRepository
	records     *borrowRecordRepository
	settlements *settlementRepository
}

func NewStore(db *sql.DB) *Store {
	return newStore(db, db, false)
}

func newStore(db *sql.DB, q dbtx, inTx bool) *Store {
	return &Store{
		db:          db,
		q:           q,
		inTx:        inTx,
		items:       &itemRepository{db: q},
		people:      &personRepository{db: q},
		records:     &borrowRecordRepository{db: q},
		settlements: &settlementRepository{db: q},
	}
}

func (s *Store) Items() repository.ItemRepository                 { return s.items }
func (s *Store) People() repository.PersonRepository              { return s.people }
func (s *Store) BorrowRecords() repository.BorrowRecordRepository { return s.records }
func (s *Store) Settlements() repository.SettlementRepository     { return s.settlements }

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Ledger) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(newStore(s.db, tx, true)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping verifies connectivity, used at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
