package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"library-lending/internal/domain"
	"library-lending/internal/logger"
)

type personRepository struct {
	db dbtx
}

func (r *personRepository) Create(ctx context.Context, p *domain.Person) error {
	logger.DatabaseCall("INSERT", "people")
	p.CreatedOn = time.Now()
	query := `INSERT INTO people (full_name, email, created_on) VALUES ($1, $2, $3) RETURNING id`
	err := r.db.QueryRowContext(ctx, query, p.FullName, p.Email, p.CreatedOn).Scan(&p.ID)
	logger.DatabaseResult("INSERT", 1, err, "person_id", p.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("email %s: %w", p.Email, domain.ErrEmailTaken)
	}
	return err
}

func (r *personRepository) Update(ctx context.Context, p *domain.Person) error {
	logger.DatabaseCall("UPDATE", "people", "person_id", p.ID)
	res, err := r.db.ExecContext(ctx, `UPDATE people SET full_name = $1, email = $2 WHERE id = $3`, p.FullName, p.Email, p.ID)
	if isUniqueViolation(err) {
		logger.DatabaseResult("UPDATE", 0, err)
		return fmt.Errorf("email %s: %w", p.Email, domain.ErrEmailTaken)
	}
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "person_id", p.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("person %d: %w", p.ID, domain.ErrPersonNotFound)
	}
	return nil
}

func (r *personRepository) GetByID(ctx context.Context, id int32) (*domain.Person, error) {
	p := &domain.Person{}
	query := `SELECT id, full_name, COALESCE(email, ''), created_on FROM people WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.FullName, &p.Email, &p.CreatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("person %d: %w", id, domain.ErrPersonNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByEmail matches email case-insensitively.
func (r *personRepository) GetByEmail(ctx context.Context, email string) (*domain.Person, error) {
	p := &domain.Person{}
	query := `SELECT id, full_name, COALESCE(email, ''), created_on FROM people WHERE lower(email) = lower($1)`
	err := r.db.QueryRowContext(ctx, query, email).Scan(&p.ID, &p.FullName, &p.Email, &p.CreatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("email %s: %w", email, domain.ErrPersonNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *personRepository) Delete(ctx context.Context, id int32) error {
	logger.DatabaseCall("DELETE", "people", "person_id", id)
	res, err := r.db.ExecContext(ctx, `DELETE FROM people WHERE id = $1`, id)
	if err != nil {
		logger.DatabaseResult("DELETE", 0, err)
		return err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("DELETE", n, err)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("person %d: %w", id, domain.ErrPersonNotFound)
	}
	return nil
}
