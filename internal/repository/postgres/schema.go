package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS people (
	id SERIAL PRIMARY KEY,
	full_name TEXT NOT NULL,
	email TEXT,
	created_on TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_people_email ON people(lower(email)) WHERE email <> '';

CREATE TABLE IF NOT EXISTS items (
	id SERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	year INTEGER NOT NULL DEFAULT 0,
	holder_id INTEGER REFERENCES people(id),
	reserved_by_id INTEGER REFERENCES people(id),
	held_since TIMESTAMPTZ,
	overdue BOOLEAN NOT NULL DEFAULT FALSE,
	debt_amount NUMERIC(12, 2) NOT NULL DEFAULT 0 CHECK (debt_amount >= 0),
	debt_status TEXT NOT NULL DEFAULT '',
	payment_date TIMESTAMPTZ,
	version INTEGER NOT NULL DEFAULT 1,
	created_on TIMESTAMPTZ NOT NULL,
	updated_on TIMESTAMPTZ NOT NULL,
	CHECK ((holder_id IS NULL) = (held_since IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_items_holder ON items(holder_id) WHERE holder_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_items_reserved_by ON items(reserved_by_id) WHERE reserved_by_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_items_title ON items(lower(title));

-- Append-only. No foreign keys so history outlives the person and the item.
CREATE TABLE IF NOT EXISTS borrow_records (
	id BIGSERIAL PRIMARY KEY,
	person_id INTEGER NOT NULL,
	item_id INTEGER NOT NULL,
	held_since TIMESTAMPTZ NOT NULL,
	released_on TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_borrow_records_person ON borrow_records(person_id);
CREATE INDEX IF NOT EXISTS idx_borrow_records_item ON borrow_records(item_id);

CREATE TABLE IF NOT EXISTS settlements (
	id UUID PRIMARY KEY,
	person_id INTEGER NOT NULL,
	description TEXT NOT NULL,
	amount NUMERIC(12, 2) NOT NULL,
	currency TEXT NOT NULL,
	intent_ref TEXT NOT NULL UNIQUE,
	paid_on TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_settlements_person ON settlements(person_id);
`

// Migrate creates the ledger schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
