package domain

import "time"

// BorrowRecord is the immutable trace of one completed holding period.
type BorrowRecord struct {
	ID         int64     `json:"id"`
	PersonID   int32     `json:"person_id"`
	ItemID     int32     `json:"item_id"`
	HeldSince  time.Time `json:"held_since"`
	ReleasedOn time.Time `json:"released_on"`
}
