package domain

import "time"

type Person struct {
	ID        int32     `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	CreatedOn time.Time `json:"created_on"`
}

// HasContact reports whether notifications can reach this person.
func (p *Person) HasContact() bool {
	return p != nil && p.Email != ""
}

// Holdings groups the items a person currently holds and reserves.
type Holdings struct {
	Held     []Item `json:"held"`
	Reserved []Item `json:"reserved"`
}
