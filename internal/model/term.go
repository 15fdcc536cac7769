package model

import "time"

// Term is an academic half-year period. Names follow the pattern
// "fa"|"sp" plus a two-digit year ("fa24", "sp25"). At most one term is
// active system-wide; the repository enforces this by deactivating all
// rows before activating one.
type Term struct {
	ID        uint64     `json:"id"`
	Name      string     `json:"name"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Dated reports whether both start and end dates are set. A term must be
// dated before it can be activated or promoted into.
func (t Term) Dated() bool { return t.StartDate != nil && t.EndDate != nil }
