// Package repository defines error values shared across repositories.
// Sentinels let handlers translate storage failures into HTTP statuses
// without inspecting driver-specific errors: ErrConflict maps to 409
// and sql.ErrNoRows to 404.
package repository

import (
	"errors"
	"strings"
)

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state, such as deleting an offering that still has ratings.
var ErrConflict = errors.New("conflict")

// isDuplicateKey reports whether err is a MySQL duplicate-key violation
// (error 1062). Uniqueness constraints are enforced by the store, so
// concurrent duplicate inserts surface here rather than in application
// checks.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
