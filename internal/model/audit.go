package model

import "time"

// Audit is an append-only log record of an admin or student action.
// Details holds an arbitrary JSON document; rows are never mutated.
type Audit struct {
	ID         uint64
	Action     string
	ActorID    *uint64
	TargetType string
	TargetID   *uint64
	Details    []byte
	CreatedAt  time.Time
}
