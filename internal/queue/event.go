// Package queue defines message payloads exchanged over the broker and
// the background consumer that drains them.
package queue

import "encoding/json"

// AuditRecordedEvent mirrors a row written to the audits table. It is
// published so operators can tail a flat file without database access.
type AuditRecordedEvent struct {
	Action     string          `json:"action"`
	ActorID    *uint64         `json:"actor_id"`
	TargetType string          `json:"target_type"`
	TargetID   *uint64         `json:"target_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	RecordedAt string          `json:"recorded_at"`
}

// OtpEmailEvent asks the mailer worker to deliver a one-time code. The
// application never sends mail itself.
type OtpEmailEvent struct {
	Email     string `json:"email"`
	Code      string `json:"code"`
	Purpose   string `json:"purpose"`
	ExpiresAt string `json:"expires_at"`
}
