package model

import "time"

// RefreshToken models a row of `refresh_tokens`. Only the SHA-256 hash of
// the raw token is stored; RevokedAt is null while the token is usable.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Verification token purposes.
const (
	PurposeSignup   = "signup"
	PurposePassword = "password"
)

// VerificationToken is a short-lived OTP record keyed by email and
// purpose. The six-digit code is stored hashed and consumed exactly once.
type VerificationToken struct {
	ID         uint64
	Email      string
	UserID     *uint64
	TokenHash  string
	Purpose    string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}
