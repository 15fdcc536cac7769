package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/adnanhaider/course-review-portal/internal/model"
)

// VerificationRepo stores one-time OTP tokens for signup activation and
// password resets. Codes are stored hashed and consumed exactly once.
type VerificationRepo struct{ DB *sql.DB }

func NewVerificationRepo(db *sql.DB) *VerificationRepo { return &VerificationRepo{DB: db} }

// Create inserts a new token record.
func (r *VerificationRepo) Create(ctx context.Context, email string, userID *uint64, tokenHash, purpose string, exp time.Time) error {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := r.DB.ExecContext(ctx, `INSERT INTO verification_tokens
		(email, user_id, token_hash, purpose, expires_at) VALUES (?,?,?,?,?)`,
		email, userID, tokenHash, purpose, exp)
	return err
}

// Latest returns the most recent unconsumed token for an email/purpose
// pair, or sql.ErrNoRows.
func (r *VerificationRepo) Latest(ctx context.Context, email, purpose string) (model.VerificationToken, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var (
		t      model.VerificationToken
		userID sql.NullInt64
	)
	err := r.DB.QueryRowContext(ctx, `SELECT id, email, user_id, token_hash, purpose, expires_at, created_at
		FROM verification_tokens
		WHERE email=? AND purpose=? AND consumed_at IS NULL
		ORDER BY created_at DESC LIMIT 1`, email, purpose).Scan(
		&t.ID, &t.Email, &userID, &t.TokenHash, &t.Purpose, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return t, err
	}
	if userID.Valid {
		id := uint64(userID.Int64)
		t.UserID = &id
	}
	return t, nil
}

// Consume marks a token as used.
func (r *VerificationRepo) Consume(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE verification_tokens SET consumed_at=NOW() WHERE id=? AND consumed_at IS NULL`, id)
	return err
}
