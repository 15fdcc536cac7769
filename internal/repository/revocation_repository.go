package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationRepo is the access-token revocation registry backed by redis.
// Logout pushes the token hash with a TTL equal to the token's remaining
// lifetime, so entries expire on their own and revocation survives
// process restarts. When redis is unavailable the registry degrades to a
// no-op: tokens then simply live until their natural expiry.
type RevocationRepo struct{ RDB *redis.Client }

func NewRevocationRepo(rdb *redis.Client) *RevocationRepo { return &RevocationRepo{RDB: rdb} }

const revokedKeyPrefix = "revoked:"

// Revoke registers a token hash until exp.
func (r *RevocationRepo) Revoke(ctx context.Context, tokenHash string, exp time.Time) error {
	if r.RDB == nil || tokenHash == "" {
		return nil
	}
	ttl := time.Until(exp)
	if ttl <= 0 {
		return nil
	}
	return r.RDB.Set(ctx, revokedKeyPrefix+tokenHash, 1, ttl).Err()
}

// IsRevoked reports whether a token hash is registered. Lookup failures
// are treated as not revoked so an unreachable redis cannot lock every
// user out.
func (r *RevocationRepo) IsRevoked(ctx context.Context, tokenHash string) bool {
	if r.RDB == nil || tokenHash == "" {
		return false
	}
	n, err := r.RDB.Exists(ctx, revokedKeyPrefix+tokenHash).Result()
	if err != nil {
		return false
	}
	return n > 0
}
