package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/adnanhaider/course-review-portal/internal/repository"
	"github.com/adnanhaider/course-review-portal/internal/utils"
)

// Context keys set by JWTAuth for downstream handlers.
const (
	CtxUserID    = "user_id"
	CtxRole      = "role"
	CtxTokenHash = "token_hash"
	CtxTokenExp  = "token_exp"
)

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"success": false,
		"error":   echo.Map{"message": msg},
	})
}

// JWTAuth validates a Bearer access token, rejects tokens present in the
// revocation registry, and injects user id, role and the token's hash
// and expiry into the request context. The hash and expiry let the
// logout handler revoke the exact token it was called with.
func JWTAuth(secret string, revoked *repository.RevocationRepo) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return unauthorized(c, "invalid token")
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(c, "invalid claims")
			}

			sub, ok := claims["sub"].(float64)
			if !ok || sub <= 0 {
				return unauthorized(c, "invalid subject")
			}
			role, _ := claims["role"].(string)

			hash := utils.HashToken(raw)
			if revoked != nil && revoked.IsRevoked(c.Request().Context(), hash) {
				return unauthorized(c, "token revoked")
			}

			var exp time.Time
			if e, ok := claims["exp"].(float64); ok {
				exp = time.Unix(int64(e), 0).UTC()
			}

			c.Set(CtxUserID, uint64(sub))
			c.Set(CtxRole, role)
			c.Set(CtxTokenHash, hash)
			c.Set(CtxTokenExp, exp)
			return next(c)
		}
	}
}
