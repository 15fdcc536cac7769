package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/adnanhaider/course-review-portal/internal/config"
	"github.com/adnanhaider/course-review-portal/internal/handler"
	"github.com/adnanhaider/course-review-portal/internal/middleware"
	"github.com/adnanhaider/course-review-portal/internal/model"
	"github.com/adnanhaider/course-review-portal/internal/repository"
)

// RegisterAuth registers the account lifecycle endpoints. The pre-auth
// group (signup, OTP, login, password reset) is rate limited per IP and
// route; everything that hashes a password or sends mail sits behind it.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, revoked *repository.RevocationRepo, rdb *redis.Client, rl config.RateLimitConfig) {
	g := e.Group("/api/auth")
	g.Use(middleware.NewTokenBucket(rl, rdb))
	g.POST("/signup", a.Signup)
	g.POST("/verify-signup", a.VerifySignup)
	g.POST("/resend-otp", a.ResendOTP)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)

	auth := e.Group("/api/auth")
	auth.Use(middleware.JWTAuth(jwtSecret, revoked))
	auth.Use(middleware.RequireRole(model.RoleStudent, model.RoleAdmin))
	auth.POST("/logout", a.Logout)
	auth.GET("/me", a.Me)
	auth.POST("/complete-profile", a.CompleteProfile)
}
