package router

import (
	"github.com/labstack/echo/v4"

	"github.com/adnanhaider/course-review-portal/internal/handler"
	"github.com/adnanhaider/course-review-portal/internal/middleware"
	"github.com/adnanhaider/course-review-portal/internal/model"
	"github.com/adnanhaider/course-review-portal/internal/repository"
)

// RegisterRatings registers the rating API. Every route requires a
// login; the listing and summary endpoints are readable by students and
// admins alike.
func RegisterRatings(e *echo.Echo, r *handler.RatingHandler, jwtSecret string, revoked *repository.RevocationRepo) {
	g := e.Group("/api/ratings")
	g.Use(middleware.JWTAuth(jwtSecret, revoked))
	g.Use(middleware.RequireRole(model.RoleStudent, model.RoleAdmin))

	g.GET("", r.List)
	// Fixed paths must be registered before /:id.
	g.GET("/give-options", r.GiveOptions)
	g.GET("/summary", r.Summary)
	g.GET("/summaries", r.ListSummaries)
	g.GET("/:id", r.GetOne)
	g.POST("", r.Create)
	g.PUT("/:id", r.Update)
}
