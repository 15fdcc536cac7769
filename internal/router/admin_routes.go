package router

import (
	"github.com/labstack/echo/v4"

	"github.com/adnanhaider/course-review-portal/internal/handler"
	"github.com/adnanhaider/course-review-portal/internal/middleware"
	"github.com/adnanhaider/course-review-portal/internal/model"
	"github.com/adnanhaider/course-review-portal/internal/repository"
)

// RegisterAdmin registers the management surface under /api/admin,
// gated on the admin role.
func RegisterAdmin(e *echo.Echo, t *handler.AdminTermHandler, o *handler.AdminOfferingHandler,
	u *handler.AdminUserHandler, r *handler.RatingHandler, jwtSecret string, revoked *repository.RevocationRepo) {

	g := e.Group("/api/admin")
	g.Use(middleware.JWTAuth(jwtSecret, revoked))
	g.Use(middleware.RequireRole(model.RoleAdmin))

	g.GET("/terms", t.List)
	g.POST("/terms", t.Create)
	g.PATCH("/terms/:id", t.UpdateDates)
	g.POST("/terms/:id/activate", t.Activate)
	g.POST("/terms/:id/promote", t.Promote)

	g.GET("/offerings", o.ListByTerm)
	g.GET("/offerings/:id", o.Get)
	g.PATCH("/offerings/:id", o.Update)
	g.DELETE("/offerings/:id", o.Delete)
	g.POST("/class/add", o.AddClass)

	g.PUT("/ratings/:id", r.AdminUpdate)

	g.GET("/users", u.List)
	g.POST("/users", u.Create)
	g.GET("/users/:id", u.Get)
	g.PATCH("/users/:id", u.Update)
	g.DELETE("/users/:id", u.Delete)
}
