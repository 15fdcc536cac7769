// Package router wires HTTP routes to handlers and middleware. Public
// routes live at the top level, student routes under /api behind
// JWTAuth, and admin routes under /api/admin behind an additional role
// gate.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/adnanhaider/course-review-portal/internal/handler"
)

// RegisterRoutes registers the unauthenticated endpoints.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}
