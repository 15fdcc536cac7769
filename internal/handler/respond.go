// Package handler contains the Echo HTTP handlers. Every response uses
// the {success, data} / {success, error} envelope.
package handler

import "github.com/labstack/echo/v4"

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "error": echo.Map{"message": msg}})
}
