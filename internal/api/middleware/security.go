package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

var baseHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Content-Security-Policy", "frame-ancestors 'self'"},
}

// SecurityHeaders sets the browser hardening headers on every response.
// Responses under apiPrefix are also marked uncacheable.
func SecurityHeaders(apiPrefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range baseHeaders {
				h.Set(kv[0], kv[1])
			}
			if apiPrefix != "" && strings.HasPrefix(c.Request().URL.Path, apiPrefix) {
				h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
				h.Set("Pragma", "no-cache")
			}
			return next(c)
		}
	}
}
