// Package middleware provides the boundary middleware for the concierge API:
// CORS, session auth, and per-user rate limiting.
package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const allowedHeaders = "authorization, x-client-info, apikey, content-type"

// CORS answers preflight and stamps CORS headers on every response. Unlisted
// or absent origins fall back to the default origin rather than being
// rejected — CORS is a browser concern here, not server-side authorization.
// The allow-list is fixed at construction.
func CORS(allowOrigins []string, defaultOrigin string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(allowOrigins))
	for _, o := range allowOrigins {
		allowed[o] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			allowOrigin := defaultOrigin
			if allowed[origin] {
				allowOrigin = origin
			}

			h := c.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, allowOrigin)
			h.Set(echo.HeaderAccessControlAllowCredentials, "true")
			h.Add(echo.HeaderVary, echo.HeaderOrigin)

			if c.Request().Method == http.MethodOptions {
				h.Set(echo.HeaderAccessControlAllowMethods, "POST, GET, OPTIONS")
				h.Set(echo.HeaderAccessControlAllowHeaders, allowedHeaders)
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
