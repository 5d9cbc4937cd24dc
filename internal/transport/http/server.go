// Package http provides the HTTP server implementation for the concierge API.
package http

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/velvetlist/concierge/internal/config"
	"github.com/velvetlist/concierge/internal/service"
	mw "github.com/velvetlist/concierge/internal/transport/http/middleware"
	v1 "github.com/velvetlist/concierge/internal/transport/http/v1"
)

// NewServer creates and configures the concierge HTTP server.
func NewServer(svc *service.Service, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(mw.CORS(cfg.AllowOrigins, cfg.DefaultOrigin))

	// Handlers
	handler := v1.NewHandler(svc, cfg.RequestTimeout)
	handler.RegisterRoutes(e,
		mw.Auth(cfg.AuthSecret),
		mw.RateLimit(cfg.RatePerSecond, cfg.RateBurst),
	)

	return e
}
