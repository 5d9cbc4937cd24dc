// Package v1 provides the HTTP handlers for the concierge API.
package v1

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/velvetlist/concierge/internal/domain"
	"github.com/velvetlist/concierge/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service        *service.Service
	requestTimeout time.Duration
}

// NewHandler creates a new handler. requestTimeout bounds the whole
// orchestration turn, model and tool calls included.
func NewHandler(service *service.Service, requestTimeout time.Duration) *Handler {
	return &Handler{
		service:        service,
		requestTimeout: requestTimeout,
	}
}

// RegisterRoutes registers routes. Authenticated routes are attached by the
// server with auth/rate-limit middleware; see server.go.
func (h *Handler) RegisterRoutes(e *echo.Echo, authed ...echo.MiddlewareFunc) {
	e.POST("/process-message", h.ProcessMessage, authed...)
	e.GET("/v1/conversations/:conversation_id/messages", h.GetConversationMessages, authed...)
	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrKindValidation:
		return http.StatusBadRequest
	case domain.ErrKindAuth:
		return http.StatusUnauthorized
	case domain.ErrKindNotFound:
		return http.StatusNotFound
	case domain.ErrKindRateLimited:
		return http.StatusTooManyRequests
	case domain.ErrKindModel:
		return http.StatusBadGateway
	case domain.ErrKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs the internal detail and returns the generic envelope — the
// client never sees wrapped causes.
func writeError(c echo.Context, err error) error {
	kind := domain.KindOf(err)
	message := "something went wrong, please try again"

	var derr *domain.Error
	if errors.As(err, &derr) {
		switch kind {
		case domain.ErrKindValidation, domain.ErrKindAuth, domain.ErrKindNotFound:
			message = derr.Message
		case domain.ErrKindModel, domain.ErrKindTimeout:
			message = "the concierge is briefly unavailable, please try again"
		}
	}

	log.Printf("ERROR: request failed kind=%s path=%s: %v", kind, c.Path(), err)
	return c.JSON(statusFor(kind), domain.ErrorBody{
		Error: domain.ErrorDetail{Kind: string(kind), Message: message},
	})
}
