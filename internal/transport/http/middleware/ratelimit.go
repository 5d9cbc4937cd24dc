package middleware

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/velvetlist/concierge/internal/domain"
	"golang.org/x/time/rate"
)

// RateLimit applies a per-member token bucket. It must run after Auth so the
// key is the authenticated identity, not a client-supplied field.
func RateLimit(perSecond float64, burst int) echo.MiddlewareFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := AuthedUserID(c)
			if userID == "" {
				return next(c)
			}

			mu.Lock()
			lim, ok := limiters[userID]
			if !ok {
				lim = rate.NewLimiter(rate.Limit(perSecond), burst)
				limiters[userID] = lim
			}
			mu.Unlock()

			if !lim.Allow() {
				return c.JSON(http.StatusTooManyRequests, domain.ErrorBody{
					Error: domain.ErrorDetail{
						Kind:    string(domain.ErrKindRateLimited),
						Message: "too many requests, slow down",
					},
				})
			}
			return next(c)
		}
	}
}
