package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/velvetlist/concierge/internal/domain"
)

// UserIDKey is the echo context key holding the authenticated member id.
const UserIDKey = "auth_user_id"

// Auth verifies the platform session credential: an HS256 JWT whose subject
// is the member id. Failures never reach the model or the store.
func Auth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(raw, "Bearer ") {
				return authError(c, "missing bearer token")
			}

			tok, err := jwt.Parse([]byte(strings.TrimPrefix(raw, "Bearer ")),
				jwt.WithKey(jwa.HS256, key),
				jwt.WithValidate(true))
			if err != nil {
				return authError(c, "invalid session credential")
			}
			if tok.Subject() == "" {
				return authError(c, "invalid session credential")
			}

			c.Set(UserIDKey, tok.Subject())
			return next(c)
		}
	}
}

// AuthedUserID returns the member id set by Auth, or "".
func AuthedUserID(c echo.Context) string {
	if v, ok := c.Get(UserIDKey).(string); ok {
		return v
	}
	return ""
}

func authError(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, domain.ErrorBody{
		Error: domain.ErrorDetail{Kind: string(domain.ErrKindAuth), Message: message},
	})
}
