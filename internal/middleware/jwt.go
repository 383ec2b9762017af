package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seminar-hall-booking/internal/model"
)

// identityKey is the echo context key holding the caller's model.Identity.
const identityKey = "identity"

// Resolver turns a bearer access token into the identity it was issued for.
// *session.Provider satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, accessToken string) (model.Identity, error)
}

// JWTAuth requires a valid Bearer access token and stores the resolved
// identity in the request context.  Handlers read it with IdentityFrom.
func JWTAuth(r Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			id, err := r.Resolve(c.Request().Context(), raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by JWTAuth.  ok is false on
// routes that are not behind JWTAuth.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok && id.ID != ""
}

// callerKey identifies the caller for rate limiting; "anon" when the request
// carries no identity.
func callerKey(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return id.ID
	}
	return "anon"
}
