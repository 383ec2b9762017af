package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seminar-hall-booking/internal/handler"
	"github.com/iliyamo/seminar-hall-booking/internal/middleware"
	"github.com/iliyamo/seminar-hall-booking/internal/model"
)

// RegisterRoutes registers routes that do not require authentication:
// health and metrics.  A nil metrics handler leaves /metrics unregistered.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc, metrics http.Handler) {
	e.GET("/healthz", health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers /v1/auth (public, rate limited) and the
// authenticated /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, r middleware.Resolver, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/register/admin", a.RegisterAdmin)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout takes the refresh token from the body; a bearer token, when
	// present, widens it to every session of the caller.
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(r))
}

// RegisterBookings registers hall browsing for any signed-in identity,
// booking requests for departments and the review endpoints for admins.
// cache wraps the hall listing.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, a *handler.AuthHandler, r middleware.Resolver, cache echo.MiddlewareFunc) {
	auth := middleware.JWTAuth(r)
	department := middleware.RequireRole(model.RoleDepartment)

	e.GET("/v1/halls", b.ListHalls, auth, cache)
	e.GET("/v1/my-bookings", b.MyBookings, auth, department)
	e.POST("/v1/bookings", b.Create, auth, department)

	admin := e.Group("/v1/admin", auth, middleware.RequireRole(model.RoleAdmin))
	admin.GET("/bookings", b.AdminBookings)
	admin.PATCH("/bookings/:id", b.SetStatus)
	admin.POST("/bookings/:id/approve", b.Approve)
	admin.POST("/bookings/:id/reject", b.Reject)
	admin.GET("/departments", a.Departments)
}
