package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seminar-hall-booking/internal/apperr"
)

// requestTimeout bounds every store round trip a handler starts.
const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// respondError writes the {"error": ...} envelope with the status of err's
// kind.  Internal errors are logged with their cause and reported
// generically.
func respondError(c echo.Context, err error) error {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(kind.Status(), echo.Map{"error": apperr.Message(err)})
}

func badBody(c echo.Context) error {
	return respondError(c, apperr.New(apperr.Validation, "invalid body"))
}
