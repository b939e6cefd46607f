package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nexthire/nexthire-api/internal/api/middleware"
	"github.com/nexthire/nexthire-api/internal/core/domain"
)

// ctxUser returns the user injected by the Auth middleware. A missing user
// means the route was mounted without Auth; reject with 401.
func ctxUser(c echo.Context) (*domain.User, error) {
	user := middleware.CurrentUser(c)
	if user == nil || user.ID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return user, nil
}
