package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/nexthire/nexthire-api/internal/core/domain"
	"github.com/nexthire/nexthire-api/internal/core/ports"
)

// Context keys set by Auth.
const (
	ContextUser  = "user"
	ContextToken = "token"
)

// CurrentUser returns the user stored by Auth, or nil.
func CurrentUser(c echo.Context) *domain.User {
	u, _ := c.Get(ContextUser).(*domain.User)
	return u
}

// Client identifies the requester. The IP comes from the router's
// IPExtractor, so forwarding headers count only behind a trusted proxy.
func Client(c echo.Context) ports.ClientRequest {
	return ports.ClientRequest{
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}
