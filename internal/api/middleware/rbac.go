package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nexthire/nexthire-api/internal/core/domain"
)

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, map[string]string{"error": domain.ErrForbidden.Error()})
}

func roleSet(roles []string) map[string]struct{} {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return allowed
}

// RBAC enforces role-based access control. It must run after Auth.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	allowed := roleSet(allowedRoles)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return forbidden(c)
			}
			if _, ok := allowed[user.Role]; !ok {
				return forbidden(c)
			}
			return next(c)
		}
	}
}

// OwnerOrRole lets the request through when the path parameter param names
// the authenticated user, or when the user holds one of allowedRoles.
func OwnerOrRole(param string, allowedRoles ...string) echo.MiddlewareFunc {
	allowed := roleSet(allowedRoles)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return forbidden(c)
			}
			if user.ID == c.Param(param) {
				return next(c)
			}
			if _, ok := allowed[user.Role]; ok {
				return next(c)
			}
			return forbidden(c)
		}
	}
}
