// Package middleware provides the Echo middleware guarding authenticated
// routes. Access tokens are stateless: the check is signature plus expiry,
// no store round-trip.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"go.pilab.hu/accountd/services"
)

// userIDContextKey is the echo context key carrying the authenticated user id.
const userIDContextKey = "authenticated_user_id"

// RequireAccessToken returns middleware that validates the Authorization
// Bearer token and stores the subject user id on the request context.
func RequireAccessToken(tokens *services.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format: expected Bearer token")
			}

			claims, err := tokens.ParseAccessToken(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired access token")
			}

			c.Set(userIDContextKey, claims.Subject)
			return next(c)
		}
	}
}

// UserID returns the authenticated user id set by RequireAccessToken, or ""
// when the request was not authenticated.
func UserID(c echo.Context) string {
	id, _ := c.Get(userIDContextKey).(string)
	return id
}
