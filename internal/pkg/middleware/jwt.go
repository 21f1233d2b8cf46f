package middleware

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	jwtpkg "github.com/piresc/topup/internal/pkg/jwt"
	"github.com/piresc/topup/internal/pkg/models"
	"github.com/piresc/topup/internal/utils"
)

// JWTAuthMiddleware validates the bearer token and stores the caller's
// user id under "user_id" as a string
func JWTAuthMiddleware(config models.JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return utils.UnauthorizedResponse(c, "Authorization header is required")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				return utils.UnauthorizedResponse(c, "Invalid authorization format")
			}

			claims, err := jwtpkg.ValidateToken(parts[1], config.Secret)
			if err != nil {
				return utils.UnauthorizedResponse(c, "Invalid token")
			}

			userID, ok := (*claims)["user_id"]
			if !ok || fmt.Sprintf("%v", userID) == "" {
				return utils.UnauthorizedResponse(c, "Invalid token: missing user_id claim")
			}

			c.Set("user_id", fmt.Sprintf("%v", userID))
			if role, ok := (*claims)["role"]; ok {
				c.Set("user_role", fmt.Sprintf("%v", role))
			}

			return next(c)
		}
	}
}

// UserIDFromContext returns the id stored by JWTAuthMiddleware
func UserIDFromContext(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok {
		return v
	}
	return ""
}
