package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/piresc/topup/internal/utils"
)

const (
	APIKeyHeader = "X-API-Key"
)

// ValidateAPIKey accepts requests whose X-API-Key matches the key of one of
// allowedServices in keys. Services with an empty key never match.
func ValidateAPIKey(keys map[string]string, allowedServices ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			apiKey := c.Request().Header.Get(APIKeyHeader)
			if apiKey == "" {
				return utils.UnauthorizedResponse(c, "API key is required")
			}

			for _, service := range allowedServices {
				expected := keys[service]
				if expected != "" && subtle.ConstantTimeCompare([]byte(apiKey), []byte(expected)) == 1 {
					c.Set("caller_service", service)
					return next(c)
				}
			}

			return utils.UnauthorizedResponse(c, "Invalid API key")
		}
	}
}
