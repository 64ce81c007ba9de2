package middleware

import (
	"net/http"

	"github.com/educatodos/player-gateway/internal/infrastructure/auth"
	"github.com/labstack/echo/v4"
)

// VerifyToken validate the bearer JWT issued by the auth service and stash
// its claims in the request context
func VerifyToken(ju *auth.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := ju.ExtractToken(c)
			if err != nil {
				return c.NoContent(http.StatusUnauthorized)
			}

			token, err := ju.Validate(tokenStr)
			if err != nil {
				return c.NoContent(http.StatusUnauthorized)
			}
			ju.SetContextToken(c, token)
			return next(c)
		}
	}
}
