package middleware

import (
	"errors"
	"net/http"
	"strings"

	"kompello/internal/common"
	"kompello/internal/repositories"
	"kompello/internal/services"

	"github.com/labstack/echo/v4"
)

// ResolveCaller resolves the bearer token on the request into a caller
// identity and stores it on the context. A missing, malformed, expired or
// otherwise invalid token resolves to anonymous rather than failing: the
// authorization policy decides per action whether anonymous access is
// acceptable, which keeps 401 distinguishable from 403 downstream.
func ResolveCaller(tokenSvc services.TokenService, userRepo repositories.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return next(c)
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || tokenString == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			claims, err := tokenSvc.ValidateAccessToken(ctx, tokenString)
			if err != nil {
				return next(c)
			}

			userID, err := claims.UserID()
			if err != nil {
				return next(c)
			}

			// A token for a deleted user resolves to anonymous.
			user, err := userRepo.GetByID(ctx, userID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to resolve caller")
			}

			c.SetRequest(c.Request().WithContext(common.WithCaller(ctx, user)))
			return next(c)
		}
	}
}
