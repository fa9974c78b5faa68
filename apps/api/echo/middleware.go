package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hsannu/connect/storage/restapi"
)

// identityMiddleware rejects tokens without a resolvable user id and puts the user in the context.
func identityMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextUser(ctx); err != nil {
				return errors.Wrap(err, "getting context user")
			}
			return next(ctx)
		}
	}
}

// requestContext carries the request id to the portal API calls made for the request.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if id := ctx.Response().Header().Get(echo.HeaderXRequestID); id != "" {
			req := ctx.Request()
			ctx.SetRequest(req.WithContext(restapi.WithRequestID(req.Context(), id)))
		}
		return next(ctx)
	}
}
