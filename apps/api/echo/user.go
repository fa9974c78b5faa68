package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hsannu/connect/core/user"
)

type userApi struct {
	svc      *user.Service
	auth     *auth
	hub      *Hub
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *userApi) {
	// un-authed endpoints
	g.POST("/login", api.login)

	// authed endpoints
	ag := g.Group("", jwt, identityMiddleware())
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.DELETE("/session", api.logout)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data user.LoginRequest
	if err := bindAndValidate(ctx, api.validate, &data, "LoginRequest"); err != nil {
		return err
	}

	usr, err := api.svc.Login(ctx.Request().Context(), data)
	if err != nil {
		if errors.Is(err, user.ErrAuthenticationFailed) {
			return errInvalidCredentials
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.auth.generateToken(api.auth.userClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: &usr})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// logout tears the user's chat session down. The token itself stays valid until it expires.
func (api *userApi) logout(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	api.hub.Drop(usr.ID)
	return ctx.NoContent(http.StatusNoContent)
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user,omitempty"`
}
