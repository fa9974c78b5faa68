package restapi

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/hsannu/connect/core/user"
)

type authenticator struct {
	client *Client
}

var _ user.Authenticator = (*authenticator)(nil) // interface compliance check

func NewAuthenticator(client *Client) user.Authenticator {
	return &authenticator{client: client}
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"deviceID,omitempty"`
}

// Authenticate posts the credentials to the login endpoint, which answers with the user object
// (rejections carry `{error}`).
func (auth *authenticator) Authenticate(ctx context.Context, lr user.LoginRequest) (user.User, error) {
	resp, err := auth.client.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(loginBody{Username: lr.Username, Password: lr.Password, DeviceID: lr.DeviceID}).
		Post("/api/login")
	if err != nil {
		return user.User{}, errors.Wrap(err, "requesting login")
	}

	var usr user.User
	if err = decode(resp, &usr); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && isRejection(apiErr.StatusCode) {
			msg := apiErr.Message
			if msg == "" {
				msg = "invalid credentials"
			}
			return user.User{}, errors.Wrap(user.ErrAuthenticationFailed, msg)
		}
		return user.User{}, err
	}
	if !usr.Resolvable() {
		return user.User{}, user.ErrAuthenticationFailed
	}
	if usr.AdditionalRoles == nil {
		usr.AdditionalRoles = []string{}
	}
	return usr, nil
}

func isRejection(status int) bool {
	return status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden
}
