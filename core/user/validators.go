package user

import (
	"github.com/go-playground/validator/v10"

	"github.com/hsannu/connect/core"
)

// LoginRequest contains the credentials needed to log in.
type LoginRequest struct {
	Username string `json:"username" validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
	DeviceID string `json:"device_id,omitempty" validate:"omitempty,max=128"`
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username)
	lr.DeviceID = core.CleanString(lr.DeviceID)
	return validate.Struct(lr)
}
