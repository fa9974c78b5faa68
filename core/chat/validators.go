package chat

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxContentLength bounds the content of a sent message.
const MaxContentLength = 4000

type (
	SendRequest struct {
		Content string `json:"content" validate:"required,notblank,max=4000"`
	}

	SelectionRequest struct {
		ConversationID int `json:"conversation_id" validate:"gte=0"`
	}

	SearchRequest struct {
		Query string `json:"query" validate:"max=200"`
	}

	ViewportRequest struct {
		AtBottom *bool `json:"at_bottom" validate:"required"`
	}
)

func (sr *SendRequest) Validate(validate *validator.Validate) error {
	sr.Content = strings.TrimSpace(sr.Content)
	return validate.Struct(sr)
}

func (sr *SelectionRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(sr)
}

func (sr *SearchRequest) Validate(validate *validator.Validate) error {
	sr.Query = strings.TrimSpace(sr.Query)
	return validate.Struct(sr)
}

func (vr *ViewportRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(vr)
}
