package restapi

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"github.com/hsannu/connect/core/chat"
)

type chatRepository struct {
	client *Client
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(client *Client) chat.Repository {
	return &chatRepository{client: client}
}

func (repo *chatRepository) ListConversations(ctx context.Context, userID int) ([]chat.Conversation, error) {
	if userID <= 0 {
		return nil, chat.ErrNoIdentity
	}

	resp, err := repo.client.request(ctx).
		SetHeader("Cache-Control", "no-store").
		SetPathParam("userId", strconv.Itoa(userID)).
		Get("/api/messaging/conversations/{userId}")
	if err != nil {
		return nil, errors.Wrap(err, "requesting conversations")
	}
	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	if env.Conversations == nil {
		return []chat.Conversation{}, nil
	}
	return env.Conversations, nil
}

func (repo *chatRepository) ListMessages(ctx context.Context, conversationID, userID int) ([]chat.Message, error) {
	if userID <= 0 {
		return nil, chat.ErrNoIdentity
	}

	resp, err := repo.client.request(ctx).
		SetPathParam("conversationId", strconv.Itoa(conversationID)).
		SetQueryParam("user_id", strconv.Itoa(userID)).
		Get("/api/messaging/conversation/{conversationId}/messages")
	if err != nil {
		return nil, errors.Wrap(err, "requesting messages")
	}
	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	if env.Messages == nil {
		return []chat.Message{}, nil
	}
	return env.Messages, nil
}

func (repo *chatRepository) SendMessage(ctx context.Context, nm chat.NewMessage) (chat.Message, error) {
	if nm.SenderID <= 0 {
		return chat.Message{}, chat.ErrNoIdentity
	}

	resp, err := repo.client.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(nm).
		Post("/api/messaging/messages")
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "posting message")
	}
	env, err := decodeEnvelope(resp)
	if err != nil {
		return chat.Message{}, err
	}

	var msg chat.Message
	if len(env.Message) == 0 || json.Unmarshal(env.Message, &msg) != nil || msg.ID == 0 {
		return chat.Message{}, &Error{StatusCode: resp.StatusCode(), Message: "malformed message in response"}
	}
	return msg, nil
}
