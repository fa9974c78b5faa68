package chat

import (
	"context"
	"errors"
)

var (
	// errors
	ErrNotFound   = errors.New("conversation not found")
	ErrStopped    = errors.New("chat controller stopped")
	ErrNoIdentity = errors.New("no resolvable user id")
)

// Repository is the messaging API the controller synchronizes with.
type Repository interface {
	// ListConversations returns the conversations userID takes part in, in any order.
	ListConversations(ctx context.Context, userID int) ([]Conversation, error)
	// ListMessages returns the full history of a conversation as seen by userID.
	ListMessages(ctx context.Context, conversationID, userID int) ([]Message, error)
	// SendMessage posts a message and returns it as stored by the server.
	SendMessage(ctx context.Context, nm NewMessage) (Message, error)
}
