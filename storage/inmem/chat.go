package inmem

import (
	"context"
	"strings"

	"github.com/hsannu/connect/core/chat"
	"github.com/hsannu/connect/core/user"
)

type chatRepository struct {
	db *DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *DB) chat.Repository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) ListConversations(ctx context.Context, userID int) ([]chat.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if userID <= 0 {
		return nil, chat.ErrNoIdentity
	}

	repo.db.user.RLock()
	defer repo.db.user.RUnlock()
	repo.db.chat.RLock()
	defer repo.db.chat.RUnlock()

	convs := make([]chat.Conversation, 0)
	for _, th := range repo.db.chat.table {
		if !th.hasParticipant(userID) {
			continue
		}
		convs = append(convs, repo.conversation(th, userID))
	}
	return convs, nil
}

// conversation renders th as seen by userID: the other parties only, unread = their messages.
func (repo *chatRepository) conversation(th *thread, userID int) chat.Conversation {
	conv := chat.Conversation{
		ID:           th.id,
		CreatedAt:    chat.NewTimestamp(th.createdAt),
		Participants: make([]chat.Participant, 0, len(th.participants)),
	}
	for _, id := range th.participants {
		if id == userID {
			continue
		}
		if acc, ok := repo.db.user.table[id]; ok {
			conv.Participants = append(conv.Participants, participant(acc.user))
		}
	}
	for _, msg := range th.messages {
		if msg.SenderID != userID && !msg.Read {
			conv.UnreadCount++
		}
	}
	if n := len(th.messages); n > 0 {
		last := th.messages[n-1]
		conv.LatestMessage = &chat.LatestMessage{
			ID:        last.ID,
			SenderID:  last.SenderID,
			Sender:    last.SenderName,
			Content:   last.Content,
			CreatedAt: last.CreatedAt,
			Read:      last.Read,
		}
	}
	return conv
}

func participant(usr user.User) chat.Participant {
	p := chat.Participant{ID: usr.ID, Name: usr.Name, Role: usr.Role}
	if fields := strings.Fields(usr.Name); len(fields) > 1 {
		p.FirstName = fields[0]
		p.LastName = strings.Join(fields[1:], " ")
	}
	return p
}

// ListMessages returns the history of a thread and marks the other parties' messages as read.
func (repo *chatRepository) ListMessages(ctx context.Context, conversationID, userID int) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if userID <= 0 {
		return nil, chat.ErrNoIdentity
	}

	repo.db.chat.Lock()
	defer repo.db.chat.Unlock()

	th, ok := repo.db.chat.table[conversationID]
	if !ok || !th.hasParticipant(userID) {
		return nil, chat.ErrNotFound
	}
	msgs := make([]chat.Message, len(th.messages))
	copy(msgs, th.messages)
	for i := range th.messages {
		if th.messages[i].SenderID != userID {
			th.messages[i].Read = true
		}
	}
	return msgs, nil
}

func (repo *chatRepository) SendMessage(ctx context.Context, nm chat.NewMessage) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	if nm.SenderID <= 0 {
		return chat.Message{}, chat.ErrNoIdentity
	}
	return repo.db.AddMessage(nm.ConversationID, nm.SenderID, strings.TrimSpace(nm.Content))
}
